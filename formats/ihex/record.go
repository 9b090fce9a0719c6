package ihex

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hexkit/hexkit/hexcodec"
	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
)

// MaxDataLen is the largest payload an Intel HEX data record may carry.
const MaxDataLen = 0xFF

// Record is one Intel HEX line.
type Record struct {
	tag      Tag
	address  uint16
	data     []byte
	count    *int
	checksum *int
	before   []byte
	after    []byte
	coords   hexrec.Coords
}

// New builds a Record, validating address/data bounds and resolving the
// count/checksum FieldModes. coords is stored as given; the Create*
// factories pass hexrec.NoCoords.
func New(tag Tag, address uint16, data []byte, count, checksum hexrec.FieldMode, before, after []byte, coords hexrec.Coords) (*Record, error) {
	if n := tag.dataSize(); n >= 0 && len(data) != n {
		return nil, &hexrec.FieldOverflowError{Format: "ihex", Field: "data", Value: int64(len(data)), Max: int64(n)}
	}
	if tag == TagData && len(data) > MaxDataLen {
		return nil, &hexrec.FieldOverflowError{Format: "ihex", Field: "data", Value: int64(len(data)), Max: MaxDataLen}
	}
	if err := hexrec.ValidateTrivia(before); err != nil {
		return nil, err
	}
	if err := hexrec.ValidateTrivia(after); err != nil {
		return nil, err
	}

	r := &Record{tag: tag, address: address, data: append([]byte(nil), data...), before: before, after: after, coords: coords}

	if v, ok := count.Resolve(r.ComputeCount()); ok {
		r.count = &v
	}
	if v, ok := checksum.Resolve(r.ComputeChecksum()); ok {
		r.checksum = &v
	}
	return r, nil
}

// CreateData builds a TagData record covering up to MaxDataLen bytes.
func CreateData(address uint16, data []byte) (*Record, error) {
	return New(TagData, address, data, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
}

// CreateEndOfFile builds the canonical EOF record.
func CreateEndOfFile() *Record {
	r, _ := New(TagEndOfFile, 0, nil, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
	return r
}

// CreateExtendedSegmentAddress builds an ESA record carrying segment.
func CreateExtendedSegmentAddress(segment uint16) *Record {
	data := make([]byte, 2)
	binary.BigEndian.PutUint16(data, segment)
	r, _ := New(TagExtendedSegmentAddress, 0, data, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
	return r
}

// CreateExtendedLinearAddress builds an ELA record carrying the upper 16
// bits of subsequent linear addresses.
func CreateExtendedLinearAddress(upper uint16) *Record {
	data := make([]byte, 2)
	binary.BigEndian.PutUint16(data, upper)
	r, _ := New(TagExtendedLinearAddress, 0, data, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
	return r
}

// CreateStartSegmentAddress builds a start-segment-address record; addr
// packs CS in the upper 16 bits and IP in the lower 16 bits.
func CreateStartSegmentAddress(addr uint32) *Record {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, addr)
	r, _ := New(TagStartSegmentAddress, 0, data, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
	return r
}

// CreateStartLinearAddress builds a start-linear-address (EIP) record.
func CreateStartLinearAddress(eip uint32) *Record {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, eip)
	r, _ := New(TagStartLinearAddress, 0, data, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
	return r
}

// RecordTag returns the record's tag.
func (r *Record) RecordTag() hexrec.Tag { return r.tag }

// Address returns the record's 16-bit address field (0 for tags where it
// is unused).
func (r *Record) Address() uint64 { return uint64(r.address) }

// AddressU16 returns the raw 16-bit address field.
func (r *Record) AddressU16() uint16 { return r.address }

// Data returns the record's payload.
func (r *Record) Data() []byte { return r.data }

// Count returns the stored count field, if present.
func (r *Record) Count() (int, bool) {
	if r.count == nil {
		return 0, false
	}
	return *r.count, true
}

// Checksum returns the stored checksum field, if present.
func (r *Record) Checksum() (int, bool) {
	if r.checksum == nil {
		return 0, false
	}
	return *r.checksum, true
}

// Before returns the whitespace trivia preceding the record's canonical
// syntax.
func (r *Record) Before() []byte { return r.before }

// After returns the whitespace trivia following the record's canonical
// syntax (excluding the line terminator, which ToBytestr always appends).
func (r *Record) After() []byte { return r.after }

// Coords returns where the record was parsed from, or hexrec.NoCoords.
func (r *Record) Coords() hexrec.Coords { return r.coords }

// ComputeCount returns len(Data); Intel HEX's count field is simply the
// data byte count.
func (r *Record) ComputeCount() int { return len(r.data) }

// ComputeChecksum returns (-(count + addrHi + addrLo + tag + sum(data)))
// mod 256, per §4.5.
func (r *Record) ComputeChecksum() int {
	sum := len(r.data) + int(byte(r.address>>8)) + int(byte(r.address)) + int(byte(r.tag))
	for _, b := range r.data {
		sum += int(b)
	}
	return int(byte(-sum))
}

// Validate checks address/data bounds unconditionally and, when
// requested, that the stored count/checksum match recomputation.
func (r *Record) Validate(checksum, count bool) error {
	if n := r.tag.dataSize(); n >= 0 && len(r.data) != n {
		return &hexrec.FieldOverflowError{Format: "ihex", Field: "data", Value: int64(len(r.data)), Max: int64(n)}
	}
	if len(r.data) > MaxDataLen {
		return &hexrec.FieldOverflowError{Format: "ihex", Field: "data", Value: int64(len(r.data)), Max: MaxDataLen}
	}
	if count {
		if v, ok := r.Count(); ok && v != r.ComputeCount() {
			return &hexrec.CountError{Format: "ihex", Stored: v, Computed: r.ComputeCount()}
		}
	}
	if checksum {
		if v, ok := r.Checksum(); ok && v != r.ComputeChecksum() {
			return &hexrec.ChecksumError{Format: "ihex", Stored: v, Computed: r.ComputeChecksum()}
		}
	}
	return nil
}

// wireBytes reconstructs the binary record image (count, address,
// tag, data — excluding the checksum byte) used both for checksum
// computation and for serialization.
func (r *Record) wireBytes() []byte {
	buf := make([]byte, 0, 4+len(r.data))
	buf = append(buf, byte(len(r.data)))
	buf = append(buf, byte(r.address>>8), byte(r.address))
	buf = append(buf, byte(r.tag))
	buf = append(buf, r.data...)
	return buf
}

// ToBytestr renders the record's canonical wire form, including
// surrounding trivia and a trailing CRLF.
func (r *Record) ToBytestr() []byte {
	cs, ok := r.Checksum()
	if !ok {
		cs = r.ComputeChecksum()
	}

	var buf bytes.Buffer
	buf.Write(r.before)
	buf.WriteByte(':')
	buf.WriteString(hexcodec.Hexlify(r.wireBytes(), 0, true))
	buf.WriteString(hexcodec.Hexlify([]byte{byte(cs)}, 0, true))
	buf.Write(r.after)
	buf.Write(hexfile.LineEnding)
	return buf.Bytes()
}

// ToTokens renders the record as named byte-slice fields for colorized
// printing, per §4.4.
func (r *Record) ToTokens() map[string][]byte {
	cs, ok := r.Checksum()
	if !ok {
		cs = r.ComputeChecksum()
	}
	return map[string][]byte{
		"before":   r.before,
		"start":    []byte(":"),
		"count":    []byte(fmt.Sprintf("%02X", len(r.data))),
		"address":  []byte(fmt.Sprintf("%04X", r.address)),
		"tag":      []byte(fmt.Sprintf("%02X", byte(r.tag))),
		"data":     []byte(hexcodec.Hexlify(r.data, 0, true)),
		"checksum": []byte(fmt.Sprintf("%02X", byte(cs))),
		"after":    r.after,
	}
}

// ParseLine decodes one Intel HEX line (without its line terminator) at the
// given 1-based line number.
func ParseLine(line []byte, lineNo int) (*Record, error) {
	before, core, after := splitTrivia(line)
	if err := hexrec.ValidateTrivia(before); err != nil {
		return nil, &hexrec.SyntaxError{Format: "ihex", Line: lineNo, Text: string(line), Reason: "leading trivia is not whitespace"}
	}
	if err := hexrec.ValidateTrivia(after); err != nil {
		return nil, &hexrec.SyntaxError{Format: "ihex", Line: lineNo, Text: string(line), Reason: "trailing trivia is not whitespace"}
	}
	if len(core) == 0 || core[0] != ':' {
		return nil, &hexrec.SyntaxError{Format: "ihex", Line: lineNo, Text: string(line), Reason: "missing leading ':'"}
	}

	raw, err := hexcodec.Unhexlify(string(core[1:]), []byte{})
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "ihex", Line: lineNo, Text: string(line), Reason: err.Error()}
	}
	if len(raw) < 5 {
		return nil, &hexrec.SyntaxError{Format: "ihex", Line: lineNo, Text: string(line), Reason: "record too short"}
	}

	count := int(raw[0])
	if len(raw) != count+5 {
		return nil, &hexrec.SyntaxError{Format: "ihex", Line: lineNo, Text: string(line), Reason: "count field does not match record length"}
	}

	address := uint16(raw[1])<<8 | uint16(raw[2])
	tag := Tag(raw[3])
	data := append([]byte(nil), raw[4:4+count]...)
	checksum := int(raw[4+count])

	rec := &Record{
		tag:      tag,
		address:  address,
		data:     data,
		count:    intPtr(count),
		checksum: intPtr(checksum),
		before:   before,
		after:    after,
		coords:   hexrec.Coords{Line: lineNo, Column: 0},
	}

	if err := rec.Validate(false, false); err != nil {
		return nil, err
	}
	if computed := rec.ComputeChecksum(); computed != checksum {
		return nil, &hexrec.ChecksumError{Format: "ihex", Stored: checksum, Computed: computed}
	}

	return rec, nil
}

func intPtr(v int) *int { return &v }

// splitTrivia separates leading/trailing whitespace from the canonical
// token region of a line.
func splitTrivia(line []byte) (before, core, after []byte) {
	i := 0
	for i < len(line) && isWhitespace(line[i]) {
		i++
	}
	j := len(line)
	for j > i && isWhitespace(line[j-1]) {
		j--
	}
	return line[:i], line[i:j], line[j:]
}

func isWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	default:
		return false
	}
}
