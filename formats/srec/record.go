package srec

import (
	"bytes"
	"fmt"

	"github.com/hexkit/hexkit/hexcodec"
	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
)

// MaxDataLen is the largest payload any S-Record data line can carry
// regardless of tag: Tag.DataCap() at the widest (32-bit) address,
// i.e. the conservative bound a chunker may use before it knows which
// tag a chunk's address will need.
const MaxDataLen = 0xFC - 2

// Record is one Motorola S-Record line.
type Record struct {
	tag      Tag
	address  uint32
	data     []byte
	count    *int
	checksum *int
	before   []byte
	after    []byte
	coords   hexrec.Coords
}

// New builds a Record, validating data bounds and resolving the
// count/checksum FieldModes.
func New(tag Tag, address uint32, data []byte, count, checksum hexrec.FieldMode, before, after []byte, coords hexrec.Coords) (*Record, error) {
	if w := tag.AddrWidth(); w == 0 {
		return nil, &hexrec.FieldOverflowError{Format: "srec", Field: "tag", Value: int64(tag), Max: 9}
	}
	if tag.IsData() {
		if cap := tag.DataCap(); len(data) > cap {
			return nil, &hexrec.FieldOverflowError{Format: "srec", Field: "data", Value: int64(len(data)), Max: int64(cap)}
		}
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

// CreateHeader builds an S0 header record carrying arbitrary free text
// (module name, version) as its data payload.
func CreateHeader(data []byte) (*Record, error) {
	return New(TagHeader, 0, data, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
}

// CreateData builds a data record of the narrowest tag that fits
// address (S1 for <=0xFFFF, S2 for <=0xFFFFFF, else S3).
func CreateData(address uint32, data []byte) (*Record, error) {
	return New(dataTagForWidth(addrWidthFor(address)), address, data, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
}

// CreateDataWithTag builds a data record using an explicit tag, for
// writers that fix the address width across the whole file.
func CreateDataWithTag(tag Tag, address uint32, data []byte) (*Record, error) {
	return New(tag, address, data, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
}

// CreateCount builds an S5/S6 count record for n data records emitted,
// per the teacher's bigFile (>65535) threshold.
func CreateCount(n int) (*Record, error) {
	return New(countTagForValue(n), uint32(n), nil, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
}

// CreateStart builds the terminating start-address record of the
// narrowest tag that fits addr.
func CreateStart(addr uint32) (*Record, error) {
	return New(startTagForWidth(addrWidthFor(addr)), addr, nil, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
}

// addrWidthFor returns the narrowest address width (2, 3, or 4 bytes)
// that can hold addr.
func addrWidthFor(addr uint32) int {
	switch {
	case addr <= 0xFFFF:
		return 2
	case addr <= 0xFFFFFF:
		return 3
	default:
		return 4
	}
}

// RecordTag returns the record's tag.
func (r *Record) RecordTag() hexrec.Tag { return r.tag }

// Address returns the record's address field (0 for S0/count records,
// where it is unused or holds the count).
func (r *Record) Address() uint64 { return uint64(r.address) }

// Data returns the record's payload.
func (r *Record) Data() []byte { return r.data }

// Count returns the stored byte-count field, if present.
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

// Before returns the whitespace trivia preceding the record.
func (r *Record) Before() []byte { return r.before }

// After returns the whitespace trivia following the record (excluding
// the line terminator, which ToBytestr always appends).
func (r *Record) After() []byte { return r.after }

// Coords returns where the record was parsed from, or hexrec.NoCoords.
func (r *Record) Coords() hexrec.Coords { return r.coords }

// ComputeCount returns addrWidth + len(data) + 1 (the checksum byte),
// matching the teacher's byte-count field semantics.
func (r *Record) ComputeCount() int {
	return r.tag.AddrWidth() + len(r.data) + 1
}

// wireBytes reconstructs the binary record image (count, address,
// data — excluding the checksum byte).
func (r *Record) wireBytes() []byte {
	w := r.tag.AddrWidth()
	buf := make([]byte, 0, 1+w+len(r.data))
	buf = append(buf, byte(r.ComputeCount()))
	addr := make([]byte, 4)
	addr[0] = byte(r.address >> 24)
	addr[1] = byte(r.address >> 16)
	addr[2] = byte(r.address >> 8)
	addr[3] = byte(r.address)
	buf = append(buf, addr[4-w:]...)
	buf = append(buf, r.data...)
	return buf
}

// ComputeChecksum returns the one's complement of the sum of every
// byte in wireBytes, mod 256, per the teacher's calcChecksum.
func (r *Record) ComputeChecksum() int {
	var sum byte
	for _, b := range r.wireBytes() {
		sum += b
	}
	return int(^sum)
}

// Validate checks data bounds unconditionally and, when requested,
// that the stored count/checksum match recomputation.
func (r *Record) Validate(checksum, count bool) error {
	if r.tag.IsData() {
		if cap := r.tag.DataCap(); len(r.data) > cap {
			return &hexrec.FieldOverflowError{Format: "srec", Field: "data", Value: int64(len(r.data)), Max: int64(cap)}
		}
	}
	if count {
		if v, ok := r.Count(); ok && v != r.ComputeCount() {
			return &hexrec.CountError{Format: "srec", Stored: v, Computed: r.ComputeCount()}
		}
	}
	if checksum {
		if v, ok := r.Checksum(); ok && v != r.ComputeChecksum() {
			return &hexrec.ChecksumError{Format: "srec", Stored: v, Computed: r.ComputeChecksum()}
		}
	}
	return nil
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
	buf.WriteByte('S')
	buf.WriteString(tagNames[r.tag][1:])
	buf.WriteString(hexcodec.Hexlify(r.wireBytes(), 0, true))
	buf.WriteString(hexcodec.Hexlify([]byte{byte(cs)}, 0, true))
	buf.Write(r.after)
	buf.Write(hexfile.LineEnding)
	return buf.Bytes()
}

// ToTokens renders the record as named byte-slice fields for
// colorized printing.
func (r *Record) ToTokens() map[string][]byte {
	cs, ok := r.Checksum()
	if !ok {
		cs = r.ComputeChecksum()
	}
	w := r.tag.AddrWidth()
	return map[string][]byte{
		"before":   r.before,
		"start":    []byte("S" + tagNames[r.tag][1:]),
		"count":    []byte(fmt.Sprintf("%02X", r.ComputeCount())),
		"address":  []byte(fmt.Sprintf("%0*X", w*2, r.address)),
		"data":     []byte(hexcodec.Hexlify(r.data, 0, true)),
		"checksum": []byte(fmt.Sprintf("%02X", byte(cs))),
		"after":    r.after,
	}
}

// ParseLine decodes one S-Record line (without its line terminator) at
// the given 1-based line number.
func ParseLine(line []byte, lineNo int) (*Record, error) {
	before, core, after := splitTrivia(line)
	if err := hexrec.ValidateTrivia(before); err != nil {
		return nil, &hexrec.SyntaxError{Format: "srec", Line: lineNo, Text: string(line), Reason: "leading trivia is not whitespace"}
	}
	if err := hexrec.ValidateTrivia(after); err != nil {
		return nil, &hexrec.SyntaxError{Format: "srec", Line: lineNo, Text: string(line), Reason: "trailing trivia is not whitespace"}
	}
	if len(core) < 2 || core[0] != 'S' {
		return nil, &hexrec.SyntaxError{Format: "srec", Line: lineNo, Text: string(line), Reason: "missing leading 'S'"}
	}

	tag, ok := tagFromDigit(core[1])
	if !ok {
		return nil, &hexrec.SyntaxError{Format: "srec", Line: lineNo, Text: string(line), Reason: "unknown record type"}
	}
	w := tag.AddrWidth()

	raw, err := hexcodec.Unhexlify(string(core[2:]), []byte{})
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "srec", Line: lineNo, Text: string(line), Reason: err.Error()}
	}
	if len(raw) < 1+w+1 {
		return nil, &hexrec.SyntaxError{Format: "srec", Line: lineNo, Text: string(line), Reason: "record too short"}
	}

	count := int(raw[0])
	if len(raw) != count+1 {
		return nil, &hexrec.SyntaxError{Format: "srec", Line: lineNo, Text: string(line), Reason: "byte-count field does not match record length"}
	}

	addrBytes := raw[1 : 1+w]
	var address uint32
	for _, b := range addrBytes {
		address = address<<8 | uint32(b)
	}
	data := append([]byte(nil), raw[1+w:len(raw)-1]...)
	checksum := int(raw[len(raw)-1])

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

	if computed := rec.ComputeChecksum(); computed != checksum {
		return nil, &hexrec.ChecksumError{Format: "srec", Stored: checksum, Computed: computed}
	}

	return rec, nil
}

func tagFromDigit(d byte) (Tag, bool) {
	switch d {
	case '0':
		return TagHeader, true
	case '1':
		return TagData16, true
	case '2':
		return TagData24, true
	case '3':
		return TagData32, true
	case '5':
		return TagCount16, true
	case '6':
		return TagCount24, true
	case '7':
		return TagStart32, true
	case '8':
		return TagStart24, true
	case '9':
		return TagStart16, true
	default:
		return 0, false
	}
}

func intPtr(v int) *int { return &v }

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
