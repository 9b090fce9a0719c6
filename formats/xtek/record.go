package xtek

import (
	"bytes"
	"fmt"

	"github.com/hexkit/hexkit/hexcodec"
	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
)

// DefaultAddrLen is the address field width, in nibbles, new records
// use unless told otherwise.
const DefaultAddrLen = 8

// Record is one Tektronix Extended HEX line.
type Record struct {
	tag      Tag
	address  uint64
	data     []byte
	addrLen  int
	count    *int
	checksum *int
	before   []byte
	after    []byte
	coords   hexrec.Coords
}

// AddressMax returns the largest address addrLen nibbles can encode.
func AddressMax(addrLen int) uint64 {
	return (uint64(1) << uint(addrLen*4)) - 1
}

// DataMax returns the largest data payload a record with addrLen
// nibbles of address can carry, per the `(0xFA-L)/2` cap.
func DataMax(addrLen int) int {
	return (0xFA - addrLen) / 2
}

// New builds a Record, validating address length, address range, and
// data size, and resolving the count/checksum FieldModes.
func New(tag Tag, address uint64, data []byte, addrLen int, count, checksum hexrec.FieldMode, before, after []byte, coords hexrec.Coords) (*Record, error) {
	if addrLen < 1 || addrLen > 15 {
		return nil, &hexrec.StructuralError{Format: "xtek", Reason: "address length must be within 1..15 nibbles"}
	}
	if address > AddressMax(addrLen) {
		return nil, &hexrec.FieldOverflowError{Format: "xtek", Field: "address", Value: int64(address), Max: int64(AddressMax(addrLen))}
	}
	if dm := DataMax(addrLen); len(data) > dm {
		return nil, &hexrec.FieldOverflowError{Format: "xtek", Field: "data", Value: int64(len(data)), Max: int64(dm)}
	}
	if tag == TagEOF && len(data) != 0 {
		return nil, &hexrec.StructuralError{Format: "xtek", Reason: "EOF record carries no data"}
	}
	if err := hexrec.ValidateTrivia(before); err != nil {
		return nil, err
	}
	if err := hexrec.ValidateTrivia(after); err != nil {
		return nil, err
	}

	r := &Record{tag: tag, address: address, data: append([]byte(nil), data...), addrLen: addrLen, before: before, after: after, coords: coords}

	if v, ok := count.Resolve(r.ComputeCount()); ok {
		r.count = &v
	}
	if v, ok := checksum.Resolve(r.ComputeChecksum()); ok {
		r.checksum = &v
	}
	return r, nil
}

// CreateData builds a data record at the given addrLen (default 8
// nibbles if addrLen is zero).
func CreateData(address uint64, data []byte, addrLen int) (*Record, error) {
	if addrLen == 0 {
		addrLen = DefaultAddrLen
	}
	return New(TagData, address, data, addrLen, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
}

// CreateEOF builds the terminating EOF record, which doubles as the
// start-address carrier.
func CreateEOF(start uint64, addrLen int) (*Record, error) {
	if addrLen == 0 {
		addrLen = DefaultAddrLen
	}
	return New(TagEOF, start, nil, addrLen, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
}

// RecordTag returns the record's tag.
func (r *Record) RecordTag() hexrec.Tag { return r.tag }

// Address returns the record's address field (the start address, for
// an EOF record).
func (r *Record) Address() uint64 { return r.address }

// AddrLen returns the record's address width in nibbles.
func (r *Record) AddrLen() int { return r.addrLen }

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

// Before returns the whitespace trivia preceding the record.
func (r *Record) Before() []byte { return r.before }

// After returns the whitespace trivia following the record (excluding
// the line terminator, which ToBytestr always appends).
func (r *Record) After() []byte { return r.after }

// Coords returns where the record was parsed from, or hexrec.NoCoords.
func (r *Record) Coords() hexrec.Coords { return r.coords }

// ComputeCount returns 6 + addrLen + 2*len(data): the total hex-digit
// count after the leading '%', excluding the line terminator.
func (r *Record) ComputeCount() int {
	return 6 + r.addrLen + len(r.data)*2
}

func nibbleSum(b byte) int { return int(b>>4) + int(b&0xF) }

// ComputeChecksum sums the nibbles of count, tag, address length,
// address, and data, modulo 256.
func (r *Record) ComputeChecksum() int {
	sum := nibbleSum(byte(r.ComputeCount())) + int(r.tag) + r.addrLen
	addr := r.address
	for addr > 0 {
		sum += int(addr & 0xF)
		addr >>= 4
	}
	for _, b := range r.data {
		sum += nibbleSum(b)
	}
	return sum & 0xFF
}

// Validate checks address-length/address-range/data-size bounds
// unconditionally and, when requested, that the stored count/checksum
// match recomputation.
func (r *Record) Validate(checksum, count bool) error {
	if r.addrLen < 1 || r.addrLen > 15 {
		return &hexrec.StructuralError{Format: "xtek", Reason: "address length must be within 1..15 nibbles"}
	}
	if r.address > AddressMax(r.addrLen) {
		return &hexrec.FieldOverflowError{Format: "xtek", Field: "address", Value: int64(r.address), Max: int64(AddressMax(r.addrLen))}
	}
	if dm := DataMax(r.addrLen); len(r.data) > dm {
		return &hexrec.FieldOverflowError{Format: "xtek", Field: "data", Value: int64(len(r.data)), Max: int64(dm)}
	}
	if count {
		if v, ok := r.Count(); ok && v != r.ComputeCount() {
			return &hexrec.CountError{Format: "xtek", Stored: v, Computed: r.ComputeCount()}
		}
	}
	if checksum {
		if v, ok := r.Checksum(); ok && v != r.ComputeChecksum() {
			return &hexrec.ChecksumError{Format: "xtek", Stored: v, Computed: r.ComputeChecksum()}
		}
	}
	return nil
}

// ToBytestr renders the record's canonical wire form, including
// surrounding trivia and a trailing CRLF.
func (r *Record) ToBytestr() []byte {
	count, ok := r.Count()
	if !ok {
		count = r.ComputeCount()
	}
	cs, ok := r.Checksum()
	if !ok {
		cs = r.ComputeChecksum()
	}

	var buf bytes.Buffer
	buf.Write(r.before)
	buf.WriteByte('%')
	fmt.Fprintf(&buf, "%02X%X%02X%X", byte(count), r.tag, byte(cs), r.addrLen)
	fmt.Fprintf(&buf, "%0*X", r.addrLen, r.address)
	buf.WriteString(hexcodec.Hexlify(r.data, 0, true))
	buf.Write(r.after)
	buf.Write(hexfile.LineEnding)
	return buf.Bytes()
}

// ToTokens renders the record as named byte-slice fields for
// colorized printing.
func (r *Record) ToTokens() map[string][]byte {
	count, ok := r.Count()
	if !ok {
		count = r.ComputeCount()
	}
	cs, ok := r.Checksum()
	if !ok {
		cs = r.ComputeChecksum()
	}
	return map[string][]byte{
		"before":   r.before,
		"begin":    []byte("%"),
		"count":    []byte(fmt.Sprintf("%02X", byte(count))),
		"tag":      []byte(fmt.Sprintf("%X", r.tag)),
		"checksum": []byte(fmt.Sprintf("%02X", byte(cs))),
		"addrlen":  []byte(fmt.Sprintf("%X", r.addrLen)),
		"address":  []byte(fmt.Sprintf("%0*X", r.addrLen, r.address)),
		"data":     []byte(hexcodec.Hexlify(r.data, 0, true)),
		"after":    r.after,
	}
}

// ParseLine decodes one Xtek line (without its line terminator) at the
// given 1-based line number.
func ParseLine(line []byte, lineNo int) (*Record, error) {
	i := bytes.IndexByte(line, '%')
	if i < 0 {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "missing '%'"}
	}
	before := line[:i]
	if err := hexrec.ValidateTrivia(before); err != nil {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "leading trivia is not whitespace"}
	}
	rest := line[i+1:]
	if len(rest) < 5 {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "record too short"}
	}

	count64, err := hexcodec.ParseInt("0x" + string(rest[0:2]))
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "bad count field"}
	}
	tagVal, err := hexcodec.ParseInt("0x" + string(rest[2:3]))
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "bad tag field"}
	}
	var tag Tag
	switch tagVal {
	case int64(TagData):
		tag = TagData
	case int64(TagEOF):
		tag = TagEOF
	default:
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "unknown record type"}
	}
	checksum64, err := hexcodec.ParseInt("0x" + string(rest[3:5]))
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "bad checksum field"}
	}
	addrLen64, err := hexcodec.ParseInt("0x" + string(rest[5:6]))
	if err != nil || addrLen64 < 1 || addrLen64 > 15 {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "bad address length field"}
	}
	addrLen := int(addrLen64)

	rest = rest[6:]
	if len(rest) < addrLen {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "record too short for address field"}
	}
	address, err := hexcodec.ParseInt("0x" + string(rest[:addrLen]))
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "bad address field"}
	}
	rest = rest[addrLen:]

	dataDigits := int(count64) - 6 - addrLen
	if dataDigits < 0 || dataDigits%2 != 0 || len(rest) < dataDigits {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "count field does not match record length"}
	}
	dataHex := rest[:dataDigits]
	after := rest[dataDigits:]
	if err := hexrec.ValidateTrivia(after); err != nil {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: "trailing trivia is not whitespace"}
	}

	data, err := hexcodec.Unhexlify(string(dataHex), []byte{})
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "xtek", Line: lineNo, Text: string(line), Reason: err.Error()}
	}

	rec := &Record{
		tag:      tag,
		address:  uint64(address),
		data:     data,
		addrLen:  addrLen,
		count:    intPtr(int(count64)),
		checksum: intPtr(int(checksum64)),
		before:   append([]byte(nil), before...),
		after:    append([]byte(nil), after...),
		coords:   hexrec.Coords{Line: lineNo, Column: 0},
	}

	if computed := rec.ComputeChecksum(); computed != int(checksum64) {
		return nil, &hexrec.ChecksumError{Format: "xtek", Stored: int(checksum64), Computed: computed}
	}

	return rec, nil
}

func intPtr(v int) *int { return &v }
