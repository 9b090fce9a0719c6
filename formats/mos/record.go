package mos

import (
	"bytes"
	"fmt"

	"github.com/hexkit/hexkit/hexcodec"
	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
)

// MaxDataLen is the largest payload a MOS record can carry: the
// 2-hex-digit count field caps out at 0xFF.
const MaxDataLen = 0xFF

// Record is one MOS Technology line.
type Record struct {
	tag      Tag
	address  uint64
	data     []byte
	count    *int
	checksum *int
	before   []byte
	after    []byte
	coords   hexrec.Coords
}

// New builds a Record, validating address/data bounds and resolving
// the count/checksum FieldModes.
func New(tag Tag, address uint64, data []byte, count, checksum hexrec.FieldMode, before, after []byte, coords hexrec.Coords) (*Record, error) {
	if address > 0xFFFF {
		return nil, &hexrec.FieldOverflowError{Format: "mos", Field: "address", Value: int64(address), Max: 0xFFFF}
	}
	if len(data) > MaxDataLen {
		return nil, &hexrec.FieldOverflowError{Format: "mos", Field: "data", Value: int64(len(data)), Max: MaxDataLen}
	}
	if bytes.IndexByte(before, ';') >= 0 {
		return nil, &hexrec.StructuralError{Format: "mos", Reason: "junk before contains ';'"}
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

// CreateData builds a data record.
func CreateData(address uint64, data []byte) (*Record, error) {
	return New(TagData, address, data, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
}

// CreateEOF builds the terminator record, whose address field carries
// the count of records that preceded it.
func CreateEOF(recordCount int) (*Record, error) {
	return New(TagEOF, uint64(recordCount), nil, hexrec.Auto(), hexrec.Auto(), nil, nil, hexrec.NoCoords)
}

// RecordTag returns the record's tag.
func (r *Record) RecordTag() hexrec.Tag { return r.tag }

// Address returns the record's address field (the record count, for
// the terminator).
func (r *Record) Address() uint64 { return r.address }

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

// Before returns the trivia preceding the record's leading ';' (must
// not itself contain ';').
func (r *Record) Before() []byte { return r.before }

// After returns the whitespace trivia following the record (excluding
// the line terminator, which ToBytestr always appends).
func (r *Record) After() []byte { return r.after }

// Coords returns where the record was parsed from, or hexrec.NoCoords.
func (r *Record) Coords() hexrec.Coords { return r.coords }

// ComputeCount returns len(data).
func (r *Record) ComputeCount() int { return len(r.data) }

// ComputeChecksum returns (count + addr_hi + addr_lo + sum(data)) mod
// 65536.
func (r *Record) ComputeChecksum() int {
	count := r.ComputeCount() & 0xFF
	addr := r.address & 0xFFFF
	sum := count + int(addr>>8) + int(addr&0xFF)
	for _, b := range r.data {
		sum += int(b)
	}
	return sum & 0xFFFF
}

// Validate checks address/data bounds unconditionally and, when
// requested, that the stored count/checksum match recomputation.
func (r *Record) Validate(checksum, count bool) error {
	if r.address > 0xFFFF {
		return &hexrec.FieldOverflowError{Format: "mos", Field: "address", Value: int64(r.address), Max: 0xFFFF}
	}
	if len(r.data) > MaxDataLen {
		return &hexrec.FieldOverflowError{Format: "mos", Field: "data", Value: int64(len(r.data)), Max: MaxDataLen}
	}
	if bytes.IndexByte(r.before, ';') >= 0 {
		return &hexrec.StructuralError{Format: "mos", Reason: "junk before contains ';'"}
	}
	if err := hexrec.ValidateTrivia(r.after); err != nil {
		return err
	}
	if count {
		if v, ok := r.Count(); ok && v != r.ComputeCount() {
			return &hexrec.CountError{Format: "mos", Stored: v, Computed: r.ComputeCount()}
		}
	}
	if checksum {
		if v, ok := r.Checksum(); ok && v != r.ComputeChecksum() {
			return &hexrec.ChecksumError{Format: "mos", Stored: v, Computed: r.ComputeChecksum()}
		}
	}
	return nil
}

// ToBytestr renders the record's canonical wire form, including
// surrounding trivia and a trailing CRLF. Six trailing padding NULs
// are a file-level concern (see File.Serialize), not part of a single
// record's wire form.
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
	buf.WriteByte(';')
	fmt.Fprintf(&buf, "%02X%04X", byte(count), uint16(r.address))
	buf.WriteString(hexcodec.Hexlify(r.data, 0, true))
	fmt.Fprintf(&buf, "%04X", uint16(cs))
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
		"begin":    []byte(";"),
		"count":    []byte(fmt.Sprintf("%02X", byte(count))),
		"address":  []byte(fmt.Sprintf("%04X", uint16(r.address))),
		"data":     []byte(hexcodec.Hexlify(r.data, 0, true)),
		"checksum": []byte(fmt.Sprintf("%04X", uint16(cs))),
		"after":    r.after,
	}
}

// ParseLine decodes one MOS line (without its line terminator, and
// with padding NULs already stripped) at the given 1-based line
// number. It always produces a TagData record; the file-level parser
// re-tags the final record as TagEOF once the whole stream has been
// read.
func ParseLine(line []byte, lineNo int) (*Record, error) {
	semi := bytes.IndexByte(line, ';')
	if semi < 0 {
		return nil, &hexrec.SyntaxError{Format: "mos", Line: lineNo, Text: string(line), Reason: "missing ';'"}
	}
	before := line[:semi]
	rest := line[semi+1:]
	if len(rest) < 2+4+4 {
		return nil, &hexrec.SyntaxError{Format: "mos", Line: lineNo, Text: string(line), Reason: "record too short"}
	}

	count64, err := hexcodec.ParseInt("0x" + string(rest[0:2]))
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "mos", Line: lineNo, Text: string(line), Reason: "bad count field"}
	}
	address64, err := hexcodec.ParseInt("0x" + string(rest[2:6]))
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "mos", Line: lineNo, Text: string(line), Reason: "bad address field"}
	}

	dataLen := int(count64) * 2
	if len(rest) < 6+dataLen+4 {
		return nil, &hexrec.SyntaxError{Format: "mos", Line: lineNo, Text: string(line), Reason: "count field does not match record length"}
	}
	data, err := hexcodec.Unhexlify(string(rest[6:6+dataLen]), []byte{})
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "mos", Line: lineNo, Text: string(line), Reason: err.Error()}
	}
	checksum64, err := hexcodec.ParseInt("0x" + string(rest[6+dataLen:6+dataLen+4]))
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "mos", Line: lineNo, Text: string(line), Reason: "bad checksum field"}
	}
	after := rest[6+dataLen+4:]
	if err := hexrec.ValidateTrivia(after); err != nil {
		return nil, &hexrec.SyntaxError{Format: "mos", Line: lineNo, Text: string(line), Reason: "trailing junk is not whitespace"}
	}

	rec := &Record{
		tag:      TagData,
		address:  uint64(address64),
		data:     data,
		count:    intPtr(int(count64)),
		checksum: intPtr(int(checksum64)),
		before:   append([]byte(nil), before...),
		after:    append([]byte(nil), after...),
		coords:   hexrec.Coords{Line: lineNo, Column: 0},
	}

	if computed := rec.ComputeChecksum(); computed != int(checksum64) {
		return nil, &hexrec.ChecksumError{Format: "mos", Stored: int(checksum64), Computed: computed}
	}

	return rec, nil
}

func intPtr(v int) *int { return &v }
