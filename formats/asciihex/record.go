package asciihex

import (
	"bytes"
	"fmt"

	"github.com/hexkit/hexkit/hexcodec"
	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
)

// execChars are the separator bytes tolerated between data-record hex
// pairs: space, tab, vertical tab, form feed, CR, percent, quote, comma.
var execChars = []byte(" \t\v\f\r%',")

func isExecChar(b byte) bool { return bytes.IndexByte(execChars, b) >= 0 }

func isWhitespaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexVal(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	default:
		return int(b-'A') + 10
	}
}

// Record is one ASCII-HEX data, address, or checksum record.
type Record struct {
	tag      Tag
	address  uint64
	data     []byte
	count    *int // ADDRESS record's addrlen, in nibbles
	checksum *int // CHECKSUM record's 16-bit running sum
	before   []byte
	after    []byte
	coords   hexrec.Coords
}

// New builds a Record, resolving the count/checksum FieldModes.
func New(tag Tag, address uint64, data []byte, count, checksum hexrec.FieldMode, before, after []byte, coords hexrec.Coords) (*Record, error) {
	if err := hexrec.ValidateTrivia(before); err != nil {
		return nil, err
	}
	if err := hexrec.ValidateTrivia(after); err != nil {
		return nil, err
	}
	if tag != TagData && len(data) != 0 {
		return nil, &hexrec.StructuralError{Format: "asciihex", Reason: "only data records carry a data payload"}
	}

	r := &Record{tag: tag, address: address, data: append([]byte(nil), data...), before: before, after: after, coords: coords}

	if v, ok := count.Resolve(0); ok {
		r.count = &v
	}
	if v, ok := checksum.Resolve(0); ok {
		r.checksum = &v
	}
	return r, nil
}

// CreateData builds a data record; address is informational only (the
// stream cursor governs placement on parse).
func CreateData(address uint64, data []byte) (*Record, error) {
	return New(TagData, address, data, hexrec.Suppressed(), hexrec.Suppressed(), nil, nil, hexrec.NoCoords)
}

// CreateAddress builds an address record setting the stream cursor,
// with its address field rendered in addrlen nibbles (default 8).
func CreateAddress(address uint64, addrlen int) (*Record, error) {
	if addrlen <= 0 {
		addrlen = 8
	}
	return New(TagAddress, address, nil, hexrec.Explicit(addrlen), hexrec.Suppressed(), nil, nil, hexrec.NoCoords)
}

// CreateChecksum builds a checksum record carrying the 16-bit running
// sum of all data bytes seen so far.
func CreateChecksum(checksum uint16) (*Record, error) {
	return New(TagChecksum, 0, nil, hexrec.Suppressed(), hexrec.Explicit(int(checksum)), nil, nil, hexrec.NoCoords)
}

// RecordTag returns the record's tag.
func (r *Record) RecordTag() hexrec.Tag { return r.tag }

// Address returns the record's address field: the cursor value for a
// data record, the new cursor for an address record, 0 for checksum.
func (r *Record) Address() uint64 { return r.address }

// Data returns the record's payload (empty except for data records).
func (r *Record) Data() []byte { return r.data }

// Count returns the address record's addrlen field, if present.
func (r *Record) Count() (int, bool) {
	if r.count == nil {
		return 0, false
	}
	return *r.count, true
}

// Checksum returns the checksum record's stored 16-bit sum, if present.
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

// ComputeCount loops back the stored addrlen for address records; data
// and checksum records have no independently-computable count.
func (r *Record) ComputeCount() int {
	if r.count != nil {
		return *r.count
	}
	return 0
}

// ComputeChecksum loops back the stored value for checksum records;
// data and address records have no independently-computable checksum
// (the running sum is a whole-file property, tracked by the file, not
// the record).
func (r *Record) ComputeChecksum() int {
	if r.checksum != nil {
		return *r.checksum
	}
	return 0
}

// Validate checks trivia and tag/field consistency, and, when
// requested, that stored fields are present where the tag requires
// them.
func (r *Record) Validate(checksum, count bool) error {
	if err := hexrec.ValidateTrivia(r.before); err != nil {
		return err
	}
	if err := hexrec.ValidateTrivia(r.after); err != nil {
		return err
	}
	if r.tag != TagData && len(r.data) != 0 {
		return &hexrec.StructuralError{Format: "asciihex", Reason: "only data records carry a data payload"}
	}
	if checksum && r.tag == TagChecksum {
		if v, ok := r.Checksum(); !ok {
			return &hexrec.StructuralError{Format: "asciihex", Reason: "checksum record requires a checksum value"}
		} else if v < 0 || v > 0xFFFF {
			return &hexrec.FieldOverflowError{Format: "asciihex", Field: "checksum", Value: int64(v), Max: 0xFFFF}
		}
	}
	if count && r.tag == TagAddress {
		v, ok := r.Count()
		if !ok {
			return &hexrec.StructuralError{Format: "asciihex", Reason: "address record requires a count (addrlen) value"}
		}
		if v < len(fmt.Sprintf("%X", r.address)) {
			return &hexrec.FieldOverflowError{Format: "asciihex", Field: "count", Value: int64(v), Max: int64(len(fmt.Sprintf("%X", r.address)))}
		}
	}
	return nil
}

// ToBytestr renders the record's canonical wire form, including
// surrounding trivia and a trailing CRLF. Data records render as
// space-separated hex byte pairs (one trailing separator included);
// address/checksum records render as `$A<hex>,` / `$S<hex>,`.
func (r *Record) ToBytestr() []byte {
	var buf bytes.Buffer
	buf.Write(r.before)
	switch r.tag {
	case TagAddress:
		count, ok := r.Count()
		if !ok || count <= 0 {
			count = 1
		}
		mask := (uint64(1) << uint(4*count)) - 1
		fmt.Fprintf(&buf, "$A%0*X,", count, r.address&mask)
	case TagChecksum:
		cs, _ := r.Checksum()
		fmt.Fprintf(&buf, "$S%04X,", uint16(cs))
	default:
		if len(r.data) > 0 {
			buf.WriteString(hexcodec.Hexlify(r.data, ' ', true))
			buf.WriteByte(' ')
		}
	}
	buf.Write(r.after)
	buf.Write(hexfile.LineEnding)
	return buf.Bytes()
}

// ToTokens renders the record as named byte-slice fields for
// colorized printing.
func (r *Record) ToTokens() map[string][]byte {
	addrstr, chksstr, datastr := []byte{}, []byte{}, []byte{}
	switch r.tag {
	case TagAddress:
		count, ok := r.Count()
		if !ok || count <= 0 {
			count = 1
		}
		mask := (uint64(1) << uint(4*count)) - 1
		addrstr = []byte(fmt.Sprintf("$A%0*X,", count, r.address&mask))
	case TagChecksum:
		cs, _ := r.Checksum()
		chksstr = []byte(fmt.Sprintf("$S%04X,", uint16(cs)))
	default:
		if len(r.data) > 0 {
			datastr = append([]byte(hexcodec.Hexlify(r.data, ' ', true)), ' ')
		}
	}
	return map[string][]byte{
		"before":   r.before,
		"address":  addrstr,
		"data":     datastr,
		"checksum": chksstr,
		"after":    r.after,
	}
}

// ParseChunk decodes one record starting at buf[0], in the style of a
// regex match: it skips leading whitespace into before, recognizes an
// address ($A), checksum ($S), or data-token-run record, then skips
// trailing whitespace into after. It returns the record and the number
// of bytes of buf consumed (including leading/trailing trivia), so the
// caller can advance its scan offset.
//
// address is the stream cursor to assign to a data record; it is
// ignored for address/checksum records.
func ParseChunk(buf []byte, address uint64, lineNo int) (*Record, int, error) {
	i := 0
	for i < len(buf) && isWhitespaceByte(buf[i]) {
		i++
	}
	before := buf[:i]

	if i+1 < len(buf) && buf[i] == '$' && (buf[i+1] == 'A' || buf[i+1] == 'a') {
		j := i + 2
		hexStart := j
		for j < len(buf) && isHexDigit(buf[j]) {
			j++
		}
		if j == hexStart || j >= len(buf) || (buf[j] != ',' && buf[j] != '.') {
			return nil, 0, &hexrec.SyntaxError{Format: "asciihex", Line: lineNo, Text: string(buf), Reason: "malformed address record"}
		}
		addr, err := hexcodec.ParseInt("0x" + string(buf[hexStart:j]))
		if err != nil {
			return nil, 0, &hexrec.SyntaxError{Format: "asciihex", Line: lineNo, Text: string(buf), Reason: "bad address field"}
		}
		count := j - hexStart
		j++ // consume , or .
		k := j
		for k < len(buf) && isWhitespaceByte(buf[k]) {
			k++
		}
		rec := &Record{tag: TagAddress, address: uint64(addr), count: intPtr(count), before: append([]byte(nil), before...), after: append([]byte(nil), buf[j:k]...), coords: hexrec.Coords{Line: lineNo, Column: 0}}
		return rec, k, nil
	}

	if i+1 < len(buf) && buf[i] == '$' && (buf[i+1] == 'S' || buf[i+1] == 's') {
		j := i + 2
		hexStart := j
		for j < len(buf) && isHexDigit(buf[j]) {
			j++
		}
		if j == hexStart || j >= len(buf) || (buf[j] != ',' && buf[j] != '.') {
			return nil, 0, &hexrec.SyntaxError{Format: "asciihex", Line: lineNo, Text: string(buf), Reason: "malformed checksum record"}
		}
		cs, err := hexcodec.ParseInt("0x" + string(buf[hexStart:j]))
		if err != nil {
			return nil, 0, &hexrec.SyntaxError{Format: "asciihex", Line: lineNo, Text: string(buf), Reason: "bad checksum field"}
		}
		j++
		k := j
		for k < len(buf) && isWhitespaceByte(buf[k]) {
			k++
		}
		rec := &Record{tag: TagChecksum, checksum: intPtr(int(cs)), before: append([]byte(nil), before...), after: append([]byte(nil), buf[j:k]...), coords: hexrec.Coords{Line: lineNo, Column: 0}}
		return rec, k, nil
	}

	j := i
	var data []byte
	for j+2 <= len(buf) && isHexDigit(buf[j]) && isHexDigit(buf[j+1]) {
		data = append(data, byte(hexVal(buf[j])<<4|hexVal(buf[j+1])))
		j += 2
		if j < len(buf) && isExecChar(buf[j]) {
			j++
		}
	}
	if len(data) == 0 {
		return nil, 0, &hexrec.SyntaxError{Format: "asciihex", Line: lineNo, Text: string(buf), Reason: "syntax error"}
	}
	k := j
	for k < len(buf) && isWhitespaceByte(buf[k]) {
		k++
	}
	rec := &Record{tag: TagData, address: address, data: data, before: append([]byte(nil), before...), after: append([]byte(nil), buf[j:k]...), coords: hexrec.Coords{Line: lineNo, Column: 0}}
	return rec, k, nil
}

func intPtr(v int) *int { return &v }
