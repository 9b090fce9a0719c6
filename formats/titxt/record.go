package titxt

import (
	"bytes"
	"fmt"

	"github.com/hexkit/hexkit/hexcodec"
	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
)

// DefaultAddrLen is the address field width, in nibbles, new address
// records use unless told otherwise.
const DefaultAddrLen = 4

func isWhitespaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}

func isDataSepByte(b byte) bool { return b == ' ' || b == '\t' }

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

// Record is one TI-TXT data, address, or end-of-file record.
type Record struct {
	tag     Tag
	address uint64
	data    []byte
	count   *int // ADDRESS record's addrlen, in nibbles
	before  []byte
	after   []byte
	coords  hexrec.Coords
}

// New builds a Record, resolving the count FieldMode.
func New(tag Tag, address uint64, data []byte, count hexrec.FieldMode, before, after []byte, coords hexrec.Coords) (*Record, error) {
	if err := hexrec.ValidateTrivia(before); err != nil {
		return nil, err
	}
	if err := hexrec.ValidateTrivia(after); err != nil {
		return nil, err
	}
	if tag != TagData && len(data) != 0 {
		return nil, &hexrec.StructuralError{Format: "titxt", Reason: "only data records carry a data payload"}
	}

	r := &Record{tag: tag, address: address, data: append([]byte(nil), data...), before: before, after: after, coords: coords}

	if v, ok := count.Resolve(0); ok {
		r.count = &v
	}
	return r, nil
}

// CreateData builds a data record; address is informational only (the
// stream cursor governs placement on parse).
func CreateData(address uint64, data []byte) (*Record, error) {
	return New(TagData, address, data, hexrec.Suppressed(), nil, nil, hexrec.NoCoords)
}

// CreateAddress builds an address record setting the stream cursor,
// with its address field rendered in addrlen nibbles (default 4).
func CreateAddress(address uint64, addrlen int) (*Record, error) {
	if addrlen <= 0 {
		addrlen = DefaultAddrLen
	}
	return New(TagAddress, address, nil, hexrec.Explicit(addrlen), nil, nil, hexrec.NoCoords)
}

// CreateEOF builds the terminating `q` record.
func CreateEOF() (*Record, error) {
	return New(TagEOF, 0, nil, hexrec.Suppressed(), nil, nil, hexrec.NoCoords)
}

// RecordTag returns the record's tag.
func (r *Record) RecordTag() hexrec.Tag { return r.tag }

// Address returns the record's address field (the new cursor, for an
// address record; the parse-assigned cursor, for a data record).
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

// Checksum is unsupported by TI-TXT records; it always reports absent.
func (r *Record) Checksum() (int, bool) { return 0, false }

// Before returns the whitespace trivia preceding the record.
func (r *Record) Before() []byte { return r.before }

// After returns the whitespace trivia following the record (excluding
// the line terminator, which ToBytestr always appends).
func (r *Record) After() []byte { return r.after }

// Coords returns where the record was parsed from, or hexrec.NoCoords.
func (r *Record) Coords() hexrec.Coords { return r.coords }

// ComputeCount loops back the stored addrlen for address records; data
// and EOF records have no independently-computable count.
func (r *Record) ComputeCount() int {
	if r.count != nil {
		return *r.count
	}
	return 0
}

// ComputeChecksum is unsupported by TI-TXT records; it always returns 0.
func (r *Record) ComputeChecksum() int { return 0 }

// Validate checks trivia and tag/field consistency, and, when
// requested, that an address record carries a count wide enough for
// its address.
func (r *Record) Validate(checksum, count bool) error {
	if err := hexrec.ValidateTrivia(r.before); err != nil {
		return err
	}
	if err := hexrec.ValidateTrivia(r.after); err != nil {
		return err
	}
	if r.tag != TagData && len(r.data) != 0 {
		return &hexrec.StructuralError{Format: "titxt", Reason: "only data records carry a data payload"}
	}
	if count && r.tag == TagAddress {
		v, ok := r.Count()
		if !ok {
			return &hexrec.StructuralError{Format: "titxt", Reason: "address record requires a count (addrlen) value"}
		}
		if want := len(fmt.Sprintf("%X", r.address)); v < want {
			return &hexrec.FieldOverflowError{Format: "titxt", Field: "count", Value: int64(v), Max: int64(want)}
		}
	}
	return nil
}

// ToBytestr renders the record's canonical wire form, including
// surrounding trivia and a trailing CRLF.
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
		fmt.Fprintf(&buf, "@%0*X", count, r.address&mask)
	case TagEOF:
		buf.WriteByte('q')
	default:
		buf.WriteString(hexcodec.Hexlify(r.data, ' ', true))
	}
	buf.Write(r.after)
	buf.Write(hexfile.LineEnding)
	return buf.Bytes()
}

// ToTokens renders the record as named byte-slice fields for
// colorized printing.
func (r *Record) ToTokens() map[string][]byte {
	addrstr, eofstr, datastr := []byte{}, []byte{}, []byte{}
	switch r.tag {
	case TagAddress:
		count, ok := r.Count()
		if !ok || count <= 0 {
			count = 1
		}
		mask := (uint64(1) << uint(4*count)) - 1
		addrstr = []byte(fmt.Sprintf("@%0*X", count, r.address&mask))
	case TagEOF:
		eofstr = []byte("q")
	default:
		datastr = []byte(hexcodec.Hexlify(r.data, ' ', true))
	}
	return map[string][]byte{
		"before":  r.before,
		"begin":   eofstr,
		"address": addrstr,
		"data":    datastr,
		"after":   r.after,
	}
}

// ParseLine decodes one TI-TXT line (without its line terminator) at
// the given 1-based line number.
func ParseLine(line []byte, lineNo int) (*Record, error) {
	i := 0
	for i < len(line) && isWhitespaceByte(line[i]) {
		i++
	}
	before := line[:i]

	if i < len(line) && line[i] == '@' {
		j := i + 1
		hexStart := j
		for j < len(line) && isHexDigit(line[j]) {
			j++
		}
		if j == hexStart {
			return nil, &hexrec.SyntaxError{Format: "titxt", Line: lineNo, Text: string(line), Reason: "malformed address record"}
		}
		addr, err := hexcodec.ParseInt("0x" + string(line[hexStart:j]))
		if err != nil {
			return nil, &hexrec.SyntaxError{Format: "titxt", Line: lineNo, Text: string(line), Reason: "bad address field"}
		}
		k := j
		for k < len(line) && isWhitespaceByte(line[k]) {
			k++
		}
		if k != len(line) {
			return nil, &hexrec.SyntaxError{Format: "titxt", Line: lineNo, Text: string(line), Reason: "trailing junk after address record"}
		}
		return &Record{tag: TagAddress, address: uint64(addr), count: intPtr(j - hexStart), before: append([]byte(nil), before...), after: append([]byte(nil), line[j:k]...), coords: hexrec.Coords{Line: lineNo, Column: 0}}, nil
	}

	if i < len(line) && line[i] == 'q' {
		k := i + 1
		for k < len(line) && isWhitespaceByte(line[k]) {
			k++
		}
		if k != len(line) {
			return nil, &hexrec.SyntaxError{Format: "titxt", Line: lineNo, Text: string(line), Reason: "trailing junk after eof record"}
		}
		return &Record{tag: TagEOF, before: append([]byte(nil), before...), after: append([]byte(nil), line[i+1:k]...), coords: hexrec.Coords{Line: lineNo, Column: 0}}, nil
	}

	j := i
	var data []byte
	for j+2 <= len(line) && isHexDigit(line[j]) && isHexDigit(line[j+1]) {
		data = append(data, byte(hexVal(line[j])<<4|hexVal(line[j+1])))
		j += 2
		if j < len(line) && isDataSepByte(line[j]) {
			j++
		}
	}
	if len(data) == 0 {
		return nil, &hexrec.SyntaxError{Format: "titxt", Line: lineNo, Text: string(line), Reason: "syntax error"}
	}
	k := j
	for k < len(line) && isWhitespaceByte(line[k]) {
		k++
	}
	if k != len(line) {
		return nil, &hexrec.SyntaxError{Format: "titxt", Line: lineNo, Text: string(line), Reason: "trailing junk after data record"}
	}
	return &Record{tag: TagData, data: data, before: append([]byte(nil), before...), after: append([]byte(nil), line[j:k]...), coords: hexrec.Coords{Line: lineNo, Column: 0}}, nil
}

func intPtr(v int) *int { return &v }
