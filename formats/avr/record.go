package avr

import (
	"bytes"
	"fmt"

	"github.com/hexkit/hexkit/hexcodec"
	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
)

// WordDataLen is the only payload size an AVR record ever carries: one
// 16-bit word.
const WordDataLen = 2

// MaxWordAddress is the largest word address a 6-hex-digit field can
// hold.
const MaxWordAddress = 0xFFFFFF

func isSpaceOrTabByte(b byte) bool { return b == ' ' || b == '\t' }

func isAllSpaceOrTab(b []byte) bool {
	for _, c := range b {
		if !isSpaceOrTabByte(c) {
			return false
		}
	}
	return true
}

// Record is one AVR Generic line. Address is a word address: the byte
// offset a record's data occupies in memory is Address()*2.
type Record struct {
	tag     Tag
	address uint64
	data    []byte
	before  []byte
	after   []byte
	coords  hexrec.Coords
}

// New builds a Record, validating the word-address bound, the fixed
// 2-byte payload size, and that before/after are pure whitespace.
func New(address uint64, data []byte, before, after []byte, coords hexrec.Coords) (*Record, error) {
	if address > MaxWordAddress {
		return nil, &hexrec.FieldOverflowError{Format: "avr", Field: "address", Value: int64(address), Max: MaxWordAddress}
	}
	if len(data) != WordDataLen {
		return nil, &hexrec.StructuralError{Format: "avr", Reason: "data must be exactly 2 bytes"}
	}
	if !isAllSpaceOrTab(before) {
		return nil, &hexrec.StructuralError{Format: "avr", Reason: "junk before is not whitespace"}
	}
	if !isAllSpaceOrTab(after) {
		return nil, &hexrec.StructuralError{Format: "avr", Reason: "junk after is not whitespace"}
	}

	return &Record{
		tag:     TagData,
		address: address,
		data:    append([]byte(nil), data...),
		before:  append([]byte(nil), before...),
		after:   append([]byte(nil), after...),
		coords:  coords,
	}, nil
}

// CreateData builds a data record from a word address and its 2-byte
// payload.
func CreateData(wordAddress uint64, data []byte) (*Record, error) {
	return New(wordAddress, data, nil, nil, hexrec.NoCoords)
}

// RecordTag returns the record's tag (always TagData).
func (r *Record) RecordTag() hexrec.Tag { return r.tag }

// Address returns the record's word address (not a byte offset).
func (r *Record) Address() uint64 { return r.address }

// Data returns the record's 2-byte payload.
func (r *Record) Data() []byte { return r.data }

// Count reports the record's fixed payload length: always (2, true).
func (r *Record) Count() (int, bool) { return WordDataLen, true }

// Checksum reports that AVR records carry no checksum field.
func (r *Record) Checksum() (int, bool) { return 0, false }

// Before returns the leading whitespace trivia preceding the address
// field.
func (r *Record) Before() []byte { return r.before }

// After returns the trailing whitespace trivia following the data
// field.
func (r *Record) After() []byte { return r.after }

// Coords returns where the record was parsed from, or hexrec.NoCoords.
func (r *Record) Coords() hexrec.Coords { return r.coords }

// ComputeCount returns len(data).
func (r *Record) ComputeCount() int { return len(r.data) }

// ComputeChecksum always returns 0: AVR has no checksum concept.
func (r *Record) ComputeChecksum() int { return 0 }

// Validate checks the word-address bound, the fixed payload size, and
// that before/after are pure whitespace. The checksum and count
// parameters are accepted for interface uniformity but unused: AVR has
// neither field.
func (r *Record) Validate(checksum, count bool) error {
	if r.address > MaxWordAddress {
		return &hexrec.FieldOverflowError{Format: "avr", Field: "address", Value: int64(r.address), Max: MaxWordAddress}
	}
	if len(r.data) != WordDataLen {
		return &hexrec.StructuralError{Format: "avr", Reason: "data must be exactly 2 bytes"}
	}
	if !isAllSpaceOrTab(r.before) {
		return &hexrec.StructuralError{Format: "avr", Reason: "junk before is not whitespace"}
	}
	if !isAllSpaceOrTab(r.after) {
		return &hexrec.StructuralError{Format: "avr", Reason: "junk after is not whitespace"}
	}
	return nil
}

// ToBytestr renders the record's canonical wire form: a 6-hex-digit
// word address, a colon, the 2-byte payload as 4 hex digits, and a
// trailing CRLF.
func (r *Record) ToBytestr() []byte {
	var buf bytes.Buffer
	buf.Write(r.before)
	fmt.Fprintf(&buf, "%06X:", r.address&0xFFFFFF)
	buf.WriteString(hexcodec.Hexlify(r.data, 0, true))
	buf.Write(r.after)
	buf.Write(hexfile.LineEnding)
	return buf.Bytes()
}

// ToTokens renders the record as named byte-slice fields for
// colorized printing.
func (r *Record) ToTokens() map[string][]byte {
	return map[string][]byte{
		"before":  r.before,
		"address": []byte(fmt.Sprintf("%06X", r.address&0xFFFFFF)),
		"begin":   []byte(":"),
		"data":    []byte(hexcodec.Hexlify(r.data, 0, true)),
		"after":   r.after,
	}
}

// ParseLine decodes one AVR line (without its line terminator) at the
// given 1-based line number.
func ParseLine(line []byte, lineNo int) (*Record, error) {
	i := 0
	for i < len(line) && isSpaceOrTabByte(line[i]) {
		i++
	}
	before := line[:i]

	if len(line)-i < 6 {
		return nil, &hexrec.SyntaxError{Format: "avr", Line: lineNo, Text: string(line), Reason: "syntax error"}
	}
	addrField := line[i : i+6]
	for _, c := range addrField {
		if !isHexDigit(c) {
			return nil, &hexrec.SyntaxError{Format: "avr", Line: lineNo, Text: string(line), Reason: "syntax error"}
		}
	}
	address, err := hexcodec.ParseInt("0x" + string(addrField))
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "avr", Line: lineNo, Text: string(line), Reason: "syntax error"}
	}
	i += 6

	for i < len(line) && isSpaceOrTabByte(line[i]) {
		i++
	}
	if i >= len(line) || line[i] != ':' {
		return nil, &hexrec.SyntaxError{Format: "avr", Line: lineNo, Text: string(line), Reason: "syntax error"}
	}
	i++
	for i < len(line) && isSpaceOrTabByte(line[i]) {
		i++
	}

	if len(line)-i < 4 {
		return nil, &hexrec.SyntaxError{Format: "avr", Line: lineNo, Text: string(line), Reason: "syntax error"}
	}
	dataField := line[i : i+4]
	data, err := hexcodec.Unhexlify(string(dataField), []byte{})
	if err != nil {
		return nil, &hexrec.SyntaxError{Format: "avr", Line: lineNo, Text: string(line), Reason: err.Error()}
	}
	i += 4

	after := line[i:]
	if !isAllSpaceOrTab(after) {
		return nil, &hexrec.SyntaxError{Format: "avr", Line: lineNo, Text: string(line), Reason: "syntax error"}
	}

	return &Record{
		tag:     TagData,
		address: uint64(address),
		data:    data,
		before:  append([]byte(nil), before...),
		after:   append([]byte(nil), after...),
		coords:  hexrec.Coords{Line: lineNo, Column: 0},
	}, nil
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'A' && b <= 'F') || (b >= 'a' && b <= 'f')
}
