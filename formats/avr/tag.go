// Package avr implements the Atmel Generic (AVR) format: fixed
// `AAAAAA:DDDD` lines where the address field counts 16-bit words, not
// bytes, and every record carries exactly one word of data.
//
// Grounded on the teacher's intel/{read,write,hexio}.go shape,
// generalized the way formats/ihex and formats/srec were.
package avr

import "github.com/hexkit/hexkit/hexrec"

// Tag enumerates the natures an AVR record can take. The format has
// only one kind: every line is a data record.
type Tag uint8

const (
	TagData Tag = iota
)

// String renders the tag's canonical name.
func (t Tag) String() string {
	switch t {
	case TagData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// IsData reports whether the tag carries a user data payload.
func (t Tag) IsData() bool { return t == TagData }

// IsFileTermination reports whether the tag ends the logical file. AVR
// has no terminator record; end of stream ends the file.
func (t Tag) IsFileTermination() bool { return false }

var _ hexrec.Tag = Tag(0)
