// Package titxt implements the Texas Instruments TI-TXT format: an
// `@<hex>` address marker, whitespace-separated hex byte pairs, and a
// `q` terminator line, with cursor-based implicit addressing between
// address markers.
//
// Grounded on the teacher's intel/{read,write,hexio}.go shape and
// generalized as formats/asciihex was, for a line-oriented format
// whose data records carry no address field of their own.
package titxt

import "github.com/hexkit/hexkit/hexrec"

// Tag enumerates the natures a TI-TXT record can take.
type Tag uint8

const (
	TagData Tag = iota
	TagAddress
	TagEOF
)

// String renders the tag's canonical name.
func (t Tag) String() string {
	switch t {
	case TagData:
		return "DATA"
	case TagAddress:
		return "ADDRESS"
	case TagEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// IsData reports whether the tag carries a user data payload.
func (t Tag) IsData() bool { return t == TagData }

// IsFileTermination reports whether the tag ends the logical file.
func (t Tag) IsFileTermination() bool { return t == TagEOF }

var _ hexrec.Tag = Tag(0)
