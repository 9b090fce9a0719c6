// Package asciihex implements the ASCII-HEX format: an STX/ETX-framed
// stream of three record kinds (data, address, checksum) with
// cursor-based implicit addressing for data records.
//
// Grounded on the teacher's intel/{read,write,hexio}.go shape,
// generalized as formats/ihex and formats/xtek were, for a format
// whose addressing is driven entirely by a running stream cursor
// rather than a fixed field or an extension state machine.
package asciihex

import "github.com/hexkit/hexkit/hexrec"

// Tag enumerates the natures an ASCII-HEX record can take.
type Tag uint8

const (
	TagData Tag = iota
	TagAddress
	TagChecksum
)

// String renders the tag's canonical name.
func (t Tag) String() string {
	switch t {
	case TagData:
		return "DATA"
	case TagAddress:
		return "ADDRESS"
	case TagChecksum:
		return "CHECKSUM"
	default:
		return "UNKNOWN"
	}
}

// IsData reports whether the tag carries a user data payload.
func (t Tag) IsData() bool { return t == TagData }

// IsFileTermination reports whether the tag ends the logical file.
// ASCII-HEX has no file-termination tag; the ETX byte ends the stream
// at the container level, outside the record grammar.
func (t Tag) IsFileTermination() bool { return false }

var _ hexrec.Tag = Tag(0)
