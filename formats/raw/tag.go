// Package raw implements the raw binary passthrough format: a stream
// of bytes with no framing at all, chopped into data records purely by
// address contiguity and an optional maximum chunk length.
//
// Grounded on the teacher's intel/{read,write,hexio}.go shape,
// generalized the way formats/ihex and formats/srec were.
package raw

import "github.com/hexkit/hexkit/hexrec"

// Tag enumerates the natures a raw record can take. The format has
// only one kind: every chunk is a data record.
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
func (t Tag) IsData() bool { return true }

// IsFileTermination reports whether the tag ends the logical file. Raw
// has no terminator record; end of stream ends the file.
func (t Tag) IsFileTermination() bool { return false }

var _ hexrec.Tag = Tag(0)
