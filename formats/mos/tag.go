// Package mos implements the MOS Technology format: the
// `; CC AAAA DD..DD KKKK` line grammar with per-line NUL padding, a
// 16-bit sum-of-bytes checksum, and a terminator record whose address
// field carries the count of records that preceded it.
//
// Grounded on the teacher's intel/{read,write,hexio}.go shape,
// generalized the way formats/ihex and formats/srec were.
package mos

import "github.com/hexkit/hexkit/hexrec"

// Tag enumerates the natures a MOS record can take.
type Tag uint8

const (
	TagData Tag = iota
	TagEOF
)

// String renders the tag's canonical name.
func (t Tag) String() string {
	switch t {
	case TagData:
		return "DATA"
	case TagEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// IsData reports whether the tag carries a user data payload.
func (t Tag) IsData() bool { return t == TagData }

// IsFileTermination reports whether the tag ends the logical file.
// The terminator record also carries, in its address field, the count
// of data records that preceded it.
func (t Tag) IsFileTermination() bool { return t == TagEOF }

var _ hexrec.Tag = Tag(0)
