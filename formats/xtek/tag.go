// Package xtek implements the Tektronix Extended HEX format: the
// `%CCTKKL AA..AA DD..DD` line grammar with its variable-length (1-15
// nibble) address field, nibble-sum checksum, and two-tag (DATA/EOF)
// record family where EOF doubles as the start-address carrier.
//
// Grounded on the teacher's intel/{read,write,hexio}.go shape,
// generalized the way formats/ihex was, for a format whose address
// width is chosen per-file rather than fixed or state-machine-derived.
package xtek

import "github.com/hexkit/hexkit/hexrec"

// Tag enumerates the natures an Xtek record can take.
type Tag uint8

const (
	TagData Tag = 6
	TagEOF  Tag = 8
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

// IsFileTermination reports whether the tag ends the logical file;
// the EOF record also carries the file's start address.
func (t Tag) IsFileTermination() bool { return t == TagEOF }

var _ hexrec.Tag = Tag(0)
