// Package srec implements the Motorola S-Record format: the
// `ST LL AAAA DD...DD KK` line grammar (address width keyed by record
// type), its one's-complement sum-of-bytes checksum, and the
// header/data/count/start record families.
//
// Grounded on the teacher's srec/{read,write,checksum}.go, generalized
// from a one-shot Writer/ReadFile pair into the engine-wide
// Record/File contracts (hexrec.Record, hexfile.Backend).
package srec

import "github.com/hexkit/hexkit/hexrec"

// Tag enumerates the natures an S-Record line can take, matching the
// teacher's srecType enum values (S0..S9, skipping the undefined S4).
type Tag uint8

const (
	TagHeader Tag = iota // S0
	TagData16            // S1
	TagData24            // S2
	TagData32            // S3
	tagReserved4         // S4, never produced or accepted
	TagCount16           // S5
	TagCount24           // S6
	TagStart32           // S7
	TagStart24           // S8
	TagStart16           // S9
)

var tagNames = map[Tag]string{
	TagHeader:  "S0",
	TagData16:  "S1",
	TagData24:  "S2",
	TagData32:  "S3",
	TagCount16: "S5",
	TagCount24: "S6",
	TagStart32: "S7",
	TagStart24: "S8",
	TagStart16: "S9",
}

// String renders the tag's canonical "Sn" name.
func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return "S?"
}

// IsData reports whether the tag carries a user data payload.
func (t Tag) IsData() bool {
	return t == TagData16 || t == TagData24 || t == TagData32
}

// IsFileTermination reports whether the tag is a start record, which
// terminates an S-Record stream.
func (t Tag) IsFileTermination() bool {
	return t == TagStart16 || t == TagStart24 || t == TagStart32
}

// IsCount reports whether the tag is a data-record-count record.
func (t Tag) IsCount() bool {
	return t == TagCount16 || t == TagCount24
}

// IsStart reports whether the tag declares a program entry point.
func (t Tag) IsStart() bool {
	return t == TagStart16 || t == TagStart24 || t == TagStart32
}

// AddrWidth returns the number of address bytes the tag's record
// encodes on the wire (2, 3, or 4).
func (t Tag) AddrWidth() int {
	switch t {
	case TagHeader, TagData16, TagCount16, TagStart16:
		return 2
	case TagData24, TagCount24, TagStart24:
		return 3
	case TagData32, TagStart32:
		return 4
	default:
		return 0
	}
}

// DataCap returns the largest data payload the tag's wire record can
// carry: 0xFC - (addrWidth - 2), per the S-record 0xFF total-byte cap.
func (t Tag) DataCap() int {
	return 0xFC - (t.AddrWidth() - 2)
}

// dataTagForWidth returns the data-record tag matching an address
// width in bytes (2, 3, or 4), used when the writer widens its
// address mode to fit the highest address written.
func dataTagForWidth(w int) Tag {
	switch w {
	case 3:
		return TagData24
	case 4:
		return TagData32
	default:
		return TagData16
	}
}

// startTagForWidth returns the start-record tag matching an address
// width in bytes.
func startTagForWidth(w int) Tag {
	switch w {
	case 3:
		return TagStart24
	case 4:
		return TagStart32
	default:
		return TagStart16
	}
}

// countTagForValue returns S5 for counts that fit 16 bits, S6 otherwise,
// matching the teacher's emitCountRecord bigFile threshold.
func countTagForValue(count int) Tag {
	if count > 65535 {
		return TagCount24
	}
	return TagCount16
}

var _ hexrec.Tag = Tag(0)
