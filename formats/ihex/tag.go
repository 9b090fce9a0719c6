// Package ihex implements the Intel HEX record and file format: the
// `:CCAAAATTDD...DDKK` line grammar, its additive two's-complement
// checksum, and the segment/linear address-extension state machine.
//
// Grounded on the teacher's intel/{read,write,hexio}.go, generalized from
// a one-shot Writer/ReadFile pair into the engine-wide Record/File
// contracts (hexrec.Record, hexfile.Backend).
package ihex

import "github.com/hexkit/hexkit/hexrec"

// Tag enumerates the natures an Intel HEX record can take.
type Tag uint8

// Intel HEX record types, matching the teacher's RecTyp enum values.
const (
	TagData Tag = iota
	TagEndOfFile
	TagExtendedSegmentAddress
	TagStartSegmentAddress
	TagExtendedLinearAddress
	TagStartLinearAddress
)

var tagNames = map[Tag]string{
	TagData:                   "DATA",
	TagEndOfFile:              "END_OF_FILE",
	TagExtendedSegmentAddress: "EXTENDED_SEGMENT_ADDRESS",
	TagStartSegmentAddress:    "START_SEGMENT_ADDRESS",
	TagExtendedLinearAddress:  "EXTENDED_LINEAR_ADDRESS",
	TagStartLinearAddress:     "START_LINEAR_ADDRESS",
}

// String renders the tag's canonical name.
func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsData reports whether the tag carries a user data payload.
func (t Tag) IsData() bool { return t == TagData }

// IsFileTermination reports whether the tag ends the logical file.
func (t Tag) IsFileTermination() bool { return t == TagEndOfFile }

// IsExtension reports whether the tag carries address-extension state
// (ESA/ELA) rather than data.
func (t Tag) IsExtension() bool {
	return t == TagExtendedSegmentAddress || t == TagExtendedLinearAddress
}

// IsStart reports whether the tag declares a program entry point.
func (t Tag) IsStart() bool {
	return t == TagStartSegmentAddress || t == TagStartLinearAddress
}

// IsLinear reports whether the tag belongs to the linear (32-bit)
// addressing family, as opposed to the segmented (20-bit) family.
func (t Tag) IsLinear() bool {
	return t == TagExtendedLinearAddress || t == TagStartLinearAddress
}

// dataSize returns the exact payload length the tag requires, or -1 when
// the tag's data is user-sized (TagData, capped at 0xFF).
func (t Tag) dataSize() int {
	switch t {
	case TagEndOfFile:
		return 0
	case TagExtendedSegmentAddress, TagExtendedLinearAddress:
		return 2
	case TagStartSegmentAddress, TagStartLinearAddress:
		return 4
	default:
		return -1
	}
}

var _ hexrec.Tag = Tag(0)
