package raw

import "github.com/hexkit/hexkit/hexrec"

// Record is one raw binary chunk: an address and its bytes, with no
// framing, checksum, or trivia of any kind.
type Record struct {
	address uint64
	data    []byte
	coords  hexrec.Coords
}

// New builds a Record at the given address.
func New(address uint64, data []byte, coords hexrec.Coords) *Record {
	return &Record{address: address, data: append([]byte(nil), data...), coords: coords}
}

// CreateData builds a data record at the given address.
func CreateData(address uint64, data []byte) *Record {
	return New(address, data, hexrec.NoCoords)
}

// RecordTag returns the record's tag (always TagData).
func (r *Record) RecordTag() hexrec.Tag { return TagData }

// Address returns the record's starting address.
func (r *Record) Address() uint64 { return r.address }

// Data returns the record's payload.
func (r *Record) Data() []byte { return r.data }

// Count returns len(data): raw records have no independent count
// field.
func (r *Record) Count() (int, bool) { return len(r.data), true }

// Checksum reports that raw records carry no checksum field.
func (r *Record) Checksum() (int, bool) { return 0, false }

// Before returns nil: raw records carry no surrounding trivia.
func (r *Record) Before() []byte { return nil }

// After returns nil: raw records carry no surrounding trivia.
func (r *Record) After() []byte { return nil }

// Coords returns where the record was parsed from, or hexrec.NoCoords.
func (r *Record) Coords() hexrec.Coords { return r.coords }

// ComputeCount returns len(data).
func (r *Record) ComputeCount() int { return len(r.data) }

// ComputeChecksum always returns 0: raw has no checksum concept.
func (r *Record) ComputeChecksum() int { return 0 }

// Validate is a no-op: a raw record of any address and any data is
// well-formed on its own. The checksum and count parameters are
// accepted for interface uniformity but unused.
func (r *Record) Validate(checksum, count bool) error { return nil }

// ToBytestr returns the record's payload unchanged: raw has no framing
// to add.
func (r *Record) ToBytestr() []byte { return append([]byte(nil), r.data...) }

// ToTokens renders the record as named byte-slice fields for
// colorized printing.
func (r *Record) ToTokens() map[string][]byte {
	return map[string][]byte{"data": r.data}
}
