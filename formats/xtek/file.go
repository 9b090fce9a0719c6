package xtek

import (
	"bytes"
	"io"

	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
	"github.com/hexkit/hexkit/sparsemem"
)

// DefaultMaxDataLen is the target chunk size UpdateRecords uses for
// data records when Meta.MaxDataLen is zero.
const DefaultMaxDataLen = 16

// Meta holds the Xtek-specific file attributes.
type Meta struct {
	MaxDataLen int
	AddrLen    int
	StartAddr  uint64
}

// File is an Xtek file: the dual-role (records⇄memory) container plus
// Xtek-specific meta.
type File struct {
	c    *hexfile.Container
	meta Meta
}

// NewFile returns an empty file in memory role.
func NewFile() *File {
	f := &File{meta: Meta{MaxDataLen: DefaultMaxDataLen, AddrLen: DefaultAddrLen}}
	f.c = hexfile.NewFromMemory(f, sparsemem.New())
	return f
}

// FromMemory starts a file in memory role over m.
func FromMemory(m *sparsemem.Memory) *File {
	f := &File{meta: Meta{MaxDataLen: DefaultMaxDataLen, AddrLen: DefaultAddrLen}}
	f.c = hexfile.NewFromMemory(f, m)
	return f
}

// FromBlocks starts a file in memory role built from the given blocks.
func FromBlocks(blocks []sparsemem.Block) *File {
	return FromMemory(sparsemem.FromBlocks(blocks))
}

// FromBytes starts a file in memory role holding b at offset.
func FromBytes(offset uint64, b []byte) *File {
	return FromMemory(sparsemem.FromBytes(offset, b))
}

// FromRecords starts a file in records role.
func FromRecords(records []hexrec.Record, maxDataLen int) *File {
	if maxDataLen <= 0 {
		maxDataLen = DefaultMaxDataLen
	}
	f := &File{meta: Meta{MaxDataLen: maxDataLen, AddrLen: DefaultAddrLen}}
	f.c = hexfile.NewFromRecords(f, records)
	return f
}

// Role reports the file's current dual-role state.
func (f *File) Role() hexfile.Role { return f.c.Role() }

// Memory returns the coherent memory, deriving it from records if needed.
func (f *File) Memory() (*sparsemem.Memory, error) { return f.c.Memory() }

// Records returns the coherent record list, deriving it from memory if
// needed.
func (f *File) Records() ([]hexrec.Record, error) { return f.c.Records() }

// Meta returns a copy of the file's current Xtek-specific metadata.
func (f *File) Meta() Meta { return f.meta }

// SetMaxDataLen changes the target data-record chunk size and
// invalidates records.
func (f *File) SetMaxDataLen(n int) error {
	if n <= 0 {
		return &hexrec.MetaError{Key: "maxdatalen", Reason: "must be positive"}
	}
	f.meta.MaxDataLen = n
	return f.c.DiscardRecords()
}

// SetAddrLen fixes the address-field width (in nibbles) UpdateRecords
// uses for every record it emits, and invalidates records.
func (f *File) SetAddrLen(n int) error {
	if n < 1 || n > 15 {
		return &hexrec.MetaError{Key: "addrlen", Reason: "must be within 1..15"}
	}
	f.meta.AddrLen = n
	return f.c.DiscardRecords()
}

// SetStartAddr sets the EOF record's start-address field and
// invalidates records.
func (f *File) SetStartAddr(addr uint64) error {
	f.meta.StartAddr = addr
	return f.c.DiscardRecords()
}

// MutateMemory derives memory if needed, applies fn, and invalidates
// records.
func (f *File) MutateMemory(fn func(*sparsemem.Memory)) error {
	return f.c.MutateMemory(fn)
}

// ApplyRecords implements hexfile.Backend: data records write their
// payload at their own address (no extension state machine — Xtek
// addresses are absolute); the EOF record's address is the start
// address.
func (f *File) ApplyRecords(records []hexrec.Record) (*sparsemem.Memory, error) {
	m := sparsemem.New()
	f.meta.StartAddr = 0

	for _, rec := range records {
		xr, ok := rec.(*Record)
		if !ok {
			return nil, &hexrec.StructuralError{Format: "xtek", Reason: "record is not an xtek.Record"}
		}
		if xr.tag == TagData {
			m.Write(xr.address, xr.data)
			f.meta.AddrLen = xr.addrLen
		} else {
			f.meta.StartAddr = xr.address
			f.meta.AddrLen = xr.addrLen
		}
	}

	return m, nil
}

// UpdateRecords implements hexfile.Backend: it chunks memory into data
// records all sharing Meta.AddrLen, then a single terminating EOF
// record carrying StartAddr.
func (f *File) UpdateRecords(m *sparsemem.Memory) ([]hexrec.Record, error) {
	maxLen := f.meta.MaxDataLen
	if maxLen <= 0 {
		maxLen = DefaultMaxDataLen
	}
	addrLen := f.meta.AddrLen
	if addrLen == 0 {
		addrLen = DefaultAddrLen
	}
	if dm := DataMax(addrLen); maxLen > dm {
		maxLen = dm
	}

	var records []hexrec.Record
	for _, chunk := range m.Chop(maxLen, true) {
		rec, err := CreateData(chunk.Addr, chunk.Data, addrLen)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	eof, err := CreateEOF(f.meta.StartAddr, addrLen)
	if err != nil {
		return nil, err
	}
	records = append(records, eof)

	out := make([]hexrec.Record, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out, nil
}

// ValidateOptions controls ValidateRecords' structural strictness knobs.
type ValidateOptions struct {
	RequireDataOrdered   bool
	RequireStartWithin   bool
}

// ValidateRecords checks whole-file structure: the EOF record must be
// unique and last; the optional knobs add stricter checks.
func ValidateRecords(records []hexrec.Record, opts ValidateOptions) error {
	eofIdx := -1
	var lastDataEnd uint64
	var startAddr uint64
	dataRanges := make([]sparsemem.Interval, 0)

	for i, rec := range records {
		xr, ok := rec.(*Record)
		if !ok {
			continue
		}
		switch {
		case xr.tag == TagData:
			if opts.RequireDataOrdered && xr.address < lastDataEnd {
				return &hexrec.StructuralError{Format: "xtek", Reason: "data records are not in address order"}
			}
			lastDataEnd = xr.address + uint64(len(xr.data))
			dataRanges = append(dataRanges, sparsemem.Interval{Start: xr.address, Endex: lastDataEnd})
		case xr.tag == TagEOF:
			if eofIdx >= 0 {
				return &hexrec.StructuralError{Format: "xtek", Reason: "only one EOF record is allowed"}
			}
			eofIdx = i
			startAddr = xr.address
		}
	}

	if eofIdx < 0 {
		return &hexrec.StructuralError{Format: "xtek", Reason: "missing EOF record"}
	}
	if eofIdx != len(records)-1 {
		return &hexrec.StructuralError{Format: "xtek", Reason: "EOF record must be last"}
	}
	if opts.RequireStartWithin {
		within := false
		for _, iv := range dataRanges {
			if startAddr >= iv.Start && startAddr < iv.Endex {
				within = true
				break
			}
		}
		if !within {
			return &hexrec.StructuralError{Format: "xtek", Reason: "start address does not fall within any data record"}
		}
	}

	return nil
}

// Parse reads an Xtek stream into a records-role File.
func Parse(r io.Reader, ignoreErrors, ignoreAfterTermination bool) (*File, error) {
	return ParseWithMaxDataLen(r, DefaultMaxDataLen, ignoreErrors, ignoreAfterTermination)
}

// ParseWithMaxDataLen is Parse with an explicit maxDataLen for the
// resulting file's meta.
func ParseWithMaxDataLen(r io.Reader, maxDataLen int, ignoreErrors, ignoreAfterTermination bool) (*File, error) {
	records, err := hexfile.ParseLines(r, func(line []byte, lineNo int) (hexrec.Record, bool, error) {
		if len(bytes.TrimSpace(line)) == 0 {
			return nil, false, nil
		}
		rec, err := ParseLine(line, lineNo)
		if err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}, hexfile.ParseOptions{IgnoreErrors: ignoreErrors, IgnoreAfterTermination: ignoreAfterTermination})
	if err != nil {
		return nil, err
	}
	return FromRecords(records, maxDataLen), nil
}

// Serialize writes every record's wire bytes, in record order, to w.
func (f *File) Serialize(w io.Writer) error {
	records, err := f.Records()
	if err != nil {
		return err
	}
	return hexfile.SerializeRecords(w, records)
}
