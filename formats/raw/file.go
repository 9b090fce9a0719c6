package raw

import (
	"io"

	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
	"github.com/hexkit/hexkit/sparsemem"
)

// Meta holds the raw-specific file attributes. A non-positive
// MaxDataLen means UpdateRecords emits one record per contiguous
// memory block, however large.
type Meta struct {
	MaxDataLen int
	Align      bool
}

// File is a raw file: the dual-role (records⇄memory) container plus
// raw-specific meta.
type File struct {
	c    *hexfile.Container
	meta Meta
}

// NewFile returns an empty file in memory role.
func NewFile() *File {
	f := &File{}
	f.c = hexfile.NewFromMemory(f, sparsemem.New())
	return f
}

// FromMemory starts a file in memory role over m.
func FromMemory(m *sparsemem.Memory) *File {
	f := &File{}
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
	f := &File{meta: Meta{MaxDataLen: maxDataLen}}
	f.c = hexfile.NewFromRecords(f, records)
	return f
}

// Role reports the file's current dual-role state.
func (f *File) Role() hexfile.Role { return f.c.Role() }

// Memory returns the coherent memory, deriving it from records if
// needed.
func (f *File) Memory() (*sparsemem.Memory, error) { return f.c.Memory() }

// Records returns the coherent record list, deriving it from memory if
// needed.
func (f *File) Records() ([]hexrec.Record, error) { return f.c.Records() }

// Meta returns a copy of the file's current raw-specific metadata.
func (f *File) Meta() Meta { return f.meta }

// SetMaxDataLen changes the target data-record chunk size and
// invalidates records. A non-positive n disables chopping.
func (f *File) SetMaxDataLen(n int) error {
	f.meta.MaxDataLen = n
	return f.c.DiscardRecords()
}

// SetAlign toggles whether UpdateRecords aligns chunk boundaries to
// MaxDataLen, and invalidates records.
func (f *File) SetAlign(align bool) error {
	f.meta.Align = align
	return f.c.DiscardRecords()
}

// MutateMemory derives memory if needed, applies fn, and invalidates
// records.
func (f *File) MutateMemory(fn func(*sparsemem.Memory)) error {
	return f.c.MutateMemory(fn)
}

// ApplyRecords implements hexfile.Backend: every record writes its
// payload at its own address.
func (f *File) ApplyRecords(records []hexrec.Record) (*sparsemem.Memory, error) {
	m := sparsemem.New()
	for _, rec := range records {
		rr, ok := rec.(*Record)
		if !ok {
			return nil, &hexrec.StructuralError{Format: "raw", Reason: "record is not a raw.Record"}
		}
		m.Write(rr.address, rr.data)
	}
	return m, nil
}

// UpdateRecords implements hexfile.Backend: chops memory directly into
// data records, honoring MaxDataLen and Align.
func (f *File) UpdateRecords(m *sparsemem.Memory) ([]hexrec.Record, error) {
	var records []hexrec.Record
	for _, chunk := range m.Chop(f.meta.MaxDataLen, f.meta.Align) {
		records = append(records, CreateData(chunk.Addr, chunk.Data))
	}
	return records, nil
}

// ValidateOptions controls ValidateRecords' structural strictness
// knobs.
type ValidateOptions struct {
	RequireDataStart      bool
	RequireDataContiguity bool
	RequireDataOrdered    bool
}

// ValidateRecords checks whole-file structure: optionally that the
// first record starts at address zero, that records are contiguous,
// and that they are monotonically ordered without overlap.
func ValidateRecords(records []hexrec.Record, opts ValidateOptions) error {
	if opts.RequireDataStart && len(records) > 0 {
		if records[0].Address() != 0 {
			return &hexrec.StructuralError{Format: "raw", Reason: "first record address not zero"}
		}
	}

	var lastDataEnd uint64
	first := true

	for _, rec := range records {
		rr, ok := rec.(*Record)
		if !ok {
			continue
		}
		address := rr.address
		if first {
			lastDataEnd = address
			first = false
		}
		if opts.RequireDataContiguity && address != lastDataEnd {
			return &hexrec.StructuralError{Format: "raw", Reason: "data not contiguous"}
		}
		if opts.RequireDataOrdered && address < lastDataEnd {
			return &hexrec.StructuralError{Format: "raw", Reason: "unordered data record"}
		}
		lastDataEnd = address + uint64(len(rr.data))
	}

	return nil
}

// Parse reads a raw byte stream into a records-role File, chopping it
// into chunks of at most maxDataLen bytes (the whole stream in one
// chunk when maxDataLen is non-positive), starting at address.
func Parse(r io.Reader, address uint64, maxDataLen int) (*File, error) {
	var records []hexrec.Record

	if maxDataLen <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			records = append(records, CreateData(address, data))
		}
		return FromRecords(records, maxDataLen), nil
	}

	buf := make([]byte, maxDataLen)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			records = append(records, CreateData(address, chunk))
			address += uint64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return FromRecords(records, maxDataLen), nil
}

// Serialize writes every record's payload, in record order, to w with
// no framing at all.
func (f *File) Serialize(w io.Writer) error {
	records, err := f.Records()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := w.Write(rec.Data()); err != nil {
			return err
		}
	}
	return nil
}
