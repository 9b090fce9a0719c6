package titxt

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

// Meta holds the TI-TXT-specific file attributes.
type Meta struct {
	MaxDataLen int
	AddrLen    int
	Align      bool
}

// File is a TI-TXT file: the dual-role (records⇄memory) container plus
// TI-TXT-specific meta.
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

// Memory returns the coherent memory, deriving it from records if
// needed.
func (f *File) Memory() (*sparsemem.Memory, error) { return f.c.Memory() }

// Records returns the coherent record list, deriving it from memory if
// needed.
func (f *File) Records() ([]hexrec.Record, error) { return f.c.Records() }

// Meta returns a copy of the file's current TI-TXT-specific metadata.
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

// SetAddrLen fixes the address-field width, in nibbles, UpdateRecords
// uses for the address records it emits, and invalidates records.
func (f *File) SetAddrLen(n int) error {
	if n < 1 {
		return &hexrec.MetaError{Key: "addrlen", Reason: "must be positive"}
	}
	f.meta.AddrLen = n
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

// ApplyRecords implements hexfile.Backend: a data record is written at
// the running cursor and advances it by its length; an address record
// resets the cursor without writing; EOF is meta-only.
func (f *File) ApplyRecords(records []hexrec.Record) (*sparsemem.Memory, error) {
	m := sparsemem.New()
	var cursor uint64

	for _, rec := range records {
		tr, ok := rec.(*Record)
		if !ok {
			return nil, &hexrec.StructuralError{Format: "titxt", Reason: "record is not a titxt.Record"}
		}
		switch tr.tag {
		case TagData:
			m.Write(cursor, tr.data)
			cursor += uint64(len(tr.data))
		case TagAddress:
			cursor = tr.address
		}
	}

	return m, nil
}

// UpdateRecords implements hexfile.Backend: chunks memory, emitting an
// address record ahead of any chunk whose start does not abut the
// previous data, then a terminating `q` record.
func (f *File) UpdateRecords(m *sparsemem.Memory) ([]hexrec.Record, error) {
	maxLen := f.meta.MaxDataLen
	if maxLen <= 0 {
		maxLen = DefaultMaxDataLen
	}
	addrLen := f.meta.AddrLen
	if addrLen <= 0 {
		addrLen = DefaultAddrLen
	}

	var records []hexrec.Record
	var lastDataEndex uint64

	for _, chunk := range m.Chop(maxLen, f.meta.Align) {
		if chunk.Addr != lastDataEndex {
			rec, err := CreateAddress(chunk.Addr, addrLen)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}

		rec, err := CreateData(chunk.Addr, chunk.Data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		lastDataEndex = chunk.Addr + uint64(len(chunk.Data))
	}

	eof, err := CreateEOF()
	if err != nil {
		return nil, err
	}
	records = append(records, eof)

	return records, nil
}

// ValidateOptions controls ValidateRecords' structural strictness
// knobs.
type ValidateOptions struct {
	RequireDataOrdered bool
	RequireAddressEven bool
}

// ValidateRecords checks whole-file structure: each record validates
// individually; the EOF record must be present and last; the optional
// knobs add stricter address checks.
func ValidateRecords(records []hexrec.Record, opts ValidateOptions) error {
	var lastDataEndex uint64
	eofIdx := -1

	for i, rec := range records {
		tr, ok := rec.(*Record)
		if !ok {
			continue
		}
		if err := tr.Validate(false, true); err != nil {
			return err
		}
		switch tr.tag {
		case TagAddress:
			if opts.RequireAddressEven && tr.address&1 != 0 {
				return &hexrec.StructuralError{Format: "titxt", Reason: "address is not even"}
			}
			if opts.RequireDataOrdered && tr.address < lastDataEndex {
				return &hexrec.StructuralError{Format: "titxt", Reason: "unordered data record"}
			}
			lastDataEndex = tr.address
		case TagEOF:
			if eofIdx >= 0 {
				return &hexrec.StructuralError{Format: "titxt", Reason: "only one end-of-file record is allowed"}
			}
			eofIdx = i
		default:
			lastDataEndex += uint64(len(tr.data))
		}
	}

	if eofIdx < 0 {
		return &hexrec.StructuralError{Format: "titxt", Reason: "missing end-of-file record"}
	}
	if eofIdx != len(records)-1 {
		return &hexrec.StructuralError{Format: "titxt", Reason: "end-of-file record must be last"}
	}

	return nil
}

// Parse reads a TI-TXT stream into a records-role File.
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

	var cursor uint64
	for _, rec := range records {
		tr := rec.(*Record)
		switch tr.tag {
		case TagData:
			tr.address = cursor
			cursor += uint64(len(tr.data))
		case TagAddress:
			cursor = tr.address
		}
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
