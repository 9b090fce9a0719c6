package mos

import (
	"bytes"
	"io"

	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
	"github.com/hexkit/hexkit/sparsemem"
)

// DefaultMaxDataLen is the target chunk size UpdateRecords uses for
// data records when Meta.MaxDataLen is zero.
const DefaultMaxDataLen = 24

// etb is the byte that ends a MOS stream (spec's "final ETB byte").
const etb = 0x17

// Meta holds the MOS-specific file attributes.
type Meta struct {
	MaxDataLen int
	Align      bool
	Nuls       bool
	Xoff       bool
}

// File is a MOS file: the dual-role (records⇄memory) container plus
// MOS-specific meta.
type File struct {
	c    *hexfile.Container
	meta Meta
}

// NewFile returns an empty file in memory role.
func NewFile() *File {
	f := &File{meta: Meta{MaxDataLen: DefaultMaxDataLen, Nuls: true, Xoff: true}}
	f.c = hexfile.NewFromMemory(f, sparsemem.New())
	return f
}

// FromMemory starts a file in memory role over m.
func FromMemory(m *sparsemem.Memory) *File {
	f := &File{meta: Meta{MaxDataLen: DefaultMaxDataLen, Nuls: true, Xoff: true}}
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
	f := &File{meta: Meta{MaxDataLen: maxDataLen, Nuls: true, Xoff: true}}
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

// Meta returns a copy of the file's current MOS-specific metadata.
func (f *File) Meta() Meta { return f.meta }

// SetMaxDataLen changes the target data-record chunk size and
// invalidates records.
func (f *File) SetMaxDataLen(n int) error {
	if n <= 0 || n > MaxDataLen {
		return &hexrec.MetaError{Key: "maxdatalen", Reason: "must be within 1..255"}
	}
	f.meta.MaxDataLen = n
	return f.c.DiscardRecords()
}

// SetAlign toggles whether UpdateRecords aligns chunk boundaries to
// MaxDataLen, and invalidates records.
func (f *File) SetAlign(align bool) error {
	f.meta.Align = align
	return f.c.DiscardRecords()
}

// SetNuls toggles whether Serialize pads six NULs after each record,
// and invalidates records.
func (f *File) SetNuls(enabled bool) error {
	f.meta.Nuls = enabled
	return f.c.DiscardRecords()
}

// SetXoff toggles whether Serialize appends a trailing ETB byte, and
// invalidates records.
func (f *File) SetXoff(enabled bool) error {
	f.meta.Xoff = enabled
	return f.c.DiscardRecords()
}

// MutateMemory derives memory if needed, applies fn, and invalidates
// records.
func (f *File) MutateMemory(fn func(*sparsemem.Memory)) error {
	return f.c.MutateMemory(fn)
}

// ApplyRecords implements hexfile.Backend: data records write their
// payload at their own address; the terminator carries no data.
func (f *File) ApplyRecords(records []hexrec.Record) (*sparsemem.Memory, error) {
	m := sparsemem.New()
	for _, rec := range records {
		mr, ok := rec.(*Record)
		if !ok {
			return nil, &hexrec.StructuralError{Format: "mos", Reason: "record is not a mos.Record"}
		}
		if mr.tag == TagData {
			m.Write(mr.address, mr.data)
		}
	}
	return m, nil
}

// UpdateRecords implements hexfile.Backend: chunks memory into data
// records, then a terminator carrying their count.
func (f *File) UpdateRecords(m *sparsemem.Memory) ([]hexrec.Record, error) {
	maxLen := f.meta.MaxDataLen
	if maxLen <= 0 {
		maxLen = DefaultMaxDataLen
	}

	var records []hexrec.Record
	for _, chunk := range m.Chop(maxLen, f.meta.Align) {
		rec, err := CreateData(chunk.Addr, chunk.Data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	eof, err := CreateEOF(len(records))
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
	RequireEOF         bool
}

// ValidateRecords checks whole-file structure: each record validates
// individually; the terminator, when present, must be last and its
// address must equal the count of preceding records.
func ValidateRecords(records []hexrec.Record, opts ValidateOptions) error {
	var lastDataEndex uint64
	var eofRecord *Record

	for i, rec := range records {
		mr, ok := rec.(*Record)
		if !ok {
			continue
		}
		if err := mr.Validate(true, true); err != nil {
			return err
		}
		if opts.RequireDataOrdered && mr.tag == TagData {
			if mr.address < lastDataEndex {
				return &hexrec.StructuralError{Format: "mos", Reason: "unordered data record"}
			}
			lastDataEndex = mr.address + uint64(len(mr.data))
		}
		if mr.tag == TagEOF {
			if i != len(records)-1 {
				return &hexrec.StructuralError{Format: "mos", Reason: "end-of-file record not last"}
			}
			if mr.address != uint64(len(records)-1) {
				return &hexrec.StructuralError{Format: "mos", Reason: "terminator address does not equal record count"}
			}
			eofRecord = mr
		}
	}

	if opts.RequireEOF && eofRecord == nil {
		return &hexrec.StructuralError{Format: "mos", Reason: "missing end-of-file record"}
	}

	return nil
}

func stripNuls(line []byte) []byte {
	if bytes.IndexByte(line, 0) < 0 {
		return line
	}
	return bytes.ReplaceAll(line, []byte{0}, nil)
}

func isAllWhitespaceOrEmpty(line []byte) bool {
	return len(bytes.TrimSpace(line)) == 0
}

// Parse reads a MOS stream into a records-role File. The stream is
// truncated at its first ';' and its first ETB byte before line
// splitting; every physical line has its NUL padding stripped, and a
// line left empty by that stripping is discarded. Unless
// requireEOFRecord is false, the final record is re-tagged TagEOF (the
// wire grammar cannot distinguish a terminator from a data record
// ahead of time).
func Parse(r io.Reader, ignoreErrors bool, requireEOFRecord bool) (*File, error) {
	return ParseWithMaxDataLen(r, DefaultMaxDataLen, ignoreErrors, requireEOFRecord)
}

// ParseWithMaxDataLen is Parse with an explicit maxDataLen for the
// resulting file's meta.
func ParseWithMaxDataLen(r io.Reader, maxDataLen int, ignoreErrors bool, requireEOFRecord bool) (*File, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	start := bytes.IndexByte(buf, ';')
	if start < 0 {
		start = len(buf)
	}
	endex := bytes.IndexByte(buf, etb)
	if endex < 0 {
		endex = len(buf)
	}
	if start > endex {
		start = endex
	}
	buf = buf[start:endex]

	records, err := hexfile.ParseLines(bytes.NewReader(buf), func(line []byte, lineNo int) (hexrec.Record, bool, error) {
		line = stripNuls(line)
		if isAllWhitespaceOrEmpty(line) {
			return nil, false, nil
		}
		rec, err := ParseLine(line, lineNo)
		if err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}, hexfile.ParseOptions{IgnoreErrors: ignoreErrors, IgnoreAfterTermination: true})
	if err != nil {
		return nil, err
	}

	if requireEOFRecord {
		if len(records) == 0 {
			if !ignoreErrors {
				return nil, &hexrec.StructuralError{Format: "mos", Reason: "missing end-of-file record"}
			}
		} else {
			last := records[len(records)-1].(*Record)
			last.tag = TagEOF
		}
	}

	return FromRecords(records, maxDataLen), nil
}

// Serialize writes every record's wire bytes, in record order, to w,
// padding six NULs after each record when Meta.Nuls is set and
// appending a trailing ETB byte when Meta.Xoff is set.
func (f *File) Serialize(w io.Writer) error {
	records, err := f.Records()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := w.Write(rec.ToBytestr()); err != nil {
			return err
		}
		if f.meta.Nuls {
			if _, err := w.Write([]byte{0, 0, 0, 0, 0, 0}); err != nil {
				return err
			}
		}
	}
	if f.meta.Xoff {
		if _, err := w.Write([]byte{etb}); err != nil {
			return err
		}
	}
	return nil
}
