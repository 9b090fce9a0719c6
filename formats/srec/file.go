package srec

import (
	"io"

	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
	"github.com/hexkit/hexkit/sparsemem"
)

// DefaultMaxDataLen is the target chunk size UpdateRecords uses for
// data records when Meta.MaxDataLen is zero.
const DefaultMaxDataLen = 16

// Meta holds the S-Record-specific file attributes. StartAddr has no
// "unset" state: a from-scratch file starts at 0, matching a record
// stream that always carries a start record.
type Meta struct {
	MaxDataLen int
	Header     []byte
	StartAddr  uint32
}

// File is an S-Record file: the dual-role (records⇄memory) container
// plus S-Record-specific meta.
type File struct {
	c    *hexfile.Container
	meta Meta
}

// NewFile returns an empty file in memory role.
func NewFile() *File {
	f := &File{meta: Meta{MaxDataLen: DefaultMaxDataLen}}
	f.c = hexfile.NewFromMemory(f, sparsemem.New())
	return f
}

// FromMemory starts a file in memory role over m.
func FromMemory(m *sparsemem.Memory) *File {
	f := &File{meta: Meta{MaxDataLen: DefaultMaxDataLen}}
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
	f := &File{meta: Meta{MaxDataLen: maxDataLen}}
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

// Meta returns a copy of the file's current S-Record-specific metadata.
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

// SetHeader sets (or clears, with nil) the S0 header payload and
// invalidates records.
func (f *File) SetHeader(h []byte) error {
	f.meta.Header = h
	return f.c.DiscardRecords()
}

// SetStartAddr sets the terminating start address and invalidates
// records.
func (f *File) SetStartAddr(addr uint32) error {
	f.meta.StartAddr = addr
	return f.c.DiscardRecords()
}

// MutateMemory derives memory if needed, applies fn, and invalidates
// records.
func (f *File) MutateMemory(fn func(*sparsemem.Memory)) error {
	return f.c.MutateMemory(fn)
}

// ApplyRecords implements hexfile.Backend: it writes every data
// payload to memory at its record address and captures header/start
// meta as they are encountered.
func (f *File) ApplyRecords(records []hexrec.Record) (*sparsemem.Memory, error) {
	m := sparsemem.New()
	f.meta.Header = nil
	f.meta.StartAddr = 0

	for _, rec := range records {
		sr, ok := rec.(*Record)
		if !ok {
			return nil, &hexrec.StructuralError{Format: "srec", Reason: "record is not an srec.Record"}
		}

		switch {
		case sr.tag == TagHeader:
			f.meta.Header = append([]byte(nil), sr.data...)
		case sr.tag.IsData():
			m.Write(uint64(sr.address), sr.data)
		case sr.tag.IsStart():
			f.meta.StartAddr = sr.address
		}
	}

	return m, nil
}

// UpdateRecords implements hexfile.Backend: it emits the header record
// (if set), chunks memory into data records of the narrowest tag that
// fits each chunk's address, then always appends the count record and
// the terminating start record, even when no data records were
// produced.
func (f *File) UpdateRecords(m *sparsemem.Memory) ([]hexrec.Record, error) {
	maxLen := f.meta.MaxDataLen
	if maxLen <= 0 {
		maxLen = DefaultMaxDataLen
	}
	if maxLen > MaxDataLen {
		maxLen = MaxDataLen
	}

	var records []hexrec.Record

	if f.meta.Header != nil {
		rec, err := CreateHeader(f.meta.Header)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	chunks := m.Chop(maxLen, true)
	for _, chunk := range chunks {
		rec, err := CreateData(uint32(chunk.Addr), chunk.Data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	countRec, err := CreateCount(len(chunks))
	if err != nil {
		return nil, err
	}
	records = append(records, countRec)

	startRec, err := CreateStart(f.meta.StartAddr)
	if err != nil {
		return nil, err
	}
	records = append(records, startRec)

	out := make([]hexrec.Record, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out, nil
}

// ValidateOptions controls ValidateRecords' structural strictness knobs.
type ValidateOptions struct {
	RequireStart bool
}

// ValidateRecords checks whole-file structure: at most one header
// record, and it must precede every data record; the optional start
// record must come last.
func ValidateRecords(records []hexrec.Record, opts ValidateOptions) error {
	sawHeader := false
	sawData := false
	startIdx := -1

	for i, rec := range records {
		sr, ok := rec.(*Record)
		if !ok {
			continue
		}
		switch {
		case sr.tag == TagHeader:
			if sawData {
				return &hexrec.StructuralError{Format: "srec", Reason: "header record must precede data records"}
			}
			if sawHeader {
				return &hexrec.StructuralError{Format: "srec", Reason: "only one header record is allowed"}
			}
			sawHeader = true
		case sr.tag.IsData():
			sawData = true
		case sr.tag.IsStart():
			if startIdx >= 0 {
				return &hexrec.StructuralError{Format: "srec", Reason: "only one start record is allowed"}
			}
			startIdx = i
		}
	}

	if opts.RequireStart && startIdx < 0 {
		return &hexrec.StructuralError{Format: "srec", Reason: "start record is required"}
	}
	if startIdx >= 0 && startIdx != len(records)-1 {
		return &hexrec.StructuralError{Format: "srec", Reason: "start record must be last"}
	}

	return nil
}

// Parse reads an S-Record stream into a records-role File.
func Parse(r io.Reader, ignoreErrors, ignoreAfterTermination bool) (*File, error) {
	return ParseWithMaxDataLen(r, DefaultMaxDataLen, ignoreErrors, ignoreAfterTermination)
}

// ParseWithMaxDataLen is Parse with an explicit maxDataLen for the
// resulting file's meta.
func ParseWithMaxDataLen(r io.Reader, maxDataLen int, ignoreErrors, ignoreAfterTermination bool) (*File, error) {
	records, err := hexfile.ParseLines(r, func(line []byte, lineNo int) (hexrec.Record, bool, error) {
		_, core, _ := splitTrivia(line)
		if len(core) == 0 {
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
