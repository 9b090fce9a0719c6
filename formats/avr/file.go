package avr

import (
	"bytes"
	"io"

	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
	"github.com/hexkit/hexkit/sparsemem"
)

// Meta holds the AVR-specific file attributes. MaxDataLen is always
// WordDataLen (2): the wire grammar allows no other chunk size.
type Meta struct {
	Align bool
}

// File is an AVR file: the dual-role (records⇄memory) container plus
// AVR-specific meta.
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
func FromRecords(records []hexrec.Record) *File {
	f := &File{}
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

// Meta returns a copy of the file's current AVR-specific metadata.
func (f *File) Meta() Meta { return f.meta }

// SetAlign toggles whether UpdateRecords aligns chunk boundaries to
// word size, and invalidates records.
func (f *File) SetAlign(align bool) error {
	f.meta.Align = align
	return f.c.DiscardRecords()
}

// MutateMemory derives memory if needed, applies fn, and invalidates
// records.
func (f *File) MutateMemory(fn func(*sparsemem.Memory)) error {
	return f.c.MutateMemory(fn)
}

// ApplyRecords implements hexfile.Backend: each record's word address
// doubles to a byte offset at which its 2-byte payload is written.
func (f *File) ApplyRecords(records []hexrec.Record) (*sparsemem.Memory, error) {
	m := sparsemem.New()
	for _, rec := range records {
		ar, ok := rec.(*Record)
		if !ok {
			return nil, &hexrec.StructuralError{Format: "avr", Reason: "record is not an avr.Record"}
		}
		m.Write(ar.address*2, ar.data)
	}
	return m, nil
}

// UpdateRecords implements hexfile.Backend: chops memory into 2-byte
// words, rejecting any chunk that does not start on an even byte
// boundary or that is not exactly one word wide.
func (f *File) UpdateRecords(m *sparsemem.Memory) ([]hexrec.Record, error) {
	var records []hexrec.Record
	for _, chunk := range m.Chop(WordDataLen, f.meta.Align) {
		if chunk.Addr&1 != 0 {
			return nil, &hexrec.StructuralError{Format: "avr", Reason: "invalid word alignment"}
		}
		if len(chunk.Data) != WordDataLen {
			return nil, &hexrec.StructuralError{Format: "avr", Reason: "invalid word size"}
		}
		rec, err := CreateData(chunk.Addr/2, chunk.Data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ValidateOptions controls ValidateRecords' structural strictness
// knobs.
type ValidateOptions struct {
	RequireDataOrdered bool
}

// ValidateRecords checks whole-file structure: each record validates
// individually, and, when requested, the byte-address sequence
// (word address * 2) is monotonically increasing without overlap.
func ValidateRecords(records []hexrec.Record, opts ValidateOptions) error {
	var lastDataEndex uint64

	for _, rec := range records {
		ar, ok := rec.(*Record)
		if !ok {
			continue
		}
		if err := ar.Validate(false, false); err != nil {
			return err
		}
		if opts.RequireDataOrdered {
			byteAddress := ar.address * 2
			if byteAddress < lastDataEndex {
				return &hexrec.StructuralError{Format: "avr", Reason: "unordered data record"}
			}
			lastDataEndex = byteAddress + uint64(len(ar.data))
		}
	}

	return nil
}

// Parse reads an AVR stream into a records-role File.
func Parse(r io.Reader, ignoreErrors bool) (*File, error) {
	records, err := hexfile.ParseLines(r, func(line []byte, lineNo int) (hexrec.Record, bool, error) {
		if len(bytes.TrimSpace(line)) == 0 {
			return nil, false, nil
		}
		rec, err := ParseLine(line, lineNo)
		if err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}, hexfile.ParseOptions{IgnoreErrors: ignoreErrors})
	if err != nil {
		return nil, err
	}
	return FromRecords(records), nil
}

// Serialize writes every record's wire bytes, in record order, to w.
func (f *File) Serialize(w io.Writer) error {
	records, err := f.Records()
	if err != nil {
		return err
	}
	return hexfile.SerializeRecords(w, records)
}
