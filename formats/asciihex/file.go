package asciihex

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

// Meta holds the ASCII-HEX-specific file attributes.
type Meta struct {
	MaxDataLen int
	AddrLen    int
	Align      bool
	Checksum   bool
}

// File is an ASCII-HEX file: the dual-role (records⇄memory) container
// plus ASCII-HEX-specific meta.
type File struct {
	c    *hexfile.Container
	meta Meta
}

// NewFile returns an empty file in memory role.
func NewFile() *File {
	f := &File{meta: Meta{MaxDataLen: DefaultMaxDataLen, AddrLen: 8}}
	f.c = hexfile.NewFromMemory(f, sparsemem.New())
	return f
}

// FromMemory starts a file in memory role over m.
func FromMemory(m *sparsemem.Memory) *File {
	f := &File{meta: Meta{MaxDataLen: DefaultMaxDataLen, AddrLen: 8}}
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
	f := &File{meta: Meta{MaxDataLen: maxDataLen, AddrLen: 8}}
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

// Meta returns a copy of the file's current ASCII-HEX-specific
// metadata.
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

// SetChecksum toggles whether UpdateRecords appends a trailing
// checksum record, and invalidates records.
func (f *File) SetChecksum(enabled bool) error {
	f.meta.Checksum = enabled
	return f.c.DiscardRecords()
}

// MutateMemory derives memory if needed, applies fn, and invalidates
// records.
func (f *File) MutateMemory(fn func(*sparsemem.Memory)) error {
	return f.c.MutateMemory(fn)
}

// ApplyRecords implements hexfile.Backend: data records write at the
// running stream cursor (their own Address field, which the parser
// assigned); address records reset the cursor but carry no payload;
// checksum records are meta-only.
func (f *File) ApplyRecords(records []hexrec.Record) (*sparsemem.Memory, error) {
	m := sparsemem.New()
	for _, rec := range records {
		ar, ok := rec.(*Record)
		if !ok {
			return nil, &hexrec.StructuralError{Format: "asciihex", Reason: "record is not an asciihex.Record"}
		}
		if ar.tag == TagData {
			m.Write(ar.address, ar.data)
		}
	}
	return m, nil
}

// UpdateRecords implements hexfile.Backend: chunks memory, emitting an
// address record ahead of any chunk whose start does not abut the
// previous data, and an optional trailing checksum record.
func (f *File) UpdateRecords(m *sparsemem.Memory) ([]hexrec.Record, error) {
	maxLen := f.meta.MaxDataLen
	if maxLen <= 0 {
		maxLen = DefaultMaxDataLen
	}
	addrLen := f.meta.AddrLen
	if addrLen <= 0 {
		addrLen = 8
	}

	var records []hexrec.Record
	var lastDataEndex uint64
	var fileChecksum uint32

	for _, chunk := range m.Chop(maxLen, f.meta.Align) {
		if f.meta.Checksum {
			var sum uint32
			for _, b := range chunk.Data {
				sum += uint32(b)
			}
			fileChecksum = (fileChecksum + (sum & 0xFFFF)) & 0xFFFF
		}

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

	if f.meta.Checksum {
		rec, err := CreateChecksum(uint16(fileChecksum))
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
	RequireChecksum    bool
}

// ValidateRecords checks whole-file structure: each record validates
// individually, and, when requested, address records must not regress
// and any checksum record must match the running sum of preceding
// data.
func ValidateRecords(records []hexrec.Record, opts ValidateOptions) error {
	var lastDataEndex uint64
	var fileChecksum uint32

	for _, rec := range records {
		ar, ok := rec.(*Record)
		if !ok {
			continue
		}
		if err := ar.Validate(true, true); err != nil {
			return err
		}
		switch ar.tag {
		case TagAddress:
			if opts.RequireDataOrdered && ar.address < lastDataEndex {
				return &hexrec.StructuralError{Format: "asciihex", Reason: "unordered data record"}
			}
			lastDataEndex = ar.address
		case TagChecksum:
			if opts.RequireChecksum {
				if cs, _ := ar.Checksum(); cs != int(fileChecksum) {
					return &hexrec.ChecksumError{Format: "asciihex", Stored: cs, Computed: int(fileChecksum)}
				}
			}
		default:
			lastDataEndex += uint64(len(ar.data))
			var sum uint32
			for _, b := range ar.data {
				sum += uint32(b)
			}
			fileChecksum = (fileChecksum + (sum & 0xFFFF)) & 0xFFFF
		}
	}

	return nil
}

// Parse reads an ASCII-HEX stream into a records-role File. When
// stxetx is true, the stream must contain an STX byte followed later
// by an ETX byte; only bytes strictly between them are parsed, and an
// absent delimiter is a fatal error regardless of ignoreErrors.
func Parse(r io.Reader, ignoreErrors, stxetx bool) (*File, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var scanStart, scanEnd int
	if stxetx {
		stx := bytes.IndexByte(buf, 0x02)
		if stx < 0 {
			return nil, &hexrec.StructuralError{Format: "asciihex", Reason: "missing STX character"}
		}
		scanStart = stx + 1
		etx := bytes.IndexByte(buf[scanStart:], 0x03)
		if etx < 0 {
			return nil, &hexrec.StructuralError{Format: "asciihex", Reason: "missing ETX character"}
		}
		scanEnd = scanStart + etx
	} else {
		scanStart = 0
		scanEnd = len(buf)
	}

	var records []hexrec.Record
	offset := scanStart
	var address uint64
	lineNo := 0

	for offset < scanEnd {
		lineNo++
		rec, consumed, err := ParseChunk(buf[offset:scanEnd], address, lineNo)
		if err != nil {
			if ignoreErrors {
				offset++
				continue
			}
			return nil, err
		}
		offset += consumed
		address = rec.address + uint64(len(rec.data))
		records = append(records, rec)
	}

	return FromRecords(records, DefaultMaxDataLen), nil
}

// Serialize writes every record's wire bytes, in record order, to w,
// bracketed by STX/ETX bytes when stxetx is true.
func (f *File) Serialize(w io.Writer, stxetx bool) error {
	records, err := f.Records()
	if err != nil {
		return err
	}
	if stxetx {
		if _, err := w.Write([]byte{0x02}); err != nil {
			return err
		}
	}
	if err := hexfile.SerializeRecords(w, records); err != nil {
		return err
	}
	if stxetx {
		if _, err := w.Write([]byte{0x03}); err != nil {
			return err
		}
	}
	return nil
}
