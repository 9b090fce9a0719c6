package ihex

import (
	"io"

	"github.com/hexkit/hexkit/hexfile"
	"github.com/hexkit/hexkit/hexrec"
	"github.com/hexkit/hexkit/sparsemem"
)

// DefaultMaxDataLen is the target chunk size UpdateRecords uses for data
// records when Meta.MaxDataLen is zero.
const DefaultMaxDataLen = 16

// Meta holds the Intel-HEX-specific file attributes (§3, §4.6).
type Meta struct {
	MaxDataLen int
	// Linear selects which start-address/extension tag family
	// UpdateRecords emits. ApplyRecords sets this per the state-machine
	// rule in §4.7: true when an ELA record was ever seen, OR when no
	// ESA record was ever seen either — meaning a file with only data
	// records (no extension records at all) reports Linear=true. This
	// preserves the source's documented surprising behavior (spec §9
	// Open question): Linear does not mean "strictly linear addressing
	// was observed", it means "not segmented".
	Linear    bool
	StartAddr *uint32
}

// File is an Intel HEX file: the dual-role (records⇄memory) container
// plus Intel-HEX-specific meta.
type File struct {
	c    *hexfile.Container
	meta Meta
}

// NewFile returns an empty file in memory role, Linear defaulted true.
func NewFile() *File {
	f := &File{meta: Meta{MaxDataLen: DefaultMaxDataLen, Linear: true}}
	f.c = hexfile.NewFromMemory(f, sparsemem.New())
	return f
}

// FromMemory starts a file in memory role over m.
func FromMemory(m *sparsemem.Memory) *File {
	f := &File{meta: Meta{MaxDataLen: DefaultMaxDataLen, Linear: true}}
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
	f := &File{meta: Meta{MaxDataLen: maxDataLen, Linear: true}}
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

// Meta returns a copy of the file's current Intel-HEX-specific metadata.
func (f *File) Meta() Meta { return f.meta }

// SetMaxDataLen changes the target data-record chunk size used by
// UpdateRecords and invalidates records.
func (f *File) SetMaxDataLen(n int) error {
	if n <= 0 {
		return &hexrec.MetaError{Key: "maxdatalen", Reason: "must be positive"}
	}
	f.meta.MaxDataLen = n
	return f.c.DiscardRecords()
}

// SetStartAddr sets (or clears, with nil) the start address meta and
// invalidates records.
func (f *File) SetStartAddr(addr *uint32) error {
	f.meta.StartAddr = addr
	return f.c.DiscardRecords()
}

// SetLinear forces the linear/segmented addressing family UpdateRecords
// uses and invalidates records.
func (f *File) SetLinear(linear bool) error {
	f.meta.Linear = linear
	return f.c.DiscardRecords()
}

// MutateMemory derives memory if needed, applies fn, and invalidates
// records.
func (f *File) MutateMemory(fn func(*sparsemem.Memory)) error {
	return f.c.MutateMemory(fn)
}

// ApplyRecords implements hexfile.Backend: it walks records maintaining
// the address-extension state machine of §4.6/§4.7 and writes every data
// payload to memory at its effective address.
func (f *File) ApplyRecords(records []hexrec.Record) (*sparsemem.Memory, error) {
	m := sparsemem.New()

	var extension uint64
	sawELA := false
	sawESA := false
	f.meta.StartAddr = nil

	for _, rec := range records {
		ir, ok := rec.(*Record)
		if !ok {
			return nil, &hexrec.StructuralError{Format: "ihex", Reason: "record is not an ihex.Record"}
		}

		switch {
		case ir.tag == TagData:
			addr := uint64(ir.address) + extension
			m.Write(addr, ir.data)

		case ir.tag == TagExtendedSegmentAddress:
			sawESA = true
			extension = uint64(be16(ir.data)) << 4

		case ir.tag == TagExtendedLinearAddress:
			sawELA = true
			extension = uint64(be16(ir.data)) << 16

		case ir.tag.IsStart():
			addr := be32(ir.data)
			f.meta.StartAddr = &addr

		case ir.tag == TagEndOfFile:
			// terminal; nothing further to do.
		}
	}

	f.meta.Linear = sawELA || !sawESA
	return m, nil
}

// UpdateRecords implements hexfile.Backend: it chunks memory, emitting
// extension records whenever a chunk's high address bits change from the
// previous chunk, then the start-address record (if set) and finally
// EOF.
func (f *File) UpdateRecords(m *sparsemem.Memory) ([]hexrec.Record, error) {
	maxLen := f.meta.MaxDataLen
	if maxLen <= 0 {
		maxLen = DefaultMaxDataLen
	}

	var records []hexrec.Record
	var lastHigh uint64
	haveLastHigh := false

	for _, chunk := range m.Chop(maxLen, true) {
		if f.meta.Linear {
			high := chunk.Addr >> 16
			if !haveLastHigh || high != lastHigh {
				records = append(records, CreateExtendedLinearAddress(uint16(high)))
				lastHigh = high
				haveLastHigh = true
			}
			rec, err := CreateData(uint16(chunk.Addr&0xFFFF), chunk.Data)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		} else {
			if chunk.Addr >= 1<<20 {
				return nil, &hexrec.StructuralError{Format: "ihex", Reason: "segment overflow: address exceeds 20-bit segmented range"}
			}
			segment := chunk.Addr >> 4
			if !haveLastHigh || segment != lastHigh {
				records = append(records, CreateExtendedSegmentAddress(uint16(segment)))
				lastHigh = segment
				haveLastHigh = true
			}
			offset := chunk.Addr - segment<<4
			rec, err := CreateData(uint16(offset), chunk.Data)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}

	if f.meta.StartAddr != nil {
		if f.meta.Linear {
			records = append(records, CreateStartLinearAddress(*f.meta.StartAddr))
		} else {
			records = append(records, CreateStartSegmentAddress(*f.meta.StartAddr))
		}
	}

	records = append(records, CreateEndOfFile())

	out := make([]hexrec.Record, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out, nil
}

// ValidateOptions controls ValidateRecords' structural strictness knobs.
type ValidateOptions struct {
	RequireDataOrdered      bool
	RequireStartPenultimate bool
	RequireStart            bool
	RequireStartWithinData  bool
}

// ValidateRecords checks whole-file structure per §4.7: the last record
// must be EOF; the optional knobs add stricter checks.
func ValidateRecords(records []hexrec.Record, opts ValidateOptions) error {
	if len(records) == 0 || records[len(records)-1].RecordTag().String() != TagEndOfFile.String() {
		return &hexrec.StructuralError{Format: "ihex", Reason: "last record must be EOF"}
	}

	var lastDataEnd uint64
	haveLastDataEnd := false
	var extension uint64
	startIdx := -1
	dataRanges := make([]sparsemem.Interval, 0)

	for i, rec := range records {
		ir, ok := rec.(*Record)
		if !ok {
			continue
		}
		switch {
		case ir.tag == TagData:
			addr := uint64(ir.address) + extension
			if opts.RequireDataOrdered {
				if haveLastDataEnd && addr < lastDataEnd {
					return &hexrec.StructuralError{Format: "ihex", Reason: "data records are not in address order"}
				}
			}
			lastDataEnd = addr + uint64(len(ir.data))
			haveLastDataEnd = true
			dataRanges = append(dataRanges, sparsemem.Interval{Start: addr, Endex: lastDataEnd})
		case ir.tag == TagExtendedLinearAddress:
			extension = uint64(be16(ir.data)) << 16
		case ir.tag == TagExtendedSegmentAddress:
			extension = uint64(be16(ir.data)) << 4
		case ir.tag.IsStart():
			startIdx = i
		}
	}

	if opts.RequireStart && startIdx < 0 {
		return &hexrec.StructuralError{Format: "ihex", Reason: "start-address record is required"}
	}
	if opts.RequireStartPenultimate && startIdx >= 0 && startIdx != len(records)-2 {
		return &hexrec.StructuralError{Format: "ihex", Reason: "start-address record must be penultimate"}
	}
	if opts.RequireStartWithinData && startIdx >= 0 {
		sr := records[startIdx].(*Record)
		addr := uint64(be32(sr.data))
		within := false
		for _, iv := range dataRanges {
			if addr >= iv.Start && addr < iv.Endex {
				within = true
				break
			}
		}
		if !within {
			return &hexrec.StructuralError{Format: "ihex", Reason: "start address does not fall within any data record"}
		}
	}

	return nil
}

// Parse reads an Intel HEX stream into a records-role File.
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

func be16(b []byte) uint16 {
	if len(b) < 2 {
		return 0
	}
	return uint16(b[0])<<8 | uint16(b[1])
}

func be32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

