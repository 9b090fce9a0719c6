// Package hexfile implements the abstract, dual-role file container
// (§4.6 of the spec this engine implements): a file holds records, or
// memory+meta, or both coherently; mutating one side invalidates the
// other until it is lazily (or explicitly) re-derived.
package hexfile

import (
	"bufio"
	"bytes"
	"io"
	"sort"

	"github.com/hexkit/hexkit/hexrec"
	"github.com/hexkit/hexkit/sparsemem"
)

// Role reports which side(s) of a Container currently hold authoritative
// data.
type Role int

const (
	// RoleMemory means only memory+meta are held; records is nil.
	RoleMemory Role = iota
	// RoleRecords means only the record list is held; memory is nil.
	RoleRecords
	// RoleBoth means both sides are coherent (records derived from
	// memory, or vice versa, with no mutation since).
	RoleBoth
)

// Backend is implemented by each concrete format's File type: it knows
// how to derive memory (and its own format-specific meta) from a record
// list, and vice versa. These correspond to C7's per-format
// apply_records/update_records.
type Backend interface {
	ApplyRecords(records []hexrec.Record) (*sparsemem.Memory, error)
	UpdateRecords(memory *sparsemem.Memory) ([]hexrec.Record, error)
}

// Container holds the dual-role bookkeeping shared by every format. A
// concrete File embeds a *Container and supplies itself as the Backend.
type Container struct {
	backend Backend
	role    Role
	memory  *sparsemem.Memory
	records []hexrec.Record
}

// NewFromMemory starts a Container in memory role.
func NewFromMemory(b Backend, m *sparsemem.Memory) *Container {
	if m == nil {
		m = sparsemem.New()
	}
	return &Container{backend: b, role: RoleMemory, memory: m}
}

// NewFromRecords starts a Container in records role.
func NewFromRecords(b Backend, records []hexrec.Record) *Container {
	return &Container{backend: b, role: RoleRecords, records: records}
}

// Role reports the container's current role.
func (c *Container) Role() Role { return c.role }

// Memory returns the coherent memory, deriving it from records via
// ApplyRecords if the container is currently records-only.
func (c *Container) Memory() (*sparsemem.Memory, error) {
	if c.role == RoleRecords {
		if err := c.ApplyRecords(); err != nil {
			return nil, err
		}
	}
	if c.memory == nil {
		return nil, &hexrec.RoleError{Reason: "memory is not available and cannot be derived"}
	}
	return c.memory, nil
}

// Records returns the coherent record list, deriving it from memory via
// UpdateRecords if the container is currently memory-only.
func (c *Container) Records() ([]hexrec.Record, error) {
	if c.role == RoleMemory {
		if err := c.UpdateRecords(); err != nil {
			return nil, err
		}
	}
	if c.records == nil && c.role != RoleBoth {
		return nil, &hexrec.RoleError{Reason: "records are not available and cannot be derived"}
	}
	return c.records, nil
}

// ApplyRecords explicitly derives memory from the current record list,
// transitioning to RoleBoth. It is a no-op (beyond recomputation) when
// already coherent; callers needing a guaranteed-safe snapshot under the
// concurrency model of §5 should call this before sharing a Container
// across goroutines for read-only use.
func (c *Container) ApplyRecords() error {
	if c.records == nil {
		return &hexrec.RoleError{Reason: "no records to apply"}
	}
	m, err := c.backend.ApplyRecords(c.records)
	if err != nil {
		return err
	}
	c.memory = m
	c.role = RoleBoth
	return nil
}

// UpdateRecords explicitly derives the record list from the current
// memory, transitioning to RoleBoth.
func (c *Container) UpdateRecords() error {
	if c.memory == nil {
		return &hexrec.RoleError{Reason: "no memory to update from"}
	}
	records, err := c.backend.UpdateRecords(c.memory)
	if err != nil {
		return err
	}
	c.records = records
	c.role = RoleBoth
	return nil
}

// SetMemory replaces memory wholesale and invalidates records.
func (c *Container) SetMemory(m *sparsemem.Memory) {
	c.memory = m
	c.records = nil
	c.role = RoleMemory
}

// SetRecords replaces the record list wholesale and invalidates memory.
func (c *Container) SetRecords(records []hexrec.Record) {
	c.records = records
	c.memory = nil
	c.role = RoleRecords
}

// MutateMemory derives memory if needed, applies fn to it in place, and
// invalidates records — the shape every memory-editing op (write, clear,
// crop, ...) in §4.6 shares.
func (c *Container) MutateMemory(fn func(*sparsemem.Memory)) error {
	m, err := c.Memory()
	if err != nil {
		return err
	}
	fn(m)
	c.records = nil
	c.role = RoleMemory
	return nil
}

// DiscardMemory drops the memory side, keeping only records (deriving
// them first if the container was memory-only).
func (c *Container) DiscardMemory() error {
	if _, err := c.Records(); err != nil {
		return err
	}
	c.memory = nil
	c.role = RoleRecords
	return nil
}

// DiscardRecords drops the record-list side, keeping only memory
// (deriving it first if the container was records-only).
func (c *Container) DiscardRecords() error {
	if _, err := c.Memory(); err != nil {
		return err
	}
	c.records = nil
	c.role = RoleMemory
	return nil
}

// LineParser decodes one physical line (without its line terminator)
// into a record. ok is false for lines the format considers empty/
// skippable (blank lines, padding); such lines are silently dropped
// rather than appended.
type LineParser func(line []byte, lineNo int) (rec hexrec.Record, ok bool, err error)

// ParseOptions controls ParseLines.
type ParseOptions struct {
	IgnoreErrors           bool
	IgnoreAfterTermination bool
}

// ParseLines reads r line by line (splitting on '\n', tolerating a
// trailing '\r'), forwarding each line, empty ones included, to parse. It stops
// reading further records once a file-termination record is produced,
// honoring IgnoreAfterTermination. A parse error is fatal unless
// IgnoreErrors is set, in which case the offending line is skipped.
func ParseLines(r io.Reader, parse LineParser, opts ParseOptions) ([]hexrec.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []hexrec.Record
	lineNo := 0
	terminated := false

	for scanner.Scan() {
		lineNo++
		if terminated && opts.IgnoreAfterTermination {
			continue
		}

		line := scanner.Bytes()
		rec, ok, err := parse(line, lineNo)
		if err != nil {
			if opts.IgnoreErrors {
				continue
			}
			return records, err
		}
		if !ok {
			continue
		}

		records = append(records, rec)
		if rec.RecordTag().IsFileTermination() {
			terminated = true
			if opts.IgnoreAfterTermination {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return records, err
	}
	return records, nil
}

// SerializeRecords writes every record's wire bytes to w in order.
func SerializeRecords(w io.Writer, records []hexrec.Record) error {
	for _, rec := range records {
		if _, err := w.Write(rec.ToBytestr()); err != nil {
			return err
		}
	}
	return nil
}

// LineEnding is the textual line terminator that each record's ToBytestr
// appends after its `after` trivia; CRLF is this engine's default,
// per §6.
var LineEnding = []byte("\r\n")

// SplitMemory partitions a Memory into len(pivots)+1 slices at the given
// sorted-on-demand pivot addresses, flanking the endpoints implicitly.
// Each returned Memory is Crop'd to its own [prev,pivot) span.
func SplitMemory(m *sparsemem.Memory, pivots []uint64) []*sparsemem.Memory {
	sorted := append([]uint64(nil), pivots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	bounds := make([]*uint64, 0, len(sorted)+2)
	bounds = append(bounds, nil)
	for i := range sorted {
		v := sorted[i]
		bounds = append(bounds, &v)
	}
	bounds = append(bounds, nil)

	out := make([]*sparsemem.Memory, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		piece := m.Clone()
		piece.Crop(bounds[i], bounds[i+1])
		out = append(out, piece)
	}
	return out
}

// MergeMemories overlays every memory in order onto a fresh Memory,
// later entries winning any overlap — the inverse of SplitMemory.
func MergeMemories(memories []*sparsemem.Memory) *sparsemem.Memory {
	out := sparsemem.New()
	for _, m := range memories {
		out.Merge(m)
	}
	return out
}

// TrimLineEnding strips a single trailing "\r\n", "\n", or "\r" from b.
func TrimLineEnding(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\r\n"))
	b = bytes.TrimSuffix(b, []byte("\n"))
	b = bytes.TrimSuffix(b, []byte("\r"))
	return b
}
