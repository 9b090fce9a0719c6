// Package sparsemem implements the sparse-memory substrate that every hex
// record format decodes into: an ordered set of disjoint, non-adjacent
// byte blocks addressed over (at least) the full uint64 range, with holes
// between blocks reading as "absent".
//
// The source this module was distilled from couples to an external
// library (Python's bytesparse.Memory) for this concern; there is no
// equivalent in this corpus, so it is reimplemented directly here.
package sparsemem

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotContiguous is returned by View and by ToBytes (when no fill
// pattern is supplied) when the requested range spans a hole.
var ErrNotContiguous = errors.New("sparsemem: range is not contiguous")

// Block is one contiguous run of bytes at a given start address.
type Block struct {
	Start uint64
	Data  []byte
}

// Endex is the address one past the block's last byte.
func (b Block) Endex() uint64 {
	return b.Start + uint64(len(b.Data))
}

// Interval is a half-open [Start, Endex) address range.
type Interval struct {
	Start uint64
	Endex uint64
}

// Len reports the number of addresses covered by the interval.
func (iv Interval) Len() uint64 {
	if iv.Endex <= iv.Start {
		return 0
	}
	return iv.Endex - iv.Start
}

// Memory is a mutable, ordered collection of disjoint, non-adjacent
// blocks. The zero value is an empty memory ready to use.
type Memory struct {
	blocks []Block
}

// New creates an empty Memory.
func New() *Memory {
	return &Memory{}
}

// FromBlocks builds a Memory from a caller-supplied set of blocks. Blocks
// may be given out of order and may overlap or touch; they are merged and
// sorted exactly as repeated Write calls would.
func FromBlocks(blocks []Block) *Memory {
	m := New()
	for _, b := range blocks {
		m.Write(b.Start, b.Data)
	}
	return m
}

// FromBytes builds a Memory holding b as a single block starting at
// offset.
func FromBytes(offset uint64, b []byte) *Memory {
	m := New()
	if len(b) > 0 {
		m.Write(offset, b)
	}
	return m
}

// IsEmpty reports whether the memory holds no bytes at all.
func (m *Memory) IsEmpty() bool {
	return len(m.blocks) == 0
}

// Start returns the lowest address that holds data, or 0 if empty.
func (m *Memory) Start() uint64 {
	if len(m.blocks) == 0 {
		return 0
	}
	return m.blocks[0].Start
}

// Endex returns one past the highest address that holds data, or 0 if
// empty.
func (m *Memory) Endex() uint64 {
	if len(m.blocks) == 0 {
		return 0
	}
	return m.blocks[len(m.blocks)-1].Endex()
}

// Clone returns a deep copy of m.
func (m *Memory) Clone() *Memory {
	out := &Memory{blocks: make([]Block, len(m.blocks))}
	for i, b := range m.blocks {
		out.blocks[i] = Block{Start: b.Start, Data: append([]byte(nil), b.Data...)}
	}
	return out
}

// Equal reports whether m and other hold the same bytes at the same
// addresses (gaps included).
func (m *Memory) Equal(other *Memory) bool {
	if len(m.blocks) != len(other.blocks) {
		return false
	}
	for i := range m.blocks {
		a, b := m.blocks[i], other.blocks[i]
		if a.Start != b.Start || len(a.Data) != len(b.Data) {
			return false
		}
		for j := range a.Data {
			if a.Data[j] != b.Data[j] {
				return false
			}
		}
	}
	return true
}

// blockIndexAt returns the index of the block containing addr, and ok.
func (m *Memory) blockIndexAt(addr uint64) (int, bool) {
	i := sort.Search(len(m.blocks), func(i int) bool {
		return m.blocks[i].Endex() > addr
	})
	if i < len(m.blocks) && m.blocks[i].Start <= addr {
		return i, true
	}
	return i, false
}

// Read returns the byte at addr and whether it is present.
func (m *Memory) Read(addr uint64) (byte, bool) {
	i, ok := m.blockIndexAt(addr)
	if !ok {
		return 0, false
	}
	return m.blocks[i].Data[addr-m.blocks[i].Start], true
}

// Write stores data at addr, overwriting any existing bytes in that range
// and merging with any block that becomes contiguous as a result.
func (m *Memory) Write(addr uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	endex := addr + uint64(len(data))

	// Find the span of existing blocks touched or overlapped by [addr,endex].
	lo := sort.Search(len(m.blocks), func(i int) bool {
		return m.blocks[i].Endex() >= addr
	})
	hi := sort.Search(len(m.blocks), func(i int) bool {
		return m.blocks[i].Start > endex
	})

	var merged Block
	merged.Start = addr
	merged.Data = append([]byte(nil), data...)

	if lo < hi {
		first, last := m.blocks[lo], m.blocks[hi-1]
		if first.Start < addr {
			merged.Start = first.Start
			prefix := first.Data[:addr-first.Start]
			merged.Data = append(append([]byte(nil), prefix...), merged.Data...)
		}
		if last.Endex() > endex {
			suffix := last.Data[endex-last.Start:]
			merged.Data = append(merged.Data, suffix...)
		}
	}

	newBlocks := make([]Block, 0, len(m.blocks)-(hi-lo)+1)
	newBlocks = append(newBlocks, m.blocks[:lo]...)
	newBlocks = append(newBlocks, merged)
	newBlocks = append(newBlocks, m.blocks[hi:]...)
	m.blocks = newBlocks
}

// Clear removes the bytes in [start,endex), turning that range into a
// hole. A nil start means "from the beginning"; a nil endex means "to the
// end".
func (m *Memory) Clear(start, endex *uint64) {
	s, e, ok := m.resolveRange(start, endex)
	if !ok {
		return
	}
	m.blocks = m.removeRange(s, e)
}

// Crop discards every byte outside [start,endex).
func (m *Memory) Crop(start, endex *uint64) {
	s, e, ok := m.resolveRange(start, endex)
	if !ok {
		m.blocks = nil
		return
	}
	var out []Block
	for _, b := range m.blocks {
		bs, be := b.Start, b.Endex()
		if be <= s || bs >= e {
			continue
		}
		ns, ne := bs, be
		if ns < s {
			ns = s
		}
		if ne > e {
			ne = e
		}
		out = append(out, Block{Start: ns, Data: append([]byte(nil), b.Data[ns-bs:ne-bs]...)})
	}
	m.blocks = out
}

// Cut removes and returns the bytes in [start,endex) as a new Memory,
// clearing them from m.
func (m *Memory) Cut(start, endex *uint64) *Memory {
	out := m.Clone()
	out.Crop(start, endex)
	m.Clear(start, endex)
	return out
}

// Extend appends other's bytes starting at m's current Endex, preserving
// other's internal gaps.
func (m *Memory) Extend(other *Memory) {
	base := m.Endex()
	for _, b := range other.blocks {
		m.Write(base+(b.Start-other.Start()), b.Data)
	}
}

// Shift adds n (which may be negative) to every block's address. Shifting
// below address 0 is a caller error and panics, matching the unsigned
// address space invariant (§3 of the spec this engine implements).
func (m *Memory) Shift(n int64) {
	for i := range m.blocks {
		if n < 0 && uint64(-n) > m.blocks[i].Start {
			panic(fmt.Sprintf("sparsemem: shift %d underflows block at 0x%X", n, m.blocks[i].Start))
		}
		if n >= 0 {
			m.blocks[i].Start += uint64(n)
		} else {
			m.blocks[i].Start -= uint64(-n)
		}
	}
}

// Fill overwrites every byte in [start,endex) with repetitions of
// pattern, regardless of whether bytes were already present.
func (m *Memory) Fill(start, endex *uint64, pattern []byte) {
	s, e, ok := m.resolveRange(start, endex)
	if !ok || len(pattern) == 0 || e <= s {
		return
	}
	data := repeatPattern(pattern, e-s)
	m.Write(s, data)
}

// Flood fills only the holes in [start,endex) with repetitions of
// pattern; existing bytes are left untouched.
func (m *Memory) Flood(start, endex *uint64, pattern []byte) {
	s, e, ok := m.resolveRange(start, endex)
	if !ok || len(pattern) == 0 || e <= s {
		return
	}
	for _, gap := range m.gapsIn(s, e) {
		data := repeatPattern(pattern, gap.Endex-gap.Start)
		// Re-derive pattern phase so flooding a hole preserves the
		// pattern's absolute alignment, not a per-gap restart.
		data = phaseShift(pattern, data, gap.Start-s)
		m.Write(gap.Start, data)
	}
}

func phaseShift(pattern, data []byte, offset uint64) []byte {
	if len(pattern) == 0 {
		return data
	}
	shift := int(offset % uint64(len(pattern)))
	out := make([]byte, len(data))
	for i := range out {
		out[i] = pattern[(i+shift)%len(pattern)]
	}
	return out
}

func repeatPattern(pattern []byte, n uint64) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

// Find returns the address of the first occurrence of pattern within
// [start,endex), or -1 if absent. A hole never matches.
func (m *Memory) Find(pattern []byte, start, endex *uint64) int64 {
	s, e, ok := m.resolveRange(start, endex)
	if !ok || len(pattern) == 0 {
		return -1
	}
	for _, b := range m.blocks {
		bs, be := b.Start, b.Endex()
		lo, hi := bs, be
		if lo < s {
			lo = s
		}
		if hi > e {
			hi = e
		}
		if hi-lo < uint64(len(pattern)) {
			continue
		}
		data := b.Data[lo-bs : hi-bs]
		for i := 0; i+len(pattern) <= len(data); i++ {
			if matches(data[i:i+len(pattern)], pattern) {
				return int64(lo) + int64(i)
			}
		}
	}
	return -1
}

// Index behaves like Find but returns an error instead of -1 when
// pattern is not found.
func (m *Memory) Index(pattern []byte, start, endex *uint64) (uint64, error) {
	addr := m.Find(pattern, start, endex)
	if addr < 0 {
		return 0, fmt.Errorf("sparsemem: pattern not found")
	}
	return uint64(addr), nil
}

func matches(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// View returns a zero-copy slice over [start,endex), which must be fully
// contiguous (no holes); otherwise ErrNotContiguous is returned.
func (m *Memory) View(start, endex *uint64) ([]byte, error) {
	s, e, ok := m.resolveRange(start, endex)
	if !ok || e <= s {
		return nil, nil
	}
	i, found := m.blockIndexAt(s)
	if !found {
		return nil, ErrNotContiguous
	}
	b := m.blocks[i]
	if b.Endex() < e {
		return nil, ErrNotContiguous
	}
	return b.Data[s-b.Start : e-b.Start], nil
}

// ToBytes materializes [start,endex) as an owned byte slice. When the
// range contains holes, pattern (if non-nil) fills them; a nil pattern
// with any hole present is an error.
func (m *Memory) ToBytes(start, endex *uint64, pattern *byte) ([]byte, error) {
	s, e, ok := m.resolveRange(start, endex)
	if !ok || e <= s {
		return nil, nil
	}
	out := make([]byte, e-s)
	if pattern != nil {
		for i := range out {
			out[i] = *pattern
		}
	}
	anyHole := false
	for _, b := range m.blocks {
		bs, be := b.Start, b.Endex()
		lo, hi := bs, be
		if lo < s {
			lo = s
		}
		if hi > e {
			hi = e
		}
		if hi <= lo {
			continue
		}
		copy(out[lo-s:hi-s], b.Data[lo-bs:hi-bs])
	}
	if pattern == nil {
		for _, gap := range m.gapsIn(s, e) {
			if gap.Len() > 0 {
				anyHole = true
			}
		}
		if anyHole {
			return nil, ErrNotContiguous
		}
	}
	return out, nil
}

// Gaps reports every hole in the full address range [Start(),Endex()).
func (m *Memory) Gaps() []Interval {
	return m.gapsIn(m.Start(), m.Endex())
}

func (m *Memory) gapsIn(s, e uint64) []Interval {
	var gaps []Interval
	cur := s
	for _, b := range m.blocks {
		bs, be := b.Start, b.Endex()
		if be <= s {
			continue
		}
		if bs >= e {
			break
		}
		if bs > cur {
			hi := bs
			if hi > e {
				hi = e
			}
			if hi > cur {
				gaps = append(gaps, Interval{Start: cur, Endex: hi})
			}
		}
		if be > cur {
			cur = be
		}
	}
	if cur < e {
		gaps = append(gaps, Interval{Start: cur, Endex: e})
	}
	return gaps
}

// Intervals reports the address range of every contiguous block.
func (m *Memory) Intervals() []Interval {
	out := make([]Interval, len(m.blocks))
	for i, b := range m.blocks {
		out[i] = Interval{Start: b.Start, Endex: b.Endex()}
	}
	return out
}

// Blocks exposes the underlying ordered block list, read-only by
// convention: callers must not mutate the returned slices' Data in place.
func (m *Memory) Blocks() []Block {
	return m.blocks
}

// ChopChunk is one window yielded by Chop: a contiguous run of at most
// the requested window size, tagged with its absolute starting address.
type ChopChunk struct {
	Addr uint64
	Data []byte
}

// Chop yields every block split into windows of at most `window` bytes.
// When align is true, window boundaries are anchored to absolute address
// multiples of window (so the first chunk of a block may be short);
// otherwise each block is chopped independently starting at its own
// Start.
func (m *Memory) Chop(window int, align bool) []ChopChunk {
	if window <= 0 {
		var out []ChopChunk
		for _, b := range m.blocks {
			out = append(out, ChopChunk{Addr: b.Start, Data: b.Data})
		}
		return out
	}

	var out []ChopChunk
	for _, b := range m.blocks {
		alignBase := uint64(0)
		if align {
			alignBase = b.Start
		}
		for _, piece := range chopBytes(b.Data, window, alignBase) {
			addr := b.Start + piece.offset
			out = append(out, ChopChunk{Addr: addr, Data: piece.data})
		}
	}
	return out
}

type chunkPiece struct {
	offset uint64
	data   []byte
}

func chopBytes(data []byte, window int, alignBase uint64) []chunkPiece {
	var out []chunkPiece
	first := window
	if alignBase > 0 {
		rem := int(alignBase % uint64(window))
		if rem != 0 {
			first = window - rem
			if first > len(data) {
				first = len(data)
			}
		}
	}

	i := 0
	if first > 0 && first < window {
		end := first
		if end > len(data) {
			end = len(data)
		}
		out = append(out, chunkPiece{offset: 0, data: data[:end]})
		i = end
	}
	for i < len(data) {
		end := i + window
		if end > len(data) {
			end = len(data)
		}
		out = append(out, chunkPiece{offset: uint64(i), data: data[i:end]})
		i = end
	}
	return out
}

// resolveRange applies default bounds (Start()/Endex() of m) to a
// possibly-nil [start,endex) pair and reports whether the resulting range
// is non-empty to consider (ok is false only when the memory is empty and
// both bounds were nil).
func (m *Memory) resolveRange(start, endex *uint64) (s, e uint64, ok bool) {
	if start == nil && endex == nil && m.IsEmpty() {
		return 0, 0, false
	}
	if start != nil {
		s = *start
	} else {
		s = m.Start()
	}
	if endex != nil {
		e = *endex
	} else {
		e = m.Endex()
	}
	if e < s {
		e = s
	}
	return s, e, true
}

// removeRange deletes [s,e) from m's blocks, splitting any block that
// straddles a boundary, and returns the resulting block list. Unlike
// Crop, it does not shift addresses of the surviving bytes (it punches a
// hole in place) — "delete" semantics (which do shift higher addresses
// down) are implemented by DeleteShift.
func (m *Memory) removeRange(s, e uint64) []Block {
	var out []Block
	for _, b := range m.blocks {
		bs, be := b.Start, b.Endex()
		if be <= s || bs >= e {
			out = append(out, b)
			continue
		}
		if bs < s {
			out = append(out, Block{Start: bs, Data: append([]byte(nil), b.Data[:s-bs]...)})
		}
		if be > e {
			out = append(out, Block{Start: e, Data: append([]byte(nil), b.Data[e-bs:]...)})
		}
	}
	return out
}

// DeleteShift removes [s,e) and shifts every byte at or beyond e down by
// (e-s), closing the resulting hole — the "delete" operation named in §3
// of the spec this engine implements, distinct from Clear (which leaves a
// hole) and Crop (which discards the complement).
func (m *Memory) DeleteShift(s, e uint64) {
	if e <= s {
		return
	}
	n := e - s
	removed := m.removeRange(s, e)
	for i := range removed {
		if removed[i].Start >= e {
			removed[i].Start -= n
		}
	}
	// Rewrite the blocks so that pieces made adjacent by the shift merge.
	m.blocks = nil
	for _, b := range removed {
		m.Write(b.Start, b.Data)
	}
}

// Merge appends the contents of src at src's own absolute addresses,
// overwriting any overlap in m. Unlike Extend, addresses are not rebased.
func (m *Memory) Merge(src *Memory) {
	for _, b := range src.blocks {
		m.Write(b.Start, b.Data)
	}
}

// Append writes data starting at m's current Endex.
func (m *Memory) Append(data []byte) {
	m.Write(m.Endex(), data)
}

// Align floods every hole in [Start() rounded down, Endex() rounded up to
// a multiple of modulus) with pattern, so that Start()/Endex() land on
// multiples of modulus; interior holes in that range are filled too and
// existing bytes are left untouched. It never trims. With an empty
// pattern or a zero modulus it does nothing.
func (m *Memory) Align(modulus uint64, pattern []byte) {
	if modulus == 0 || m.IsEmpty() {
		return
	}
	start := m.Start()
	endex := m.Endex()
	alignedStart := start - start%modulus
	rem := endex % modulus
	alignedEndex := endex
	if rem != 0 {
		alignedEndex = endex + (modulus - rem)
	}
	if len(pattern) > 0 {
		m.Flood(&alignedStart, &alignedEndex, pattern)
	}
}
