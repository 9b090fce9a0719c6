package sparsemem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }

func TestWriteMergesAdjacentBlocks(t *testing.T) {
	m := New()
	m.Write(10, []byte("abc"))
	m.Write(13, []byte("def"))
	require.Len(t, m.Blocks(), 1)
	assert.Equal(t, uint64(10), m.Start())
	assert.Equal(t, uint64(16), m.Endex())

	got, err := m.View(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), got)
}

func TestWriteOverwritesAndMergesOverlap(t *testing.T) {
	m := New()
	m.Write(0, []byte("AAAA"))
	m.Write(10, []byte("BBBB"))
	m.Write(2, []byte("CCCCCCCC")) // overlaps the first block and spans the gap up to the second
	require.Len(t, m.Blocks(), 1)
	got, _ := m.ToBytes(nil, nil, nil)
	assert.Equal(t, []byte("AACCCCCCCCBBBB"), got)
}

func TestEmptyMemory(t *testing.T) {
	m := New()
	assert.True(t, m.IsEmpty())
	assert.Equal(t, uint64(0), m.Start())
	assert.Equal(t, uint64(0), m.Endex())
	assert.Empty(t, m.Gaps())
}

func TestHolesBetweenBlocks(t *testing.T) {
	m := New()
	m.Write(0, []byte("AA"))
	m.Write(10, []byte("BB"))
	gaps := m.Gaps()
	require.Len(t, gaps, 1)
	assert.Equal(t, Interval{Start: 2, Endex: 10}, gaps[0])

	_, err := m.View(nil, nil)
	assert.ErrorIs(t, err, ErrNotContiguous)

	b, ok := m.Read(5)
	assert.False(t, ok)
	assert.Zero(t, b)
}

func TestClearCreatesHole(t *testing.T) {
	m := New()
	m.Write(0, []byte("0123456789"))
	s, e := uint64(3), uint64(6)
	m.Clear(&s, &e)
	require.Len(t, m.Blocks(), 2)
	assert.Equal(t, []Interval{{Start: 3, Endex: 6}}, m.Gaps())
}

func TestCropKeepsOnlyRange(t *testing.T) {
	m := New()
	m.Write(0, []byte("0123456789"))
	s, e := uint64(3), uint64(6)
	m.Crop(&s, &e)
	got, err := m.View(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("345"), got)
}

func TestCutExtractsAndClearsSource(t *testing.T) {
	m := New()
	m.Write(0, []byte("0123456789"))
	s, e := uint64(3), uint64(6)
	cut := m.Cut(&s, &e)

	got, _ := cut.View(nil, nil)
	assert.Equal(t, []byte("345"), got)

	assert.Equal(t, []Interval{{Start: 3, Endex: 6}}, m.Gaps())
}

func TestDeleteShiftClosesHole(t *testing.T) {
	m := New()
	m.Write(0, []byte("0123456789"))
	m.DeleteShift(3, 6)
	got, err := m.View(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("0126789"), got)
}

func TestShift(t *testing.T) {
	m := New()
	m.Write(0, []byte("AB"))
	m.Shift(100)
	assert.Equal(t, uint64(100), m.Start())
}

func TestShiftUnderflowPanics(t *testing.T) {
	m := New()
	m.Write(10, []byte("AB"))
	assert.Panics(t, func() { m.Shift(-20) })
}

func TestFillOverwritesWhole(t *testing.T) {
	m := New()
	m.Write(0, []byte("AAAA"))
	s, e := uint64(0), uint64(4)
	m.Fill(&s, &e, []byte{0xFF})
	got, _ := m.ToBytes(nil, nil, nil)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, got)
}

func TestFloodFillsOnlyHoles(t *testing.T) {
	m := New()
	m.Write(0, []byte("AA"))
	m.Write(4, []byte("BB"))
	s, e := uint64(0), uint64(6)
	m.Flood(&s, &e, []byte{0xFF})
	got, err := m.ToBytes(&s, &e, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{'A', 'A', 0xFF, 0xFF, 'B', 'B'}, got)
}

func TestFindAndIndex(t *testing.T) {
	m := New()
	m.Write(10, []byte("hello world"))
	addr := m.Find([]byte("world"), nil, nil)
	assert.EqualValues(t, 16, addr)

	assert.EqualValues(t, -1, m.Find([]byte("missing"), nil, nil))

	_, err := m.Index([]byte("missing"), nil, nil)
	require.Error(t, err)
}

func TestToBytesWithPatternFillsHoles(t *testing.T) {
	m := New()
	m.Write(0, []byte("AA"))
	m.Write(4, []byte("BB"))
	pattern := byte(0)
	got, err := m.ToBytes(nil, nil, &pattern)
	require.NoError(t, err)
	assert.Equal(t, []byte{'A', 'A', 0, 0, 'B', 'B'}, got)
}

func TestChopUnaligned(t *testing.T) {
	m := New()
	m.Write(0, []byte("0123456789abcdef"))
	chunks := m.Chop(4, false)
	require.Len(t, chunks, 4)
	assert.Equal(t, uint64(0), chunks[0].Addr)
	assert.Equal(t, uint64(4), chunks[1].Addr)
}

func TestChopAligned(t *testing.T) {
	m := New()
	m.Write(6, []byte("0123456789"))
	chunks := m.Chop(4, true)
	// addresses 6..16; window=4 means boundaries at 8,12,16 -> first chunk [6,8)
	require.NotEmpty(t, chunks)
	assert.Equal(t, uint64(6), chunks[0].Addr)
	assert.Len(t, chunks[0].Data, 2)
	assert.Equal(t, uint64(8), chunks[1].Addr)
}

func TestIntervalsReportsBlocks(t *testing.T) {
	m := New()
	m.Write(0, []byte("AA"))
	m.Write(10, []byte("BBB"))
	ivs := m.Intervals()
	require.Len(t, ivs, 2)
	assert.Equal(t, Interval{Start: 0, Endex: 2}, ivs[0])
	assert.Equal(t, Interval{Start: 10, Endex: 13}, ivs[1])
}

func TestExtendAppendsAtEndex(t *testing.T) {
	m := New()
	m.Write(0, []byte("AA"))

	other := New()
	other.Write(100, []byte("BB"))

	m.Extend(other)
	assert.Equal(t, uint64(0), m.Start())
	assert.Equal(t, uint64(4), m.Endex())
	got, _ := m.ToBytes(nil, nil, nil)
	assert.Equal(t, []byte("AABB"), got)
}

func TestMergeOverwritesAtAbsoluteAddress(t *testing.T) {
	m := New()
	m.Write(0, []byte("AAAA"))

	other := New()
	other.Write(2, []byte("BB"))

	m.Merge(other)
	got, _ := m.ToBytes(nil, nil, nil)
	assert.Equal(t, []byte("AABB"), got)
}

func TestCloneIsIndependent(t *testing.T) {
	m := New()
	m.Write(0, []byte("AA"))
	c := m.Clone()
	c.Write(0, []byte("BB"))
	got, _ := m.ToBytes(nil, nil, nil)
	assert.Equal(t, []byte("AA"), got)
}

func TestEqual(t *testing.T) {
	a := New()
	a.Write(0, []byte("AA"))
	a.Write(10, []byte("BB"))

	b := New()
	b.Write(10, []byte("BB"))
	b.Write(0, []byte("AA"))

	assert.True(t, a.Equal(b))
}
