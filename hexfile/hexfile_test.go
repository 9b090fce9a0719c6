package hexfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexkit/hexkit/hexrec"
	"github.com/hexkit/hexkit/sparsemem"
)

// fakeTag/fakeRecord/fakeBackend are minimal doubles used only to
// exercise the role/coherence bookkeeping in this package, independent
// of any concrete format.
type fakeTag struct{ data bool }

func (t fakeTag) String() string            { return "FAKE" }
func (t fakeTag) IsData() bool              { return t.data }
func (t fakeTag) IsFileTermination() bool   { return !t.data }

type fakeRecord struct {
	addr uint64
	data []byte
}

func (r fakeRecord) RecordTag() hexrec.Tag             { return fakeTag{data: len(r.data) > 0} }
func (r fakeRecord) Address() uint64                   { return r.addr }
func (r fakeRecord) Data() []byte                      { return r.data }
func (r fakeRecord) Count() (int, bool)                { return len(r.data), true }
func (r fakeRecord) Checksum() (int, bool)             { return 0, false }
func (r fakeRecord) Before() []byte                    { return nil }
func (r fakeRecord) After() []byte                     { return nil }
func (r fakeRecord) Coords() hexrec.Coords             { return hexrec.NoCoords }
func (r fakeRecord) ComputeCount() int                 { return len(r.data) }
func (r fakeRecord) ComputeChecksum() int               { return 0 }
func (r fakeRecord) Validate(checksum, count bool) error { return nil }
func (r fakeRecord) ToBytestr() []byte                  { return r.data }
func (r fakeRecord) ToTokens() map[string][]byte        { return nil }

type fakeBackend struct{}

func (fakeBackend) ApplyRecords(records []hexrec.Record) (*sparsemem.Memory, error) {
	m := sparsemem.New()
	for _, r := range records {
		if len(r.Data()) > 0 {
			m.Write(r.Address(), r.Data())
		}
	}
	return m, nil
}

func (fakeBackend) UpdateRecords(m *sparsemem.Memory) ([]hexrec.Record, error) {
	var out []hexrec.Record
	for _, b := range m.Blocks() {
		out = append(out, fakeRecord{addr: b.Start, data: b.Data})
	}
	return out, nil
}

func TestContainerMemoryRoleDerivesRecords(t *testing.T) {
	m := sparsemem.New()
	m.Write(0, []byte("abc"))
	c := NewFromMemory(fakeBackend{}, m)

	assert.Equal(t, RoleMemory, c.Role())
	records, err := c.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, RoleBoth, c.Role())
}

func TestContainerRecordsRoleDerivesMemory(t *testing.T) {
	c := NewFromRecords(fakeBackend{}, []hexrec.Record{fakeRecord{addr: 10, data: []byte("xyz")}})

	assert.Equal(t, RoleRecords, c.Role())
	mem, err := c.Memory()
	require.NoError(t, err)
	got, _ := mem.ToBytes(nil, nil, nil)
	assert.Equal(t, []byte("xyz"), got)
	assert.Equal(t, RoleBoth, c.Role())
}

func TestMutateMemoryInvalidatesRecords(t *testing.T) {
	m := sparsemem.New()
	m.Write(0, []byte("abc"))
	c := NewFromMemory(fakeBackend{}, m)
	_, err := c.Records()
	require.NoError(t, err)
	require.Equal(t, RoleBoth, c.Role())

	err = c.MutateMemory(func(mem *sparsemem.Memory) {
		mem.Write(10, []byte("def"))
	})
	require.NoError(t, err)
	assert.Equal(t, RoleMemory, c.Role())

	records, err := c.Records()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSetRecordsInvalidatesMemory(t *testing.T) {
	m := sparsemem.New()
	m.Write(0, []byte("abc"))
	c := NewFromMemory(fakeBackend{}, m)
	_, err := c.Memory()
	require.NoError(t, err)

	c.SetRecords([]hexrec.Record{fakeRecord{addr: 0, data: []byte("zzz")}})
	assert.Equal(t, RoleRecords, c.Role())
}

func TestParseLinesStopsAtTermination(t *testing.T) {
	input := "DATA1\nDATA2\nEND\nIGNOREME\n"
	parse := func(line []byte, lineNo int) (hexrec.Record, bool, error) {
		s := string(line)
		if s == "" {
			return nil, false, nil
		}
		if s == "END" {
			// a record without data is the double's file-termination record
			return fakeRecord{addr: uint64(lineNo)}, true, nil
		}
		return fakeRecord{addr: uint64(lineNo), data: []byte(s)}, true, nil
	}

	records, err := ParseLines(strings.NewReader(input), parse, ParseOptions{IgnoreAfterTermination: true})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestSplitAndMergeMemoryRoundTrip(t *testing.T) {
	m := sparsemem.New()
	m.Write(0, []byte("0123456789"))

	pieces := SplitMemory(m, []uint64{3, 7})
	require.Len(t, pieces, 3)

	merged := MergeMemories(pieces)
	assert.True(t, merged.Equal(m))
}
