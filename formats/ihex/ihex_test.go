package ihex

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexkit/hexkit/hexrec"
	"github.com/hexkit/hexkit/sparsemem"
)

// toRecordSlice adapts a handful of *Record values into the []hexrec.Record
// slice the engine-wide APIs expect.
func toRecordSlice(recs ...*Record) []hexrec.Record {
	out := make([]hexrec.Record, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}

func TestEndOfFileWireFormat(t *testing.T) {
	rec := CreateEndOfFile()
	assert.Equal(t, []byte(":00000001FF\r\n"), rec.ToBytestr())

	parsed, err := ParseLine([]byte(":00000001FF"), 1)
	require.NoError(t, err)
	assert.Equal(t, TagEndOfFile, parsed.tag)
	assert.EqualValues(t, 0, parsed.Address())
	assert.Empty(t, parsed.Data())
	count, ok := parsed.Count()
	require.True(t, ok)
	assert.Equal(t, 0, count)
	cs, ok := parsed.Checksum()
	require.True(t, ok)
	assert.Equal(t, 0xFF, cs)
}

func TestDataRecordWireFormat(t *testing.T) {
	rec, err := CreateData(0x1234, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte(":0312340061626391\r\n"), rec.ToBytestr())

	cs, ok := rec.Checksum()
	require.True(t, ok)
	assert.Equal(t, 0x91, cs)
}

func TestLinearExtensionWritesEffectiveAddress(t *testing.T) {
	input := ":020000040ABC34\r\n:0356780078797AC4\r\n:00000001FF\r\n"
	f, err := Parse(strings.NewReader(input), false, true)
	require.NoError(t, err)

	mem, err := f.Memory()
	require.NoError(t, err)

	addr := uint64(0x0ABC5678)
	got, err := mem.ToBytes(&addr, ptrAdd(addr, 3), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x78, 0x79, 0x7A}, got)
}

func ptrAdd(a uint64, n uint64) *uint64 {
	v := a + n
	return &v
}

func TestChecksumAndCountCorrectnessForFactories(t *testing.T) {
	records := []*Record{
		mustData(t, 0, []byte("x")),
		CreateEndOfFile(),
		CreateExtendedSegmentAddress(0x1000),
		CreateExtendedLinearAddress(0x2000),
		CreateStartSegmentAddress(0x00001234),
		CreateStartLinearAddress(0xDEADBEEF),
	}
	for _, r := range records {
		cs, ok := r.Checksum()
		require.True(t, ok)
		assert.Equal(t, r.ComputeChecksum(), cs)
		n, ok := r.Count()
		require.True(t, ok)
		assert.Equal(t, r.ComputeCount(), n)
	}
}

func mustData(t *testing.T, addr uint16, data []byte) *Record {
	t.Helper()
	r, err := CreateData(addr, data)
	require.NoError(t, err)
	return r
}

func TestParseRejectsBadChecksum(t *testing.T) {
	_, err := ParseLine([]byte(":00000001FE"), 1)
	require.Error(t, err)
}

func TestParseRejectsMissingColon(t *testing.T) {
	_, err := ParseLine([]byte("00000001FF"), 1)
	require.Error(t, err)
}

func TestRoundTripMemory(t *testing.T) {
	f := FromMemory(nil)
	err := f.MutateMemory(func(m *sparsemem.Memory) { m.Write(0x100, []byte("hello, world")) })
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Serialize(&buf))

	f2, err := Parse(&buf, false, true)
	require.NoError(t, err)
	m1, _ := f.Memory()
	m2, err := f2.Memory()
	require.NoError(t, err)
	assert.True(t, m1.Equal(m2))
}

func TestValidateRecordsRequiresEOFLast(t *testing.T) {
	rec, err := CreateData(0, []byte("a"))
	require.NoError(t, err)
	err = ValidateRecords(toRecordSlice(rec), ValidateOptions{})
	require.Error(t, err)
}

func TestApplyRecordsLinearFlagSurprise(t *testing.T) {
	// A file with only data records and no extension records at all
	// reports Linear=true, per the documented surprising rule in §9.
	rec, err := CreateData(0, []byte("a"))
	require.NoError(t, err)
	f := FromRecords(toRecordSlice(rec, CreateEndOfFile()), 16)
	_, err = f.Memory()
	require.NoError(t, err)
	assert.True(t, f.Meta().Linear)
}
