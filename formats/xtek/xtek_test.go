package xtek

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexkit/hexkit/hexrec"
	"github.com/hexkit/hexkit/sparsemem"
)

func toRecordSlice(recs ...*Record) []hexrec.Record {
	out := make([]hexrec.Record, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}

func TestCreateDataWireFormat(t *testing.T) {
	rec, err := CreateData(0x1234, []byte("abc"), 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("%14635800001234616263\r\n"), rec.ToBytestr())
}

func TestCreateEOFWireFormat(t *testing.T) {
	rec, err := CreateEOF(0x12345678, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("%0E842812345678\r\n"), rec.ToBytestr())
}

func TestEmptyFileStartAddrWireFormat(t *testing.T) {
	f := NewFile()
	var buf bytes.Buffer
	require.NoError(t, f.Serialize(&buf))
	assert.Equal(t, "%0E81E800000000\r\n", buf.String())

	require.NoError(t, f.SetStartAddr(0x87654321))
	buf.Reset()
	require.NoError(t, f.Serialize(&buf))
	assert.Equal(t, "%0E842887654321\r\n", buf.String())
}

func TestUpdateRecordsChunksMemory(t *testing.T) {
	f := FromBlocks([]sparsemem.Block{{Start: 123, Data: []byte("abc")}})
	require.NoError(t, f.SetMaxDataLen(16))
	require.NoError(t, f.SetStartAddr(456))

	var buf bytes.Buffer
	require.NoError(t, f.Serialize(&buf))
	want := "%1463D80000007B616263\r\n" + "%0E8338000001C8\r\n"
	assert.Equal(t, want, buf.String())
}

func TestChecksumMatchesNibbleSumAlgorithm(t *testing.T) {
	rec, err := CreateData(0x1234, []byte("abc"), 8)
	require.NoError(t, err)
	cs, ok := rec.Checksum()
	require.True(t, ok)
	assert.Equal(t, rec.ComputeChecksum(), cs)
}

func TestParseLineRoundTrip(t *testing.T) {
	line := []byte("%14635800001234616263")
	rec, err := ParseLine(line, 1)
	require.NoError(t, err)
	assert.Equal(t, TagData, rec.tag)
	assert.EqualValues(t, 0x1234, rec.Address())
	assert.Equal(t, []byte("abc"), rec.Data())
}

func TestParseLineRejectsBadChecksum(t *testing.T) {
	_, err := ParseLine([]byte("%14636800001234616263"), 1)
	require.Error(t, err)
}

func TestDataMaxCapsPerAddrLen(t *testing.T) {
	assert.Equal(t, 123, DataMax(4))
	assert.Equal(t, 122, DataMax(6))
	assert.Equal(t, 121, DataMax(8))
}

func TestRoundTripMemory(t *testing.T) {
	f := NewFile()
	require.NoError(t, f.MutateMemory(func(m *sparsemem.Memory) { m.Write(0x2000, []byte("loopback")) }))

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
	rec, err := CreateData(0, []byte("a"), 8)
	require.NoError(t, err)
	err = ValidateRecords(toRecordSlice(rec), ValidateOptions{})
	require.Error(t, err)
}
