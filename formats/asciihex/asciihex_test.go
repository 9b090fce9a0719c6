package asciihex

import (
	"bytes"
	"strings"
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

func TestParseWithFramingProducesMemory(t *testing.T) {
	input := "\x02 61 62 63 \r\n $A1234,\r\n 78 79 7A \r\n \x03"
	f, err := Parse(strings.NewReader(input), false, true)
	require.NoError(t, err)

	m, err := f.Memory()
	require.NoError(t, err)

	want := sparsemem.FromBlocks([]sparsemem.Block{
		{Start: 0, Data: []byte("abc")},
		{Start: 0x1234, Data: []byte("xyz")},
	})
	assert.True(t, want.Equal(m))
}

func TestParseMissingSTXIsFatal(t *testing.T) {
	_, err := Parse(strings.NewReader("61 62 63\x03"), false, true)
	require.Error(t, err)
}

func TestParseMissingETXIsFatal(t *testing.T) {
	_, err := Parse(strings.NewReader("\x0261 62 63"), false, true)
	require.Error(t, err)
}

func TestCreateDataWireFormat(t *testing.T) {
	rec, err := CreateData(0, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("61 62 63 \r\n"), rec.ToBytestr())
}

func TestCreateAddressWireFormat(t *testing.T) {
	rec, err := CreateAddress(0x1234, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("$A1234,\r\n"), rec.ToBytestr())
}

func TestCreateChecksumWireFormat(t *testing.T) {
	rec, err := CreateChecksum(0x1234)
	require.NoError(t, err)
	assert.Equal(t, []byte("$S1234,\r\n"), rec.ToBytestr())
}

func TestParseChunkDataRecord(t *testing.T) {
	rec, n, err := ParseChunk([]byte("61 62 63\r\n"), 123, 1)
	require.NoError(t, err)
	assert.Equal(t, TagData, rec.tag)
	assert.EqualValues(t, 123, rec.Address())
	assert.Equal(t, []byte("abc"), rec.Data())
	assert.Equal(t, len("61 62 63\r\n"), n)
}

func TestParseChunkAddressRecord(t *testing.T) {
	rec, n, err := ParseChunk([]byte("$A1234,\r\n"), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, TagAddress, rec.tag)
	assert.EqualValues(t, 0x1234, rec.Address())
	assert.Equal(t, len("$A1234,\r\n"), n)
}

func TestUpdateRecordsEmitsAddressOnGap(t *testing.T) {
	f := FromBlocks([]sparsemem.Block{
		{Start: 0, Data: []byte("abc")},
		{Start: 0x1234, Data: []byte("xyz")},
	})
	records, err := f.Records()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, TagData, records[0].RecordTag())
	assert.Equal(t, TagAddress, records[1].RecordTag())
	assert.Equal(t, TagData, records[2].RecordTag())
}

func TestRoundTripMemory(t *testing.T) {
	f := NewFile()
	require.NoError(t, f.MutateMemory(func(m *sparsemem.Memory) {
		m.Write(0, []byte("abc"))
		m.Write(0x1234, []byte("xyz"))
	}))

	var buf bytes.Buffer
	require.NoError(t, f.Serialize(&buf, true))

	f2, err := Parse(&buf, false, true)
	require.NoError(t, err)
	m1, _ := f.Memory()
	m2, err := f2.Memory()
	require.NoError(t, err)
	assert.True(t, m1.Equal(m2))
}

func TestValidateRecordsChecksumMismatch(t *testing.T) {
	data, err := CreateData(123, []byte("abc"))
	require.NoError(t, err)
	cs, err := CreateChecksum(0xFFFF)
	require.NoError(t, err)
	err = ValidateRecords(toRecordSlice(data, cs), ValidateOptions{RequireChecksum: true})
	require.Error(t, err)
}
