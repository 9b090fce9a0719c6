package avr

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

func TestUpdateRecordsWordAlignment(t *testing.T) {
	f := FromBlocks([]sparsemem.Block{{Start: 124, Data: []byte("abcd")}})

	var buf bytes.Buffer
	require.NoError(t, f.Serialize(&buf))
	assert.Equal(t, "00003E:6162\r\n00003F:6364\r\n", buf.String())

	records, err := f.Records()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestUpdateRecordsRejectsOddStart(t *testing.T) {
	f := FromBlocks([]sparsemem.Block{{Start: 125, Data: []byte("ab")}})
	_, err := f.Records()
	require.Error(t, err)
}

func TestCreateDataWireFormat(t *testing.T) {
	rec, err := CreateData(0x3E, []byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, []byte("00003E:6162\r\n"), rec.ToBytestr())
}

func TestCreateDataRejectsWrongDataSize(t *testing.T) {
	_, err := CreateData(0, []byte("abc"))
	require.Error(t, err)
}

func TestParseLineRoundTrip(t *testing.T) {
	rec, err := ParseLine([]byte("00003E:6162"), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0x3E, rec.Address())
	assert.Equal(t, []byte("ab"), rec.Data())
}

func TestParseLineRejectsDoubleColon(t *testing.T) {
	_, err := ParseLine([]byte("000080::4865"), 1)
	require.Error(t, err)
}

func TestRoundTripMemory(t *testing.T) {
	input := "00003E:6162\r\n00003F:6364\r\n"
	f, err := Parse(bytes.NewReader([]byte(input)), false)
	require.NoError(t, err)

	m, err := f.Memory()
	require.NoError(t, err)

	want := sparsemem.FromBytes(124, []byte("abcd"))
	assert.True(t, want.Equal(m))
}

func TestValidateRecordsRejectsUnorderedData(t *testing.T) {
	a, err := CreateData(62, []byte("ab"))
	require.NoError(t, err)
	b, err := CreateData(61, []byte("cd"))
	require.NoError(t, err)
	err = ValidateRecords(toRecordSlice(a, b), ValidateOptions{RequireDataOrdered: true})
	require.Error(t, err)
}
