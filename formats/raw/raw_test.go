package raw

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

func TestParseChopsIntoFixedChunks(t *testing.T) {
	f, err := Parse(strings.NewReader("Hello, World!"), 1000, 5)
	require.NoError(t, err)

	records, err := f.Records()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.EqualValues(t, 1000, records[0].Address())
	assert.Equal(t, []byte("Hello"), records[0].Data())
	assert.EqualValues(t, 1005, records[1].Address())
	assert.Equal(t, []byte(", Wor"), records[1].Data())
	assert.EqualValues(t, 1010, records[2].Address())
	assert.Equal(t, []byte("ld!"), records[2].Data())
}

func TestParseUnlimitedReadsWholeStream(t *testing.T) {
	f, err := Parse(strings.NewReader("abc"), 0, 0)
	require.NoError(t, err)

	records, err := f.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("abc"), records[0].Data())
}

func TestUpdateRecordsRoundTrip(t *testing.T) {
	f := FromBlocks([]sparsemem.Block{{Start: 123, Data: []byte("abc")}})
	require.NoError(t, f.SetMaxDataLen(16))

	var buf bytes.Buffer
	require.NoError(t, f.Serialize(&buf))
	assert.Equal(t, "abc", buf.String())

	records, err := f.Records()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestValidateRecordsRequiresZeroStart(t *testing.T) {
	rec := CreateData(123, []byte("abc"))
	err := ValidateRecords(toRecordSlice(rec), ValidateOptions{RequireDataStart: true})
	require.Error(t, err)
}

func TestValidateRecordsAcceptsContiguousOrderedData(t *testing.T) {
	a := CreateData(0, []byte("ab"))
	b := CreateData(2, []byte("cd"))
	err := ValidateRecords(toRecordSlice(a, b), ValidateOptions{RequireDataStart: true, RequireDataContiguity: true, RequireDataOrdered: true})
	require.NoError(t, err)
}

func TestValidateRecordsRejectsGap(t *testing.T) {
	a := CreateData(0, []byte("ab"))
	b := CreateData(5, []byte("cd"))
	err := ValidateRecords(toRecordSlice(a, b), ValidateOptions{RequireDataContiguity: true})
	require.Error(t, err)
}

func TestToBytestrIsPlainData(t *testing.T) {
	rec := CreateData(0, []byte("xyz"))
	assert.Equal(t, []byte("xyz"), rec.ToBytestr())
}
