package mos

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

func TestCreateDataWireFormat(t *testing.T) {
	rec, err := CreateData(0xDA7A, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte(";03DA7A616263027D\r\n"), rec.ToBytestr())
}

func TestCreateEOFWireFormat(t *testing.T) {
	rec, err := CreateEOF(123)
	require.NoError(t, err)
	assert.Equal(t, []byte(";00007B007B\r\n"), rec.ToBytestr())
}

func TestComputeChecksumMatchesSumOfBytesFormula(t *testing.T) {
	rec, err := CreateData(0xDA7A, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 0x027D, rec.ComputeChecksum())
}

func TestParseLineRoundTrip(t *testing.T) {
	rec, err := ParseLine([]byte(";03DA7A616263027D"), 1)
	require.NoError(t, err)
	assert.Equal(t, TagData, rec.tag)
	assert.EqualValues(t, 0xDA7A, rec.Address())
	assert.Equal(t, []byte("abc"), rec.Data())
}

func TestParseLineRejectsBadChecksum(t *testing.T) {
	_, err := ParseLine([]byte(";03DA7A616263FFFF"), 1)
	require.Error(t, err)
}

func TestNewRejectsSemicolonInBefore(t *testing.T) {
	_, err := New(TagData, 0, []byte("a"), hexrec.Auto(), hexrec.Auto(), []byte("junk;"), nil, hexrec.NoCoords)
	require.Error(t, err)
}

func TestRoundTripThroughParseAndSerialize(t *testing.T) {
	f := FromBlocks([]sparsemem.Block{{Start: 0x10, Data: []byte("abc")}})
	require.NoError(t, f.SetMaxDataLen(8))
	require.NoError(t, f.SetNuls(false))

	var buf bytes.Buffer
	require.NoError(t, f.Serialize(&buf))
	assert.Equal(t, ";0300106162630139\r\n;0000010001\r\n\x17", buf.String())

	f2, err := Parse(&buf, false, true)
	require.NoError(t, err)
	m1, _ := f.Memory()
	m2, err := f2.Memory()
	require.NoError(t, err)
	assert.True(t, m1.Equal(m2))

	records, err := f2.Records()
	require.NoError(t, err)
	last := records[len(records)-1].(*Record)
	assert.Equal(t, TagEOF, last.tag)
}

func TestParseSkipsAllNulLines(t *testing.T) {
	input := ";0300106162630139\r\n\x00\x00\x00\x00\r\n"
	f, err := Parse(strings.NewReader(input), false, false)
	require.NoError(t, err)
	records, err := f.Records()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestParseTruncatesAtETB(t *testing.T) {
	input := ";0300106162630139\r\n;0000010001\r\n\x17garbage after terminator"
	f, err := Parse(strings.NewReader(input), false, true)
	require.NoError(t, err)
	records, err := f.Records()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestValidateRecordsRequiresTerminatorAddressEqualsCount(t *testing.T) {
	data, err := CreateData(0, []byte("a"))
	require.NoError(t, err)
	eof, err := CreateEOF(5)
	require.NoError(t, err)
	err = ValidateRecords(toRecordSlice(data, eof), ValidateOptions{RequireEOF: true})
	require.Error(t, err)
}

func TestValidateRecordsAcceptsCorrectTerminator(t *testing.T) {
	data, err := CreateData(0, []byte("a"))
	require.NoError(t, err)
	eof, err := CreateEOF(1)
	require.NoError(t, err)
	err = ValidateRecords(toRecordSlice(data, eof), ValidateOptions{RequireEOF: true})
	require.NoError(t, err)
}
