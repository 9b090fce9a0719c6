package titxt

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

func TestRoundTripWireFormat(t *testing.T) {
	f := FromBlocks([]sparsemem.Block{{Start: 0x1C8, Data: []byte("abc")}})
	require.NoError(t, f.SetMaxDataLen(8))

	var buf bytes.Buffer
	require.NoError(t, f.Serialize(&buf))
	assert.Equal(t, "@01C8\r\n61 62 63\r\nq\r\n", buf.String())

	f2, err := Parse(&buf, false, true)
	require.NoError(t, err)
	m1, _ := f.Memory()
	m2, err := f2.Memory()
	require.NoError(t, err)
	assert.True(t, m1.Equal(m2))
}

func TestCreateAddressWireFormat(t *testing.T) {
	rec, err := CreateAddress(0x1234, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("@1234\r\n"), rec.ToBytestr())
}

func TestCreateDataWireFormat(t *testing.T) {
	rec, err := CreateData(0, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("61 62 63\r\n"), rec.ToBytestr())
}

func TestCreateEOFWireFormat(t *testing.T) {
	rec, err := CreateEOF()
	require.NoError(t, err)
	assert.Equal(t, []byte("q\r\n"), rec.ToBytestr())
}

func TestParseLineAddress(t *testing.T) {
	rec, err := ParseLine([]byte("@ABCD"), 1)
	require.NoError(t, err)
	assert.Equal(t, TagAddress, rec.tag)
	assert.EqualValues(t, 0xABCD, rec.Address())
}

func TestParseLineRejectsJunk(t *testing.T) {
	_, err := ParseLine([]byte(":ABCD"), 1)
	require.Error(t, err)
}

func TestParseCursorTracksDataBetweenAddressRecords(t *testing.T) {
	input := "@0010\r\n61 62\r\n@0020\r\n63\r\nq\r\n"
	f, err := Parse(strings.NewReader(input), false, true)
	require.NoError(t, err)

	m, err := f.Memory()
	require.NoError(t, err)

	want := sparsemem.FromBlocks([]sparsemem.Block{
		{Start: 0x10, Data: []byte("ab")},
		{Start: 0x20, Data: []byte("c")},
	})
	assert.True(t, want.Equal(m))
}

func TestValidateRecordsRequiresEOFLast(t *testing.T) {
	rec, err := CreateData(0, []byte("a"))
	require.NoError(t, err)
	err = ValidateRecords(toRecordSlice(rec), ValidateOptions{})
	require.Error(t, err)
}

func TestValidateRecordsRejectsOddAddress(t *testing.T) {
	addr, err := CreateAddress(3, 4)
	require.NoError(t, err)
	eof, err := CreateEOF()
	require.NoError(t, err)
	err = ValidateRecords(toRecordSlice(addr, eof), ValidateOptions{RequireAddressEven: true})
	require.Error(t, err)
}
