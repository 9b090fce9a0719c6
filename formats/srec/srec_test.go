package srec

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

func TestHeaderDataCountStartWireFormat(t *testing.T) {
	f := FromBytes(0x12345678, []byte("abc"))
	require.NoError(t, f.SetHeader([]byte("HDR\x00")))
	require.NoError(t, f.SetStartAddr(0x89ABCDEF))
	require.NoError(t, f.SetMaxDataLen(16))

	var buf bytes.Buffer
	require.NoError(t, f.Serialize(&buf))

	want := "S0070000484452001A\r\n" +
		"S30812345678616263BD\r\n" +
		"S5030001FB\r\n" +
		"S70589ABCDEF0A\r\n"
	assert.Equal(t, want, buf.String())
}

func TestChecksumMatchesTeacherAlgorithm(t *testing.T) {
	rec, err := CreateData(0x1234, []byte("abc"))
	require.NoError(t, err)
	cs, ok := rec.Checksum()
	require.True(t, ok)
	assert.Equal(t, rec.ComputeChecksum(), cs)
}

func TestParseLineRejectsBadChecksum(t *testing.T) {
	_, err := ParseLine([]byte("S5030001FA"), 1)
	require.Error(t, err)
}

func TestParseLineRoundTrip(t *testing.T) {
	line := []byte("S30812345678616263BD")
	rec, err := ParseLine(line, 1)
	require.NoError(t, err)
	assert.Equal(t, TagData32, rec.tag)
	assert.EqualValues(t, 0x12345678, rec.Address())
	assert.Equal(t, []byte("abc"), rec.Data())
}

func TestRoundTripMemory(t *testing.T) {
	f := NewFile()
	require.NoError(t, f.MutateMemory(func(m *sparsemem.Memory) { m.Write(0x2000, []byte("loopback data")) }))

	var buf bytes.Buffer
	require.NoError(t, f.Serialize(&buf))

	f2, err := Parse(&buf, false, true)
	require.NoError(t, err)
	m1, _ := f.Memory()
	m2, err := f2.Memory()
	require.NoError(t, err)
	assert.True(t, m1.Equal(m2))
}

func TestUpdateRecordsDefaultsToCountAndStart(t *testing.T) {
	f := FromMemory(sparsemem.New())

	records, err := f.Records()
	require.NoError(t, err)

	var sawCount, sawStart bool
	for _, rec := range records {
		sr, ok := rec.(*Record)
		require.True(t, ok)
		if sr.tag.IsCount() {
			sawCount = true
		}
		if sr.tag.IsStart() {
			sawStart = true
			assert.EqualValues(t, 0, sr.Address())
		}
	}
	assert.True(t, sawCount, "expected a count record even with no data records")
	assert.True(t, sawStart, "expected a start record even with no data records")
}

func TestValidateRecordsRejectsHeaderAfterData(t *testing.T) {
	data, err := CreateData(0, []byte("x"))
	require.NoError(t, err)
	hdr, err := CreateHeader([]byte("H"))
	require.NoError(t, err)
	err = ValidateRecords(toRecordSlice(data, hdr), ValidateOptions{})
	require.Error(t, err)
}

func TestValidateRecordsRequiresStartLast(t *testing.T) {
	start, err := CreateStart(0x1000)
	require.NoError(t, err)
	data, err := CreateData(0, []byte("x"))
	require.NoError(t, err)
	err = ValidateRecords(toRecordSlice(start, data), ValidateOptions{})
	require.Error(t, err)
}

func TestApplyRecordsCapturesMeta(t *testing.T) {
	hdr, err := CreateHeader([]byte("HDR"))
	require.NoError(t, err)
	data, err := CreateData(0x100, []byte("xyz"))
	require.NoError(t, err)
	count, err := CreateCount(1)
	require.NoError(t, err)
	start, err := CreateStart(0x200)
	require.NoError(t, err)

	f := FromRecords(toRecordSlice(hdr, data, count, start), 16)
	_, err = f.Memory()
	require.NoError(t, err)

	meta := f.Meta()
	assert.Equal(t, []byte("HDR"), meta.Header)
	assert.EqualValues(t, 0x200, meta.StartAddr)
}
