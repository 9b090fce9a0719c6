package hexcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexlifyUnhexlifyRoundTrip(t *testing.T) {
	data := []byte{0x00, 0x12, 0x34, 0xAB, 0xFF}

	assert.Equal(t, "001234abff", Hexlify(data, 0, false))
	assert.Equal(t, "001234ABFF", Hexlify(data, 0, true))
	assert.Equal(t, "00:12:34:ab:ff", Hexlify(data, ':', false))

	back, err := Unhexlify(Hexlify(data, 0, true), nil)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestUnhexlifyStripsDefaultDeleteSet(t *testing.T) {
	out, err := Unhexlify("61 62.63-64:65\r\n66", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), out)
}

func TestUnhexlifyOddLength(t *testing.T) {
	_, err := Unhexlify("abc", nil)
	require.Error(t, err)
}

func TestUnhexlifyBadDigit(t *testing.T) {
	_, err := Unhexlify("zz", nil)
	require.Error(t, err)
}

func TestParseInt(t *testing.T) {
	cases := map[string]int64{
		"0":       0,
		"42":      42,
		"-42":     -42,
		"+42":     42,
		"0x2A":    42,
		"2Ah":     42,
		"0b101010": 42,
		"052":     42, // octal
		"0o52":    42,
		"4k":      4096,
		"4kb":     4000,
		"4kib":    4096,
		"1m":      1 << 20,
		"1mb":     1_000_000,
	}

	for in, want := range cases {
		got, err := ParseInt(in)
		require.NoErrorf(t, err, "ParseInt(%q)", in)
		assert.Equalf(t, want, got, "ParseInt(%q)", in)
	}
}

func TestParseIntRejectsHexPrefixWithHexSuffix(t *testing.T) {
	_, err := ParseInt("0x10h")
	require.Error(t, err)
}

func TestParseIntRejectsEmpty(t *testing.T) {
	_, err := ParseInt("")
	require.Error(t, err)
	_, err = ParseInt("   ")
	require.Error(t, err)
}

func TestChop(t *testing.T) {
	data := []byte("0123456789abcdef")
	chunks := Chop(data, 4, 0)
	require.Len(t, chunks, 4)
	for _, c := range chunks {
		assert.Len(t, c, 4)
	}

	// Unaligned first window: base address 6, window 4 => first chunk is 2 bytes
	// so the following chunk boundaries land on multiples of 4 from address 0.
	chunks = Chop(data, 4, 6)
	require.NotEmpty(t, chunks)
	assert.Len(t, chunks[0], 2)
}

func TestChopEmpty(t *testing.T) {
	assert.Nil(t, Chop(nil, 4, 0))
}
