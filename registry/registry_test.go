package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexkit/hexkit/formats/ihex"
	"github.com/hexkit/hexkit/sparsemem"
)

func TestGuessFormatByExtension(t *testing.T) {
	r := NewRegistry()

	name, ok := r.GuessFormat("firmware.hex")
	require.True(t, ok)
	assert.Equal(t, "ihex", name)

	name, ok = r.GuessFormat("firmware.rom")
	require.True(t, ok)
	assert.Equal(t, "avr", name)

	_, ok = r.GuessFormat("firmware.unknown")
	assert.False(t, ok)
}

func TestLookupKnownFormats(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"ihex", "srec", "xtek", "asciihex", "titxt", "mos", "avr", "raw"} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, "expected %q to be registered", name)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "in.hex")
	dstPath := filepath.Join(dir, "out.srec")

	f := ihex.FromMemory(sparsemem.FromBytes(0, []byte("abc")))
	out, err := os.Create(srcPath)
	require.NoError(t, err)
	require.NoError(t, f.Serialize(out))
	require.NoError(t, out.Close())

	r := NewRegistry()
	require.NoError(t, r.Convert(srcPath, dstPath, "", ""))

	m, err := r.Load(dstPath, "srec")
	require.NoError(t, err)
	want := sparsemem.FromBytes(0, []byte("abc"))
	assert.True(t, want.Equal(m))
}

func TestMergeLaterSourceOverwrites(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.hex")
	bPath := filepath.Join(dir, "b.hex")
	dstPath := filepath.Join(dir, "merged.hex")

	fa := ihex.FromMemory(sparsemem.FromBytes(0, []byte("aaaa")))
	outA, err := os.Create(aPath)
	require.NoError(t, err)
	require.NoError(t, fa.Serialize(outA))
	require.NoError(t, outA.Close())

	fb := ihex.FromMemory(sparsemem.FromBytes(2, []byte("bb")))
	outB, err := os.Create(bPath)
	require.NoError(t, err)
	require.NoError(t, fb.Serialize(outB))
	require.NoError(t, outB.Close())

	r := NewRegistry()
	require.NoError(t, r.Merge([]string{aPath, bPath}, dstPath, nil, ""))

	m, err := r.Load(dstPath, "ihex")
	require.NoError(t, err)
	want := sparsemem.FromBytes(0, []byte("aabb"))
	assert.True(t, want.Equal(m))
}
