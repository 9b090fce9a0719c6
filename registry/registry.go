// Package registry binds the eight format packages together behind a
// short lowercase name, and provides the library's top-level
// load/convert/merge entry points.
//
// Grounded on the teacher's hexio.go dispatch (the single place that
// knows about both intel and srec), generalized to an explicit
// constructor rather than a module-level dict populated at import
// time: NewRegistry builds an immutable value every call, so there is
// no shared mutable global to race on or monkey-patch.
package registry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hexkit/hexkit/formats/asciihex"
	"github.com/hexkit/hexkit/formats/avr"
	"github.com/hexkit/hexkit/formats/ihex"
	"github.com/hexkit/hexkit/formats/mos"
	"github.com/hexkit/hexkit/formats/raw"
	"github.com/hexkit/hexkit/formats/srec"
	"github.com/hexkit/hexkit/formats/titxt"
	"github.com/hexkit/hexkit/formats/xtek"
	"github.com/hexkit/hexkit/sparsemem"
)

// Entry describes one registered format: its canonical name, the file
// extensions that suggest it, and the load/save adapters that bridge
// its format-specific File type to a plain sparsemem.Memory.
type Entry struct {
	Name       string
	Extensions []string
	Load       func(r io.Reader) (*sparsemem.Memory, error)
	Save       func(w io.Writer, m *sparsemem.Memory) error
}

// Registry is an immutable, ordered collection of Entry values. Lookup
// by name is a map; extension guessing walks order to make the result
// deterministic when two formats share an extension.
type Registry struct {
	byName map[string]*Entry
	order  []*Entry
}

// NewRegistry builds a Registry holding every format hexkit ships.
// The result is never mutated after construction; callers needing a
// different entry set build their own Registry by hand.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*Entry)}

	r.add(Entry{
		Name:       "ihex",
		Extensions: []string{".hex", ".ihex", ".ihx", ".mcs", ".a43", ".a90"},
		Load: func(src io.Reader) (*sparsemem.Memory, error) {
			f, err := ihex.Parse(src, false, true)
			if err != nil {
				return nil, err
			}
			return f.Memory()
		},
		Save: func(w io.Writer, m *sparsemem.Memory) error {
			return ihex.FromMemory(m).Serialize(w)
		},
	})

	r.add(Entry{
		Name:       "srec",
		Extensions: []string{".srec", ".s19", ".s28", ".s37", ".mot", ".mxt"},
		Load: func(src io.Reader) (*sparsemem.Memory, error) {
			f, err := srec.Parse(src, false, true)
			if err != nil {
				return nil, err
			}
			return f.Memory()
		},
		Save: func(w io.Writer, m *sparsemem.Memory) error {
			return srec.FromMemory(m).Serialize(w)
		},
	})

	r.add(Entry{
		Name:       "xtek",
		Extensions: []string{".xtek", ".tek"},
		Load: func(src io.Reader) (*sparsemem.Memory, error) {
			f, err := xtek.Parse(src, false, true)
			if err != nil {
				return nil, err
			}
			return f.Memory()
		},
		Save: func(w io.Writer, m *sparsemem.Memory) error {
			return xtek.FromMemory(m).Serialize(w)
		},
	})

	r.add(Entry{
		Name:       "asciihex",
		Extensions: []string{".ascii", ".asciihex"},
		Load: func(src io.Reader) (*sparsemem.Memory, error) {
			f, err := asciihex.Parse(src, false, true)
			if err != nil {
				return nil, err
			}
			return f.Memory()
		},
		Save: func(w io.Writer, m *sparsemem.Memory) error {
			return asciihex.FromMemory(m).Serialize(w, true)
		},
	})

	r.add(Entry{
		Name:       "titxt",
		Extensions: []string{".txt"},
		Load: func(src io.Reader) (*sparsemem.Memory, error) {
			f, err := titxt.Parse(src, false, true)
			if err != nil {
				return nil, err
			}
			return f.Memory()
		},
		Save: func(w io.Writer, m *sparsemem.Memory) error {
			return titxt.FromMemory(m).Serialize(w)
		},
	})

	r.add(Entry{
		Name:       "mos",
		Extensions: []string{".mos"},
		Load: func(src io.Reader) (*sparsemem.Memory, error) {
			f, err := mos.Parse(src, false, true)
			if err != nil {
				return nil, err
			}
			return f.Memory()
		},
		Save: func(w io.Writer, m *sparsemem.Memory) error {
			return mos.FromMemory(m).Serialize(w)
		},
	})

	r.add(Entry{
		Name:       "avr",
		Extensions: []string{".rom"},
		Load: func(src io.Reader) (*sparsemem.Memory, error) {
			f, err := avr.Parse(src, false)
			if err != nil {
				return nil, err
			}
			return f.Memory()
		},
		Save: func(w io.Writer, m *sparsemem.Memory) error {
			return avr.FromMemory(m).Serialize(w)
		},
	})

	r.add(Entry{
		Name:       "raw",
		Extensions: []string{".bin", ".dat", ".eep", ".raw"},
		Load: func(src io.Reader) (*sparsemem.Memory, error) {
			f, err := raw.Parse(src, 0, 0)
			if err != nil {
				return nil, err
			}
			return f.Memory()
		},
		Save: func(w io.Writer, m *sparsemem.Memory) error {
			return raw.FromMemory(m).Serialize(w)
		},
	})

	return r
}

func (r *Registry) add(e Entry) {
	entry := e
	r.byName[entry.Name] = &entry
	r.order = append(r.order, &entry)
}

// Lookup returns the named entry, if registered.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	e, ok := r.byName[strings.ToLower(name)]
	return e, ok
}

// GuessFormat consults every entry's declared extensions, in
// registration order, and returns the first format whose extension
// list contains path's extension.
func (r *Registry) GuessFormat(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", false
	}
	for _, e := range r.order {
		for _, candidate := range e.Extensions {
			if candidate == ext {
				return e.Name, true
			}
		}
	}
	return "", false
}

func openSource(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func createDest(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Load reads source (a path, or "-" for stdin) as format, guessing the
// format from the path's extension when format is empty.
func (r *Registry) Load(source, format string) (*sparsemem.Memory, error) {
	if format == "" {
		guessed, ok := r.GuessFormat(source)
		if !ok {
			return nil, fmt.Errorf("registry: cannot guess format for %q", source)
		}
		format = guessed
	}
	entry, ok := r.Lookup(format)
	if !ok {
		return nil, fmt.Errorf("registry: unknown format %q", format)
	}

	rc, err := openSource(source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return entry.Load(rc)
}

// Save writes m to dest (a path, or "-" for stdout) as format.
func (r *Registry) Save(dest, format string, m *sparsemem.Memory) error {
	entry, ok := r.Lookup(format)
	if !ok {
		return fmt.Errorf("registry: unknown format %q", format)
	}

	wc, err := createDest(dest)
	if err != nil {
		return err
	}
	defer wc.Close()

	return entry.Save(wc, m)
}

// Convert loads srcPath (guessing srcFormat when empty) and saves it
// to dstPath as dstFormat (guessing dstFormat from dstPath when
// empty).
func (r *Registry) Convert(srcPath, dstPath, srcFormat, dstFormat string) error {
	m, err := r.Load(srcPath, srcFormat)
	if err != nil {
		return err
	}
	if dstFormat == "" {
		guessed, ok := r.GuessFormat(dstPath)
		if !ok {
			return fmt.Errorf("registry: cannot guess format for %q", dstPath)
		}
		dstFormat = guessed
	}
	return r.Save(dstPath, dstFormat, m)
}

// Merge loads every source in sources (guessing each one's format from
// srcFormats, positionally, when that entry is empty), writing each
// loaded memory onto a shared accumulator in order — later sources
// overwrite earlier ones at overlapping addresses — then saves the
// result to dst as dstFormat (guessed from dst when empty).
func (r *Registry) Merge(sources []string, dst string, srcFormats []string, dstFormat string) error {
	acc := sparsemem.New()

	for i, src := range sources {
		format := ""
		if i < len(srcFormats) {
			format = srcFormats[i]
		}
		m, err := r.Load(src, format)
		if err != nil {
			return err
		}
		for _, block := range m.Blocks() {
			acc.Write(block.Start, block.Data)
		}
	}

	if dstFormat == "" {
		guessed, ok := r.GuessFormat(dst)
		if !ok {
			return fmt.Errorf("registry: cannot guess format for %q", dst)
		}
		dstFormat = guessed
	}

	return r.Save(dst, dstFormat, acc)
}
