// Package hexcodec provides the low-level byte/text conversions shared by
// every hex record format: hex-ASCII encode/decode with optional
// separators, textual integer parsing with base prefixes and scale
// suffixes, and fixed-window chunking of a byte slice.
package hexcodec

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultDeleteSet is the set of byte values Unhexlify strips from its
// input before decoding when the caller passes a nil delete set.
var DefaultDeleteSet = []byte{' ', '\t', '.', '-', ':', '\r', '\n'}

// Hexlify renders b as two hex digits per byte. When sep is non-zero, sep
// is inserted between (not around) each pair of encoded bytes. upper
// selects uppercase digits.
func Hexlify(b []byte, sep byte, upper bool) string {
	if len(b) == 0 {
		return ""
	}

	digits := "0123456789abcdef"
	if upper {
		digits = "0123456789ABCDEF"
	}

	var out strings.Builder
	out.Grow(len(b)*2 + len(b) - 1)
	for i, v := range b {
		if i > 0 && sep != 0 {
			out.WriteByte(sep)
		}
		out.WriteByte(digits[v>>4])
		out.WriteByte(digits[v&0x0F])
	}
	return out.String()
}

// Unhexlify decodes a hex-ASCII string back to bytes. Any byte found in
// del is stripped from s before decoding; a nil del falls back to
// DefaultDeleteSet. An odd number of remaining hex digits, or a digit
// outside [0-9a-fA-F], is a syntax error.
func Unhexlify(s string, del []byte) ([]byte, error) {
	if del == nil {
		del = DefaultDeleteSet
	}

	filtered := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if containsByte(del, c) {
			continue
		}
		filtered = append(filtered, c)
	}

	if len(filtered)%2 != 0 {
		return nil, fmt.Errorf("hexcodec: odd number of hex digits in %q", s)
	}

	out := make([]byte, len(filtered)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexNibble(filtered[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(filtered[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func containsByte(set []byte, b byte) bool {
	for _, v := range set {
		if v == b {
			return true
		}
	}
	return false
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("hexcodec: invalid hex digit %q", c)
	}
}

// binaryScales are power-of-two suffixes (kibi, mebi, ...); decimalScales
// are power-of-ten suffixes. Both accept an optional trailing "b"/"iB".
var binaryScales = map[string]uint{
	"k": 10, "m": 20, "g": 30, "t": 40, "p": 50, "e": 60, "z": 70, "y": 80,
}

var decimalScales = map[string]uint64{
	"k": 1_000,
	"m": 1_000_000,
	"g": 1_000_000_000,
	"t": 1_000_000_000_000,
	"p": 1_000_000_000_000_000,
	"e": 1_000_000_000_000_000_000,
}

// ParseInt parses a signed integer with an optional sign, an optional base
// prefix (0x/0b/0o/0), an optional trailing "h" (hex, in lieu of a 0x
// prefix), and an optional scale suffix drawn from {k,m,g,t,p,e,z,y}
// (power-of-two, e.g. "4k" == 4096) or {kb,mb,...} (power-of-ten, e.g.
// "4kb" == 4000) with an optional "i"/"iB" decoration that is accepted but
// does not change the power-of-two interpretation (so "4kib" == "4k").
// Combining the 0x prefix with the "h" suffix is a syntax error, as is
// any unrecognized suffix or empty mantissa; before a trailing "h" every
// character is read as a hex digit (so "0b1h" is 0xB1).
func ParseInt(s string) (int64, error) {
	orig := s
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, fmt.Errorf("hexcodec: empty integer %q", orig)
	}

	neg := false
	if t[0] == '+' || t[0] == '-' {
		neg = t[0] == '-'
		t = t[1:]
	}
	if t == "" {
		return 0, fmt.Errorf("hexcodec: empty integer %q", orig)
	}

	lower := strings.ToLower(t)

	// Trailing "h" is a base-16 suffix form; it cannot combine with a 0x
	// prefix.
	hSuffix := false
	if strings.HasSuffix(lower, "h") && !strings.HasPrefix(lower, "0x") {
		hSuffix = true
		t = t[:len(t)-1]
		lower = lower[:len(lower)-1]
		if t == "" {
			return 0, fmt.Errorf("hexcodec: empty integer %q", orig)
		}
	}

	mantissa, scaleSuffix := splitScaleSuffix(t, hSuffix)

	base := 10
	digits := mantissa
	switch {
	case hSuffix:
		base = 16
	case strings.HasPrefix(strings.ToLower(mantissa), "0x"):
		base = 16
		digits = mantissa[2:]
	case strings.HasPrefix(strings.ToLower(mantissa), "0b"):
		base = 2
		digits = mantissa[2:]
	case strings.HasPrefix(strings.ToLower(mantissa), "0o"):
		base = 8
		digits = mantissa[2:]
	case len(mantissa) > 1 && mantissa[0] == '0':
		base = 8
		digits = mantissa[1:]
	}

	if digits == "" {
		return 0, fmt.Errorf("hexcodec: empty integer %q", orig)
	}

	value, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return 0, fmt.Errorf("hexcodec: invalid integer %q: %w", orig, err)
	}

	result := int64(value)
	if scaleSuffix != "" {
		scaled, err := applyScale(value, scaleSuffix, base)
		if err != nil {
			return 0, fmt.Errorf("hexcodec: invalid integer %q: %w", orig, err)
		}
		result = int64(scaled)
	}

	if neg {
		result = -result
	}
	return result, nil
}

// splitScaleSuffix peels a trailing scale suffix (k/m/g/t/p/e/z/y, each
// optionally followed by "i"/"ib"/"b") off t. When hSuffix is true, the
// mantissa is hex digits and a bare trailing letter would be ambiguous
// with a hex digit, so no scale suffix is recognized in that mode — the
// "h"-suffixed and scaled forms are mutually exclusive, matching the
// Python source this spec was distilled from.
func splitScaleSuffix(t string, hSuffix bool) (mantissa, suffix string) {
	if hSuffix {
		return t, ""
	}

	lower := strings.ToLower(t)
	for _, letter := range []string{"k", "m", "g", "t", "p", "e", "z", "y"} {
		idx := strings.LastIndex(lower, letter)
		if idx <= 0 {
			continue
		}
		rest := lower[idx:]
		switch rest {
		case letter, letter + "b", letter + "i", letter + "ib":
			return t[:idx], rest
		}
	}
	return t, ""
}

func applyScale(value uint64, suffix string, base int) (uint64, error) {
	letter := suffix[:1]
	decimal := strings.HasSuffix(suffix, "b") && !strings.HasSuffix(suffix, "ib")

	if decimal {
		scale, ok := decimalScales[letter]
		if !ok {
			return 0, fmt.Errorf("unknown scale suffix %q", suffix)
		}
		return value * scale, nil
	}

	shift, ok := binaryScales[letter]
	if !ok {
		return 0, fmt.Errorf("unknown scale suffix %q", suffix)
	}
	return value << shift, nil
}

// Chop splits b into consecutive windows of at most window bytes. If
// alignBase is greater than zero, the first window is truncated so that
// every following window boundary lands on a multiple of window in the
// absolute address space starting at alignBase (i.e. the first window has
// length `window - (alignBase % window)`, unless that remainder is zero).
func Chop(b []byte, window int, alignBase uint64) [][]byte {
	if window <= 0 {
		if len(b) == 0 {
			return nil
		}
		return [][]byte{b}
	}

	var out [][]byte
	first := window
	if alignBase > 0 {
		rem := int(alignBase % uint64(window))
		if rem != 0 {
			first = window - rem
			if first > len(b) {
				first = len(b)
			}
		}
	}

	i := 0
	if first > 0 && first < window {
		end := first
		if end > len(b) {
			end = len(b)
		}
		out = append(out, b[:end])
		i = end
	}

	for i < len(b) {
		end := i + window
		if end > len(b) {
			end = len(b)
		}
		out = append(out, b[i:end])
		i = end
	}
	return out
}
