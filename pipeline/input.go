package pipeline

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const defaultPattern = "RECORD*.txt"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// source is one resolved log file. explicit marks paths named directly.
type source struct {
	path     string
	explicit bool
}

// resolveInputs expands directories with pattern and keeps explicit files.
// Directory matches are sorted; duplicates are dropped.
func resolveInputs(inputs []string, pattern string) ([]source, error) {
	if pattern == "" {
		pattern = defaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	seen := make(map[string]bool)
	var out []source
	add := func(path string, explicit bool) {
		clean := filepath.Clean(path)
		if seen[clean] {
			return
		}
		seen[clean] = true
		out = append(out, source{path: clean, explicit: explicit})
	}

	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in, err)
		}
		if !info.IsDir() {
			add(in, true)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(in, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", in, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && !fi.IsDir() {
				add(m, false)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: nothing matched %q", ErrNoInputs, pattern)
	}
	return out, nil
}

// decodeText converts raw log bytes to NFC-normalised UTF-8. A byte order
// mark is stripped. "auto" keeps valid UTF-8 and otherwise decodes EUC-KR.
func decodeText(data []byte, enc string) (string, error) {
	var fallback transform.Transformer
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "auto":
		if utf8.Valid(bytes.TrimPrefix(data, utf8BOM)) {
			fallback = encoding.Nop.NewDecoder()
		} else {
			fallback = korean.EUCKR.NewDecoder()
		}
	case "utf-8", "utf8":
		fallback = unicode.UTF8.NewDecoder()
	case "euc-kr", "cp949":
		fallback = korean.EUCKR.NewDecoder()
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(fallback), data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", enc, err)
	}
	return norm.NFC.String(string(out)), nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
