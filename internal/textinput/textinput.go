// Package textinput loads source text files and derives the canonical names
// used for their workspaces and output directories.
package textinput

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"voicebatch/internal/textutil"
)

// MaxBytes bounds the size of a single input file.
const MaxBytes = 16 << 20

// ErrEmpty reports a file with no text after trimming.
var ErrEmpty = errors.New("input text is empty")

// Read returns the text of path. UTF-8 and UTF-16 files with a byte order mark
// are decoded; files without one are treated as UTF-8, with invalid bytes
// replaced by U+FFFD.
func Read(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	reader := transform.NewReader(io.LimitReader(file, MaxBytes+1), decoder)
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	if len(data) > MaxBytes {
		return "", fmt.Errorf("%s exceeds %d bytes", path, MaxBytes)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return text, nil
}

// BaseName returns the file name of path without its extension, made safe for
// use as a directory name.
func BaseName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = textutil.SanitizeFileName(name)
	name = strings.Trim(name, ".")
	if name == "" {
		return "untitled"
	}
	return name
}

// IsTextFile reports whether path has a .txt extension, ignoring case.
func IsTextFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".txt")
}
