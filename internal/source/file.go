package source

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotUTF8 is returned when a file's content is not valid UTF-8.
var ErrNotUTF8 = errors.New("not UTF-8")

// Load reads a file from disk and decodes it with Decode.
func Load(path string) (*File, error) {
	// #nosec G304 -- path is provided by the caller
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}
	f, err := Decode(path, raw)
	if err != nil {
		return nil, err
	}
	f.Mode = mode
	return f, nil
}

// Decode strips a UTF-8 BOM, validates the remaining bytes as UTF-8 and
// normalizes CRLF and lone CR to LF. Invalid input yields ErrNotUTF8.
func Decode(path string, raw []byte) (*File, error) {
	content, hadBOM := removeBOM(raw)
	if err := validateUTF8(content); err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotUTF8)
	}
	content, hadCR := normalizeNewlines(content)

	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCR {
		flags |= FileNormalizedNewlines
	}
	return &File{
		Path:    path,
		Raw:     raw,
		Content: content,
		Hash:    sha256.Sum256(raw),
		Mode:    0o644,
		Flags:   flags,
	}, nil
}

// AddVirtual decodes in-memory content with the FileVirtual flag.
func AddVirtual(name string, content []byte) (*File, error) {
	f, err := Decode(name, content)
	if err != nil {
		return nil, err
	}
	f.Flags |= FileVirtual
	return f, nil
}

// Text returns the decoded content as a string.
func (f *File) Text() string {
	return string(f.Content)
}

// Lines splits the decoded content on LF. A trailing LF yields a final
// empty element, the same way strings.Split does.
func (f *File) Lines() []string {
	return strings.Split(string(f.Content), "\n")
}
