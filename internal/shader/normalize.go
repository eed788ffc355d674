package shader

import (
	"errors"
	"strings"
	"unicode"

	"gfxprep/internal/source"
)

const (
	// DefaultVersionDirective is written over an existing first-line #version.
	DefaultVersionDirective = "#version 320 es"
	// VersionMarker starts a version directive line.
	VersionMarker = "#version"
)

// DefaultExtensions lists the file extensions treated as shader sources.
var DefaultExtensions = []string{".comp"}

// Options configures Normalize.
type Options struct {
	VersionDirective string
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.VersionDirective) == "" {
		o.VersionDirective = DefaultVersionDirective
	}
	return o
}

// Result describes one normalization pass.
type Result struct {
	Formatted        []byte
	Changed          bool
	VersionRewritten bool
	TrimmedLines     int
}

// Normalize rewrites decoded shader text into canonical form: the first line
// becomes opt.VersionDirective when it already declares a version, trailing
// spaces and tabs are removed from every line, and the text ends in exactly
// one LF. Files without a version line are not given one.
func Normalize(sf *source.File, opt Options) (Result, error) {
	if sf == nil {
		return Result{}, errors.New("shader: nil source file")
	}
	opt = opt.withDefaults()

	lines := sf.Lines()
	res := Result{}
	if len(lines) > 0 && isVersionLine(lines[0]) {
		res.VersionRewritten = lines[0] != opt.VersionDirective
		lines[0] = opt.VersionDirective
	}
	for i, ln := range lines {
		trimmed := strings.TrimRight(ln, " \t")
		if len(trimmed) != len(ln) {
			res.TrimmedLines++
			lines[i] = trimmed
		}
	}

	text := strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
	res.Formatted = []byte(text)
	res.Changed = string(sf.Raw) != text
	return res, nil
}

func isVersionLine(line string) bool {
	return strings.HasPrefix(strings.TrimLeftFunc(line, unicode.IsSpace), VersionMarker)
}

// MatchExtension reports whether path ends with one of exts, ignoring case.
func MatchExtension(path string, exts []string) bool {
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
