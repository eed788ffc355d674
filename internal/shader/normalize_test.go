package shader

import (
	"bytes"
	"strings"
	"testing"

	"gfxprep/internal/source"
)

func normalizeString(t *testing.T, in string, opt Options) Result {
	t.Helper()
	sf, err := source.AddVirtual("test.comp", []byte(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	res, err := Normalize(sf, opt)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return res
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips bom",
			in:   "\xEF\xBB\xBF#version 310 es\nvoid main() {}\n",
			want: "#version 320 es\nvoid main() {}\n",
		},
		{
			name: "crlf and cr",
			in:   "#version 450\r\nlayout(local_size_x = 1) in;\rvoid main() {}\r\n",
			want: "#version 320 es\nlayout(local_size_x = 1) in;\nvoid main() {}\n",
		},
		{
			name: "trailing whitespace trimmed, leading kept",
			in:   "void main() { \t\n\tfloat x = 1.0;  \n}\t\n",
			want: "void main() {\n\tfloat x = 1.0;\n}\n",
		},
		{
			name: "indented version line",
			in:   "   #version 430 core // compute\nvoid main() {}",
			want: "#version 320 es\nvoid main() {}\n",
		},
		{
			name: "no version line is left alone",
			in:   "// header\n#version 450\nvoid main() {}\n",
			want: "// header\n#version 450\nvoid main() {}\n",
		},
		{
			name: "trailing blank lines collapse",
			in:   "void main() {}\n\n  \n\t\n",
			want: "void main() {}\n",
		},
		{
			name: "empty file",
			in:   "",
			want: "\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := normalizeString(t, tt.in, Options{})
			if string(res.Formatted) != tt.want {
				t.Fatalf("got %q, want %q", res.Formatted, tt.want)
			}
		})
	}
}

func TestNormalizeCustomDirective(t *testing.T) {
	res := normalizeString(t, "#version 320 es\nvoid main() {}\n", Options{VersionDirective: "#version 450"})
	if !strings.HasPrefix(string(res.Formatted), "#version 450\n") {
		t.Fatalf("unexpected output %q", res.Formatted)
	}
	if !res.VersionRewritten {
		t.Fatal("expected VersionRewritten")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"\xEF\xBB\xBF#version 310 es  \r\nvoid main() {\r\n\tx = 1; \r\n}\r\n\r\n",
		"no newline at end",
		"#version 320 es\n",
		"\n\n\n",
	}
	for _, in := range inputs {
		first := normalizeString(t, in, Options{})
		second := normalizeString(t, string(first.Formatted), Options{})
		if !bytes.Equal(first.Formatted, second.Formatted) {
			t.Fatalf("not idempotent for %q: %q vs %q", in, first.Formatted, second.Formatted)
		}
		if second.Changed {
			t.Fatalf("second pass reported a change for %q", in)
		}
	}
}

func TestNormalizeReportsTrimmedLines(t *testing.T) {
	res := normalizeString(t, "a \nb\t\nc\n", Options{})
	if res.TrimmedLines != 2 {
		t.Fatalf("TrimmedLines = %d, want 2", res.TrimmedLines)
	}
	if !res.Changed {
		t.Fatal("expected Changed")
	}
}

func TestMatchExtension(t *testing.T) {
	exts := []string{".comp", "glsl"}
	cases := map[string]bool{
		"blur.comp":        true,
		"BLUR.COMP":        true,
		"dir/x.Comp":       true,
		"shade.glsl":       true,
		"shade.frag":       false,
		"compute.comp.bak": false,
	}
	for path, want := range cases {
		if got := MatchExtension(path, exts); got != want {
			t.Errorf("MatchExtension(%q) = %v, want %v", path, got, want)
		}
	}
}
