package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LevelOff, false},
		{"off", LevelOff, false},
		{"PHASE", LevelPhase, false},
		{" file ", LevelFile, false},
		{"debug", LevelOff, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestLevelShouldEmit(t *testing.T) {
	if LevelOff.ShouldEmit(ScopeDriver) {
		t.Fatal("off must not emit")
	}
	if !LevelPhase.ShouldEmit(ScopePhase) || LevelPhase.ShouldEmit(ScopeFile) {
		t.Fatal("phase level should stop at phase scope")
	}
	if !LevelFile.ShouldEmit(ScopeFile) {
		t.Fatal("file level should emit file scope")
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)

	root := Begin(tr, ScopeDriver, "shaders", 0)
	child := Begin(tr, ScopePhase, "normalize", root.ID())
	Begin(tr, ScopeFile, "a.comp", child.ID()).End("dropped")
	child.WithExtra("files", "2").WithExtra("cached", "0").End("")
	root.End("ok")

	out := buf.String()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 events, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "→ shaders") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[2], "  ← normalize {cached=0, files=2}") {
		t.Fatalf("unexpected end line %q", lines[2])
	}
	if !strings.Contains(lines[3], "← shaders (ok)") {
		t.Fatalf("unexpected last line %q", lines[3])
	}
	if strings.Contains(out, "a.comp") {
		t.Fatal("file scope must be filtered at phase level")
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelFile, FormatNDJSON)
	Point(tr, ScopeFile, "skip", "not UTF-8", 7)

	var ev jsonEvent
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev); err != nil {
		t.Fatalf("invalid ndjson %q: %v", buf.String(), err)
	}
	if ev.Kind != "point" || ev.Scope != "file" || ev.ParentID != 7 || ev.Detail != "not UTF-8" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errors.New("disk full")
}

func TestStreamTracerKeepsFirstError(t *testing.T) {
	w := &failingWriter{}
	tr := NewStreamTracer(w, LevelFile, FormatText)
	Point(tr, ScopeDriver, "a", "", 0)
	Point(tr, ScopeDriver, "b", "", 0)
	if w.n != 1 {
		t.Fatalf("writes after a failure should be dropped, got %d", w.n)
	}
	if err := tr.Close(); err == nil || err.Error() != "disk full" {
		t.Fatalf("Close() = %v, want disk full", err)
	}
}

func TestContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatal("expected Nop tracer")
	}
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	ctx := WithTracer(context.Background(), tr)
	if FromContext(ctx) != Tracer(tr) {
		t.Fatal("tracer not propagated")
	}
	if sp := Begin(Nop, ScopeDriver, "x", 0); sp.End("") != 0 || sp.ID() != 0 {
		t.Fatal("nop span should be inert")
	}
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff, OutputPath: "/nonexistent/dir/trace"})
	if err != nil || tr != Nop {
		t.Fatalf("New(off) = %v, %v", tr, err)
	}
}

func TestDetectFormat(t *testing.T) {
	if DetectFormat("run.NDJSON") != FormatNDJSON || DetectFormat("run.log") != FormatText {
		t.Fatal("unexpected format detection")
	}
}
