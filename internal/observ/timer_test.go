package observ

import (
	"errors"
	"strings"
	"testing"
)

func TestTimerTrack(t *testing.T) {
	tm := NewTimer()
	if err := tm.Track("decode", func() error { return nil }); err != nil {
		t.Fatalf("Track: %v", err)
	}
	boom := errors.New("boom")
	if err := tm.Track("encode", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Track must return fn error, got %v", err)
	}

	report := tm.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("phases = %d", len(report.Phases))
	}
	if report.Phases[1].Note != "boom" {
		t.Fatalf("note = %q", report.Phases[1].Note)
	}
	summary := tm.Summary()
	if !strings.Contains(summary, "decode") || !strings.Contains(summary, "total") {
		t.Fatalf("unexpected summary:\n%s", summary)
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	idx := tm.Begin("x")
	tm.End(idx, "")
	if err := tm.Track("y", func() error { return nil }); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if len(tm.Report().Phases) != 0 {
		t.Fatal("nil timer must report nothing")
	}
}
