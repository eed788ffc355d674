package depth

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gfxprep/internal/exr"
)

func TestGrayKnownRange(t *testing.T) {
	m, err := New(4, 1, []float32{1, 2, 3, 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g := m.Gray(DefaultEpsilon)
	// (v-1)/4*255 truncated: 0, 63.75, 127.5, 255
	want := []uint8{0, 63, 127, 255}
	for x, w := range want {
		if got := g.GrayAt(x, 0).Y; got != w {
			t.Fatalf("pixel %d = %d, want %d", x, got, w)
		}
	}
}

func TestGrayConstantImageIsBlack(t *testing.T) {
	pix := make([]float32, 6)
	for i := range pix {
		pix[i] = 7.5
	}
	m, _ := New(3, 2, pix)
	g := m.Gray(DefaultEpsilon)
	for _, v := range g.Pix {
		if v != 0 {
			t.Fatalf("expected black image, got %v", g.Pix)
		}
	}
}

func TestGrayIsMonotonic(t *testing.T) {
	pix := []float32{-3, -1, 0, 0.5, 2, 10, 11}
	m, _ := New(len(pix), 1, pix)
	g := m.Gray(0)
	for x := 1; x < len(pix); x++ {
		if g.Pix[x] < g.Pix[x-1] {
			t.Fatalf("mapping not monotonic at %d: %v", x, g.Pix)
		}
	}
	if g.Pix[0] != 0 || g.Pix[len(pix)-1] != 255 {
		t.Fatalf("extremes must be 0 and 255, got %v", g.Pix)
	}
}

func TestRangeSkipsNaN(t *testing.T) {
	nan := float32(math.NaN())
	m, _ := New(4, 1, []float32{nan, 2, -1, nan})
	lo, hi := m.Range()
	if lo != -1 || hi != 2 {
		t.Fatalf("Range = (%v, %v)", lo, hi)
	}
	if got := m.Gray(DefaultEpsilon).Pix[0]; got != 0 {
		t.Fatalf("NaN must map to 0, got %d", got)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(0, 1, nil); err == nil {
		t.Fatal("expected error for empty size")
	}
	if _, err := New(2, 2, []float32{1}); err == nil {
		t.Fatal("expected error for short data")
	}
}

func TestLoadEXRAndWritePNG(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "depth.exr")
	pix := []float32{1, 2, 3, 4, 5, 1}
	img := &exr.Image{Width: 3, Height: 2, Channels: []exr.ImageChannel{
		{Name: "Z", Type: exr.PixelFloat, Data: pix},
		{Name: "R", Type: exr.PixelHalf, Data: make([]float32, 6)},
	}}
	if err := exr.WriteFile(in, img, exr.EncodeOptions{Compression: exr.CompressionZIP}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, err := LoadEXR(in, DefaultChannel)
	if err != nil {
		t.Fatalf("LoadEXR: %v", err)
	}
	if m.Shape() != "(2, 3)" {
		t.Fatalf("Shape = %s", m.Shape())
	}
	if m.At(1, 1) != 5 {
		t.Fatalf("At(1,1) = %v", m.At(1, 1))
	}

	out := filepath.Join(dir, "exr_depth.png")
	if err := WritePNG(out, m.Gray(DefaultEpsilon)); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read png: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("bounds = %v", b)
	}

	if _, err := LoadEXR(in, "depth"); !errors.Is(err, exr.ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestDump(t *testing.T) {
	m, _ := New(2, 2, []float32{1, 2.5, 10, 0.12345})
	var buf bytes.Buffer
	if err := Dump(&buf, m, 4); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	want := "[[ 1.0000  2.5000]\n [10.0000  0.1235]]\n"
	if buf.String() != want {
		t.Fatalf("Dump =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestDumpSummarizesLargeImages(t *testing.T) {
	m, _ := New(40, 40, make([]float32, 1600))
	var buf bytes.Buffer
	if err := Dump(&buf, m, 1); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("expected 7 printed rows, got %d:\n%s", len(lines), buf.String())
	}
	if strings.TrimSpace(lines[3]) != "..." || !strings.Contains(lines[0], "...") {
		t.Fatalf("expected elision markers:\n%s", buf.String())
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float32
		want string
	}{
		{1, "1.0"},
		{0, "0.0"},
		{-5, "-5.0"},
		{0.25, "0.25"},
		{0.1, "0.1"},
		{123456, "123456.0"},
		{1e-7, "1e-07"},
		{3e20, "3e+20"},
		{float32(math.NaN()), "nan"},
		{float32(math.Inf(-1)), "-inf"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Fatalf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
