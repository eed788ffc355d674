package driver

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gfxprep/internal/exr"
	"gfxprep/internal/observ"
)

func writeDepthEXR(t *testing.T, path string, w, h int, z []float32) {
	t.Helper()
	img := &exr.Image{Width: w, Height: h, Channels: []exr.ImageChannel{{Name: "Z", Type: exr.PixelFloat, Data: z}}}
	if err := exr.WriteFile(path, img, exr.EncodeOptions{Compression: exr.CompressionZIPS}); err != nil {
		t.Fatalf("exr.WriteFile: %v", err)
	}
}

func decodeGray(t *testing.T, path string) *image.Gray {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open png: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("expected *image.Gray, got %T", img)
	}
	return g
}

func TestDepthPipelineKnownRange(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "depth.exr")
	out := filepath.Join(dir, "exr_depth.png")
	writeDepthEXR(t, in, 3, 2, []float32{1, 2, 3, 5, 4, 1})

	timer := observ.NewTimer()
	opts := DepthOptions{Input: in, Output: out, Timer: timer}
	img, err := LoadDepth(context.Background(), opts)
	if err != nil {
		t.Fatalf("LoadDepth: %v", err)
	}
	if lo, hi := img.Range(); lo != 1 || hi != 5 {
		t.Fatalf("Range = (%v, %v)", lo, hi)
	}
	if err := WriteDepthPNG(context.Background(), img, opts); err != nil {
		t.Fatalf("WriteDepthPNG: %v", err)
	}

	g := decodeGray(t, out)
	if b := g.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("bounds = %v", b)
	}
	want := []uint8{0, 63, 127, 255, 191, 0}
	for i, w := range want {
		x, y := i%3, i/3
		if got := g.GrayAt(x, y).Y; got != w {
			t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, got, w)
		}
	}
	if len(timer.Report().Phases) != 2 {
		t.Fatalf("expected decode and encode phases, got %+v", timer.Report())
	}
}

func TestDepthPipelineConstantImage(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "depth.exr")
	out := filepath.Join(dir, "out.png")
	writeDepthEXR(t, in, 4, 4, []float32{
		2, 2, 2, 2,
		2, 2, 2, 2,
		2, 2, 2, 2,
		2, 2, 2, 2,
	})
	opts := DepthOptions{Input: in, Output: out}
	img, err := LoadDepth(context.Background(), opts)
	if err != nil {
		t.Fatalf("LoadDepth: %v", err)
	}
	if err := WriteDepthPNG(context.Background(), img, opts); err != nil {
		t.Fatalf("WriteDepthPNG: %v", err)
	}
	for _, v := range decodeGray(t, out).Pix {
		if v != 0 {
			t.Fatal("constant depth must produce a black image")
		}
	}
}

func TestLoadDepthFailures(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadDepth(context.Background(), DepthOptions{Input: filepath.Join(dir, "missing.exr")}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	notEXR := filepath.Join(dir, "fake.exr")
	if err := os.WriteFile(notEXR, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadDepth(context.Background(), DepthOptions{Input: notEXR}); !errors.Is(err, exr.ErrNotEXR) {
		t.Fatalf("expected ErrNotEXR, got %v", err)
	}
}

func TestResolveDepthOptionsDefaults(t *testing.T) {
	o := ResolveDepthOptions(DepthOptions{})
	if o.Input != "depth.exr" || o.Output != "exr_depth.png" || o.Channel != "Z" || o.Epsilon != 1e-6 {
		t.Fatalf("unexpected defaults %+v", o)
	}
}
