package driver

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"gfxprep/internal/diag"
	"gfxprep/internal/pipeline"
	"gfxprep/internal/trace"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestNormalizeShadersRewritesInPlace(t *testing.T) {
	root := t.TempDir()
	blur := filepath.Join(root, "blur.comp")
	nested := filepath.Join(root, "post", "TONE.COMP")
	bad := filepath.Join(root, "post", "latin1.comp")
	other := filepath.Join(root, "notes.txt")
	writeFile(t, blur, "\xEF\xBB\xBF#version 310 es \r\nvoid main() {\t\r\n}\r\n\r\n")
	writeFile(t, nested, "void main() {}")
	writeFile(t, bad, "// caf\xe9\n")
	writeFile(t, other, "keep me   \r\n")

	report, err := NormalizeShaders(context.Background(), root, ShaderOptions{Jobs: 1})
	if err != nil {
		t.Fatalf("NormalizeShaders: %v", err)
	}
	if report.Processed() != 3 {
		t.Fatalf("Processed = %d, want 3", report.Processed())
	}

	if got := readFile(t, blur); got != "#version 320 es\nvoid main() {\n}\n" {
		t.Fatalf("blur.comp = %q", got)
	}
	if got := readFile(t, nested); got != "void main() {}\n" {
		t.Fatalf("TONE.COMP = %q", got)
	}
	if got := readFile(t, bad); got != "// caf\xe9\n" {
		t.Fatalf("non-UTF-8 file must be untouched, got %q", got)
	}
	if got := readFile(t, other); got != "keep me   \r\n" {
		t.Fatalf("non-shader file must be untouched, got %q", got)
	}

	if report.Count(ShaderSkipped) != 1 || report.Count(ShaderRewritten) != 2 {
		t.Fatalf("unexpected statuses: %+v", report.Results)
	}
	items := report.Bag.Items()
	if len(items) != 1 || items[0].Code != diag.ShdNotUTF8 || items[0].Path != bad {
		t.Fatalf("unexpected diagnostics: %+v", items)
	}
}

func TestNormalizeShadersMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nope")
	_, err := NormalizeShaders(context.Background(), root, ShaderOptions{})
	if !errors.Is(err, ErrRootNotFound) {
		t.Fatalf("expected ErrRootNotFound, got %v", err)
	}

	file := filepath.Join(t.TempDir(), "file.comp")
	writeFile(t, file, "x")
	if err := CheckRoot(file); !errors.Is(err, ErrRootNotFound) {
		t.Fatalf("a regular file is not a root, got %v", err)
	}
}

// lockedFS fails ReadDir for one directory like a tree without read permission.
type lockedFS struct {
	fstest.MapFS
	locked string
}

func (l lockedFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if name == l.locked {
		return nil, &fs.PathError{Op: "readdirent", Path: name, Err: fs.ErrPermission}
	}
	return l.MapFS.ReadDir(name)
}

func TestCollectShadersSkipsUnreadableDir(t *testing.T) {
	fsys := lockedFS{
		MapFS: fstest.MapFS{
			"a.comp":        {Data: []byte("void main() {}\n")},
			"locked/b.comp": {Data: []byte("void main() {}\n")},
			"open/c.comp":   {Data: []byte("void main() {}\n")},
		},
		locked: "locked",
	}
	root := filepath.Join("assets", "shaders")
	bag := diag.NewBag(0)

	files, err := collectShaders(context.Background(), fsys, root, nil, bag)
	if err != nil {
		t.Fatalf("collectShaders: %v", err)
	}
	want := []string{filepath.Join(root, "a.comp"), filepath.Join(root, "open", "c.comp")}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Fatalf("files = %v, want %v", files, want)
	}

	items := bag.Items()
	if len(items) != 1 {
		t.Fatalf("expected one diagnostic, got %+v", items)
	}
	d := items[0]
	if d.Code != diag.IOReadDirError || d.Severity != diag.SevWarning || d.Path != filepath.Join(root, "locked") {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
	if bag.HasErrors() {
		t.Fatal("a skipped directory must not fail the run")
	}

	// без bag каталог пропускается молча
	if files, err := collectShaders(context.Background(), fsys, root, nil, nil); err != nil || len(files) != 2 {
		t.Fatalf("nil bag: files = %v, err = %v", files, err)
	}
}

func TestCollectShadersUnreadableRoot(t *testing.T) {
	fsys := lockedFS{MapFS: fstest.MapFS{"a.comp": {}}, locked: "."}
	_, err := collectShaders(context.Background(), fsys, "shaders", nil, diag.NewBag(0))
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("expected permission error for the root, got %v", err)
	}
}

func TestNormalizeShadersSkipsUnreadableDir(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced")
	}
	root := t.TempDir()
	top := filepath.Join(root, "top.comp")
	locked := filepath.Join(root, "locked")
	writeFile(t, top, "void main() {}  \n")
	writeFile(t, filepath.Join(locked, "hidden.comp"), "void main() {}\n")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	report, err := NormalizeShaders(context.Background(), root, ShaderOptions{Jobs: 1})
	if err != nil {
		t.Fatalf("NormalizeShaders: %v", err)
	}
	if report.Processed() != 1 || report.Results[0].Path != top {
		t.Fatalf("unexpected results: %+v", report.Results)
	}
	items := report.Bag.Items()
	if len(items) != 1 || items[0].Code != diag.IOReadDirError || items[0].Path != locked {
		t.Fatalf("unexpected diagnostics: %+v", items)
	}
	if got := readFile(t, top); got != "void main() {}\n" {
		t.Fatalf("top.comp = %q", got)
	}
}

func TestNormalizeShadersIdempotent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.comp")
	writeFile(t, path, "#version 450\r\nvoid main() {  \r\n}")

	if _, err := NormalizeShaders(context.Background(), root, ShaderOptions{Jobs: 1}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := readFile(t, path)
	report, err := NormalizeShaders(context.Background(), root, ShaderOptions{Jobs: 1})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if readFile(t, path) != first {
		t.Fatal("second run changed the file")
	}
	if report.Results[0].Status != ShaderUnchanged {
		t.Fatalf("status = %s, want unchanged", report.Results[0].Status)
	}
}

func TestNormalizeShadersCheckMode(t *testing.T) {
	root := t.TempDir()
	dirty := filepath.Join(root, "dirty.comp")
	clean := filepath.Join(root, "clean.comp")
	writeFile(t, dirty, "void main() { }  \n")
	writeFile(t, clean, "void main() {}\n")

	report, err := NormalizeShaders(context.Background(), root, ShaderOptions{Check: true, Jobs: 1})
	if err != nil {
		t.Fatalf("NormalizeShaders: %v", err)
	}
	if got := readFile(t, dirty); got != "void main() { }  \n" {
		t.Fatalf("check mode must not write, got %q", got)
	}
	if report.Count(ShaderWouldChange) != 1 || report.Count(ShaderUnchanged) != 1 {
		t.Fatalf("unexpected statuses: %+v", report.Results)
	}
}

func TestNormalizeShadersParallelKeepsOrder(t *testing.T) {
	root := t.TempDir()
	names := []string{"e.comp", "a.comp", "d.comp", "b.comp", "c.comp"}
	for _, n := range names {
		writeFile(t, filepath.Join(root, n), "#version 100\nvoid main() {} \n")
	}

	var mu sync.Mutex
	events := 0
	sink := pipeline.FuncSink(func(pipeline.Event) {
		mu.Lock()
		events++
		mu.Unlock()
	})
	report, err := NormalizeShaders(context.Background(), root, ShaderOptions{Jobs: 4, Progress: sink})
	if err != nil {
		t.Fatalf("NormalizeShaders: %v", err)
	}
	for i, want := range []string{"a.comp", "b.comp", "c.comp", "d.comp", "e.comp"} {
		if filepath.Base(report.Results[i].Path) != want {
			t.Fatalf("result %d = %s, want %s", i, report.Results[i].Path, want)
		}
		if !report.Results[i].VersionRewritten {
			t.Fatalf("expected version rewrite for %s", want)
		}
	}
	if events == 0 {
		t.Fatal("expected progress events")
	}
}

func TestNormalizeShadersCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NormalizeShaders(ctx, t.TempDir(), ShaderOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNormalizeShadersUsesCache(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.comp")
	writeFile(t, path, "void main() {} \n")

	cacheDir := filepath.Join(t.TempDir(), "cache")
	cache, err := OpenShaderCache(cacheDir)
	if err != nil {
		t.Fatalf("OpenShaderCache: %v", err)
	}
	if _, err := NormalizeShaders(context.Background(), root, ShaderOptions{Jobs: 1, Cache: cache}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	reopened, err := OpenShaderCache(cacheDir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Len() != 1 {
		t.Fatalf("cache entries = %d, want 1", reopened.Len())
	}
	report, err := NormalizeShaders(context.Background(), root, ShaderOptions{Jobs: 1, Cache: reopened})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Results[0].Status != ShaderCached {
		t.Fatalf("status = %s, want cached", report.Results[0].Status)
	}

	// правка файла инвалидирует запись
	writeFile(t, path, "#version 320 es\nvoid main() {}\n")
	report, err = NormalizeShaders(context.Background(), root, ShaderOptions{Jobs: 1, Cache: reopened})
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if report.Results[0].Status != ShaderUnchanged {
		t.Fatalf("status = %s, want unchanged after edit", report.Results[0].Status)
	}
}

func TestNormalizeShadersTracesFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.comp")
	writeFile(t, path, "#version 310 es\n")

	var buf bytes.Buffer
	tr := trace.NewStreamTracer(&buf, trace.LevelFile, trace.FormatText)
	ctx := trace.WithTracer(context.Background(), tr)
	if _, err := NormalizeShaders(ctx, root, ShaderOptions{Jobs: 1}); err != nil {
		t.Fatalf("NormalizeShaders: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"→ shaders", "← collect {files=1}", "← " + path + " (rewritten)", "← shaders {root=" + root + "}"} {
		if !strings.Contains(out, want) {
			t.Fatalf("trace missing %q:\n%s", want, out)
		}
	}
}
