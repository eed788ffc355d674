package driver

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"gfxprep/internal/diag"
	"gfxprep/internal/observ"
	"gfxprep/internal/pipeline"
	"gfxprep/internal/shader"
	"gfxprep/internal/source"
	"gfxprep/internal/trace"
)

// ErrRootNotFound is returned when the shader root is missing or not a directory.
var ErrRootNotFound = errors.New("directory not found")

// ShaderStatus is the outcome for one file.
type ShaderStatus uint8

const (
	// ShaderRewritten means the file was rewritten in place.
	ShaderRewritten ShaderStatus = iota
	// ShaderUnchanged means the file was already canonical.
	ShaderUnchanged
	// ShaderCached means the cache proved the file canonical without normalizing.
	ShaderCached
	// ShaderWouldChange is reported in check mode instead of rewriting.
	ShaderWouldChange
	// ShaderSkipped means the content is not UTF-8; the file is left alone.
	ShaderSkipped
	// ShaderFailed means an I/O error occurred.
	ShaderFailed
)

func (s ShaderStatus) String() string {
	switch s {
	case ShaderRewritten:
		return "rewritten"
	case ShaderUnchanged:
		return "unchanged"
	case ShaderCached:
		return "cached"
	case ShaderWouldChange:
		return "would change"
	case ShaderSkipped:
		return "skipped"
	case ShaderFailed:
		return "failed"
	}
	return "unknown"
}

// ShaderOptions configures NormalizeShaders.
type ShaderOptions struct {
	Extensions     []string
	Shader         shader.Options
	Check          bool
	Jobs           int
	MaxDiagnostics int
	Cache          *ShaderCache
	Progress       pipeline.ProgressSink
	Timer          *observ.Timer
}

// ShaderResult captures the result of normalizing a single file.
type ShaderResult struct {
	Path             string
	Status           ShaderStatus
	VersionRewritten bool
	TrimmedLines     int
	Err              error
}

// ShaderReport is the outcome of a whole run, results in sorted path order.
type ShaderReport struct {
	Root    string
	Results []ShaderResult
	Bag     *diag.Bag
}

// Processed counts every matched file, skipped ones included.
func (r *ShaderReport) Processed() int {
	return len(r.Results)
}

// Count returns how many results have status s.
func (r *ShaderReport) Count(s ShaderStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// CheckRoot fails with ErrRootNotFound unless root is an existing directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	return nil
}

// CollectShaders walks root and returns every file matching exts, sorted.
// Subdirectories that cannot be read are skipped and, when bag is not nil,
// reported as warnings. An unreadable root is an error.
func CollectShaders(ctx context.Context, root string, exts []string, bag *diag.Bag) ([]string, error) {
	return collectShaders(ctx, os.DirFS(root), root, exts, bag)
}

func collectShaders(ctx context.Context, fsys fs.FS, root string, exts []string, bag *diag.Bag) ([]string, error) {
	if len(exts) == 0 {
		exts = shader.DefaultExtensions
	}
	var files []string
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err != nil {
			if name == "." {
				return err
			}
			if bag != nil {
				bag.Add(diag.Diagnostic{
					Severity: diag.SevWarning,
					Code:     diag.IOReadDirError,
					Path:     path,
					Message:  "skipped: " + err.Error(),
				})
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if shader.MatchExtension(d.Name(), exts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}

// NormalizeShaders normalizes every shader below root in place. A missing
// root is reported before any file is touched. Per-file problems end up in
// the result and the report's Bag; the returned error is reserved for the
// walk itself and cancellation.
func NormalizeShaders(ctx context.Context, root string, opts ShaderOptions) (*ShaderReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckRoot(root); err != nil {
		return nil, err
	}

	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopeDriver, "shaders", 0).WithExtra("root", root)
	defer span.End("")

	bag := diag.NewBag(opts.MaxDiagnostics)
	var files []string
	collectSpan := trace.Begin(tr, trace.ScopePhase, "collect", span.ID())
	err := opts.Timer.Track("collect", func() error {
		var err error
		files, err = CollectShaders(ctx, root, opts.Extensions, bag)
		return err
	})
	collectSpan.WithExtra("files", strconv.Itoa(len(files))).End("")
	if err != nil {
		return nil, err
	}

	report := &ShaderReport{
		Root:    root,
		Results: make([]ShaderResult, len(files)),
		Bag:     bag,
	}
	for _, path := range files {
		pipeline.Emit(opts.Progress, pipeline.Event{File: path, Stage: pipeline.StageRead, Status: pipeline.StatusQueued})
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	phase := opts.Timer.Begin("normalize")
	normalizeSpan := trace.Begin(tr, trace.ScopePhase, "normalize", span.ID())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(files))))
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// индекс i уникален для горутины, мьютекс не нужен
			fileSpan := trace.Begin(tr, trace.ScopeFile, path, normalizeSpan.ID())
			report.Results[i] = normalizeShaderFile(path, &opts, report.Bag)
			fileSpan.End(report.Results[i].Status.String())
			return nil
		})
	}
	waitErr := g.Wait()
	opts.Timer.End(phase, fmt.Sprintf("%d file(s)", len(files)))
	normalizeSpan.End("")
	if waitErr != nil {
		return report, waitErr
	}

	if opts.Cache != nil && !opts.Check {
		if err := opts.Cache.Save(); err != nil {
			report.Bag.Add(diag.Diagnostic{
				Severity: diag.SevWarning,
				Code:     diag.IOCacheError,
				Path:     opts.Cache.Dir(),
				Message:  "failed to save cache: " + err.Error(),
			})
		}
	}
	report.Bag.Sort()
	return report, nil
}

func normalizeShaderFile(path string, opts *ShaderOptions, bag *diag.Bag) ShaderResult {
	res := ShaderResult{Path: path}
	emit := func(stage pipeline.Stage, status pipeline.Status, err error) {
		pipeline.Emit(opts.Progress, pipeline.Event{File: path, Stage: stage, Status: status, Err: err})
	}
	fail := func(stage pipeline.Stage, code diag.Code, err error) ShaderResult {
		res.Status = ShaderFailed
		res.Err = err
		bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: code, Path: path, Message: err.Error()})
		emit(stage, pipeline.StatusError, err)
		return res
	}

	emit(pipeline.StageRead, pipeline.StatusWorking, nil)
	sf, err := source.Load(path)
	if err != nil {
		if errors.Is(err, source.ErrNotUTF8) {
			res.Status = ShaderSkipped
			res.Err = err
			bag.Add(diag.Diagnostic{Severity: diag.SevWarning, Code: diag.ShdNotUTF8, Path: path, Message: "not UTF-8"})
			emit(pipeline.StageRead, pipeline.StatusSkipped, err)
			return res
		}
		return fail(pipeline.StageRead, diag.IOLoadFileError, err)
	}

	directive := opts.Shader.VersionDirective
	if strings.TrimSpace(directive) == "" {
		directive = shader.DefaultVersionDirective
	}
	if entry, ok := opts.Cache.Get(path); ok && entry.Hash == sf.Hash && entry.Directive == directive {
		res.Status = ShaderCached
		emit(pipeline.StageNormalize, pipeline.StatusDone, nil)
		return res
	}

	emit(pipeline.StageNormalize, pipeline.StatusWorking, nil)
	out, err := shader.Normalize(sf, opts.Shader)
	if err != nil {
		return fail(pipeline.StageNormalize, diag.UnknownCode, err)
	}
	res.VersionRewritten = out.VersionRewritten
	res.TrimmedLines = out.TrimmedLines

	switch {
	case !out.Changed:
		res.Status = ShaderUnchanged
	case opts.Check:
		res.Status = ShaderWouldChange
		bag.Add(diag.Diagnostic{Severity: diag.SevWarning, Code: diag.ShdWouldReformat, Path: path, Message: "needs normalization"})
	default:
		emit(pipeline.StageWrite, pipeline.StatusWorking, nil)
		if err := os.WriteFile(path, out.Formatted, sf.Mode); err != nil {
			return fail(pipeline.StageWrite, diag.IOWriteFileError, err)
		}
		res.Status = ShaderRewritten
	}

	if res.Status != ShaderWouldChange {
		opts.Cache.Put(path, ShaderCacheEntry{
			Hash:      sha256.Sum256(out.Formatted),
			Directive: directive,
			Size:      int64(len(out.Formatted)),
		})
	}
	emit(pipeline.StageWrite, pipeline.StatusDone, nil)
	return res
}
