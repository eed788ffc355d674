package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gfxprep/internal/config"
	"gfxprep/internal/diag"
	"gfxprep/internal/diagfmt"
	"gfxprep/internal/driver"
	"gfxprep/internal/shader"
)

const cacheAppName = "gfxprep"

// errReported marks failures whose message was already printed.
var errReported = errors.New("reported")

var (
	okColor   = color.New(color.FgGreen)
	skipColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
)

var shadersCmd = &cobra.Command{
	Use:   "shaders",
	Short: "Normalize compute shader sources in place",
	Long: `Normalize every .comp file below the shader directory: strip the UTF-8 BOM,
convert line endings to LF, force the version directive, trim trailing
whitespace and end the file with exactly one newline.`,
	Args: cobra.NoArgs,
	RunE: runShaders,
}

func init() {
	shadersCmd.Flags().StringP("dir", "d", "", "shader directory (default: shaders next to the executable)")
	shadersCmd.Flags().Bool("check", false, "report files that would change without writing them")
	shadersCmd.Flags().StringSlice("ext", nil, "shader file extensions (default .comp)")
	shadersCmd.Flags().String("version-directive", "", "replacement for the first #version line (default \""+shader.DefaultVersionDirective+"\")")
	shadersCmd.Flags().Int("jobs", 1, "max parallel files (0=auto)")
	shadersCmd.Flags().Bool("cache", false, "skip files whose normalized hash is cached")
	shadersCmd.Flags().String("ui", "off", "progress UI mode (auto|on|off)")
	shadersCmd.Flags().String("format", "text", "report format (text|json)")
	shadersCmd.Flags().String("min-severity", "error", "lowest diagnostic severity printed to stderr (info|warning|error)")
}

type shaderRun struct {
	dir    string
	format string
	minSev diag.Severity
	ui     uiMode
	check  bool
	cache  bool
	opts   driver.ShaderOptions
}

func resolveShaderRun(cmd *cobra.Command, m *config.Manifest) (shaderRun, error) {
	flags := cmd.Flags()
	var cfg config.ShadersConfig
	if m != nil {
		cfg = m.Config.Shaders
	}

	run := shaderRun{}
	var err error

	run.dir, err = flags.GetString("dir")
	if err != nil {
		return run, err
	}
	if run.dir == "" && cfg.Dir != "" {
		run.dir = m.Resolve(cfg.Dir)
	}
	if run.dir == "" {
		run.dir = defaultShaderDir()
	}

	if run.check, err = flags.GetBool("check"); err != nil {
		return run, err
	}

	exts, err := flags.GetStringSlice("ext")
	if err != nil {
		return run, err
	}
	if len(exts) == 0 {
		exts = cfg.Extensions
	}
	run.opts.Extensions = normalizeExtensions(exts)

	directive, err := flags.GetString("version-directive")
	if err != nil {
		return run, err
	}
	if directive == "" {
		directive = cfg.VersionDirective
	}
	run.opts.Shader.VersionDirective = directive

	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return run, err
	}
	if !flags.Changed("jobs") && cfg.Jobs > 0 {
		jobs = cfg.Jobs
	}
	if jobs < 0 {
		return run, fmt.Errorf("--jobs must be >= 0, got %d", jobs)
	}
	run.opts.Jobs = jobs

	if run.cache, err = flags.GetBool("cache"); err != nil {
		return run, err
	}
	if !flags.Changed("cache") {
		run.cache = cfg.Cache
	}

	uiValue, err := flags.GetString("ui")
	if err != nil {
		return run, err
	}
	if run.ui, err = readUIMode(uiValue); err != nil {
		return run, err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return run, err
	}
	switch run.format = strings.ToLower(strings.TrimSpace(format)); run.format {
	case "text", "json":
	default:
		return run, fmt.Errorf("unsupported format %q (must be text or json)", format)
	}
	if run.format == "json" {
		run.ui = uiModeOff
	}
	sev, err := flags.GetString("min-severity")
	if err != nil {
		return run, err
	}
	if run.minSev, err = diag.ParseSeverity(sev); err != nil {
		return run, err
	}
	run.opts.Check = run.check
	return run, nil
}

// defaultShaderDir is the shaders directory next to the executable.
func defaultShaderDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "shaders"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "shaders")
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func runShaders(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	manifest, err := loadManifest(cmd)
	if err != nil {
		return err
	}
	run, err := resolveShaderRun(cmd, manifest)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	if err := driver.CheckRoot(run.dir); err != nil {
		errColor.Fprintf(errOut, "Directory not found: %s\n", run.dir)
		return errReported
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	stopTracing, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer stopTracing()

	timer := newTimer(cmd)
	run.opts.Timer = timer

	if run.cache {
		dir, err := driver.CacheDir(cacheAppName)
		if err != nil {
			return fmt.Errorf("failed to locate cache directory: %w", err)
		}
		cache, err := driver.OpenShaderCache(dir)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		run.opts.Cache = cache
	}

	useTUI := shouldUseTUI(run.ui)
	var report *driver.ShaderReport
	if useTUI {
		report, err = runShadersWithUI(cmd.Context(), "gfxprep shaders", run.dir, run.opts)
	} else {
		report, err = driver.NormalizeShaders(cmd.Context(), run.dir, run.opts)
	}
	if err != nil {
		return err
	}

	if run.format == "json" {
		if err := renderShaderReportJSON(out, report); err != nil {
			return err
		}
	} else {
		quiet := isQuiet(cmd) || useTUI
		if err := renderShaderReport(out, errOut, report, run, quiet); err != nil {
			return err
		}
		printTimings(out, timer)
	}

	if n := report.Count(driver.ShaderFailed); n > 0 {
		return fmt.Errorf("%d file(s) failed", n)
	}
	if run.check {
		if n := report.Count(driver.ShaderWouldChange); n > 0 {
			return fmt.Errorf("%d file(s) need normalization", n)
		}
	}
	return nil
}

// renderShaderReport prints one line per file and the closing count.
// quiet drops the ✓ lines. Failed files go to errOut as diagnostics.
func renderShaderReport(out, errOut io.Writer, report *driver.ShaderReport, run shaderRun, quiet bool) error {
	for _, res := range report.Results {
		var printErr error
		switch res.Status {
		case driver.ShaderSkipped:
			_, printErr = fmt.Fprintf(out, "%s %s – not UTF-8\n", skipColor.Sprint("[skip]"), res.Path)
		case driver.ShaderFailed:
			continue
		case driver.ShaderWouldChange:
			_, printErr = fmt.Fprintf(out, "%s\n", res.Path)
		default:
			if quiet || run.check {
				continue
			}
			_, printErr = fmt.Fprintf(out, "%s %s\n", okColor.Sprint("✓"), res.Path)
		}
		if printErr != nil {
			return printErr
		}
	}
	if err := diagfmt.Pretty(errOut, report.Bag, diagfmt.PrettyOpts{
		Color:       !color.NoColor,
		MinSeverity: run.minSev,
	}); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%d file(s) processed.\n", report.Processed())
	return err
}

type shaderResultJSON struct {
	Path   string `json:"path"`
	Status string `json:"status"`
}

type shaderReportJSON struct {
	Root        string                    `json:"root"`
	Processed   int                       `json:"processed"`
	Results     []shaderResultJSON        `json:"results"`
	Diagnostics diagfmt.DiagnosticsOutput `json:"diagnostics"`
}

func renderShaderReportJSON(out io.Writer, report *driver.ShaderReport) error {
	payload := shaderReportJSON{
		Root:        report.Root,
		Processed:   report.Processed(),
		Results:     make([]shaderResultJSON, 0, len(report.Results)),
		Diagnostics: diagfmt.BuildDiagnosticsOutput(report.Bag, diagfmt.JSONOpts{}),
	}
	for _, res := range report.Results {
		payload.Results = append(payload.Results, shaderResultJSON{Path: res.Path, Status: res.Status.String()})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
