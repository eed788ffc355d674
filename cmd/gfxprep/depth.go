package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gfxprep/internal/config"
	"gfxprep/internal/depth"
	"gfxprep/internal/driver"
)

var infoColor = color.New(color.FgCyan)

var depthCmd = &cobra.Command{
	Use:   "depth",
	Short: "Convert an EXR depth channel to a grayscale PNG",
	Long: `Read a depth channel from an OpenEXR file, print its shape and range, and
write it as an 8-bit grayscale PNG stretched over [min, max].`,
	Args: cobra.NoArgs,
	RunE: runDepth,
}

func init() {
	depthCmd.Flags().String("input", "", "input EXR file (default \""+driver.DefaultDepthInput+"\")")
	depthCmd.Flags().String("output", "", "output PNG file (default \""+driver.DefaultDepthOutput+"\")")
	depthCmd.Flags().String("channel", "", "channel to extract (default \""+depth.DefaultChannel+"\")")
	depthCmd.Flags().Float64("epsilon", 0, "minimum value range before widening (default 1e-6)")
	depthCmd.Flags().Bool("no-dump", false, "do not print the depth matrix")
}

func resolveDepthOptions(cmd *cobra.Command, m *config.Manifest) (driver.DepthOptions, error) {
	flags := cmd.Flags()
	var cfg config.DepthConfig
	if m != nil {
		cfg = m.Config.Depth
	}
	var opts driver.DepthOptions
	var err error

	if opts.Input, err = flags.GetString("input"); err != nil {
		return opts, err
	}
	if opts.Input == "" && cfg.Input != "" {
		opts.Input = m.Resolve(cfg.Input)
	}
	if opts.Output, err = flags.GetString("output"); err != nil {
		return opts, err
	}
	if opts.Output == "" && cfg.Output != "" {
		opts.Output = m.Resolve(cfg.Output)
	}
	if opts.Channel, err = flags.GetString("channel"); err != nil {
		return opts, err
	}
	if opts.Channel == "" {
		opts.Channel = cfg.Channel
	}
	if opts.Epsilon, err = flags.GetFloat64("epsilon"); err != nil {
		return opts, err
	}
	if opts.Epsilon < 0 {
		return opts, fmt.Errorf("--epsilon must be >= 0, got %g", opts.Epsilon)
	}
	if opts.Epsilon == 0 {
		opts.Epsilon = cfg.Epsilon
	}
	return driver.ResolveDepthOptions(opts), nil
}

func runDepth(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	manifest, err := loadManifest(cmd)
	if err != nil {
		return err
	}
	opts, err := resolveDepthOptions(cmd, manifest)
	if err != nil {
		return err
	}
	noDump, err := cmd.Flags().GetBool("no-dump")
	if err != nil {
		return err
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
	opts.Timer = timer

	out := cmd.OutOrStdout()
	if isQuiet(cmd) {
		out = io.Discard
	}

	img, err := driver.LoadDepth(cmd.Context(), opts)
	if err != nil {
		return err
	}

	lo, hi := img.Range()
	logInfo(out, "depth.shape = %s", img.Shape())
	logInfo(out, "Depth min: %s, max: %s", depth.FormatValue(lo), depth.FormatValue(hi))
	if !noDump {
		logInfo(out, "Depth values:")
		if err := depth.Dump(out, img, 4); err != nil {
			return err
		}
	}
	// расширение диапазона на epsilon происходит в Gray, печатаем исходный max
	logInfo(out, "Depth range: min=%.4f, max=%.4f", lo, hi)

	if err := driver.WriteDepthPNG(cmd.Context(), img, opts); err != nil {
		return err
	}
	logInfo(out, "Saved grayscale depth to: %s", opts.Output)
	printTimings(cmd.OutOrStdout(), timer)
	return nil
}

func logInfo(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "%s %s\n", infoColor.Sprint("[INFO]"), fmt.Sprintf(format, args...))
}
