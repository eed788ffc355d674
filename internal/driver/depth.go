package driver

import (
	"context"
	"fmt"

	"gfxprep/internal/depth"
	"gfxprep/internal/observ"
	"gfxprep/internal/pipeline"
	"gfxprep/internal/trace"
)

const (
	// DefaultDepthInput is read when no input is configured.
	DefaultDepthInput = "depth.exr"
	// DefaultDepthOutput is written when no output is configured.
	DefaultDepthOutput = "exr_depth.png"
)

// DepthOptions configures the depth extraction pipeline.
type DepthOptions struct {
	Input    string
	Output   string
	Channel  string
	Epsilon  float64
	Progress pipeline.ProgressSink
	Timer    *observ.Timer
}

func (o DepthOptions) withDefaults() DepthOptions {
	if o.Input == "" {
		o.Input = DefaultDepthInput
	}
	if o.Output == "" {
		o.Output = DefaultDepthOutput
	}
	if o.Channel == "" {
		o.Channel = depth.DefaultChannel
	}
	if o.Epsilon <= 0 {
		o.Epsilon = depth.DefaultEpsilon
	}
	return o
}

// LoadDepth decodes the configured channel of the input EXR file.
func LoadDepth(ctx context.Context, opts DepthOptions) (*depth.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	pipeline.Emit(opts.Progress, pipeline.Event{File: opts.Input, Stage: pipeline.StageDecode, Status: pipeline.StatusWorking})

	span := trace.Begin(trace.FromContext(ctx), trace.ScopePhase, "depth.decode", 0).
		WithExtra("input", opts.Input).
		WithExtra("channel", opts.Channel)
	var img *depth.Image
	err := opts.Timer.Track("decode", func() error {
		var err error
		img, err = depth.LoadEXR(opts.Input, opts.Channel)
		return err
	})
	if err != nil {
		span.End(err.Error())
		pipeline.Emit(opts.Progress, pipeline.Event{File: opts.Input, Stage: pipeline.StageDecode, Status: pipeline.StatusError, Err: err})
		return nil, fmt.Errorf("depth: %w", err)
	}
	span.End(img.Shape())
	pipeline.Emit(opts.Progress, pipeline.Event{File: opts.Input, Stage: pipeline.StageDecode, Status: pipeline.StatusDone})
	return img, nil
}

// WriteDepthPNG maps img to grayscale and writes it to the configured output.
func WriteDepthPNG(ctx context.Context, img *depth.Image, opts DepthOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if img == nil {
		return fmt.Errorf("depth: nil image")
	}
	opts = opts.withDefaults()
	pipeline.Emit(opts.Progress, pipeline.Event{File: opts.Output, Stage: pipeline.StageEncode, Status: pipeline.StatusWorking})

	span := trace.Begin(trace.FromContext(ctx), trace.ScopePhase, "depth.encode", 0).
		WithExtra("output", opts.Output)
	err := opts.Timer.Track("encode", func() error {
		return depth.WritePNG(opts.Output, img.Gray(opts.Epsilon))
	})
	if err != nil {
		span.End(err.Error())
		pipeline.Emit(opts.Progress, pipeline.Event{File: opts.Output, Stage: pipeline.StageEncode, Status: pipeline.StatusError, Err: err})
		return fmt.Errorf("depth: %w", err)
	}
	span.End("")
	pipeline.Emit(opts.Progress, pipeline.Event{File: opts.Output, Stage: pipeline.StageEncode, Status: pipeline.StatusDone})
	return nil
}

// ResolveDepthOptions fills unset fields with the default file names,
// channel and epsilon.
func ResolveDepthOptions(opts DepthOptions) DepthOptions {
	return opts.withDefaults()
}
