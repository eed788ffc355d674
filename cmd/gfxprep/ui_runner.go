package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"gfxprep/internal/driver"
	"gfxprep/internal/pipeline"
	"gfxprep/internal/ui"
)

type shaderOutcome struct {
	report *driver.ShaderReport
	err    error
}

func runShadersWithUI(ctx context.Context, title, root string, opts driver.ShaderOptions) (*driver.ShaderReport, error) {
	files, err := driver.CollectShaders(ctx, root, opts.Extensions, nil)
	if err != nil {
		return nil, err
	}

	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan shaderOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Progress = pipeline.ChannelSink{Ch: events}
		report, err := driver.NormalizeShaders(ctx, root, optsCopy)
		outcomeCh <- shaderOutcome{report: report, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.report, uiErr
	}
	return outcome.report, outcome.err
}
