package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gfxprep/internal/observ"
)

// newTimer returns a timer when --timings is set, nil otherwise.
func newTimer(cmd *cobra.Command) *observ.Timer {
	show, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil || !show {
		return nil
	}
	return observ.NewTimer()
}

func printTimings(out io.Writer, timer *observ.Timer) {
	if out == nil || timer == nil {
		return
	}
	if _, printErr := fmt.Fprint(out, timer.Summary()); printErr != nil {
		panic(printErr)
	}
}
