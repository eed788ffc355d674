package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gfxprep/internal/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the shader normalization cache",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(cmd *cobra.Command, _ []string) error {
	dir, err := driver.CacheDir(cacheAppName)
	if err != nil {
		return fmt.Errorf("failed to locate cache directory: %w", err)
	}
	out := cmd.OutOrStdout()
	if err := driver.DropAll(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			_, _ = fmt.Fprintf(out, "cache directory not found\n")
			return nil
		}
		return fmt.Errorf("failed to remove %q: %w", dir, err)
	}
	_, _ = fmt.Fprintf(out, "removed %s\n", dir)
	return nil
}
