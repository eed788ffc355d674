package main

import (
	"github.com/spf13/cobra"

	"gfxprep/internal/config"
)

// loadManifest returns the manifest named by --config, or the nearest
// gfxprep.toml above the working directory. No manifest is not an error.
func loadManifest(cmd *cobra.Command) (*config.Manifest, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		return config.LoadFile(path)
	}
	m, _, err := config.Load(".")
	return m, err
}
