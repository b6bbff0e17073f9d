package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download the configured model into the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.setup(cmd)
			if err != nil {
				return err
			}
			cache, err := newCache(cfg, logger)
			if err != nil {
				return err
			}
			offline := cfg.OfflineFirst && !cfg.OnlineFallback
			path, err := cache.Resolve(cmd.Context(), cfg.ModelRepo, cfg.ModelFile, offline)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
