package main

import (
	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/adapterinfo"
)

func newRootCommand(lookup func(string) (string, bool)) *cobra.Command {
	ctx := newCommandContext(lookup)

	rootCmd := &cobra.Command{
		Use:           adapterinfo.Info.BinaryName,
		Short:         adapterinfo.Info.Description,
		Long:          "Runs the transcription daemon: one JSON request per stdin line, one JSON response per stdout line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, ctx)
		},
	}

	ctx.bindFlags(rootCmd)

	rootCmd.AddCommand(newTranscribeCommand(ctx))
	rootCmd.AddCommand(newFetchCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
