package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/adapterinfo"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", adapterinfo.Info.BinaryName, adapterinfo.Version())
			return nil
		},
	}
}
