package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Guliveer/guildkit/internal/constants"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "guildbot %s (gateway protocol v%d)\n", constants.Version, constants.ProtocolVersion)
			return err
		},
	}
}
