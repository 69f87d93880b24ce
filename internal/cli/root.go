// Package cli implements the historyctl command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the historyctl root command.
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "historyctl",
		Short:         "Compute entity update histories from snapshots",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(diffCmd())
	rootCmd.AddCommand(versionCmd(version))

	return rootCmd
}

func versionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the historyctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "historyctl %s\n", version)
			return err
		},
	}
}
