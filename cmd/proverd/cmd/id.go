package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paw-chain/prover/x/prover/coordinator"
)

// Version is set at build time.
var Version = "dev"

// IDCmd prints a fresh random worker id.
func IDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Print a random node id suitable for --node-id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), coordinator.RandomWorkerID())
			return err
		},
	}
}
