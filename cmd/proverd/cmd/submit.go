package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paw-chain/prover/p2p/rpc"
)

const (
	flagNode    = "node"
	flagTimeout = "timeout"
)

// SubmitCmd sends a task to a running node over the peer RPC.
func SubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit [mode]",
		Short: "Submit a task to a running node and print its current result",
		Long: `Submit a task to a running node. The node enqueues unknown tasks and answers
with the stored result once one exists; repeat the call to poll.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sctx := GetServerContextFromCmd(cmd)
			opts, err := ReadTaskOptions(cmd.Flags(), args[0])
			if err != nil {
				return err
			}

			addr, err := cmd.Flags().GetString(flagNode)
			if err != nil {
				return err
			}
			timeout, err := cmd.Flags().GetDuration(flagTimeout)
			if err != nil {
				return err
			}

			res, err := rpc.NewClient(timeout, sctx.Logger).Proof(cmd.Context(), addr, opts)
			if err != nil {
				return err
			}

			if res.Result == nil {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s queued on %s\n", opts.String(), addr)
				return err
			}
			bz, err := json.MarshalIndent(res.Result, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return err
		},
	}

	AddTaskFlags(cmd.Flags())
	cmd.Flags().String(flagNode, "127.0.0.1:9000", "peer RPC address of the node")
	cmd.Flags().Duration(flagTimeout, rpc.DefaultTimeout, "request deadline")
	return cmd
}
