package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/paw-chain/prover/x/prover/coordinator"
	"github.com/paw-chain/prover/x/prover/engine"
	"github.com/paw-chain/prover/x/prover/types"
	"github.com/paw-chain/prover/x/prover/witness"
)

const (
	flagBlock            = "block"
	flagRPCURL           = "rpc-url"
	flagProofPath        = "proof-path"
	flagWitnessPath      = "witness-path"
	flagKParamsPath      = "kparams-path"
	flagCircuit          = "circuit"
	flagMock             = "mock"
	flagMockFeedback     = "mock-feedback"
	flagAggregate        = "aggregate"
	flagVerify           = "verify"
	flagRetry            = "retry"
	flagProtocolInstance = "protocol-instance"
)

// ProveCmd runs one task locally and exits, the way a single node without
// peers would compute it.
func ProveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prove [mode]",
		Short: "Run a single task locally",
		Long: fmt.Sprintf(`Run a single task in the given mode, %s.

witness_capture needs --block, --kparams-path, --rpc-url and --witness-path.
offline_prover needs --kparams-path, --proof-path and --witness-path.
legacy_prover needs --block, --kparams-path and --rpc-url.
verifier needs --proof-path.`, types.ProverModeUsage()),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sctx := GetServerContextFromCmd(cmd)
			opts, err := ReadTaskOptions(cmd.Flags(), args[0])
			if err != nil {
				return err
			}

			prover := engine.NewProver(witness.NewRPCProvider(witness.DefaultRPCTimeout, sctx.Logger), sctx.Logger)
			_, err = RunProve(cmd.Context(), opts, prover, sctx.Logger, cmd.OutOrStdout())
			return err
		},
	}

	AddTaskFlags(cmd.Flags())
	return cmd
}

// AddTaskFlags registers the flags describing a task.
func AddTaskFlags(f *pflag.FlagSet) {
	f.Uint64P(flagBlock, "b", 0, "target block number")
	f.StringP(flagRPCURL, "r", "", "URL of the L2 node the witness is acquired from")
	f.StringP(flagProofPath, "p", "", "proof file (output, or input for verifier)")
	f.StringP(flagWitnessPath, "w", "", "witness file (output for witness_capture, input for offline_prover)")
	f.StringP(flagKParamsPath, "k", "", "setup parameter directory or key file")
	f.String(flagCircuit, types.CircuitSuper, "circuit family")
	f.Bool(flagMock, false, "check constraints only, no proof")
	f.Bool(flagMockFeedback, false, "report the failing constraint in mock mode")
	f.Bool(flagAggregate, false, "wrap the circuit proof into an aggregation proof")
	f.Bool(flagVerify, true, "verify the proof after generating it")
	f.Bool(flagRetry, false, "re-queue the task if it previously failed")
	f.String(flagProtocolInstance, "", "JSON file with the protocol instance (devnet defaults when empty)")
}

// ReadTaskOptions builds and validates task options from the task flags.
func ReadTaskOptions(f *pflag.FlagSet, mode string) (types.TaskOptions, error) {
	var opts types.TaskOptions

	proverMode, err := types.ParseProverMode(mode)
	if err != nil {
		return opts, err
	}

	opts.ProverMode = proverMode
	if opts.Block, err = f.GetUint64(flagBlock); err != nil {
		return opts, err
	}
	if opts.RPC, err = f.GetString(flagRPCURL); err != nil {
		return opts, err
	}
	if opts.ProofPath, err = f.GetString(flagProofPath); err != nil {
		return opts, err
	}
	if opts.WitnessPath, err = f.GetString(flagWitnessPath); err != nil {
		return opts, err
	}
	if opts.Param, err = f.GetString(flagKParamsPath); err != nil {
		return opts, err
	}
	if opts.Circuit, err = f.GetString(flagCircuit); err != nil {
		return opts, err
	}
	if opts.Mock, err = f.GetBool(flagMock); err != nil {
		return opts, err
	}
	if opts.MockFeedback, err = f.GetBool(flagMockFeedback); err != nil {
		return opts, err
	}
	if opts.Aggregate, err = f.GetBool(flagAggregate); err != nil {
		return opts, err
	}
	if opts.VerifyProof, err = f.GetBool(flagVerify); err != nil {
		return opts, err
	}
	if opts.Retry, err = f.GetBool(flagRetry); err != nil {
		return opts, err
	}

	instancePath, err := f.GetString(flagProtocolInstance)
	if err != nil {
		return opts, err
	}
	if opts.ProtocolInstance, err = readProtocolInstance(instancePath); err != nil {
		return opts, err
	}

	return opts, opts.ValidateBasic()
}

func readProtocolInstance(path string) (types.ProtocolInstance, error) {
	if path == "" {
		return DefaultProtocolInstance(), nil
	}

	bz, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return types.ProtocolInstance{}, fmt.Errorf("failed to read protocol instance: %w", err)
	}
	var pi types.ProtocolInstance
	if err := json.Unmarshal(bz, &pi); err != nil {
		return types.ProtocolInstance{}, fmt.Errorf("failed to decode protocol instance: %w", err)
	}
	return pi, nil
}

// DefaultProtocolInstance is the devnet instance used when none is given.
func DefaultProtocolInstance() types.ProtocolInstance {
	const one = "0000000000000000000000000000000000000000000000000000000000000001"
	return types.ProtocolInstance{
		L1SignalService: "7a2088a1bFc9d81c55368AE168C2C02570cB814F",
		L2SignalService: "1000777700000000000000000000000000000007",
		L2Contract:      "1000777700000000000000000000000000000001",
		RequestMetaData: types.RequestMetaData{
			ID:             10,
			Timestamp:      1704868002,
			L1Height:       75,
			L1Hash:         one,
			DepositsHash:   one,
			BlobHash:       one,
			GasLimit:       820000000,
			Coinbase:       "0000000000000000000000000000000000000000",
			Difficulty:     one,
			ExtraData:      "0000000000000000000000000000000000000000000000000000000000000002",
			ParentMetaHash: "0000000000000000000000000000000000000000000000000000000000000003",
		},
		BlockHash:               one,
		ParentHash:              one,
		SignalRoot:              one,
		Graffiti:                one,
		Prover:                  "ee85e2fe0e26891882a8CD744432d2BBFbe140dd",
		Treasury:                "df09A0afD09a63fb04ab3573922437e1e637dE8b",
		BlockMaxGasLimit:        6000000,
		MaxTransactionsPerBlock: 79,
		MaxBytesPerTxList:       120000,
		AnchorGasLimit:          250000,
	}
}

// RunProve submits opts to a standalone coordinator, runs one duty cycle and
// prints the result as JSON. Proofs are written to opts.ProofPath for the
// modes that produce them.
func RunProve(ctx context.Context, opts types.TaskOptions, prover coordinator.Prover, logger log.Logger, out io.Writer) (*types.TaskResult, error) {
	node := coordinator.NewCoordinator(coordinator.Config{}, prover, nil, nil, logger)

	node.GetOrEnqueue(opts)
	node.DutyCycle(ctx)
	result := node.GetOrEnqueue(opts)
	if result == nil {
		return nil, types.ErrTaskMissing.Wrapf("%s did not complete", opts.String())
	}

	bz, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return result, err
	}
	if _, err := fmt.Fprintln(out, string(bz)); err != nil {
		return result, err
	}

	if result.IsErr() {
		return result, fmt.Errorf("%s failed: %s", opts.String(), result.Error)
	}

	if writesProofs(opts) {
		if err := engine.WriteProofs(opts.ProofPath, result.Proofs); err != nil {
			return result, err
		}
		logger.Info("proofs written", "path", opts.ProofPath)
	}
	return result, nil
}

func writesProofs(opts types.TaskOptions) bool {
	switch opts.ProverMode {
	case types.ProverModeWitnessCapture, types.ProverModeVerifier:
		return false
	}
	return opts.ProofPath != ""
}
