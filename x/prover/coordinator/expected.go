package coordinator

import (
	"context"

	"github.com/paw-chain/prover/x/prover/engine"
	"github.com/paw-chain/prover/x/prover/types"
)

// PeerClient issues the peer RPC calls used by merge and election.
type PeerClient interface {
	Info(ctx context.Context, addr string) (types.NodeInformation, error)
	Status(ctx context.Context, addr string) (types.NodeStatus, error)
}

// Resolver expands the node lookup address into peer addresses.
type Resolver interface {
	Resolve(ctx context.Context, lookup string) ([]string, error)
}

// Prover acquires the witness for a task and computes its artifact.
type Prover interface {
	Prove(ctx context.Context, cache engine.KeyCache, opts types.TaskOptions) (*types.Proofs, error)
}

// ProverFunc adapts a function to the Prover interface.
type ProverFunc func(ctx context.Context, cache engine.KeyCache, opts types.TaskOptions) (*types.Proofs, error)

// Prove implements Prover.
func (f ProverFunc) Prove(ctx context.Context, cache engine.KeyCache, opts types.TaskOptions) (*types.Proofs, error) {
	return f(ctx, cache, opts)
}
