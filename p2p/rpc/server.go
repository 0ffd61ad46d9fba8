package rpc

import (
	"context"
	"errors"
	"net/http"

	"cosmossdk.io/log"
	rpcserver "github.com/cometbft/cometbft/rpc/jsonrpc/server"
	rpctypes "github.com/cometbft/cometbft/rpc/jsonrpc/types"

	"github.com/paw-chain/prover/x/prover/types"
)

// Peer RPC method names
const (
	MethodInfo   = "info"
	MethodStatus = "status"
	MethodProof  = "proof"
)

// NodeState is the part of the coordinator served to peers.
type NodeState interface {
	NodeInformation() types.NodeInformation
	NodeStatus() types.NodeStatus
	GetOrEnqueue(opts types.TaskOptions) *types.TaskResult
}

// ResultProof answers a proof submission. Result is nil while the task is
// queued or running.
type ResultProof struct {
	Result *types.TaskResult `json:"result,omitempty"`
}

// Routes builds the JSON-RPC functions served to peers.
func Routes(state NodeState) map[string]*rpcserver.RPCFunc {
	return map[string]*rpcserver.RPCFunc{
		MethodInfo: rpcserver.NewRPCFunc(func(*rpctypes.Context) (*types.NodeInformation, error) {
			info := state.NodeInformation()
			return &info, nil
		}, ""),
		MethodStatus: rpcserver.NewRPCFunc(func(*rpctypes.Context) (*types.NodeStatus, error) {
			status := state.NodeStatus()
			return &status, nil
		}, ""),
		MethodProof: rpcserver.NewRPCFunc(func(_ *rpctypes.Context, options types.TaskOptions) (*ResultProof, error) {
			if err := options.ValidateBasic(); err != nil {
				return nil, err
			}
			return &ResultProof{Result: state.GetOrEnqueue(options)}, nil
		}, "options"),
	}
}

// NewHandler registers the peer routes on a fresh mux.
func NewHandler(state NodeState, logger log.Logger) http.Handler {
	mux := http.NewServeMux()
	rpcserver.RegisterRPCFuncs(mux, Routes(state), NewCometLogger(logger.With("module", "p2p/rpc")))
	return mux
}

// Server serves the peer RPC until its context is cancelled.
type Server struct {
	addr    string
	handler http.Handler
	logger  log.Logger
}

// NewServer creates a server listening on addr, e.g. "0.0.0.0:8545".
func NewServer(addr string, state NodeState, logger log.Logger) *Server {
	return &Server{
		addr:    addr,
		handler: NewHandler(state, logger),
		logger:  logger.With("module", "p2p/rpc"),
	}
}

// Start blocks serving requests until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	cfg := rpcserver.DefaultConfig()
	listener, err := rpcserver.Listen("tcp://"+s.addr, cfg.MaxOpenConnections)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- rpcserver.Serve(listener, s.handler, NewCometLogger(s.logger), cfg)
	}()
	s.logger.Info("peer rpc listening", "addr", listener.Addr().String())

	select {
	case <-ctx.Done():
		_ = listener.Close()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
