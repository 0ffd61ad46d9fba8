package rpc

import (
	"context"
	"net/http"
	"strings"
	"time"

	"cosmossdk.io/log"
	jsonrpcclient "github.com/cometbft/cometbft/rpc/jsonrpc/client"

	"github.com/paw-chain/prover/app/telemetry"
	"github.com/paw-chain/prover/x/prover/types"
)

// DefaultTimeout is the deadline of a single peer call.
const DefaultTimeout = 5 * time.Second

// Client calls the peer RPC of other nodes.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     log.Logger
	metrics    *telemetry.PeerMetrics
}

// NewClient creates a peer client. A zero timeout selects DefaultTimeout.
func NewClient(timeout time.Duration, logger log.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger.With("module", "p2p/rpc"),
	}
}

// SetMetrics records every call on m.
func (c *Client) SetMetrics(m *telemetry.PeerMetrics) {
	c.metrics = m
}

// Info fetches the full task view of a peer.
func (c *Client) Info(ctx context.Context, addr string) (types.NodeInformation, error) {
	var info types.NodeInformation
	err := c.call(ctx, addr, MethodInfo, map[string]interface{}{}, &info)
	return info, err
}

// Status fetches the claim state of a peer.
func (c *Client) Status(ctx context.Context, addr string) (types.NodeStatus, error) {
	var status types.NodeStatus
	err := c.call(ctx, addr, MethodStatus, map[string]interface{}{}, &status)
	return status, err
}

// Proof submits a task to a peer and returns its answer.
func (c *Client) Proof(ctx context.Context, addr string, opts types.TaskOptions) (ResultProof, error) {
	var res ResultProof
	err := c.call(ctx, addr, MethodProof, map[string]interface{}{"options": opts}, &res)
	return res, err
}

func (c *Client) call(ctx context.Context, addr, method string, params map[string]interface{}, result interface{}) (err error) {
	parent, started := ctx, time.Now()
	defer func() { c.metrics.Record(parent, method, started, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := telemetry.StartPeerSpan(ctx, method, addr)
	defer span.End()

	remote := addr
	if !strings.Contains(remote, "://") {
		remote = "http://" + remote
	}

	rpcClient, err := jsonrpcclient.NewWithHTTPClient(remote, c.httpClient)
	if err != nil {
		telemetry.RecordError(span, err)
		return types.ErrPeerTransport.Wrapf("%s: %s", addr, err)
	}

	if _, err := rpcClient.Call(ctx, method, params, result); err != nil {
		telemetry.RecordError(span, err)
		c.logger.Debug("peer call failed", "addr", addr, "method", method, "error", err)
		return types.ErrPeerTransport.Wrapf("%s %s: %s", method, addr, err)
	}
	return nil
}
