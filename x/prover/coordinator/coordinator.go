package coordinator

import (
	"fmt"
	"sync"

	"cosmossdk.io/log"

	"github.com/paw-chain/prover/x/prover/engine"
	"github.com/paw-chain/prover/x/prover/types"
)

// Config is the immutable identity of a node.
type Config struct {
	// NodeID is the election tie-break key. A random one is generated when empty.
	NodeID string
	// NodeLookup is an optional host:port resolved into peer addresses.
	NodeLookup string
}

// registryState is everything guarded by Coordinator.mu.
type registryState struct {
	tasks    TaskRegistry
	keyCache map[string]*engine.KeyPair
	// pending is the task this node is trying to obtain or is computing
	pending *types.TaskOptions
	// obtained implies pending != nil
	obtained bool
}

// Coordinator owns the task registry and the proving key cache of one node
// and drives its duty cycle. A single mutex guards all mutable state and is
// never held across peer calls or proof computation.
type Coordinator struct {
	nodeID     string
	nodeLookup string

	prover   Prover
	peers    PeerClient
	resolver Resolver
	logger   log.Logger
	metrics  *Metrics

	mu    sync.Mutex
	state registryState
}

// NewCoordinator creates a coordinator. peers and resolver may be nil when
// no node lookup is configured.
func NewCoordinator(
	cfg Config,
	prover Prover,
	peers PeerClient,
	resolver Resolver,
	logger log.Logger,
) *Coordinator {
	if prover == nil {
		panic("coordinator requires a prover")
	}
	if cfg.NodeLookup != "" && (peers == nil || resolver == nil) {
		panic("coordinator with a node lookup requires a peer client and a resolver")
	}
	if cfg.NodeID == "" {
		cfg.NodeID = RandomWorkerID()
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Coordinator{
		nodeID:     cfg.NodeID,
		nodeLookup: cfg.NodeLookup,
		prover:     prover,
		peers:      peers,
		resolver:   resolver,
		logger:     logger.With("module", "x/"+types.ModuleName, "node", cfg.NodeID),
		metrics:    NewMetrics(),
		state: registryState{
			tasks:    NewTaskRegistry(),
			keyCache: make(map[string]*engine.KeyPair),
		},
	}
}

// NodeID returns the identity of this node.
func (c *Coordinator) NodeID() string {
	return c.nodeID
}

// NodeLookup returns the configured peer lookup address.
func (c *Coordinator) NodeLookup() string {
	return c.nodeLookup
}

// Logger returns the coordinator logger.
func (c *Coordinator) Logger() log.Logger {
	return c.logger
}

// GetOrEnqueue submits a task. It returns the stored result of a finished
// task, or nil when the task was enqueued, is still in flight, or was re-queued
// because opts.Retry is set and the previous attempt failed.
func (c *Coordinator) GetOrEnqueue(opts types.TaskOptions) *types.TaskResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if task, ok := c.state.tasks.Find(opts); ok {
		if task.Result == nil {
			c.logger.Debug("pending", "task", opts.String(), "edition", task.Edition)
			return nil
		}
		if opts.Retry && task.Result.IsErr() {
			c.logger.Debug("retrying", "task", opts.String(), "error", task.Result.Error)
			task.Result = nil
			task.Edition++
			c.metrics.TasksRetried.Inc()
			return nil
		}
		c.logger.Debug("completed", "task", opts.String(), "edition", task.Edition)
		res := task.Result.Clone()
		return &res
	}

	c.state.tasks.Append(types.Task{Options: opts})
	c.metrics.TasksSubmitted.Inc()
	c.metrics.TasksKnown.Set(float64(c.state.tasks.Len()))
	c.logger.Debug("enqueue", "task", opts.String())
	return nil
}

// Snapshot lists every task with its result presence.
func (c *Coordinator) Snapshot() []TaskSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks := c.state.tasks.Tasks()
	out := make([]TaskSummary, len(tasks))
	for i, task := range tasks {
		out[i] = TaskSummary{
			Options:   task.Options,
			HasResult: task.HasResult(),
			Edition:   task.Edition,
		}
	}
	return out
}

// Task returns a copy of the task with the same identity as opts.
func (c *Coordinator) Task(opts types.TaskOptions) (types.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.state.tasks.Find(opts)
	if !ok {
		return types.Task{}, false
	}
	return task.Clone(), true
}

// NodeInformation answers the peer `info` call.
func (c *Coordinator) NodeInformation() types.NodeInformation {
	c.mu.Lock()
	defer c.mu.Unlock()

	return types.NodeInformation{
		ID:    c.nodeID,
		Tasks: c.state.tasks.Tasks(),
	}
}

// NodeStatus answers the peer `status` call.
func (c *Coordinator) NodeStatus() types.NodeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := types.NodeStatus{
		ID:       c.nodeID,
		Obtained: c.state.obtained,
	}
	if c.state.pending != nil {
		pending := *c.state.pending
		status.Task = &pending
	}
	return status
}

// checkInvariants reports a broken obtained/pending relation. Callers hold mu.
func (c *Coordinator) checkInvariants() error {
	if c.state.obtained && c.state.pending == nil {
		return fmt.Errorf("obtained without a pending task")
	}
	return nil
}
