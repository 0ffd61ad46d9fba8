package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/paw-chain/prover/x/prover/engine"
	"github.com/paw-chain/prover/x/prover/types"
)

// setPending puts c into the state of a node that is trying to obtain opts.
func setPending(c *Coordinator, opts types.TaskOptions, obtained bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := opts
	c.state.pending = &pending
	c.state.obtained = obtained
}

func TestElectionTieBreak(t *testing.T) {
	net := newNetwork()
	a := net.join(t, "10.0.0.1:9000", "a", okProver(1))
	b := net.join(t, "10.0.0.2:9000", "b", okProver(1))
	opts := taskOptions(1)

	setPending(a, opts, false)
	setPending(b, opts, false)

	won, err := a.obtainTask(context.Background())
	require.NoError(t, err)
	require.True(t, won, "smaller id takes an unstarted task")

	won, err = b.obtainTask(context.Background())
	require.NoError(t, err)
	require.False(t, won)

	// a peer that already obtained the task always wins
	setPending(b, opts, true)
	won, err = a.obtainTask(context.Background())
	require.NoError(t, err)
	require.False(t, won)
}

func TestElectionIgnoresOtherTasks(t *testing.T) {
	net := newNetwork()
	a := net.join(t, "10.0.0.1:9000", "b", okProver(1))
	other := net.join(t, "10.0.0.2:9000", "a", okProver(1))

	setPending(a, taskOptions(1), false)
	setPending(other, taskOptions(2), true)

	won, err := a.obtainTask(context.Background())
	require.NoError(t, err)
	require.True(t, won)
}

func TestElectionMatchesIgnoringRetry(t *testing.T) {
	net := newNetwork()
	a := net.join(t, "10.0.0.1:9000", "b", okProver(1))
	other := net.join(t, "10.0.0.2:9000", "a", okProver(1))

	retry := taskOptions(1)
	retry.Retry = true
	setPending(a, taskOptions(1), false)
	setPending(other, retry, false)

	won, err := a.obtainTask(context.Background())
	require.NoError(t, err)
	require.False(t, won)
}

func TestElectionSkipsSelf(t *testing.T) {
	net := newNetwork()
	c := net.join(t, "10.0.0.1:9000", "1111", okProver(1))
	opts := taskOptions(1)
	setPending(c, opts, true)

	won, err := c.obtainTask(context.Background())
	require.NoError(t, err)
	require.True(t, won)
}

func TestElectionErrors(t *testing.T) {
	net := newNetwork()
	c := net.join(t, "10.0.0.1:9000", "1111", okProver(1))

	_, err := c.obtainTask(context.Background())
	require.ErrorIs(t, err, types.ErrTaskMissing)

	setPending(c, taskOptions(1), false)
	net.fail["10.0.0.9:9000"] = errors.New("i/o timeout")
	_, err = c.obtainTask(context.Background())
	require.ErrorIs(t, err, types.ErrPeerTransport)
}

// panickingResolver answers the first lookup and panics on every later one.
// It records the pending task of the node at each panicking call.
type panickingResolver struct {
	inner   Resolver
	node    func() types.NodeStatus
	calls   int
	pending []uint64
}

func (r *panickingResolver) Resolve(ctx context.Context, lookup string) ([]string, error) {
	r.calls++
	if r.calls == 1 {
		return r.inner.Resolve(ctx, lookup)
	}
	if status := r.node(); status.Task != nil {
		r.pending = append(r.pending, status.Task.Block)
	}
	panic("dns lookup exploded")
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestElectionPanicReleasesSlot(t *testing.T) {
	net := newNetwork()
	net.join(t, "10.0.0.2:9000", "b", okProver(1))

	var proved int
	prover := ProverFunc(func(context.Context, engine.KeyCache, types.TaskOptions) (*types.Proofs, error) {
		proved++
		return &types.Proofs{}, nil
	})
	resolver := &panickingResolver{inner: net}
	a := NewCoordinator(Config{NodeID: "a", NodeLookup: "peers:9000"}, prover, net, resolver, log.NewTestLogger(t))
	resolver.node = a.NodeStatus

	a.GetOrEnqueue(taskOptions(1))
	a.GetOrEnqueue(taskOptions(2))

	panics := a.metrics.PanicRecoveries.WithLabelValues("obtain_task")
	before := counterValue(t, panics)

	a.DutyCycle(context.Background())

	// one lookup for the merge and one election per candidate
	require.Equal(t, 3, resolver.calls)
	require.Equal(t, []uint64{1, 2}, resolver.pending)
	require.Equal(t, float64(2), counterValue(t, panics)-before)

	status := a.NodeStatus()
	require.Nil(t, status.Task)
	require.False(t, status.Obtained)
	require.Zero(t, proved)
	for _, task := range a.Snapshot() {
		require.False(t, task.HasResult)
	}
}

func TestElectionWithoutLookup(t *testing.T) {
	c := newSingleNode(t, "zzzz", okProver(1))
	setPending(c, taskOptions(1), false)

	won, err := c.obtainTask(context.Background())
	require.NoError(t, err)
	require.True(t, won)
}

func TestMergeCopiesUnknownTasks(t *testing.T) {
	net := newNetwork()
	n1 := net.join(t, "10.0.0.1:9000", "1111", okProver(1))
	n2 := net.join(t, "10.0.0.2:9000", "2222", okProver(1))

	n1.GetOrEnqueue(taskOptions(1))
	n1.GetOrEnqueue(taskOptions(2))
	n2.GetOrEnqueue(taskOptions(3))

	require.NoError(t, n2.MergeTasksFromPeers(context.Background()))
	snapshot := n2.Snapshot()
	require.Len(t, snapshot, 3)
	require.Equal(t, uint64(3), snapshot[0].Options.Block)
	require.Equal(t, uint64(1), snapshot[1].Options.Block)
	require.Equal(t, uint64(2), snapshot[2].Options.Block)

	// merging twice adds nothing
	require.NoError(t, n2.MergeTasksFromPeers(context.Background()))
	require.Len(t, n2.Snapshot(), 3)
}

func TestMergeAbortsOnPeerFailure(t *testing.T) {
	net := newNetwork()
	n1 := net.join(t, "10.0.0.1:9000", "1111", okProver(1))
	n2 := net.join(t, "10.0.0.2:9000", "2222", okProver(1))
	n2.GetOrEnqueue(taskOptions(1))
	net.fail["10.0.0.3:9000"] = errors.New("connection refused")

	err := n1.MergeTasksFromPeers(context.Background())
	require.ErrorIs(t, err, types.ErrPeerTransport)
	require.Empty(t, n1.Snapshot(), "nothing is merged when any peer fails")

	// the duty cycle gives up without electing or computing
	n1.GetOrEnqueue(taskOptions(7))
	n1.DutyCycle(context.Background())
	task, ok := n1.Task(taskOptions(7))
	require.True(t, ok)
	require.Nil(t, task.Result)
}

func TestMergeTasksEditions(t *testing.T) {
	c := newSingleNode(t, "1111", okProver(1))
	opts := taskOptions(1)
	c.GetOrEnqueue(opts)

	ok := types.NewSuccess(&types.Proofs{Gas: 9})
	added, updated := c.MergeTasks(types.NodeInformation{
		ID:    "2222",
		Tasks: []types.Task{{Options: opts, Result: &ok, Edition: 1}},
	})
	require.Zero(t, added)
	require.Equal(t, 1, updated)

	task, _ := c.Task(opts)
	require.Equal(t, uint64(1), task.Edition)
	require.Equal(t, uint64(9), task.Result.Proofs.Gas)

	// an older or equal edition never overwrites
	failed := types.NewFailure("stale")
	added, updated = c.MergeTasks(types.NodeInformation{
		ID:    "3333",
		Tasks: []types.Task{{Options: opts, Result: &failed, Edition: 1}},
	})
	require.Zero(t, added)
	require.Zero(t, updated)
	task, _ = c.Task(opts)
	require.False(t, task.Result.IsErr())

	// a newer edition without a result clears the local one
	_, updated = c.MergeTasks(types.NodeInformation{
		ID:    "3333",
		Tasks: []types.Task{{Options: opts, Edition: 2}},
	})
	require.Equal(t, 1, updated)
	task, _ = c.Task(opts)
	require.Nil(t, task.Result)
	require.Equal(t, uint64(2), task.Edition)
}

func TestMergeDoesNotAliasPeerResult(t *testing.T) {
	c := newSingleNode(t, "1111", okProver(1))
	opts := taskOptions(1)

	res := types.NewSuccess(&types.Proofs{Gas: 1})
	info := types.NodeInformation{ID: "2222", Tasks: []types.Task{{Options: opts, Result: &res, Edition: 1}}}
	c.MergeTasks(info)

	res.Proofs.Gas = 99
	task, _ := c.Task(opts)
	require.Equal(t, uint64(1), task.Result.Proofs.Gas)
}

func TestMergeMonotonicity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := NewCoordinator(Config{NodeID: "local"}, okProver(1), nil, nil, log.NewNopLogger())
		blocks := rapid.IntRange(1, 4)

		editions := make(map[uint64]uint64)
		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			block := uint64(blocks.Draw(rt, "block"))
			opts := taskOptions(block)

			if rapid.Bool().Draw(rt, "local") {
				c.GetOrEnqueue(opts)
				if _, ok := editions[block]; !ok {
					editions[block] = 0
				}
				continue
			}

			peerEdition := rapid.Uint64Range(0, 6).Draw(rt, "edition")
			var result *types.TaskResult
			if rapid.Bool().Draw(rt, "result") {
				r := types.NewFailure("peer")
				result = &r
			}
			c.MergeTasks(types.NodeInformation{
				ID:    "peer",
				Tasks: []types.Task{{Options: opts, Result: result, Edition: peerEdition}},
			})

			before, known := editions[block]
			task, ok := c.Task(opts)
			require.True(rt, ok)
			switch {
			case !known:
				require.Equal(rt, peerEdition, task.Edition)
			case peerEdition > before:
				require.Equal(rt, peerEdition, task.Edition)
				require.Equal(rt, result != nil, task.HasResult())
			default:
				require.Equal(rt, before, task.Edition)
			}
			require.GreaterOrEqual(rt, task.Edition, before)
			editions[block] = task.Edition
		}

		// every task is present once
		require.Len(rt, c.Snapshot(), len(editions))
	})
}

func TestEndToEndTwoNodes(t *testing.T) {
	net := newNetwork()

	started := make(chan struct{})
	release := make(chan struct{})
	n1 := net.join(t, "10.0.0.1:9000", "1111", ProverFunc(func(context.Context, engine.KeyCache, types.TaskOptions) (*types.Proofs, error) {
		close(started)
		<-release
		return &types.Proofs{Gas: 42}, nil
	}))

	var n2Calls int
	var mu sync.Mutex
	n2 := net.join(t, "10.0.0.2:9000", "2222", ProverFunc(func(context.Context, engine.KeyCache, types.TaskOptions) (*types.Proofs, error) {
		mu.Lock()
		n2Calls++
		mu.Unlock()
		return &types.Proofs{}, nil
	}))

	opts := taskOptions(1)
	require.Nil(t, n1.GetOrEnqueue(opts))

	done := make(chan struct{})
	go func() {
		n1.DutyCycle(context.Background())
		close(done)
	}()
	<-started
	require.True(t, n1.NodeStatus().Obtained)

	// n2 learns the task from n1 and loses the election to it
	require.Nil(t, n2.GetOrEnqueue(opts))
	n2.DutyCycle(context.Background())
	require.Equal(t, types.NodeStatus{ID: "2222"}, n2.NodeStatus())
	mu.Lock()
	require.Zero(t, n2Calls)
	mu.Unlock()

	close(release)
	<-done

	// the result reaches n2 through the next merge
	n2.DutyCycle(context.Background())
	res := n2.GetOrEnqueue(opts)
	require.NotNil(t, res)
	require.Equal(t, uint64(42), res.Proofs.Gas)
	mu.Lock()
	require.Zero(t, n2Calls)
	mu.Unlock()
}

func TestLargerIDLosesUnstartedTask(t *testing.T) {
	net := newNetwork()
	n1 := net.join(t, "10.0.0.1:9000", "1111", okProver(1))
	n2 := net.join(t, "10.0.0.2:9000", "2222", okProver(2))
	opts := taskOptions(1)

	n1.GetOrEnqueue(opts)
	setPending(n1, opts, false)
	n2.GetOrEnqueue(opts)

	n2.DutyCycle(context.Background())
	task, _ := n2.Task(opts)
	require.Nil(t, task.Result)
	require.Equal(t, types.NodeStatus{ID: "2222"}, n2.NodeStatus())
}

func TestProvingKeyCache(t *testing.T) {
	c := newSingleNode(t, "1111", okProver(1))
	ctx := context.Background()

	var generated int
	generate := func(context.Context) (*engine.KeyPair, error) {
		generated++
		return &engine.KeyPair{}, nil
	}

	first, err := c.GenProvingKey(ctx, "super-tiny-setup", generate)
	require.NoError(t, err)
	second, err := c.GenProvingKey(ctx, "super-tiny-setup", generate)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, generated)

	_, err = c.GenProvingKey(ctx, "super-tiny-setup-a", generate)
	require.NoError(t, err)
	require.Equal(t, 2, generated)
	require.ElementsMatch(t, []string{"super-tiny-setup", "super-tiny-setup-a"}, c.CachedKeys())

	boom := errors.New("setup failed")
	_, err = c.GenProvingKey(ctx, "broken", func(context.Context) (*engine.KeyPair, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.Len(t, c.CachedKeys(), 2)
}

func TestProverReceivesKeyCache(t *testing.T) {
	var got engine.KeyCache
	c := newSingleNode(t, "1111", ProverFunc(func(_ context.Context, cache engine.KeyCache, _ types.TaskOptions) (*types.Proofs, error) {
		got = cache
		return &types.Proofs{}, nil
	}))
	c.GetOrEnqueue(taskOptions(1))
	c.DutyCycle(context.Background())
	require.Same(t, c, got)
}
