package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/paw-chain/prover/app/telemetry"
	"github.com/paw-chain/prover/x/prover/types"
)

// DutyCycle runs one pass: merge peer state, obtain at most one task without
// a result, compute it and record the outcome. It blocks until the obtained
// task finished.
func (c *Coordinator) DutyCycle(ctx context.Context) {
	cycleID := uuid.NewString()
	ctx, span := telemetry.StartDutyCycleSpan(ctx, c.nodeID, cycleID)
	defer span.End()

	logger := c.logger.With("cycle", cycleID)
	c.metrics.DutyCycles.Inc()

	if err := c.MergeTasksFromPeers(ctx); err != nil {
		c.metrics.MergeFailures.Inc()
		telemetry.RecordError(span, err)
		logger.Error("merge tasks from peers failed", "error", err)
		return
	}

	c.mu.Lock()
	if err := c.checkInvariants(); err != nil {
		logger.Error("registry state", "error", err)
	}
	if c.state.pending != nil || c.state.obtained {
		c.mu.Unlock()
		logger.Debug("task already in flight")
		return
	}
	candidates := c.state.tasks.Candidates()
	c.mu.Unlock()

	if !c.obtainCandidate(ctx, candidates) {
		return
	}

	c.mu.Lock()
	if !c.state.obtained || c.state.pending == nil {
		c.mu.Unlock()
		return
	}
	opts := *c.state.pending
	c.mu.Unlock()

	logger.Info("compute proof", "task", opts.String())
	result := c.execute(ctx, opts)
	if result.IsErr() {
		logger.Error("task failed", "task", opts.String(), "error", result.Error)
	} else {
		logger.Info("task completed", "task", opts.String(), "gas", result.Proofs.Gas)
	}

	c.recordResult(opts, result)
}

// obtainCandidate walks the candidates in order and stops at the first one
// this node wins. pending is cleared again for every lost candidate.
func (c *Coordinator) obtainCandidate(ctx context.Context, candidates []types.TaskOptions) bool {
	for _, candidate := range candidates {
		c.mu.Lock()
		if c.state.pending != nil || c.state.obtained {
			// another pass took the slot while the lock was released
			c.mu.Unlock()
			return false
		}
		pending := candidate
		c.state.pending = &pending
		c.mu.Unlock()

		c.logger.Debug("trying to obtain", "task", candidate.String())
		won, err := SafeExecuteWithReturn(c.logger, "obtain_task", func() (bool, error) {
			return c.obtainTask(ctx)
		})

		switch {
		case err != nil:
			if _, ok := err.(*PanicError); ok {
				c.metrics.PanicRecoveries.WithLabelValues("obtain_task").Inc()
			}
			c.metrics.Elections.WithLabelValues("error").Inc()
			c.logger.Error("failed to obtain task", "task", candidate.String(), "error", err)
		case !won:
			c.metrics.Elections.WithLabelValues("lost").Inc()
			c.logger.Debug("failed to obtain task", "task", candidate.String())
		default:
			c.metrics.Elections.WithLabelValues("won").Inc()
			c.mu.Lock()
			c.state.obtained = true
			c.mu.Unlock()
			return true
		}

		c.mu.Lock()
		c.state.pending = nil
		c.mu.Unlock()
	}
	return false
}

// Run invokes DutyCycle every interval until ctx is cancelled. A pass that is
// computing a task is allowed to finish first.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return types.ErrInvalidOptions.Wrapf("duty cycle interval must be positive, got %s", interval)
	}

	c.logger.Info("starting duty cycle", "interval", interval.String(), "lookup", c.nodeLookup)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.DutyCycle(ctx)

		select {
		case <-ctx.Done():
			c.logger.Info("stopping duty cycle")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
