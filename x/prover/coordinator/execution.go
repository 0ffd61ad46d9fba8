package coordinator

import (
	"context"
	"time"

	"github.com/paw-chain/prover/app/telemetry"
	"github.com/paw-chain/prover/x/prover/types"
)

// execute runs the prover for an obtained task in a supervised goroutine and
// converts the outcome into a task result. The computation is not cancelled
// when ctx is.
func (c *Coordinator) execute(ctx context.Context, opts types.TaskOptions) types.TaskResult {
	execCtx, span := telemetry.StartTaskSpan(context.WithoutCancel(ctx), opts.ProverMode.String(), opts.Circuit, opts.Block)
	defer span.End()

	c.metrics.InFlight.Set(1)
	defer c.metrics.InFlight.Set(0)

	started := time.Now()
	proofs, err := SafeExecuteWithReturn(c.logger, "compute_proof", func() (*types.Proofs, error) {
		return c.prover.Prove(execCtx, c, opts)
	})
	c.metrics.TaskDuration.Observe(time.Since(started).Seconds())

	switch {
	case err != nil:
		if _, ok := err.(*PanicError); ok {
			c.metrics.PanicRecoveries.WithLabelValues("compute_proof").Inc()
		}
		telemetry.RecordError(span, err)
		return types.NewFailure(err.Error())
	case proofs == nil:
		return types.NewFailure(types.ErrProofGeneration.Wrap("prover returned no proofs").Error())
	default:
		telemetry.SetSpanStatus(span, true, "proved")
		return types.NewSuccess(proofs)
	}
}

// recordResult writes the outcome of the obtained task back and frees the
// node slot. A result for a task that is no longer registered is dropped.
func (c *Coordinator) recordResult(opts types.TaskOptions, result types.TaskResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.pending = nil
	c.state.obtained = false

	task, ok := c.state.tasks.Find(opts)
	if !ok {
		c.metrics.DroppedResults.Inc()
		c.logger.Error("task was already removed, ignoring result",
			"task", opts.String(),
			"error", types.ErrTaskMissing,
		)
		return
	}

	task.Result = &result
	task.Edition++

	outcome := "ok"
	if result.IsErr() {
		outcome = "err"
	}
	c.metrics.TasksCompleted.WithLabelValues(outcome).Inc()
}
