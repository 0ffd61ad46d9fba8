package coordinator

import (
	"github.com/paw-chain/prover/x/prover/types"
)

// TaskRegistry stores the known tasks in submission order. Implementations
// are not safe for concurrent use; the coordinator serializes access.
type TaskRegistry interface {
	// Find returns the task with the same identity as opts. The pointer is
	// only valid until the next Append.
	Find(opts types.TaskOptions) (*types.Task, bool)
	Append(task types.Task)
	// Candidates lists the options of every task without a result.
	Candidates() []types.TaskOptions
	// Tasks returns a deep copy of every task.
	Tasks() []types.Task
	Len() int
}

// TaskSummary is the compact view of a registered task.
type TaskSummary struct {
	Options   types.TaskOptions `json:"options"`
	HasResult bool              `json:"has_result"`
	Edition   uint64            `json:"edition"`
}

// linearRegistry scans a slice. The registry is bounded by operator
// submitted work, so no index is kept.
type linearRegistry struct {
	tasks []types.Task
}

// NewTaskRegistry returns an empty linear-scan registry.
func NewTaskRegistry() TaskRegistry {
	return &linearRegistry{}
}

func (r *linearRegistry) Find(opts types.TaskOptions) (*types.Task, bool) {
	for i := range r.tasks {
		if r.tasks[i].Options.SameTask(opts) {
			return &r.tasks[i], true
		}
	}
	return nil, false
}

func (r *linearRegistry) Append(task types.Task) {
	r.tasks = append(r.tasks, task)
}

func (r *linearRegistry) Candidates() []types.TaskOptions {
	var out []types.TaskOptions
	for _, task := range r.tasks {
		if !task.HasResult() {
			out = append(out, task.Options)
		}
	}
	return out
}

func (r *linearRegistry) Tasks() []types.Task {
	out := make([]types.Task, len(r.tasks))
	for i, task := range r.tasks {
		out[i] = task.Clone()
	}
	return out
}

func (r *linearRegistry) Len() int {
	return len(r.tasks)
}
