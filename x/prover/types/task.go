package types

// Task is a submitted unit of work and, once computed, its outcome.
type Task struct {
	Options TaskOptions `json:"options"`
	Result  *TaskResult `json:"result,omitempty"`
	// Edition increments every time Result changes, including when it is
	// cleared for a retry. Merges keep the higher edition.
	Edition uint64 `json:"edition"`
}

// HasResult reports whether the task finished, successfully or not.
func (t Task) HasResult() bool {
	return t.Result != nil
}

// Clone returns a copy that shares no mutable state with t.
func (t Task) Clone() Task {
	out := t
	if t.Result != nil {
		r := t.Result.Clone()
		out.Result = &r
	}
	return out
}

// TaskResult holds either Proofs or an error message.
type TaskResult struct {
	Proofs *Proofs `json:"ok,omitempty"`
	Error  string  `json:"err,omitempty"`
}

// NewSuccess wraps a computed artifact.
func NewSuccess(p *Proofs) TaskResult {
	return TaskResult{Proofs: p}
}

// NewFailure wraps an error message.
func NewFailure(msg string) TaskResult {
	return TaskResult{Error: msg}
}

// IsErr reports whether the result is a failure.
func (r TaskResult) IsErr() bool {
	return r.Proofs == nil
}

// Clone deep copies the result.
func (r TaskResult) Clone() TaskResult {
	out := r
	if r.Proofs != nil {
		p := r.Proofs.Clone()
		out.Proofs = &p
	}
	return out
}

// NodeInformation answers the peer `info` call.
type NodeInformation struct {
	ID    string `json:"id"`
	Tasks []Task `json:"tasks"`
}

// NodeStatus answers the peer `status` call.
type NodeStatus struct {
	ID string `json:"id"`
	// Task is the task this node wants to obtain or is working on
	Task *TaskOptions `json:"task,omitempty"`
	// Obtained is true once the node started working on Task
	Obtained bool `json:"obtained"`
}
