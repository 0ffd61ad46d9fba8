package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paw-chain/prover/x/prover/coordinator"
	"github.com/paw-chain/prover/x/prover/types"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// SubmitResponse answers a task submission. Result is set once the task
// finished; until then Status is "queued".
type SubmitResponse struct {
	Status string            `json:"status"`
	Task   string            `json:"task"`
	Result *types.TaskResult `json:"result,omitempty"`
}

// TaskResponse is one entry of the task list
type TaskResponse struct {
	coordinator.TaskSummary
	Result *types.TaskResult `json:"result,omitempty"`
}

func (s *Server) handleNodeInformation(c *gin.Context) {
	c.JSON(http.StatusOK, s.node.NodeInformation())
}

func (s *Server) handleNodeStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.node.NodeStatus())
}

// handleListTasks returns the registry in submission order, optionally
// filtered by ?pending=true.
func (s *Server) handleListTasks(c *gin.Context) {
	pendingOnly := c.Query("pending") == "true"

	tasks := s.node.Snapshot()
	out := make([]coordinator.TaskSummary, 0, len(tasks))
	for _, task := range tasks {
		if pendingOnly && task.HasResult {
			continue
		}
		out = append(out, task)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

// handleLookupTask returns one task including its result without submitting it.
func (s *Server) handleLookupTask(c *gin.Context) {
	opts, ok := bindOptions(c)
	if !ok {
		return
	}

	task, found := s.node.Task(opts)
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Task not found",
			Code:  "NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, TaskResponse{
		TaskSummary: coordinator.TaskSummary{
			Options:   task.Options,
			HasResult: task.HasResult(),
			Edition:   task.Edition,
		},
		Result: task.Result,
	})
}

func (s *Server) handleSubmitTask(c *gin.Context) {
	opts, ok := bindOptions(c)
	if !ok {
		return
	}

	result := s.node.GetOrEnqueue(opts)
	if result == nil {
		s.logger.Info("task queued", "task", opts.String(), "operator", c.GetString("operator"))
		c.JSON(http.StatusAccepted, SubmitResponse{Status: "queued", Task: opts.String()})
		return
	}

	status := "completed"
	if result.IsErr() {
		status = "failed"
	}
	c.JSON(http.StatusOK, SubmitResponse{Status: status, Task: opts.String(), Result: result})
}

func bindOptions(c *gin.Context) (types.TaskOptions, bool) {
	var opts types.TaskOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return opts, false
	}
	if err := opts.ValidateBasic(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid task options",
			Code:    "INVALID_OPTIONS",
			Details: err.Error(),
		})
		return opts, false
	}
	return opts, true
}
