package dispatch

import "context"

// Submission is the executor's acknowledgment of an accepted run request.
type Submission struct {
	TaskID string
}

// TaskRunner submits execution requests to a task execution backend.
type TaskRunner interface {
	RunTask(ctx context.Context, req ExecutionRequest) (Submission, error)
}
