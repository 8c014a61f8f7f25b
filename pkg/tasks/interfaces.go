package tasks

import "github.com/hibiken/asynq"

// TaskEnqueuer is what the pipeline needs to schedule follow-up work.
// *asynq.Client satisfies it; tests use test.MockTaskEnqueuer.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
