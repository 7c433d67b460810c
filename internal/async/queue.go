package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pharma-quotes/constants"
	"github.com/joseph-ayodele/pharma-quotes/internal/pipeline"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
)

// Runner processes one document. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, doc segment.Document, onProgress pipeline.ProgressFunc) (pipeline.Result, error)
}

// Job is one document waiting for a worker.
type Job struct {
	ID          uuid.UUID
	SessionID   string
	Document    segment.Document
	OnProgress  pipeline.ProgressFunc
	SubmittedAt time.Time

	ctx    context.Context
	result chan Outcome
}

// Outcome is delivered exactly once per accepted job.
type Outcome struct {
	JobID  uuid.UUID
	Status constants.JobStatus
	Result pipeline.Result
	Err    error
}

type Queue interface {
	Submit(ctx context.Context, job Job) (<-chan Outcome, error)
	Shutdown(ctx context.Context)
}
