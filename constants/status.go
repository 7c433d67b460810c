package constants

// JobStatus is the lifecycle state of a queued quote extraction.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusExtracted JobStatus = "EXTRACTED" // records waiting in the session store
	JobStatusFailed    JobStatus = "FAILED"
)
