package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a research job
type JobStatus string

// Possible job status values
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ResearchDepth controls how thorough the external generation service is
// asked to be for each subject. Deep research is slower and more expensive
// per call, which is why it defaults to lower dispatch concurrency.
type ResearchDepth string

// Possible research depth values
const (
	ResearchDepthQuick ResearchDepth = "quick"
	ResearchDepthDeep  ResearchDepth = "deep"
)

// Common validation errors for ResearchJob
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrEmptyJobOwnerID  = errors.New("job owner ID cannot be empty")
	ErrNoJobSubjects    = errors.New("job must have at least one subject")
	ErrInvalidJobStatus = errors.New("invalid job status")
	ErrInvalidDepth     = errors.New("invalid research depth")
)

// TaskOutcome is a snapshot of one task's terminal result, stored on the
// job record after each orchestrator cycle so callers can read per-subject
// results without joining the task table.
type TaskOutcome struct {
	Subject string     `json:"subject"`
	Status  TaskStatus `json:"status"`
	Summary string     `json:"summary,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// ResearchJob represents one bulk research request: a list of subjects to
// research at a given depth, with progress counters recomputed from task
// state after each orchestrator cycle.
//
// Invariant: CompletedCount always equals the number of tasks in a terminal
// state (completed or failed) for this job, and Status becomes completed
// only once CompletedCount >= TotalCount.
type ResearchJob struct {
	ID             uuid.UUID     `json:"id"`
	OwnerID        uuid.UUID     `json:"owner_id"`
	Subjects       []string      `json:"subjects"`
	Depth          ResearchDepth `json:"depth"`
	Status         JobStatus     `json:"status"`
	TotalCount     int           `json:"total_count"`
	CompletedCount int           `json:"completed_count"`
	Results        []TaskOutcome `json:"results"`
	CreatedAt      time.Time     `json:"created_at"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// NewResearchJob creates a new ResearchJob for the given owner and subjects.
// It generates a new UUID, sets the status to pending, and derives
// TotalCount from the subject list. Returns an error if validation fails.
func NewResearchJob(ownerID uuid.UUID, subjects []string, depth ResearchDepth) (*ResearchJob, error) {
	job := &ResearchJob{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Subjects:   subjects,
		Depth:      depth,
		Status:     JobStatusPending,
		TotalCount: len(subjects),
		CreatedAt:  time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the ResearchJob has valid data.
func (j *ResearchJob) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.OwnerID == uuid.Nil {
		return ErrEmptyJobOwnerID
	}

	if len(j.Subjects) == 0 {
		return ErrNoJobSubjects
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if !IsValidResearchDepth(j.Depth) {
		return ErrInvalidDepth
	}

	return nil
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *ResearchJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// IsValidResearchDepth checks if the given depth is a known ResearchDepth.
func IsValidResearchDepth(depth ResearchDepth) bool {
	switch depth {
	case ResearchDepthQuick, ResearchDepthDeep:
		return true
	default:
		return false
	}
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}
