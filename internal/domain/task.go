package domain

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of one research task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// MaxTaskAttempts is the retry budget for a single task. Once a task has
// been claimed this many times and failed, it transitions to failed instead
// of returning to the pending pool.
const MaxTaskAttempts = 3

// Common validation errors for ResearchTask
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrEmptyTaskJobID    = errors.New("task job ID cannot be empty")
	ErrEmptyTaskSubject  = errors.New("task subject cannot be empty")
	ErrInvalidTaskStatus = errors.New("invalid task status")
)

// ResearchTask represents one subject within a research job. Tasks are
// created once per subject at job creation and move
// pending -> running -> {completed|failed}, with a running -> pending
// rollback path for retries and stale reclamation.
//
// AttemptCount increases monotonically: the claim operation increments it,
// reclamation does not.
type ResearchTask struct {
	ID           uuid.UUID  `json:"id"`
	JobID        uuid.UUID  `json:"job_id"`
	Subject      string     `json:"subject"`
	Status       TaskStatus `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Result       *string    `json:"result,omitempty"`
	Error        *string    `json:"error,omitempty"`
}

// NewResearchTask creates a new pending ResearchTask for the given job and
// subject. Returns an error if validation fails.
func NewResearchTask(jobID uuid.UUID, subject string) (*ResearchTask, error) {
	task := &ResearchTask{
		ID:        uuid.New(),
		JobID:     jobID,
		Subject:   subject,
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the ResearchTask has valid data.
func (t *ResearchTask) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.JobID == uuid.Nil {
		return ErrEmptyTaskJobID
	}

	if t.Subject == "" {
		return ErrEmptyTaskSubject
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// IsTerminal reports whether the task has reached a terminal status.
func (t *ResearchTask) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// Outcome converts a terminal task into the snapshot stored on the job
// record. The result summary is truncated so the job row stays small even
// when the generation service produces long documents.
func (t *ResearchTask) Outcome() TaskOutcome {
	const maxSummaryLen = 500

	outcome := TaskOutcome{
		Subject: t.Subject,
		Status:  t.Status,
	}

	if t.Result != nil {
		summary := *t.Result
		if len(summary) > maxSummaryLen {
			// Cut on a rune boundary so the snapshot stays valid UTF-8.
			cut := maxSummaryLen
			for cut > 0 && !utf8.RuneStart(summary[cut]) {
				cut--
			}
			summary = summary[:cut]
		}
		outcome.Summary = summary
	}

	if t.Error != nil {
		outcome.Error = *t.Error
	}

	return outcome
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
