package api

import (
	"time"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/service"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/signals"
)

// CreateJobRequest is the request body for creating a research job.
type CreateJobRequest struct {
	OwnerID     string   `json:"owner_id"    validate:"required,uuid"`
	Subjects    []string `json:"subjects"    validate:"required,min=1,max=100,dive,required,max=500"`
	Depth       string   `json:"depth"       validate:"omitempty,oneof=quick deep"`
	Concurrency int      `json:"concurrency" validate:"omitempty,min=1,max=3"`
}

// TickRequest is the request body for manually triggering a job tick.
type TickRequest struct {
	Concurrency int `json:"concurrency" validate:"omitempty,min=1,max=3"`
}

// TaskOutcomeResponse is one subject's result in a job response.
type TaskOutcomeResponse struct {
	Subject string `json:"subject"`
	Status  string `json:"status"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JobResponse is the API representation of a research job.
type JobResponse struct {
	ID             string                `json:"id"`
	OwnerID        string                `json:"owner_id"`
	Status         string                `json:"status"`
	Depth          string                `json:"depth"`
	TotalCount     int                   `json:"total_count"`
	CompletedCount int                   `json:"completed_count"`
	PendingTasks   int                   `json:"pending_tasks"`
	RunningTasks   int                   `json:"running_tasks"`
	FailedTasks    int                   `json:"failed_tasks"`
	Results        []TaskOutcomeResponse `json:"results,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	StartedAt      *time.Time            `json:"started_at,omitempty"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
}

// NewJobResponse builds a JobResponse from a job and its task counts.
func NewJobResponse(detail *service.JobDetail) JobResponse {
	job := detail.Job

	results := make([]TaskOutcomeResponse, 0, len(job.Results))
	for _, outcome := range job.Results {
		results = append(results, TaskOutcomeResponse{
			Subject: outcome.Subject,
			Status:  string(outcome.Status),
			Summary: outcome.Summary,
			Error:   outcome.Error,
		})
	}

	return JobResponse{
		ID:             job.ID.String(),
		OwnerID:        job.OwnerID.String(),
		Status:         string(job.Status),
		Depth:          string(job.Depth),
		TotalCount:     job.TotalCount,
		CompletedCount: job.CompletedCount,
		PendingTasks:   detail.Counts.Pending,
		RunningTasks:   detail.Counts.Running,
		FailedTasks:    detail.Counts.Failed,
		Results:        results,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}
}

// DetectSignalsRequest is the request body for submitting raw findings.
type DetectSignalsRequest struct {
	Findings []FindingRequest `json:"findings" validate:"required,min=1,max=200,dive"`
}

// FindingRequest is one candidate finding submitted for normalization.
type FindingRequest struct {
	SignalType  string `json:"signal_type" validate:"required"`
	Description string `json:"description"`
	SignalDate  string `json:"signal_date"`
	Confidence  string `json:"confidence"`
	SourceURL   string `json:"source_url"`
}

// RawFinding converts the request finding to its domain form.
func (f FindingRequest) RawFinding() signals.RawFinding {
	return signals.RawFinding{
		SignalType:  f.SignalType,
		Description: f.Description,
		SignalDate:  f.SignalDate,
		Confidence:  f.Confidence,
		SourceURL:   f.SourceURL,
	}
}

// SignalResponse is the API representation of a detected signal.
type SignalResponse struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	SignalType  string    `json:"signal_type"`
	Description string    `json:"description"`
	SignalDate  string    `json:"signal_date,omitempty"`
	SourceURL   string    `json:"source_url"`
	Confidence  string    `json:"confidence"`
	Score       int       `json:"score"`
	Severity    string    `json:"severity"`
	DetectedAt  time.Time `json:"detected_at"`
}

// NewSignalResponse builds a SignalResponse from a detected signal.
func NewSignalResponse(signal *domain.DetectedSignal) SignalResponse {
	return SignalResponse{
		ID:          signal.ID.String(),
		AccountID:   signal.AccountID.String(),
		SignalType:  signal.SignalType,
		Description: signal.Description,
		SignalDate:  signal.SignalDate,
		SourceURL:   signal.SourceURL,
		Confidence:  string(signal.Confidence),
		Score:       signal.Score,
		Severity:    string(signal.Severity),
		DetectedAt:  signal.DetectedAt,
	}
}

// NewSignalListResponse converts a slice of detected signals.
func NewSignalListResponse(list []*domain.DetectedSignal) []SignalResponse {
	out := make([]SignalResponse, 0, len(list))
	for _, signal := range list {
		out = append(out, NewSignalResponse(signal))
	}
	return out
}
