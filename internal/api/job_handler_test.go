package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/api"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/orchestrator"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/service"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// fakeJobService implements service.JobService with overridable functions
// so handler tests can exercise each response path.
type fakeJobService struct {
	CreateJobFn   func(ctx context.Context, ownerID uuid.UUID, subjects []string, depth domain.ResearchDepth, concurrency int) (*domain.ResearchJob, error)
	GetJobFn      func(ctx context.Context, jobID uuid.UUID) (*service.JobDetail, error)
	TriggerTickFn func(ctx context.Context, jobID uuid.UUID, concurrency int) error
	CancelJobFn   func(ctx context.Context, jobID uuid.UUID) error
}

func (f *fakeJobService) CreateJob(
	ctx context.Context,
	ownerID uuid.UUID,
	subjects []string,
	depth domain.ResearchDepth,
	requestedConcurrency int,
) (*domain.ResearchJob, error) {
	return f.CreateJobFn(ctx, ownerID, subjects, depth, requestedConcurrency)
}

func (f *fakeJobService) GetJob(ctx context.Context, jobID uuid.UUID) (*service.JobDetail, error) {
	return f.GetJobFn(ctx, jobID)
}

func (f *fakeJobService) TriggerTick(ctx context.Context, jobID uuid.UUID, requestedConcurrency int) error {
	return f.TriggerTickFn(ctx, jobID, requestedConcurrency)
}

func (f *fakeJobService) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	return f.CancelJobFn(ctx, jobID)
}

// newJobRouter mounts the handler on the same route patterns the server uses.
func newJobRouter(svc service.JobService) http.Handler {
	handler := api.NewJobHandler(svc)

	r := chi.NewRouter()
	r.Post("/api/jobs", handler.CreateJob)
	r.Get("/api/jobs/{id}", handler.GetJob)
	r.Post("/api/jobs/{id}/tick", handler.TickJob)
	r.Post("/api/jobs/{id}/cancel", handler.CancelJob)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateJobReturnsAccepted(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	subjects := []string{"Acme Corp", "Globex"}

	svc := &fakeJobService{
		CreateJobFn: func(ctx context.Context, gotOwner uuid.UUID, gotSubjects []string, depth domain.ResearchDepth, concurrency int) (*domain.ResearchJob, error) {
			assert.Equal(t, ownerID, gotOwner)
			assert.Equal(t, subjects, gotSubjects)
			assert.Equal(t, domain.ResearchDepthDeep, depth)
			assert.Equal(t, 2, concurrency)
			return domain.NewResearchJob(gotOwner, gotSubjects, depth)
		},
	}
	router := newJobRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/jobs", api.CreateJobRequest{
		OwnerID:     ownerID.String(),
		Subjects:    subjects,
		Depth:       "deep",
		Concurrency: 2,
	})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp api.JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ownerID.String(), resp.OwnerID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, 2, resp.PendingTasks)
	assert.Zero(t, resp.CompletedCount)
}

func TestCreateJobDefaultsToQuickDepth(t *testing.T) {
	t.Parallel()

	svc := &fakeJobService{
		CreateJobFn: func(ctx context.Context, ownerID uuid.UUID, subjects []string, depth domain.ResearchDepth, concurrency int) (*domain.ResearchJob, error) {
			assert.Equal(t, domain.ResearchDepthQuick, depth)
			return domain.NewResearchJob(ownerID, subjects, depth)
		},
	}
	router := newJobRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/jobs", api.CreateJobRequest{
		OwnerID:  uuid.NewString(),
		Subjects: []string{"Acme Corp"},
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCreateJobRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	router := newJobRouter(&fakeJobService{})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request format")
}

func TestCreateJobValidatesRequest(t *testing.T) {
	t.Parallel()

	router := newJobRouter(&fakeJobService{})

	cases := []struct {
		name string
		req  api.CreateJobRequest
	}{
		{
			name: "missing subjects",
			req:  api.CreateJobRequest{OwnerID: uuid.NewString()},
		},
		{
			name: "unknown depth",
			req:  api.CreateJobRequest{OwnerID: uuid.NewString(), Subjects: []string{"Acme"}, Depth: "exhaustive"},
		},
		{
			name: "concurrency above limit",
			req:  api.CreateJobRequest{OwnerID: uuid.NewString(), Subjects: []string{"Acme"}, Concurrency: 4},
		},
		{
			name: "owner not a uuid",
			req:  api.CreateJobRequest{OwnerID: "owner-1", Subjects: []string{"Acme"}},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := doJSON(t, router, http.MethodPost, "/api/jobs", tc.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateJobMapsInvalidEntityError(t *testing.T) {
	t.Parallel()

	svc := &fakeJobService{
		CreateJobFn: func(ctx context.Context, ownerID uuid.UUID, subjects []string, depth domain.ResearchDepth, concurrency int) (*domain.ResearchJob, error) {
			return nil, store.ErrInvalidEntity
		},
	}
	router := newJobRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/jobs", api.CreateJobRequest{
		OwnerID:  uuid.NewString(),
		Subjects: []string{"Acme Corp"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobReturnsDetail(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	started := time.Now().UTC()

	svc := &fakeJobService{
		GetJobFn: func(ctx context.Context, gotID uuid.UUID) (*service.JobDetail, error) {
			require.Equal(t, jobID, gotID)

			job, err := domain.NewResearchJob(uuid.New(), []string{"Acme Corp", "Globex", "Initech"}, domain.ResearchDepthQuick)
			require.NoError(t, err)
			job.ID = jobID
			job.Status = domain.JobStatusRunning
			job.CompletedCount = 1
			job.StartedAt = &started
			job.Results = []domain.TaskOutcome{
				{Subject: "Acme Corp", Status: domain.TaskStatusCompleted, Summary: "summary of Acme Corp"},
			}

			detail := &service.JobDetail{Job: job}
			detail.Counts.Total = 3
			detail.Counts.Pending = 1
			detail.Counts.Running = 1
			detail.Counts.Completed = 1
			return detail, nil
		},
	}
	router := newJobRouter(svc)

	rec := doJSON(t, router, http.MethodGet, "/api/jobs/"+jobID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, jobID.String(), resp.ID)
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, 1, resp.CompletedCount)
	assert.Equal(t, 1, resp.PendingTasks)
	assert.Equal(t, 1, resp.RunningTasks)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "summary of Acme Corp", resp.Results[0].Summary)
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	svc := &fakeJobService{
		GetJobFn: func(ctx context.Context, jobID uuid.UUID) (*service.JobDetail, error) {
			return nil, service.ErrJobNotFound
		},
	}
	router := newJobRouter(svc)

	rec := doJSON(t, router, http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobRejectsMalformedID(t *testing.T) {
	t.Parallel()

	router := newJobRouter(&fakeJobService{})

	rec := doJSON(t, router, http.MethodGet, "/api/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid job ID")
}

func TestTickJobWithEmptyBody(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	var gotConcurrency = -1

	svc := &fakeJobService{
		TriggerTickFn: func(ctx context.Context, gotID uuid.UUID, concurrency int) error {
			assert.Equal(t, jobID, gotID)
			gotConcurrency = concurrency
			return nil
		},
	}
	router := newJobRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/jobs/"+jobID.String()+"/tick", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 0, gotConcurrency)
	assert.Contains(t, rec.Body.String(), "tick_enqueued")
}

func TestTickJobPassesConcurrency(t *testing.T) {
	t.Parallel()

	var gotConcurrency int
	svc := &fakeJobService{
		TriggerTickFn: func(ctx context.Context, jobID uuid.UUID, concurrency int) error {
			gotConcurrency = concurrency
			return nil
		},
	}
	router := newJobRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/jobs/"+uuid.NewString()+"/tick", api.TickRequest{Concurrency: 3})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 3, gotConcurrency)
}

func TestTickJobOnFinishedJob(t *testing.T) {
	t.Parallel()

	svc := &fakeJobService{
		TriggerTickFn: func(ctx context.Context, jobID uuid.UUID, concurrency int) error {
			return service.ErrJobFinished
		},
	}
	router := newJobRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/jobs/"+uuid.NewString()+"/tick", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTickJobWhenQueueFull(t *testing.T) {
	t.Parallel()

	svc := &fakeJobService{
		TriggerTickFn: func(ctx context.Context, jobID uuid.UUID, concurrency int) error {
			return orchestrator.ErrQueueFull
		},
	}
	router := newJobRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/jobs/"+uuid.NewString()+"/tick", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCancelJob(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	var cancelled bool

	svc := &fakeJobService{
		CancelJobFn: func(ctx context.Context, gotID uuid.UUID) error {
			assert.Equal(t, jobID, gotID)
			cancelled = true
			return nil
		},
	}
	router := newJobRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/jobs/"+jobID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, cancelled)
	assert.Contains(t, rec.Body.String(), "cancelled")
}

func TestCancelJobAlreadyFinished(t *testing.T) {
	t.Parallel()

	svc := &fakeJobService{
		CancelJobFn: func(ctx context.Context, jobID uuid.UUID) error {
			return service.ErrJobFinished
		},
	}
	router := newJobRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/jobs/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
