package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/platform/postgres"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/testdb"
)

// testTimeout is the maximum time allowed for a single test operation.
const testTimeout = 5 * time.Second

// testDB holds a shared connection for all tests in this package.
// Migrations run once in TestMain rather than per test.
var testDB *sql.DB

func TestMain(m *testing.M) {
	// Skip if not in integration test environment
	if !testdb.IsIntegrationTestEnvironment() {
		os.Exit(0)
	}

	var err error
	testDB, err = testdb.Connect(testdb.MustGetTestDatabaseURL())
	if err != nil {
		fmt.Printf("Failed to set up test database: %v\n", err)
		os.Exit(1)
	}

	exitCode := m.Run()

	if err := testDB.Close(); err != nil {
		fmt.Printf("Failed to close database connection in TestMain: %v\n", err)
	}

	os.Exit(exitCode)
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

// insertTestJob creates and persists a job with one pending task per
// subject, returning the job and its tasks in creation order.
func insertTestJob(
	ctx context.Context,
	t *testing.T,
	subjects []string,
	depth domain.ResearchDepth,
) (*domain.ResearchJob, []*domain.ResearchTask) {
	t.Helper()

	jobStore := postgres.NewPostgresJobStore(testDB)
	taskStore := postgres.NewPostgresTaskStore(testDB)

	job, err := domain.NewResearchJob(uuid.New(), subjects, depth)
	require.NoError(t, err)
	require.NoError(t, jobStore.Create(ctx, job))

	tasks := make([]*domain.ResearchTask, 0, len(subjects))
	for i, subject := range subjects {
		task, err := domain.NewResearchTask(job.ID, subject)
		require.NoError(t, err)
		// Spread created_at so claim ordering is deterministic.
		task.CreatedAt = task.CreatedAt.Add(time.Duration(i) * time.Millisecond)
		tasks = append(tasks, task)
	}
	require.NoError(t, taskStore.CreateBatch(ctx, tasks))

	return job, tasks
}
