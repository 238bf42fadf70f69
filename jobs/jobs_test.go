package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/invoices"
	jobmetrics "github.com/bookhaven/bookhaven/internal/jobs"
	"github.com/bookhaven/bookhaven/internal/reports"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientSendOTP(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq, 5*time.Minute)

	require.NoError(t, client.SendOTP(context.Background(), "reader@example.com", "123456"))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskMailOTP, enq.tasks[0].Type())
	var payload MailOTPPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, "123456", payload.Code)

	enq.err = errors.New("redis down")
	require.Error(t, client.SendOTP(context.Background(), "reader@example.com", "123456"))
}

func TestClientScheduleInvoiceToleratesDuplicates(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq, 0)
	require.NoError(t, client.ScheduleInvoice(context.Background(), 9))
	require.Len(t, enq.opts[0], 1)

	enq.err = asynq.ErrTaskIDConflict
	require.NoError(t, client.ScheduleInvoice(context.Background(), 9))
}

type recordingMailer struct {
	to, body string
}

func (m *recordingMailer) Send(_ context.Context, to, _, body string) error {
	m.to, m.body = to, body
	return nil
}

func TestMailOTPJob(t *testing.T) {
	mailer := &recordingMailer{}
	job := &MailOTPJob{Mailer: mailer, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}
	task, err := NewMailOTPTask(MailOTPPayload{Email: "reader@example.com", Code: "654321"}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "reader@example.com", mailer.to)
	require.Contains(t, mailer.body, "654321")

	bad := asynq.NewTask(TaskMailOTP, []byte(`{"email":"nope","code":"1"}`))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

type fakeIssuer struct {
	calls int
	err   error
}

func (f *fakeIssuer) IssueForOrder(_ context.Context, orderID int64) (invoices.Invoice, error) {
	f.calls++
	return invoices.Invoice{OrderID: orderID, Number: "INV-20260501-1"}, f.err
}

func TestInvoiceIssueJob(t *testing.T) {
	issuer := &fakeIssuer{}
	job := &InvoiceIssueJob{Invoices: issuer}
	task, err := NewInvoiceIssueTask(1)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, issuer.calls)

	issuer.err = invoices.ErrInvoiceNotFound
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)

	issuer.err = errors.New("db down")
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

type fakePurger struct {
	retention time.Duration
}

func (f *fakePurger) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.retention = olderThan
	return 4, nil
}

type fakeDrift struct {
	rows []inventory.Drift
}

func (f fakeDrift) Drift(context.Context) ([]inventory.Drift, error) {
	return f.rows, nil
}

func TestMaintenanceJobs(t *testing.T) {
	purger := &fakePurger{}
	cleanup := &IdempotencyCleanupJob{Store: purger}
	require.NoError(t, cleanup.Handle(context.Background(), nil))
	require.Equal(t, 24*time.Hour, purger.retention)

	reconcile := &InventoryReconcileJob{Source: fakeDrift{rows: []inventory.Drift{{ProductID: 1, CachedStock: 3, LedgerStock: 2}}}}
	require.NoError(t, reconcile.Handle(context.Background(), nil))

	require.Error(t, (&InventoryReconcileJob{}).Handle(context.Background(), nil))
}

type fakeReporter struct {
	ranges []reports.Range
}

func (f *fakeReporter) Sales(_ context.Context, rng reports.Range, _ int) (reports.SalesReport, error) {
	f.ranges = append(f.ranges, rng)
	return reports.SalesReport{}, nil
}

func TestReportsWarmupJob(t *testing.T) {
	rep := &fakeReporter{}
	job := &ReportsWarmupJob{Reports: rep, clock: func() time.Time {
		return time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	}}
	require.NoError(t, job.Handle(context.Background(), nil))
	require.Len(t, rep.ranges, 3)
	require.Equal(t, time.Date(2026, 4, 21, 0, 0, 0, 0, time.UTC), rep.ranges[2].From)
	require.Equal(t, time.Date(2026, 5, 21, 0, 0, 0, 0, time.UTC), rep.ranges[2].To)
}

type fakeInspector struct {
	err error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.QueueInfo{Queue: queue, Pending: 2}, nil
}

func TestHealthHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(fakeInspector{}, nil).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"pending":2`)

	r = chi.NewRouter()
	r.Route("/jobs", NewHandler(fakeInspector{err: asynq.ErrQueueNotFound}, nil).MountRoutes)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
