package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/bookhaven/bookhaven/internal/invoices"
	jobmetrics "github.com/bookhaven/bookhaven/internal/jobs"
)

// InvoiceIssuer is implemented by invoices.Service.
type InvoiceIssuer interface {
	IssueForOrder(ctx context.Context, orderID int64) (invoices.Invoice, error)
}

// InvoiceIssueJob issues invoices for paid orders.
type InvoiceIssueJob struct {
	Invoices InvoiceIssuer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// Handle processes TaskInvoiceIssue tasks.
func (j *InvoiceIssueJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("invoice issue: handler not configured")
	}
	var payload InvoiceIssuePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.OrderID <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskInvoiceIssue)
	inv, err := j.Invoices.IssueForOrder(ctx, payload.OrderID)
	if errors.Is(err, invoices.ErrInvoiceNotFound) {
		_ = tracker.End(err)
		return fmt.Errorf("order %d: %w", payload.OrderID, asynq.SkipRetry)
	}
	if err != nil {
		return tracker.End(err)
	}
	if j.Logger != nil {
		j.Logger.Info("invoice job done", slog.Int64("order_id", payload.OrderID), slog.String("number", inv.Number))
	}
	return tracker.End(nil)
}
