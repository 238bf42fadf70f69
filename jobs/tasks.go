package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries user-facing mail.
	QueueCritical = "critical"

	// TaskMailOTP delivers a registration code.
	TaskMailOTP = "mail:otp"
	// TaskInvoiceIssue issues the invoice of a paid order.
	TaskInvoiceIssue = "invoice:issue"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
	// TaskInventoryReconcile compares cached stock with the ledger.
	TaskInventoryReconcile = "inventory:reconcile"
	// TaskReportsWarmup pre-computes the default sales report.
	TaskReportsWarmup = "reports:warmup"
)

// MailOTPPayload carries a verification code to deliver.
type MailOTPPayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// InvoiceIssuePayload identifies the paid order.
type InvoiceIssuePayload struct {
	OrderID int64 `json:"order_id"`
}

// ScheduledPayload carries scheduling metadata for cron tasks.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewMailOTPTask constructs an Asynq task. The code expires with the OTP so retries stop early.
func NewMailOTPTask(payload MailOTPPayload, ttl time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueCritical), asynq.MaxRetry(3)}
	if ttl > 0 {
		opts = append(opts, asynq.Timeout(30*time.Second), asynq.Deadline(time.Now().Add(ttl)))
	}
	return asynq.NewTask(TaskMailOTP, data, opts...), nil
}

// NewInvoiceIssueTask constructs an Asynq task deduplicated per order.
func NewInvoiceIssueTask(orderID int64) (*asynq.Task, error) {
	data, err := json.Marshal(InvoiceIssuePayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceIssue, data, asynq.Queue(QueueDefault), asynq.MaxRetry(10)), nil
}

// NewScheduledTask builds a cron task of the given type.
func NewScheduledTask(taskType string, at time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data, asynq.Queue(QueueDefault)), nil
}
