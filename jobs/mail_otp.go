package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/mail"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/bookhaven/bookhaven/internal/jobs"
)

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes mails to the log instead of an SMTP relay.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs the message without its body.
func (m LogMailer) Send(_ context.Context, to, subject, _ string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}

// MailOTPJob renders and sends registration codes.
type MailOTPJob struct {
	Mailer  Mailer
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskMailOTP tasks.
func (j *MailOTPJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Mailer == nil {
		return errors.New("mail otp: handler not configured")
	}
	var payload MailOTPPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if _, err := mail.ParseAddress(payload.Email); err != nil || len(payload.Code) != 6 {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskMailOTP)
	body := "Your BookHaven verification code is " + payload.Code + ". It expires in a few minutes."
	return tracker.End(j.Mailer.Send(ctx, payload.Email, "Your BookHaven verification code", body))
}
