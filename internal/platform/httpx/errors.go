package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// RespondError maps an error to the envelope. Categorised errors keep their code and
// detail; anything else is logged and reported as a generic internal failure.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		JSON(w, shared.ErrValidation.Status, Envelope{
			Code:    shared.ErrValidation.Code,
			Message: shared.ErrValidation.Message,
			Error:   verr.Fields,
		})
		return
	}
	if appErr, ok := shared.AsAppError(err); ok {
		env := Envelope{Code: appErr.Code, Message: appErr.Message}
		if detail := err.Error(); detail != appErr.Message {
			env.Error = detail
		}
		JSON(w, appErr.Status, env)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		JSON(w, http.StatusGatewayTimeout, Envelope{Code: shared.ErrInternal.Code, Message: "request timed out"})
		return
	}
	if logger != nil {
		logger.Error("unhandled error", slog.Any("error", err))
	}
	JSON(w, shared.ErrInternal.Status, Envelope{Code: shared.ErrInternal.Code, Message: shared.ErrInternal.Message})
}
