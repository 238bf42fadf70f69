package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bookhaven/bookhaven/internal/platform/httpx"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// Handler provides HTTP endpoints for auth flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	require   func(http.Handler) http.Handler
	limit     func(http.Handler) http.Handler
}

// NewHandler builds a new auth handler. limit guards the credential endpoints and may be nil.
func NewHandler(logger *slog.Logger, service *Service, require, limit func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), require: require, limit: limit}
}

// MountRoutes registers auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limit != nil {
			r.Use(h.limit)
		}
		r.Post("/register", h.handleRegister)
		r.Post("/verify", h.handleVerify)
		r.Post("/resend", h.handleResend)
		r.Post("/login", h.handleLogin)
	})
	r.Group(func(r chi.Router) {
		if h.require != nil {
			r.Use(h.require)
		}
		r.Get("/me", h.handleMe)
	})
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type resendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.Register(r.Context(), req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "otp sent", map[string]string{"email": normalizeEmail(req.Email)})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	session, err := h.service.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, "registered", session)
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.ResendOTP(r.Context(), req.Email); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "otp sent", map[string]string{"email": normalizeEmail(req.Email)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.logger.Info("login", slog.Int64("user_id", session.User.ID))
	httpx.OK(w, "logged in", session)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, h.logger, shared.ErrUnauthenticated)
		return
	}
	user, err := h.service.Me(r.Context(), principal)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "me", user)
}
