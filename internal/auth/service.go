package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bookhaven/bookhaven/internal/events"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// MaxOTPAttempts bounds verification attempts per pending registration.
const MaxOTPAttempts = 5

// PendingStore keeps registrations awaiting OTP verification.
type PendingStore interface {
	Save(ctx context.Context, pending PendingRegistration, ttl time.Duration) error
	Load(ctx context.Context, email string) (PendingRegistration, error)
	Attempt(ctx context.Context, email string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, email string) error
}

// Config tunes the auth service.
type Config struct {
	OTPTTL     time.Duration
	BcryptCost int
}

// Service wraps authentication business rules.
type Service struct {
	repo      Repository
	pending   PendingStore
	sender    OTPSender
	tokens    *TokenIssuer
	publisher events.Publisher
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
	code      func() (string, error)
}

// NewService constructs a new Service.
func NewService(repo Repository, pending PendingStore, sender OTPSender, tokens *TokenIssuer, publisher events.Publisher, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo: repo, pending: pending, sender: sender, tokens: tokens, publisher: publisher,
		logger: logger, cfg: cfg, now: time.Now, code: GenerateCode,
	}
}

// WithCodeGenerator overrides the OTP generator.
func (s *Service) WithCodeGenerator(fn func() (string, error)) *Service {
	s.code = fn
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register stores a pending registration and sends the OTP.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	email := normalizeEmail(in.Email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return ErrEmailExists
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	pending := PendingRegistration{
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: string(hash),
	}
	return s.issueOTP(ctx, pending)
}

// ResendOTP replaces the code of an existing pending registration.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	pending, err := s.pending.Load(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	return s.issueOTP(ctx, pending)
}

func (s *Service) issueOTP(ctx context.Context, pending PendingRegistration) error {
	code, err := s.code()
	if err != nil {
		return fmt.Errorf("auth: generate otp: %w", err)
	}
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("auth: hash otp: %w", err)
	}
	pending.CodeHash = string(codeHash)
	pending.ExpiresAt = s.now().Add(s.cfg.OTPTTL)
	if err := s.pending.Save(ctx, pending, s.cfg.OTPTTL); err != nil {
		return err
	}
	if err := s.sender.SendOTP(ctx, pending.Email, code); err != nil {
		if delErr := s.pending.Delete(ctx, pending.Email); delErr != nil {
			s.logger.Warn("drop pending registration", slog.String("email", pending.Email), slog.Any("error", delErr))
		}
		return fmt.Errorf("auth: %v: %w", err, ErrEmailSendFailed)
	}
	return nil
}

// Verify checks the OTP, creates the account and signs the user in.
func (s *Service) Verify(ctx context.Context, email, code string) (Session, error) {
	email = normalizeEmail(email)
	pending, err := s.pending.Load(ctx, email)
	if err != nil {
		return Session{}, err
	}
	attempts, err := s.pending.Attempt(ctx, email, s.cfg.OTPTTL)
	if err != nil {
		return Session{}, err
	}
	if attempts > MaxOTPAttempts {
		return Session{}, ErrTooManyAttempts
	}
	if bcrypt.CompareHashAndPassword([]byte(pending.CodeHash), []byte(code)) != nil {
		return Session{}, ErrInvalidOTP
	}
	user, err := s.repo.Create(ctx, User{
		Email:        pending.Email,
		FullName:     pending.FullName,
		Phone:        pending.Phone,
		PasswordHash: pending.PasswordHash,
		Role:         shared.RoleCustomer,
		IsActive:     true,
	})
	if err != nil {
		return Session{}, err
	}
	if err := s.pending.Delete(ctx, email); err != nil {
		s.logger.Warn("drop pending registration", slog.String("email", email), slog.Any("error", err))
	}
	events.Emit(ctx, s.publisher, s.logger, events.New(events.TypeUserRegistered, "user-"+strconv.FormatInt(user.ID, 10), map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	}))
	return s.session(*user)
}

// Login validates email/password credentials.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.session(*user)
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Me returns the account of the principal.
func (s *Service) Me(ctx context.Context, principal shared.Principal) (User, error) {
	user, err := s.repo.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, shared.ErrUnauthenticated
		}
		return User{}, err
	}
	return *user, nil
}

// EnsureAdmin creates the bootstrap admin account when it is missing.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	_, err = s.repo.Create(ctx, User{
		Email: email, FullName: "Administrator", PasswordHash: string(hash),
		Role: shared.RoleAdmin, IsActive: true,
	})
	if errors.Is(err, ErrEmailExists) {
		return nil
	}
	if err == nil {
		s.logger.Info("bootstrap admin created", slog.String("email", email))
	}
	return err
}

func (s *Service) session(user User) (Session, error) {
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, User: user}, nil
}
