package vouchers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Reader() Reader
	Create(ctx context.Context, v Voucher) (Voucher, error)
	Update(ctx context.Context, v Voucher) (Voucher, error)
	Get(ctx context.Context, id int64) (Voucher, error)
	List(ctx context.Context, filter ListFilter) ([]Voucher, int, error)
}

// Service exposes voucher validation and admin maintenance.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithClock overrides the time source used for validity windows.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Validate checks a code against the given totals without consuming it.
func (s *Service) Validate(ctx context.Context, check Check) (Result, error) {
	if check.Code == "" {
		return Result{Err: ErrVoucherNotFound}, nil
	}
	return Validate(ctx, s.repo.Reader(), check, s.now())
}

// Create stores a new voucher definition.
func (s *Service) Create(ctx context.Context, in Input, actorID int64) (Voucher, error) {
	if err := CheckDefinition(in); err != nil {
		return Voucher{}, err
	}
	v, err := s.repo.Create(ctx, fromInput(Voucher{}, in))
	if err != nil {
		return Voucher{}, err
	}
	s.record(ctx, actorID, "voucher:create", v)
	return v, nil
}

// Update replaces a voucher definition. Existing usages are unaffected.
func (s *Service) Update(ctx context.Context, id int64, in Input, actorID int64) (Voucher, error) {
	if err := CheckDefinition(in); err != nil {
		return Voucher{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	v, err := s.repo.Update(ctx, fromInput(current, in))
	if err != nil {
		return Voucher{}, err
	}
	v.UsedCount = current.UsedCount
	s.record(ctx, actorID, "voucher:update", v)
	return v, nil
}

// Deactivate switches a voucher off. Usages stay recorded.
func (s *Service) Deactivate(ctx context.Context, id int64, actorID int64) (Voucher, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if !current.Active {
		return current, nil
	}
	current.Active = false
	v, err := s.repo.Update(ctx, current)
	if err != nil {
		return Voucher{}, err
	}
	v.UsedCount = current.UsedCount
	s.record(ctx, actorID, "voucher:deactivate", v)
	return v, nil
}

// Get returns a voucher with its used count.
func (s *Service) Get(ctx context.Context, id int64) (Voucher, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of vouchers.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Voucher, shared.Pagination, error) {
	if filter.Page.Page <= 0 {
		filter.Page.Page = 1
	}
	if filter.Page.PerPage <= 0 {
		filter.Page.PerPage = 20
	}
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, v Voucher) {
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "voucher",
		EntityID: fmt.Sprintf("%d", v.ID),
		Meta:     map[string]any{"code": v.Code, "active": v.Active},
	})
}

func fromInput(v Voucher, in Input) Voucher {
	v.Code = NormalizeCode(in.Code)
	v.Description = in.Description
	v.DiscountType = in.DiscountType
	v.DiscountAmount = in.DiscountAmount
	v.ApplyTo = in.ApplyTo
	v.MinOrderAmount = in.MinOrderAmount
	v.MaxDiscount = in.MaxDiscount
	v.ValidFrom = in.ValidFrom
	v.ValidTo = in.ValidTo
	v.UsageLimit = in.UsageLimit
	v.PerUserLimit = in.PerUserLimit
	v.Active = in.Active
	return v
}
