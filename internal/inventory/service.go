package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bookhaven/bookhaven/internal/observability"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetHeader(ctx context.Context, id int64) (Header, error)
	ListHeaders(ctx context.Context, filter ListFilter) ([]Header, int, error)
	Movements(ctx context.Context, productID int64) ([]Movement, error)
}

// Service coordinates manual ledger operations and queries. Order-driven writes go
// through ApplyOutForOrder and ReverseOrder inside the caller's transaction.
type Service struct {
	repo    RepositoryPort
	audit   shared.AuditRecorder
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, metrics: metrics, logger: logger}
}

// ApplyTransaction writes a header and its items in one transaction.
func (s *Service) ApplyTransaction(ctx context.Context, in ApplyInput) (Header, error) {
	if _, err := Validate(in); err != nil {
		return Header{}, err
	}
	var header Header
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		header, err = Apply(ctx, tx, in)
		return err
	})
	if err != nil {
		return Header{}, err
	}
	s.metrics.StockTransaction(string(header.Type))
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  in.ActorID,
		Action:   fmt.Sprintf("inventory:%s", header.Type),
		Entity:   "inventory_transaction",
		EntityID: fmt.Sprintf("%d", header.ID),
		Meta: map[string]any{
			"reference_type": header.ReferenceType,
			"reference_id":   header.ReferenceID,
			"items":          len(header.Items),
			"note":           header.Note,
		},
	})
	return header, nil
}

// GetTransaction loads a header with its items.
func (s *Service) GetTransaction(ctx context.Context, id int64) (Header, error) {
	if id <= 0 {
		return Header{}, ErrTransactionNotFound
	}
	return s.repo.GetHeader(ctx, id)
}

// ListTransactions returns a filtered page of headers.
func (s *Service) ListTransactions(ctx context.Context, filter ListFilter) ([]Header, shared.Pagination, error) {
	if filter.Page.Page <= 0 {
		filter.Page.Page = 1
	}
	if filter.Page.PerPage <= 0 {
		filter.Page.PerPage = 20
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, shared.Pagination{}, ErrInvalidTransactionType
	}
	if filter.ReferenceType != "" && !filter.ReferenceType.Valid() {
		return nil, shared.Pagination{}, ErrInvalidTransactionType
	}
	headers, total, err := s.repo.ListHeaders(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return headers, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// StockCard returns the product's movements with running balance. limit keeps only the
// most recent entries when positive.
func (s *Service) StockCard(ctx context.Context, productID int64, limit int) ([]StockCardEntry, error) {
	if productID <= 0 {
		return nil, shared.ErrProductNotFound
	}
	movements, err := s.repo.Movements(ctx, productID)
	if err != nil {
		return nil, err
	}
	entries := BuildStockCard(movements)
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// IsLedgerConflict reports whether err is a business-rule rejection from the ledger
// rather than an infrastructure failure.
func IsLedgerConflict(err error) bool {
	return errors.Is(err, ErrInsufficientInventory) ||
		errors.Is(err, ErrDuplicateOutTransaction) ||
		errors.Is(err, ErrAlreadyCompensated) ||
		errors.Is(err, ErrNothingToCompensate)
}
