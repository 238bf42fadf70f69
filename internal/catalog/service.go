package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bookhaven/bookhaven/internal/events"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Create(ctx context.Context, p Product) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	PriceHistory(ctx context.Context, productID int64) ([]PriceChange, error)
}

// Service manages the product catalog.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditRecorder
	events events.Publisher
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, events: publisher, logger: logger}
}

// PriceChangedPayload is the body of product.price_changed events.
type PriceChangedPayload struct {
	ProductID int64       `json:"product_id"`
	Change    PriceChange `json:"change"`
}

func normalizeInput(in Input) (Input, error) {
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	if in.Price.IsNegative() {
		return in, ErrInvalidPrice
	}
	in.Price = shared.RoundMoney(in.Price)
	return in, nil
}

// Create adds a product. New products start with zero stock; stock arrives through
// inventory IN transactions.
func (s *Service) Create(ctx context.Context, in Input, actorID int64) (Product, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return Product{}, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	p, err := s.repo.Create(ctx, Product{
		SKU:         in.SKU,
		Title:       in.Title,
		Author:      in.Author,
		Description: in.Description,
		Price:       in.Price,
		Active:      active,
	})
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, actorID, "product:create", p, nil)
	return p, nil
}

// Update edits a product and appends a price history entry when the price moves.
func (s *Service) Update(ctx context.Context, id int64, in Input, actorID int64) (Product, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return Product{}, err
	}
	var (
		product Product
		change  *PriceChange
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockByID(ctx, id)
		if err != nil {
			return err
		}
		next := current
		next.SKU, next.Title, next.Author, next.Description, next.Price = in.SKU, in.Title, in.Author, in.Description, in.Price
		if in.Active != nil {
			next.Active = *in.Active
		}
		product, err = tx.Update(ctx, next)
		if err != nil {
			return err
		}
		if !current.Price.Equal(next.Price) {
			saved, err := tx.InsertPriceChange(ctx, NewPriceChange(id, current.Price, next.Price, actorID))
			if err != nil {
				return err
			}
			change = &saved
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, actorID, "product:update", product, change)
	if change != nil {
		events.Emit(ctx, s.events, s.logger, events.New(events.TypePriceChanged, "product-"+strconv.FormatInt(id, 10),
			PriceChangedPayload{ProductID: id, Change: *change}))
	}
	return product, nil
}

// SetActive toggles product visibility without touching the price.
func (s *Service) SetActive(ctx context.Context, id int64, active bool, actorID int64) (Product, error) {
	var product Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockByID(ctx, id)
		if err != nil {
			return err
		}
		current.Active = active
		product, err = tx.Update(ctx, current)
		return err
	})
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, actorID, fmt.Sprintf("product:active:%t", active), product, nil)
	return product, nil
}

// Get returns a product. Inactive products are hidden unless includeInactive is set.
func (s *Service) Get(ctx context.Context, id int64, includeInactive bool) (Product, error) {
	if id <= 0 {
		return Product{}, ErrProductNotFound
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if !p.Active && !includeInactive {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

// List returns a page of products.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, shared.Pagination, error) {
	filter.Search = NormalizeSearch(filter.Search)
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

// PriceHistory returns the price changes of a product.
func (s *Service) PriceHistory(ctx context.Context, productID int64) ([]PriceChange, error) {
	if _, err := s.repo.Get(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.PriceHistory(ctx, productID)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, p Product, change *PriceChange) {
	meta := map[string]any{"sku": p.SKU, "price": p.Price.String(), "active": p.Active}
	if change != nil {
		meta["old_price"] = change.OldPrice.String()
		if change.ChangePercentage != nil {
			meta["change_percentage"] = change.ChangePercentage.String()
		}
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta:     meta,
	})
}
