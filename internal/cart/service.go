package cart

import (
	"context"
	"fmt"
	"log/slog"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Lines(ctx context.Context, userID int64) ([]Line, error)
	Quantity(ctx context.Context, userID, productID int64) (int, error)
	Upsert(ctx context.Context, userID, productID int64, quantity int) error
	SetSelected(ctx context.Context, userID, productID int64, selected bool) error
	Remove(ctx context.Context, userID, productID int64) error
	Clear(ctx context.Context, userID int64) error
}

// ProductLookup reports whether a product can be put in a cart.
type ProductLookup interface {
	Available(ctx context.Context, productID int64) (bool, error)
}

// Service manages carts.
type Service struct {
	repo     RepositoryPort
	products ProductLookup
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductLookup, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, products: products, logger: logger}
}

// View returns the cart with totals over the selected lines.
func (s *Service) View(ctx context.Context, userID int64) (Cart, error) {
	lines, err := s.repo.Lines(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	return Summarize(userID, lines), nil
}

// Add increases the quantity of a product, creating the line when needed.
func (s *Service) Add(ctx context.Context, userID, productID int64, quantity int) (Cart, error) {
	if err := s.checkProduct(ctx, productID); err != nil {
		return Cart{}, err
	}
	current, err := s.repo.Quantity(ctx, userID, productID)
	if err != nil {
		return Cart{}, err
	}
	next := current + quantity
	if next > MaxQuantity {
		return Cart{}, fmt.Errorf("cart: product %d quantity %d: %w", productID, next, ErrQuantityTooLarge)
	}
	if err := s.repo.Upsert(ctx, userID, productID, next); err != nil {
		return Cart{}, err
	}
	return s.View(ctx, userID)
}

// SetQuantity replaces the quantity of an existing line.
func (s *Service) SetQuantity(ctx context.Context, userID, productID int64, quantity int) (Cart, error) {
	if quantity > MaxQuantity {
		return Cart{}, ErrQuantityTooLarge
	}
	current, err := s.repo.Quantity(ctx, userID, productID)
	if err != nil {
		return Cart{}, err
	}
	if current == 0 {
		return Cart{}, ErrCartItemNotFound
	}
	if err := s.repo.Upsert(ctx, userID, productID, quantity); err != nil {
		return Cart{}, err
	}
	return s.View(ctx, userID)
}

// Select marks a line for checkout or removes the mark.
func (s *Service) Select(ctx context.Context, userID, productID int64, selected bool) (Cart, error) {
	if err := s.repo.SetSelected(ctx, userID, productID, selected); err != nil {
		return Cart{}, err
	}
	return s.View(ctx, userID)
}

// Remove deletes a line.
func (s *Service) Remove(ctx context.Context, userID, productID int64) (Cart, error) {
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		return Cart{}, err
	}
	return s.View(ctx, userID)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	return s.repo.Clear(ctx, userID)
}

func (s *Service) checkProduct(ctx context.Context, productID int64) error {
	if s.products == nil {
		return nil
	}
	ok, err := s.products.Available(ctx, productID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cart: product %d: %w", productID, ErrProductUnavailable)
	}
	return nil
}

// CatalogLookup adapts a product getter to ProductLookup.
type CatalogLookup func(ctx context.Context, productID int64) (active bool, err error)

// Available implements ProductLookup.
func (f CatalogLookup) Available(ctx context.Context, productID int64) (bool, error) {
	return f(ctx, productID)
}
