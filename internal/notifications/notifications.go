// Package notifications stores in-app messages for customers.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// Notification is a message addressed to one user.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ErrNotificationNotFound reports a missing or foreign notification.
var ErrNotificationNotFound = shared.NewError(8101, http.StatusNotFound, "notification not found")

// RepositoryPort abstracts persistence for Service.
type RepositoryPort interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]Notification, int, error)
	MarkRead(ctx context.Context, userID, id int64, at time.Time) error
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
}

// Repository persists notifications in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a notification.
func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO notifications (user_id, kind, title, body, created_at)
VALUES ($1,$2,$3,$4,NOW()) RETURNING id, created_at`, n.UserID, n.Kind, n.Title, n.Body).Scan(&n.ID, &n.CreatedAt)
	return n, err
}

// List returns a user's notifications, newest first.
func (r *Repository) List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, kind, title, body, read_at, created_at, COUNT(*) OVER()
FROM notifications WHERE user_id=$1 AND (NOT $2 OR read_at IS NULL)
ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Notification
		total int
	)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// MarkRead stamps one notification of userID as read. Marking twice keeps the first timestamp.
func (r *Repository) MarkRead(ctx context.Context, userID, id int64, at time.Time) error {
	var ok bool
	err := r.pool.QueryRow(ctx, `UPDATE notifications SET read_at = COALESCE(read_at, $3)
WHERE id=$1 AND user_id=$2 RETURNING true`, id, userID, at).Scan(&ok)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotificationNotFound
	}
	return err
}

// MarkAllRead stamps every unread notification of userID.
func (r *Repository) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at=$2 WHERE user_id=$1 AND read_at IS NULL`, userID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UnreadCount counts unread notifications.
func (r *Repository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND read_at IS NULL`, userID).Scan(&n)
	return n, err
}

// Service writes and reads notifications.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Notify stores a notification for userID.
func (s *Service) Notify(ctx context.Context, userID int64, kind, title, body string) error {
	if userID <= 0 {
		return fmt.Errorf("notifications: user id required: %w", shared.ErrValidation)
	}
	_, err := s.repo.Insert(ctx, Notification{
		UserID: userID,
		Kind:   kind,
		Title:  strings.TrimSpace(title),
		Body:   strings.TrimSpace(body),
	})
	return err
}

// Page is a list of notifications with the unread counter.
type Page struct {
	Items      []Notification    `json:"items"`
	Unread     int               `json:"unread"`
	Pagination shared.Pagination `json:"pagination"`
}

// List returns the caller's notifications.
func (s *Service) List(ctx context.Context, userID int64, unreadOnly bool, page shared.PageRequest) (Page, error) {
	items, total, err := s.repo.List(ctx, userID, unreadOnly, page.Limit(), page.Offset())
	if err != nil {
		return Page{}, err
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []Notification{}
	}
	return Page{Items: items, Unread: unread, Pagination: shared.NewPagination(page.Page, page.PerPage, total)}, nil
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, userID, id int64) error {
	return s.repo.MarkRead(ctx, userID, id, s.now().UTC())
}

// MarkAllRead marks every notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now().UTC())
}
