package reservations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bibliohub/internal/feed"
	"bibliohub/pkg/liberr"
	"bibliohub/pkg/models"
)

// PickupWindowDays is how long a notified borrower has to collect the
// copy before the reservation reads as expired.
const PickupWindowDays = 7

// Service runs the reservation queue state machine:
// active -> {notified, cancelled, expired},
// notified -> {fulfilled, cancelled, expired}.
// The expired transition is derived at read time, never stored.
// Reservations never touch the inventory counters; that is the loan
// workflow's side of the contract.
type Service struct {
	DB   *sql.DB
	Repo *Repo
	Hub  *feed.Hub
	Log  zerolog.Logger
	Now  func() time.Time // test clock; defaults to time.Now UTC
}

func NewService(db *sql.DB, repo *Repo, hub *feed.Hub, log zerolog.Logger) *Service {
	return &Service{DB: db, Repo: repo, Hub: hub, Log: log}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type CreateParams struct {
	BookID          string
	BorrowerName    string
	BorrowerEmail   string
	BorrowerPhone   string
	ReservationDate time.Time
	Notes           string
}

// Create queues a reservation. Any book can be reserved, available or
// not. The same borrower may hold several reservations for one book;
// branch staff use that for group pickups, so it is allowed.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Reservation, error) {
	var exists int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE id = ?`, p.BookID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check book: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: book %s", liberr.ErrNotFound, p.BookID)
	}

	when := p.ReservationDate
	if when.IsZero() {
		when = s.now()
	}

	res := models.Reservation{
		ID:              uuid.NewString(),
		BookID:          p.BookID,
		BorrowerName:    p.BorrowerName,
		BorrowerEmail:   p.BorrowerEmail,
		BorrowerPhone:   p.BorrowerPhone,
		ReservationDate: when,
		Status:          models.ReservationActive,
		Notes:           p.Notes,
	}
	if err := Insert(ctx, s.DB, res); err != nil {
		return nil, err
	}

	saved, err := s.Repo.GetByID(ctx, res.ID)
	if err != nil {
		return nil, err
	}

	if s.Hub != nil {
		go s.Hub.Broadcast(feed.Event{
			Type:          feed.ReservationCreated,
			BookID:        saved.BookID,
			ReservationID: saved.ID,
			BorrowerEmail: saved.BorrowerEmail,
			Priority:      saved.Priority,
		})
	}
	return saved, nil
}

// Notify marks an active reservation as notified and opens the pickup
// window. Staff must not notify when no copy is on the shelf, so the
// stock check is enforced here.
func (s *Service) Notify(ctx context.Context, id string) (*models.Reservation, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: reservation %s", liberr.ErrNotFound, id)
	}
	if res.Status != models.ReservationActive {
		return nil, fmt.Errorf("%w: cannot notify a %s reservation", liberr.ErrInvalidState, res.Status)
	}

	var available int
	if err := tx.QueryRowContext(ctx, `
		SELECT available_copies FROM books WHERE id = ?
	`, res.BookID).Scan(&available); err != nil {
		return nil, fmt.Errorf("check stock: %w", err)
	}
	if available <= 0 {
		return nil, fmt.Errorf("%w: no available copies to notify about", liberr.ErrInvalidState)
	}

	now := s.now()
	expires := now.AddDate(0, 0, PickupWindowDays)
	if _, err := tx.ExecContext(ctx, `
		UPDATE reservations
		SET status = 'notified', notification_date = ?, expiration_date = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, now, expires, id); err != nil {
		return nil, fmt.Errorf("mark notified: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	saved, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.Hub != nil {
		go s.Hub.Broadcast(feed.Event{
			Type:          feed.ReservationNotified,
			BookID:        saved.BookID,
			ReservationID: saved.ID,
			BorrowerEmail: saved.BorrowerEmail,
			Priority:      saved.Priority,
		})
	}
	return saved, nil
}

// Fulfill closes the reservation because the borrower took the copy.
// Allowed from active as well as notified; staff may hand over a copy
// without the notify step when the borrower happens to be at the desk.
// Creating the loan and decrementing inventory is the caller's job.
func (s *Service) Fulfill(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: reservation %s", liberr.ErrNotFound, id)
	}

	if err := MarkFulfilled(ctx, s.DB, id, res.BookID); err != nil {
		return nil, err
	}

	saved, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.Hub != nil {
		go s.Hub.Broadcast(feed.Event{
			Type:          feed.ReservationFulfilled,
			BookID:        saved.BookID,
			ReservationID: saved.ID,
			BorrowerEmail: saved.BorrowerEmail,
		})
	}
	return saved, nil
}

// Cancel voids an open reservation. Cancelling a reservation that is
// already terminal fails with InvalidState, consistently.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE reservations
		SET status = 'cancelled', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN ('active', 'notified')
	`, id)
	if err != nil {
		return nil, fmt.Errorf("cancel reservation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		existing, err := s.Repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: reservation %s", liberr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: cannot cancel a %s reservation", liberr.ErrInvalidState, existing.Status)
	}

	saved, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.Hub != nil {
		go s.Hub.Broadcast(feed.Event{
			Type:          feed.ReservationCancelled,
			BookID:        saved.BookID,
			ReservationID: saved.ID,
			BorrowerEmail: saved.BorrowerEmail,
		})
	}
	return saved, nil
}

// Queue is the ordered waiting list for one book.
func (s *Service) Queue(ctx context.Context, bookID string) ([]models.Reservation, error) {
	return s.Repo.QueueForBook(ctx, bookID, s.now())
}

// Present applies the derived expiry so callers report the effective
// state without a stored transition.
func (s *Service) Present(res *models.Reservation) *models.Reservation {
	if res == nil {
		return nil
	}
	res.Status = res.EffectiveStatus(s.now())
	return res
}
