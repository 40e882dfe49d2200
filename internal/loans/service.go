package loans

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bibliohub/internal/books"
	"bibliohub/internal/feed"
	"bibliohub/internal/notify"
	"bibliohub/internal/reservations"
	"bibliohub/pkg/liberr"
	"bibliohub/pkg/models"
)

// Notifier pushes a pickup notice to the borrower, if reachable.
type Notifier interface {
	NotifyBookAvailable(email string, msg notify.BookAvailableMessage) bool
}

// Service runs the loan state machine: active -> {renewed, returned},
// renewed -> {renewed, returned}, returned terminal. Every transition
// that moves a copy runs in one transaction with the inventory update,
// so the decrement-and-check can never race another checkout.
type Service struct {
	DB           *sql.DB
	Loans        *Repo
	Reservations *reservations.Repo
	Hub          *feed.Hub
	Notifier     Notifier
	Log          zerolog.Logger
	Now          func() time.Time // test clock; defaults to time.Now UTC
}

func NewService(db *sql.DB, loans *Repo, res *reservations.Repo, hub *feed.Hub, log zerolog.Logger) *Service {
	return &Service{DB: db, Loans: loans, Reservations: res, Hub: hub, Log: log}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type CreateParams struct {
	BookID        string
	BorrowerName  string
	BorrowerEmail string
	BorrowerPhone string
	LoanDate      time.Time
	Notes         string
	ReservationID string // optional: fulfilled in the same transaction
}

// Create checks out one copy. The copy claim (conditional decrement)
// and the loan insert commit together; when a reservation id is given
// its fulfillment joins the same transaction, so a crash can never
// leave a fulfilled reservation without its loan.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Loan, error) {
	loanDate := p.LoanDate
	if loanDate.IsZero() {
		loanDate = s.now()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE id = ?`, p.BookID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check book: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: book %s", liberr.ErrNotFound, p.BookID)
	}

	if p.ReservationID != "" {
		if err := reservations.MarkFulfilled(ctx, tx, p.ReservationID, p.BookID); err != nil {
			return nil, err
		}
	}

	if err := books.TakeCopy(ctx, tx, p.BookID); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO loans (
			id, book_id, borrower_name, borrower_email, borrower_phone,
			loan_date, due_date, status, fine, renewal_count, notes
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'active', 0, 0, ?)
	`,
		id, p.BookID, p.BorrowerName, p.BorrowerEmail, nullStr(p.BorrowerPhone),
		loanDate, DueDate(loanDate), nullStr(p.Notes),
	); err != nil {
		return nil, fmt.Errorf("insert loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	saved, err := s.Loans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.broadcastInventory(ctx, p.BookID)
	if s.Hub != nil {
		go s.Hub.Broadcast(feed.Event{
			Type:          feed.LoanCreated,
			BookID:        saved.BookID,
			LoanID:        saved.ID,
			BorrowerEmail: saved.BorrowerEmail,
		})
		if p.ReservationID != "" {
			go s.Hub.Broadcast(feed.Event{
				Type:          feed.ReservationFulfilled,
				BookID:        saved.BookID,
				ReservationID: p.ReservationID,
				BorrowerEmail: saved.BorrowerEmail,
			})
		}
	}
	return saved, nil
}

// Renew extends the due date by one loan period, up to MaxRenewals.
func (s *Service) Renew(ctx context.Context, id string) (*models.Loan, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	l, err := Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("%w: loan %s", liberr.ErrNotFound, id)
	}
	if !l.Open() {
		return nil, fmt.Errorf("%w: cannot renew a %s loan", liberr.ErrInvalidState, l.Status)
	}
	if l.RenewalCount >= MaxRenewals {
		return nil, fmt.Errorf("%w: loan already renewed %d times", liberr.ErrLimitExceeded, l.RenewalCount)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET due_date = ?, renewal_count = renewal_count + 1, status = 'renewed',
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, ExtendDueDate(l.DueDate), id); err != nil {
		return nil, fmt.Errorf("renew loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	saved, err := s.Loans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.Hub != nil {
		go s.Hub.Broadcast(feed.Event{
			Type:          feed.LoanRenewed,
			BookID:        saved.BookID,
			LoanID:        saved.ID,
			BorrowerEmail: saved.BorrowerEmail,
		})
	}
	return saved, nil
}

// Return closes the loan, computes the fine from the due and return
// dates, and releases the copy, all in one transaction. After commit
// it hands off to the reservation queue: if someone is waiting, the
// head of the queue is surfaced on the feed and pushed over UDP so
// staff can run the notify step.
func (s *Service) Return(ctx context.Context, id string, returnDate time.Time) (*models.Loan, error) {
	if returnDate.IsZero() {
		returnDate = s.now()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	l, err := Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("%w: loan %s", liberr.ErrNotFound, id)
	}
	if l.Status == models.LoanReturned {
		return nil, fmt.Errorf("%w: loan already returned", liberr.ErrInvalidState)
	}

	fine := Fine(l.DueDate, returnDate)

	if _, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET return_date = ?, fine = ?, status = 'returned',
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, returnDate, fine, id); err != nil {
		return nil, fmt.Errorf("close loan: %w", err)
	}

	if err := books.ReturnCopy(ctx, tx, l.BookID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	saved, err := s.Loans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.broadcastInventory(ctx, l.BookID)
	if s.Hub != nil {
		go s.Hub.Broadcast(feed.Event{
			Type:          feed.LoanReturned,
			BookID:        saved.BookID,
			LoanID:        saved.ID,
			BorrowerEmail: saved.BorrowerEmail,
			Fine:          saved.Fine,
		})
	}

	s.handoffToQueue(ctx, l.BookID)
	return saved, nil
}

// handoffToQueue surfaces the next waiting reservation after a copy
// came back. Best-effort: a failure here never rolls back the return.
func (s *Service) handoffToQueue(ctx context.Context, bookID string) {
	if s.Reservations == nil {
		return
	}

	head, err := s.Reservations.QueueHead(ctx, bookID, s.now())
	if err != nil {
		s.Log.Warn().Str("book_id", bookID).Err(err).Msg("queue head lookup failed")
		return
	}
	if head == nil {
		return
	}

	if s.Hub != nil {
		go s.Hub.Broadcast(feed.Event{
			Type:          feed.QueueNext,
			BookID:        bookID,
			ReservationID: head.ID,
			BorrowerEmail: head.BorrowerEmail,
			Priority:      head.Priority,
		})
	}

	if s.Notifier != nil {
		delivered := s.Notifier.NotifyBookAvailable(head.BorrowerEmail, notify.BookAvailableMessage{
			BookID:        bookID,
			ReservationID: head.ID,
			Priority:      head.Priority,
		})
		if delivered {
			s.Log.Info().
				Str("book_id", bookID).
				Str("reservation_id", head.ID).
				Msg("pickup notice delivered")
		}
	}
}

func (s *Service) broadcastInventory(ctx context.Context, bookID string) {
	if s.Hub == nil {
		return
	}
	var available int
	if err := s.DB.QueryRowContext(ctx, `
		SELECT available_copies FROM books WHERE id = ?
	`, bookID).Scan(&available); err != nil {
		return
	}
	go s.Hub.Broadcast(feed.Event{
		Type:            feed.InventoryChanged,
		BookID:          bookID,
		AvailableCopies: &available,
	})
}
