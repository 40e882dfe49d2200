package reservations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bibliohub/pkg/liberr"
	"bibliohub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type ListQuery struct {
	Status string // effective status; "expired" selects the derived view
	BookID string
	Limit  int
	Offset int
}

type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const selectReservation = `
	SELECT id, book_id, borrower_name, borrower_email, borrower_phone,
	       reservation_date, notification_date, expiration_date,
	       status, priority, notes, created_at, updated_at
	FROM reservations`

func Get(ctx context.Context, q Queryer, id string) (*models.Reservation, error) {
	row := q.QueryRowContext(ctx, selectReservation+` WHERE id = ?`, id)
	r, err := scanReservation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan reservation: %w", err)
	}
	return r, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	return Get(ctx, r.DB, id)
}

// Insert assigns the queue priority inside the INSERT itself:
// max(priority) over the book's open reservations, plus one. A single
// statement, so two simultaneous reservations can't read the same max.
// Cancelled slots are never re-compacted.
func Insert(ctx context.Context, ex Execer, res models.Reservation) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO reservations (
			id, book_id, borrower_name, borrower_email, borrower_phone,
			reservation_date, status, priority, notes
		)
		VALUES (?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(priority), 0) + 1
			 FROM reservations
			 WHERE book_id = ? AND status IN ('active', 'notified')),
			?)
	`,
		res.ID, res.BookID, res.BorrowerName, res.BorrowerEmail,
		nullStr(res.BorrowerPhone), res.ReservationDate, res.Status,
		res.BookID, nullStr(res.Notes),
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// MarkFulfilled moves an open reservation to fulfilled. The loan
// workflow calls this inside its checkout transaction; the state guard
// and the write are one statement.
func MarkFulfilled(ctx context.Context, ex Execer, id, bookID string) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE reservations
		SET status = 'fulfilled', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND book_id = ? AND status IN ('active', 'notified')
	`, id, bookID)
	if err != nil {
		return fmt.Errorf("fulfill reservation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: reservation %s is not open for book %s", liberr.ErrInvalidState, id, bookID)
	}
	return nil
}

// QueueForBook is the ordered waiting list: open reservations sorted by
// priority, ties broken by reservation date. Sorted at read time, no
// separate queue structure. Reservations whose pickup window lapsed are
// filtered out here even though their stored status is still notified.
func (r *Repo) QueueForBook(ctx context.Context, bookID string, now time.Time) ([]models.Reservation, error) {
	rows, err := r.DB.QueryContext(ctx, selectReservation+`
		WHERE book_id = ? AND status IN ('active', 'notified')
		ORDER BY priority ASC, reservation_date ASC
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("queue for book: %w", err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		if !res.InQueue(now) {
			continue
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// QueueHead returns the next reservation to serve for a book, or nil
// when the queue is empty.
func (r *Repo) QueueHead(ctx context.Context, bookID string, now time.Time) (*models.Reservation, error) {
	queue, err := r.QueueForBook(ctx, bookID, now)
	if err != nil {
		return nil, err
	}
	if len(queue) == 0 {
		return nil, nil
	}
	return &queue[0], nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Reservation, int, error) {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where, args := buildReservationFilter(q)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx,
		selectReservation+where+` ORDER BY priority ASC, reservation_date ASC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	out := make([]models.Reservation, 0, limit)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan reservation row: %w", err)
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows err: %w", err)
	}
	return out, total, nil
}

func (r *Repo) UpdateContact(ctx context.Context, res models.Reservation) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE reservations
		SET borrower_name = ?, borrower_email = ?, borrower_phone = ?,
		    notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, res.BorrowerName, res.BorrowerEmail, nullStr(res.BorrowerPhone), nullStr(res.Notes), res.ID)
	if err != nil {
		return fmt.Errorf("update reservation contact: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete reservation: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func buildReservationFilter(q ListQuery) (string, []any) {
	var where []string
	var args []any

	switch strings.ToLower(strings.TrimSpace(q.Status)) {
	case "":
	case models.ReservationExpired:
		// derived view plus any manually stored expired rows
		where = append(where, "(status = 'expired' OR (status = 'notified' AND expiration_date < ?))")
		args = append(args, time.Now().UTC())
	default:
		where = append(where, "status = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(q.Status)))
	}

	if id := strings.TrimSpace(q.BookID); id != "" {
		where = append(where, "book_id = ?")
		args = append(args, id)
	}

	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r          models.Reservation
		phone      sql.NullString
		notified   sql.NullTime
		expiration sql.NullTime
		reserved   time.Time
		notes      sql.NullString
		created    time.Time
		updated    time.Time
	)

	if err := row.Scan(
		&r.ID, &r.BookID, &r.BorrowerName, &r.BorrowerEmail, &phone,
		&reserved, &notified, &expiration, &r.Status, &r.Priority,
		&notes, &created, &updated,
	); err != nil {
		return nil, err
	}

	r.BorrowerPhone = phone.String
	r.ReservationDate = reserved
	if notified.Valid {
		t := notified.Time
		r.NotificationDate = &t
	}
	if expiration.Valid {
		t := expiration.Time
		r.ExpirationDate = &t
	}
	r.Notes = notes.String
	r.CreatedAt = created
	r.UpdatedAt = updated
	return &r, nil
}

func nullStr(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
