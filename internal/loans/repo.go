package loans

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bibliohub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type ListQuery struct {
	Status string // stored status, or "overdue" for the derived view
	BookID string
	Limit  int
	Offset int
}

// Queryer is satisfied by *sql.DB and *sql.Tx so reads can run inside
// the service's transactions.
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectLoan = `
	SELECT id, book_id, borrower_name, borrower_email, borrower_phone,
	       loan_date, due_date, return_date, status, fine, renewal_count,
	       notes, created_at, updated_at
	FROM loans`

// Get reads one loan through q, which may be a transaction.
func Get(ctx context.Context, q Queryer, id string) (*models.Loan, error) {
	row := q.QueryRowContext(ctx, selectLoan+` WHERE id = ?`, id)
	l, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan loan: %w", err)
	}
	return l, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Loan, error) {
	return Get(ctx, r.DB, id)
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Loan, int, error) {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where, args := buildLoanFilter(q)

	var total int
	countSQL := `SELECT COUNT(*) FROM loans` + where
	if err := r.DB.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}

	listSQL := selectLoan + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.DB.QueryContext(ctx, listSQL, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	out, err := collectLoans(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListByBorrower is the borrower-history view, newest first.
func (r *Repo) ListByBorrower(ctx context.Context, email string, limit, offset int) ([]models.Loan, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loans WHERE borrower_email = ?
	`, email).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count borrower loans: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, selectLoan+`
		WHERE borrower_email = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, email, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list borrower loans: %w", err)
	}
	defer rows.Close()

	out, err := collectLoans(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) UpdateContact(ctx context.Context, l models.Loan) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE loans
		SET borrower_name = ?, borrower_email = ?, borrower_phone = ?,
		    notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, l.BorrowerName, l.BorrowerEmail, nullStr(l.BorrowerPhone), nullStr(l.Notes), l.ID)
	if err != nil {
		return fmt.Errorf("update loan contact: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete loan: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func buildLoanFilter(q ListQuery) (string, []any) {
	var where []string
	var args []any

	switch strings.ToLower(strings.TrimSpace(q.Status)) {
	case "":
	case models.LoanOverdue:
		// derived view: open loans past their due date
		where = append(where, "status IN ('active', 'renewed')", "due_date < ?")
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

func collectLoans(rows *sql.Rows, capHint int) ([]models.Loan, error) {
	out := make([]models.Loan, 0, capHint)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan row: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var (
		l          models.Loan
		phone      sql.NullString
		returnDate sql.NullTime
		notes      sql.NullString
		loanDate   time.Time
		dueDate    time.Time
		created    time.Time
		updated    time.Time
	)

	if err := row.Scan(
		&l.ID, &l.BookID, &l.BorrowerName, &l.BorrowerEmail, &phone,
		&loanDate, &dueDate, &returnDate, &l.Status, &l.Fine, &l.RenewalCount,
		&notes, &created, &updated,
	); err != nil {
		return nil, err
	}

	l.BorrowerPhone = phone.String
	l.LoanDate = loanDate
	l.DueDate = dueDate
	if returnDate.Valid {
		t := returnDate.Time
		l.ReturnDate = &t
	}
	l.Notes = notes.String
	l.CreatedAt = created
	l.UpdatedAt = updated
	l.Overdue = l.IsOverdue(time.Now().UTC())
	return &l, nil
}

func nullStr(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
