package books

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

type ListQuery struct {
	Q         string // keyword search in title/author/isbn
	Category  string
	Available bool // only books with a free copy
	Limit     int
	Offset    int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Execer is satisfied by *sql.DB and *sql.Tx. The inventory mutations
// below take it so the loan workflow can run them inside its own
// transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TakeCopy atomically claims one copy: the availability check and the
// decrement are a single conditional UPDATE, so two concurrent checkouts
// of the last copy cannot both succeed. is_available is recomputed in
// the same statement.
func TakeCopy(ctx context.Context, ex Execer, bookID string) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE books
		SET available_copies = available_copies - 1,
		    is_available = CASE WHEN available_copies - 1 > 0 THEN 1 ELSE 0 END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_copies > 0
	`, bookID)
	if err != nil {
		return fmt.Errorf("take copy: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: no available copies for book %s", liberr.ErrInvalidState, bookID)
	}
	return nil
}

// ReturnCopy releases one copy back to the shelf. A zero-row result
// means the counters are out of sync (more returns than checkouts) and
// is reported, never swallowed.
func ReturnCopy(ctx context.Context, ex Execer, bookID string) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE books
		SET available_copies = available_copies + 1,
		    is_available = 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_copies < total_copies
	`, bookID)
	if err != nil {
		return fmt.Errorf("return copy: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("inventory out of sync: book %s already at full stock", bookID)
	}
	return nil
}

func (r *Repo) Create(ctx context.Context, b models.Book) (*models.Book, error) {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO books (
			id, title, author, isbn, category, published_year, publisher,
			pages, synopsis, cover_url, location,
			total_copies, available_copies, is_available
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.Title, b.Author, b.ISBN, b.Category,
		nullInt(b.PublishedYear), nullStr(b.Publisher), nullInt(b.Pages),
		nullStr(b.Synopsis), nullStr(b.CoverURL), nullStr(b.Location),
		b.TotalCopies, b.AvailableCopies, boolToInt(b.AvailableCopies > 0),
	)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return r.GetByID(ctx, b.ID)
}

// Update writes the full row. is_available is always recomputed from the
// counters; whatever the caller put in b.IsAvailable is ignored.
func (r *Repo) Update(ctx context.Context, b models.Book) (*models.Book, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE books
		SET title = ?, author = ?, isbn = ?, category = ?,
		    published_year = ?, publisher = ?, pages = ?, synopsis = ?,
		    cover_url = ?, location = ?,
		    total_copies = ?, available_copies = ?,
		    is_available = CASE WHEN ? > 0 THEN 1 ELSE 0 END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		b.Title, b.Author, b.ISBN, b.Category,
		nullInt(b.PublishedYear), nullStr(b.Publisher), nullInt(b.Pages),
		nullStr(b.Synopsis), nullStr(b.CoverURL), nullStr(b.Location),
		b.TotalCopies, b.AvailableCopies, b.AvailableCopies,
		b.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("%w: book %s", liberr.ErrNotFound, b.ID)
	}
	return r.GetByID(ctx, b.ID)
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		// FK violation: loans or reservations still reference this book.
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return fmt.Errorf("%w: book %s has circulation history", liberr.ErrInvalidState, id)
		}
		return fmt.Errorf("delete book: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: book %s", liberr.ErrNotFound, id)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Book, error) {
	row := r.DB.QueryRowContext(ctx, selectBook+` WHERE id = ?`, id)
	b, err := scanBook(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan book: %w", err)
	}
	return b, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Book, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	out := make([]models.Book, 0, q.Limit)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

const selectBook = `
	SELECT id, title, author, isbn, category, published_year, publisher,
	       pages, synopsis, cover_url, location,
	       total_copies, available_copies, is_available,
	       created_at, updated_at
	FROM books`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*models.Book, error) {
	var (
		b         models.Book
		year      sql.NullInt64
		publisher sql.NullString
		pages     sql.NullInt64
		synopsis  sql.NullString
		coverURL  sql.NullString
		location  sql.NullString
		available int
		created   time.Time
		updated   time.Time
	)

	if err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Category,
		&year, &publisher, &pages, &synopsis, &coverURL, &location,
		&b.TotalCopies, &b.AvailableCopies, &available,
		&created, &updated,
	); err != nil {
		return nil, err
	}

	if year.Valid {
		b.PublishedYear = int(year.Int64)
	}
	b.Publisher = publisher.String
	if pages.Valid {
		b.Pages = int(pages.Int64)
	}
	b.Synopsis = synopsis.String
	b.CoverURL = coverURL.String
	b.Location = location.String
	b.IsAvailable = available > 0
	b.CreatedAt = created
	b.UpdatedAt = updated
	return &b, nil
}

func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := selectBook
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM books`
	}

	var where []string
	var args []any

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR isbn LIKE ?)")
		like := "%" + strings.ToLower(kw) + "%"
		args = append(args, like, like, like)
	}

	if cat := strings.TrimSpace(q.Category); cat != "" {
		where = append(where, "LOWER(category) = ?")
		args = append(args, strings.ToLower(cat))
	}

	if q.Available {
		where = append(where, "available_copies > 0")
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY created_at DESC, title ASC"
		sqlStr += " LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	return sqlStr, args
}

func nullStr(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
