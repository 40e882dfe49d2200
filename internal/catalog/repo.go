package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bibliohub/pkg/models"
)

// Repo covers the two small reference tables, authors and categories.
// Books point at them by name only, so deletes here never cascade.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) CreateAuthor(ctx context.Context, a models.Author) (*models.Author, error) {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO authors (id, name, nationality, bio)
		VALUES (?, ?, ?, ?)
	`, a.ID, a.Name, nullStr(a.Nationality), nullStr(a.Bio))
	if err != nil {
		return nil, fmt.Errorf("insert author: %w", err)
	}
	return r.GetAuthor(ctx, a.ID)
}

func (r *Repo) GetAuthor(ctx context.Context, id string) (*models.Author, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, name, nationality, bio, created_at, updated_at
		FROM authors WHERE id = ?
	`, id)

	var (
		a           models.Author
		nationality sql.NullString
		bio         sql.NullString
		created     time.Time
		updated     time.Time
	)
	if err := row.Scan(&a.ID, &a.Name, &nationality, &bio, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan author: %w", err)
	}
	a.Nationality = nationality.String
	a.Bio = bio.String
	a.CreatedAt = created
	a.UpdatedAt = updated
	return &a, nil
}

func (r *Repo) ListAuthors(ctx context.Context) ([]models.Author, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, nationality, bio, created_at, updated_at
		FROM authors ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()

	var out []models.Author
	for rows.Next() {
		var (
			a           models.Author
			nationality sql.NullString
			bio         sql.NullString
			created     time.Time
			updated     time.Time
		)
		if err := rows.Scan(&a.ID, &a.Name, &nationality, &bio, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan author row: %w", err)
		}
		a.Nationality = nationality.String
		a.Bio = bio.String
		a.CreatedAt = created
		a.UpdatedAt = updated
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) UpdateAuthor(ctx context.Context, a models.Author) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE authors
		SET name = ?, nationality = ?, bio = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, a.Name, nullStr(a.Nationality), nullStr(a.Bio), a.ID)
	if err != nil {
		return false, fmt.Errorf("update author: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) DeleteAuthor(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM authors WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete author: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) CreateCategory(ctx context.Context, cat models.Category) (*models.Category, error) {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO categories (id, name, description)
		VALUES (?, ?, ?)
	`, cat.ID, cat.Name, nullStr(cat.Description))
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return r.GetCategory(ctx, cat.ID)
}

func (r *Repo) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM categories WHERE id = ?
	`, id)

	var (
		cat     models.Category
		desc    sql.NullString
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&cat.ID, &cat.Name, &desc, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}
	cat.Description = desc.String
	cat.CreatedAt = created
	cat.UpdatedAt = updated
	return &cat, nil
}

func (r *Repo) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM categories ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var (
			cat     models.Category
			desc    sql.NullString
			created time.Time
			updated time.Time
		)
		if err := rows.Scan(&cat.ID, &cat.Name, &desc, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		cat.Description = desc.String
		cat.CreatedAt = created
		cat.UpdatedAt = updated
		out = append(out, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) UpdateCategory(ctx context.Context, cat models.Category) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, cat.Name, nullStr(cat.Description), cat.ID)
	if err != nil {
		return false, fmt.Errorf("update category: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) DeleteCategory(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
