package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"bibliohub/pkg/database"
)

func main() {
	var (
		booksIn      = flag.String("books", "data/books.csv", "input CSV path for books")
		authorsIn    = flag.String("authors", "", "optional input CSV path for authors")
		categoriesIn = flag.String("categories", "", "optional input CSV path for categories")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if *authorsIn != "" {
		if err := importAuthors(ctx, db, *authorsIn); err != nil {
			log.Fatalf("import authors failed: %v", err)
		}
	}
	if *categoriesIn != "" {
		if err := importCategories(ctx, db, *categoriesIn); err != nil {
			log.Fatalf("import categories failed: %v", err)
		}
	}
	if err := importBooks(ctx, db, *booksIn); err != nil {
		log.Fatalf("import books failed: %v", err)
	}

	log.Printf("✅ imported books from %s", *booksIn)
}

func importBooks(ctx context.Context, db *sql.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return err
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO books (
			id, title, author, isbn, category, published_year, publisher,
			pages, synopsis, cover_url, location,
			total_copies, available_copies, is_available
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  title = excluded.title,
		  author = excluded.author,
		  isbn = excluded.isbn,
		  category = excluded.category,
		  published_year = excluded.published_year,
		  publisher = excluded.publisher,
		  pages = excluded.pages,
		  synopsis = excluded.synopsis,
		  cover_url = excluded.cover_url,
		  location = excluded.location,
		  total_copies = excluded.total_copies,
		  available_copies = excluded.available_copies,
		  is_available = excluded.is_available,
		  updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}

		title := valueAt(header, row, "title")
		author := valueAt(header, row, "author")
		isbn := valueAt(header, row, "isbn")
		category := valueAt(header, row, "category")
		if title == "" || author == "" || isbn == "" || category == "" {
			continue
		}

		id := valueAt(header, row, "id")
		if id == "" {
			id = uuid.NewString()
		}

		publishedYear, err := parseNullInt(valueAt(header, row, "published_year"))
		if err != nil {
			return fmt.Errorf("parse published_year for %s: %w", isbn, err)
		}
		pages, err := parseNullInt(valueAt(header, row, "pages"))
		if err != nil {
			return fmt.Errorf("parse pages for %s: %w", isbn, err)
		}

		total, err := parseIntDefault(valueAt(header, row, "total_copies"), 1)
		if err != nil {
			return fmt.Errorf("parse total_copies for %s: %w", isbn, err)
		}
		available, err := parseIntDefault(valueAt(header, row, "available_copies"), total)
		if err != nil {
			return fmt.Errorf("parse available_copies for %s: %w", isbn, err)
		}
		if available > total {
			available = total
		}
		if available < 0 {
			available = 0
		}
		isAvailable := 0
		if available > 0 {
			isAvailable = 1
		}

		if _, err := stmt.ExecContext(
			ctx,
			id,
			title,
			author,
			isbn,
			category,
			publishedYear,
			nullString(valueAt(header, row, "publisher")),
			pages,
			nullString(valueAt(header, row, "synopsis")),
			nullString(valueAt(header, row, "cover_url")),
			nullString(valueAt(header, row, "location")),
			total,
			available,
			isAvailable,
		); err != nil {
			return err
		}
	}

	return nil
}

func importAuthors(ctx context.Context, db *sql.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return err
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO authors (id, name, nationality, bio)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  name = excluded.name,
		  nationality = excluded.nationality,
		  bio = excluded.bio,
		  updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}

		name := valueAt(header, row, "name")
		if name == "" {
			continue
		}
		id := valueAt(header, row, "id")
		if id == "" {
			id = uuid.NewString()
		}

		if _, err := stmt.ExecContext(
			ctx,
			id,
			name,
			nullString(valueAt(header, row, "nationality")),
			nullString(valueAt(header, row, "bio")),
		); err != nil {
			return err
		}
	}

	return nil
}

func importCategories(ctx context.Context, db *sql.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return err
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO categories (id, name, description)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  name = excluded.name,
		  description = excluded.description,
		  updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}

		name := valueAt(header, row, "name")
		if name == "" {
			continue
		}
		id := valueAt(header, row, "id")
		if id == "" {
			id = uuid.NewString()
		}

		if _, err := stmt.ExecContext(
			ctx,
			id,
			name,
			nullString(valueAt(header, row, "description")),
		); err != nil {
			return err
		}
	}

	return nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseNullInt(raw string) (sql.NullInt64, error) {
	if raw == "" {
		return sql.NullInt64{}, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: n, Valid: true}, nil
}

func parseIntDefault(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func nullString(raw string) sql.NullString {
	if raw == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: raw, Valid: true}
}
