package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bibliohub/pkg/database"
)

// CatalogEntry is the public snapshot shape served by catalog-server.
// Borrower details never leave the main database.
type CatalogEntry struct {
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Category        string `json:"category"`
	Publisher       string `json:"publisher,omitempty"`
	PublishedYear   int    `json:"published_year,omitempty"`
	Synopsis        string `json:"synopsis,omitempty"`
	CoverURL        string `json:"cover_url,omitempty"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	IsAvailable     bool   `json:"is_available"`
}

func main() {
	var (
		outPath = flag.String("out", "data/catalog.json", "output JSON path")
		limit   = flag.Int("limit", 500, "how many books to export")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, title, author, isbn, category, publisher, published_year,
		       synopsis, cover_url, total_copies, available_copies
		FROM books
		ORDER BY title
		LIMIT ?
	`, *limit)
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}
	defer rows.Close()

	var out []CatalogEntry
	for rows.Next() {
		var (
			id            string
			title         string
			author        string
			isbn          string
			category      string
			publisher     sql.NullString
			publishedYear sql.NullInt64
			synopsis      sql.NullString
			coverURL      sql.NullString
			total         int
			available     int
		)

		if err := rows.Scan(
			&id, &title, &author, &isbn, &category, &publisher, &publishedYear,
			&synopsis, &coverURL, &total, &available,
		); err != nil {
			log.Fatalf("scan failed: %v", err)
		}

		out = append(out, CatalogEntry{
			Slug:            slugify(title),
			Title:           title,
			Author:          author,
			ISBN:            isbn,
			Category:        category,
			Publisher:       publisher.String,
			PublishedYear:   int(publishedYear.Int64),
			Synopsis:        synopsis.String,
			CoverURL:        coverURL.String,
			TotalCopies:     total,
			AvailableCopies: available,
			IsAvailable:     available > 0,
		})
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("rows error: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		log.Fatalf("mkdir failed: %v", err)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("marshal failed: %v", err)
	}

	if err := os.WriteFile(*outPath, b, 0o644); err != nil {
		log.Fatalf("write failed: %v", err)
	}

	log.Printf("✅ exported %d books to %s", len(out), *outPath)
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
		} else {
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "untitled"
	}
	return out
}
