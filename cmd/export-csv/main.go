package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bibliohub/pkg/database"
)

func main() {
	var (
		booksOut = flag.String("books", "data/books.csv", "output CSV path for books")
		loansOut = flag.String("loans", "data/loans.csv", "output CSV path for loans")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := exportBooks(ctx, db, *booksOut); err != nil {
		log.Fatalf("export books failed: %v", err)
	}
	if err := exportLoans(ctx, db, *loansOut); err != nil {
		log.Fatalf("export loans failed: %v", err)
	}

	log.Printf("✅ exported books to %s and loans to %s", *booksOut, *loansOut)
}

func exportBooks(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"id", "title", "author", "isbn", "category", "published_year",
		"publisher", "pages", "location", "total_copies", "available_copies",
	}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT id, title, author, isbn, category, published_year,
               publisher, pages, location, total_copies, available_copies
        FROM books
        ORDER BY title
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id            string
			title         string
			author        string
			isbn          string
			category      string
			publishedYear sql.NullInt64
			publisher     sql.NullString
			pages         sql.NullInt64
			location      sql.NullString
			total         int
			available     int
		)

		if err := rows.Scan(
			&id, &title, &author, &isbn, &category, &publishedYear,
			&publisher, &pages, &location, &total, &available,
		); err != nil {
			return err
		}

		if err := w.Write([]string{
			id,
			title,
			author,
			isbn,
			category,
			formatNullInt(publishedYear),
			publisher.String,
			formatNullInt(pages),
			location.String,
			strconv.Itoa(total),
			strconv.Itoa(available),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func exportLoans(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"id", "book_id", "borrower_name", "borrower_email",
		"loan_date", "due_date", "return_date", "status", "fine", "renewal_count",
	}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT id, book_id, borrower_name, borrower_email,
               loan_date, due_date, return_date, status, fine, renewal_count
        FROM loans
        ORDER BY loan_date DESC
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id            string
			bookID        string
			borrowerName  string
			borrowerEmail string
			loanDate      time.Time
			dueDate       time.Time
			returnDate    sql.NullTime
			status        string
			fine          float64
			renewalCount  int
		)

		if err := rows.Scan(
			&id, &bookID, &borrowerName, &borrowerEmail,
			&loanDate, &dueDate, &returnDate, &status, &fine, &renewalCount,
		); err != nil {
			return err
		}

		returned := ""
		if returnDate.Valid {
			returned = returnDate.Time.Format(time.RFC3339)
		}

		if err := w.Write([]string{
			id,
			bookID,
			borrowerName,
			borrowerEmail,
			loanDate.Format(time.RFC3339),
			dueDate.Format(time.RFC3339),
			returned,
			status,
			strconv.FormatFloat(fine, 'f', 2, 64),
			strconv.Itoa(renewalCount),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func formatNullInt(n sql.NullInt64) string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatInt(n.Int64, 10)
}
