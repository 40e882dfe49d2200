package books

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliohub/pkg/database"
	"bibliohub/pkg/liberr"
	"bibliohub/pkg/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func sample(copies int) models.Book {
	return models.Book{
		ID:              uuid.NewString(),
		Title:           "The Pragmatic Programmer",
		Author:          "Hunt and Thomas",
		ISBN:            "978-0135957059",
		Category:        "programming",
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
}

func TestCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	saved, err := repo.Create(ctx, sample(3))
	require.NoError(t, err)
	assert.Equal(t, 3, saved.TotalCopies)
	assert.Equal(t, 3, saved.AvailableCopies)
	assert.True(t, saved.IsAvailable)

	missing, err := repo.GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIsAvailableIsDerived(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	saved, err := repo.Create(ctx, sample(0))
	require.NoError(t, err)
	assert.False(t, saved.IsAvailable)

	// a stored flag can't lie: updates recompute it from the counters
	saved.AvailableCopies = 2
	saved.TotalCopies = 2
	saved.IsAvailable = false
	saved, err = repo.Update(ctx, *saved)
	require.NoError(t, err)
	assert.True(t, saved.IsAvailable)
}

func TestTakeCopyStopsAtZero(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	saved, err := repo.Create(ctx, sample(2))
	require.NoError(t, err)

	require.NoError(t, TakeCopy(ctx, db, saved.ID))
	require.NoError(t, TakeCopy(ctx, db, saved.ID))

	err = TakeCopy(ctx, db, saved.ID)
	require.ErrorIs(t, err, liberr.ErrInvalidState)

	got, err := repo.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)
	assert.False(t, got.IsAvailable)
}

func TestReturnCopyStopsAtTotal(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	saved, err := repo.Create(ctx, sample(1))
	require.NoError(t, err)

	require.NoError(t, TakeCopy(ctx, db, saved.ID))
	require.NoError(t, ReturnCopy(ctx, db, saved.ID))

	err = ReturnCopy(ctx, db, saved.ID)
	require.Error(t, err)

	got, err := repo.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
	assert.True(t, got.IsAvailable)
}

func TestListFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, models.Book{
		ID: uuid.NewString(), Title: "Dune", Author: "Frank Herbert",
		ISBN: "978-0441172719", Category: "scifi",
		TotalCopies: 1, AvailableCopies: 1,
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, models.Book{
		ID: uuid.NewString(), Title: "Neuromancer", Author: "William Gibson",
		ISBN: "978-0441569595", Category: "scifi",
		TotalCopies: 1, AvailableCopies: 0,
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, sample(1))
	require.NoError(t, err)

	byCategory, err := repo.List(ctx, ListQuery{Category: "scifi"})
	require.NoError(t, err)
	assert.Len(t, byCategory, 2)

	available, err := repo.List(ctx, ListQuery{Category: "scifi", Available: true})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Dune", available[0].Title)

	byKeyword, err := repo.List(ctx, ListQuery{Q: "gibson"})
	require.NoError(t, err)
	require.Len(t, byKeyword, 1)
	assert.Equal(t, "Neuromancer", byKeyword[0].Title)

	total, err := repo.Count(ctx, ListQuery{Category: "scifi"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestDeleteGuardsCirculationHistory(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	saved, err := repo.Create(ctx, sample(1))
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO loans (id, book_id, borrower_name, borrower_email, loan_date, due_date)
		VALUES (?, ?, 'Ana', 'ana@example.com', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, uuid.NewString(), saved.ID)
	require.NoError(t, err)

	err = repo.Delete(ctx, saved.ID)
	require.ErrorIs(t, err, liberr.ErrInvalidState)

	err = repo.Delete(ctx, uuid.NewString())
	require.ErrorIs(t, err, liberr.ErrNotFound)
}
