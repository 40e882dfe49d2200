package reservations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliohub/internal/books"
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

func newTestService(db *sql.DB) *Service {
	return NewService(db, NewRepo(db), nil, zerolog.Nop())
}

func seedBook(t *testing.T, db *sql.DB, copies int) *models.Book {
	t.Helper()
	b, err := books.NewRepo(db).Create(context.Background(), models.Book{
		ID:              uuid.NewString(),
		Title:           "Clean Architecture",
		Author:          "Robert Martin",
		ISBN:            "978-0134494166",
		Category:        "programming",
		TotalCopies:     copies,
		AvailableCopies: copies,
	})
	require.NoError(t, err)
	return b
}

func reserve(t *testing.T, svc *Service, bookID, email string) *models.Reservation {
	t.Helper()
	res, err := svc.Create(context.Background(), CreateParams{
		BookID:        bookID,
		BorrowerName:  email,
		BorrowerEmail: email,
	})
	require.NoError(t, err)
	return res
}

func TestCreateAssignsIncreasingPriority(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)

	first := reserve(t, svc, book.ID, "first@example.com")
	second := reserve(t, svc, book.ID, "second@example.com")

	assert.Equal(t, 1, first.Priority)
	assert.Equal(t, 2, second.Priority)
	assert.Equal(t, models.ReservationActive, first.Status)
}

func TestCreateUnknownBook(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)

	_, err := svc.Create(context.Background(), CreateParams{
		BookID: uuid.NewString(), BorrowerName: "Ana", BorrowerEmail: "ana@example.com",
	})
	require.ErrorIs(t, err, liberr.ErrNotFound)
}

func TestCancelledSlotIsNotRecompacted(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	first := reserve(t, svc, book.ID, "first@example.com")
	second := reserve(t, svc, book.ID, "second@example.com")

	_, err := svc.Cancel(ctx, first.ID)
	require.NoError(t, err)

	// the survivor keeps its slot, the next joiner queues behind it
	third := reserve(t, svc, book.ID, "third@example.com")
	assert.Equal(t, 2, second.Priority)
	assert.Equal(t, 3, third.Priority)

	queue, err := svc.Queue(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "second@example.com", queue[0].BorrowerEmail)
	assert.Equal(t, "third@example.com", queue[1].BorrowerEmail)
}

func TestQueueIsOrderedByPriority(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)

	reserve(t, svc, book.ID, "first@example.com")
	reserve(t, svc, book.ID, "second@example.com")
	reserve(t, svc, book.ID, "third@example.com")

	queue, err := svc.Queue(context.Background(), book.ID)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	for i, email := range []string{"first@example.com", "second@example.com", "third@example.com"} {
		assert.Equal(t, email, queue[i].BorrowerEmail)
		assert.Equal(t, i+1, queue[i].Priority)
	}
}

func TestCancelTerminalReservation(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	res := reserve(t, svc, book.ID, "ana@example.com")
	_, err := svc.Cancel(ctx, res.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, res.ID)
	require.ErrorIs(t, err, liberr.ErrInvalidState)
}

func TestCancelUnknownReservation(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)

	_, err := svc.Cancel(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, liberr.ErrNotFound)
}

func TestNotifyOpensPickupWindow(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	res := reserve(t, svc, book.ID, "ana@example.com")

	notified, err := svc.Notify(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationNotified, notified.Status)
	require.NotNil(t, notified.NotificationDate)
	require.NotNil(t, notified.ExpirationDate)
	assert.Equal(t, now.AddDate(0, 0, PickupWindowDays).Unix(), notified.ExpirationDate.Unix())

	// notify is active-only
	_, err = svc.Notify(ctx, res.ID)
	require.ErrorIs(t, err, liberr.ErrInvalidState)
}

func TestNotifyRequiresStock(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 0)
	ctx := context.Background()

	res := reserve(t, svc, book.ID, "ana@example.com")

	_, err := svc.Notify(ctx, res.ID)
	require.ErrorIs(t, err, liberr.ErrInvalidState)
}

func TestExpiryIsDerivedNotStored(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	res := reserve(t, svc, book.ID, "ana@example.com")
	_, err := svc.Notify(ctx, res.ID)
	require.NoError(t, err)

	// move past the pickup window
	svc.Now = func() time.Time { return now.AddDate(0, 0, PickupWindowDays+1) }

	stored, err := svc.Repo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationNotified, stored.Status)
	assert.Equal(t, models.ReservationExpired, svc.Present(stored).Status)

	// an expired reservation no longer holds a queue slot
	queue, err := svc.Queue(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestFulfillFromActiveAndNotified(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	active := reserve(t, svc, book.ID, "direct@example.com")
	fulfilled, err := svc.Fulfill(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationFulfilled, fulfilled.Status)

	// terminal states stay terminal
	_, err = svc.Fulfill(ctx, active.ID)
	require.ErrorIs(t, err, liberr.ErrInvalidState)

	notified := reserve(t, svc, book.ID, "patient@example.com")
	_, err = svc.Notify(ctx, notified.ID)
	require.NoError(t, err)
	fulfilled, err = svc.Fulfill(ctx, notified.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationFulfilled, fulfilled.Status)
}

func TestListExpiredSelectsDerivedView(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	past := time.Now().UTC().AddDate(0, 0, -(PickupWindowDays + 2))
	svc.Now = func() time.Time { return past }

	res := reserve(t, svc, book.ID, "lapsed@example.com")
	_, err := svc.Notify(ctx, res.ID)
	require.NoError(t, err)

	svc.Now = nil // back to the real clock, window long past
	reserve(t, svc, book.ID, "fresh@example.com")

	items, total, err := svc.Repo.List(ctx, ListQuery{Status: models.ReservationExpired})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "lapsed@example.com", items[0].BorrowerEmail)
}
