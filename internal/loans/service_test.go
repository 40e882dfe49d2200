package loans

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
	"bibliohub/internal/notify"
	"bibliohub/internal/reservations"
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
	return NewService(db, NewRepo(db), reservations.NewRepo(db), nil, zerolog.Nop())
}

func seedBook(t *testing.T, db *sql.DB, copies int) *models.Book {
	t.Helper()
	b, err := books.NewRepo(db).Create(context.Background(), models.Book{
		ID:              uuid.NewString(),
		Title:           "The Go Programming Language",
		Author:          "Donovan and Kernighan",
		ISBN:            "978-0134190440",
		Category:        "programming",
		TotalCopies:     copies,
		AvailableCopies: copies,
	})
	require.NoError(t, err)
	return b
}

func availableCopies(t *testing.T, db *sql.DB, bookID string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT available_copies FROM books WHERE id = ?`, bookID).Scan(&n))
	return n
}

func TestCreateDecrementsInventory(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 2)

	loanDate := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	loan, err := svc.Create(context.Background(), CreateParams{
		BookID:        book.ID,
		BorrowerName:  "Ana Lima",
		BorrowerEmail: "ana@example.com",
		LoanDate:      loanDate,
	})
	require.NoError(t, err)

	assert.Equal(t, models.LoanActive, loan.Status)
	assert.Equal(t, 0, loan.RenewalCount)
	assert.Zero(t, loan.Fine)
	assert.Equal(t, loanDate.AddDate(0, 0, LoanPeriodDays).Unix(), loan.DueDate.Unix())
	assert.Equal(t, 1, availableCopies(t, db, book.ID))
}

func TestCreateFailsWhenNoCopies(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{
		BookID: book.ID, BorrowerName: "First", BorrowerEmail: "first@example.com",
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateParams{
		BookID: book.ID, BorrowerName: "Second", BorrowerEmail: "second@example.com",
	})
	require.ErrorIs(t, err, liberr.ErrInvalidState)
	assert.Equal(t, 0, availableCopies(t, db, book.ID))
}

func TestCreateUnknownBook(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)

	_, err := svc.Create(context.Background(), CreateParams{
		BookID: uuid.NewString(), BorrowerName: "Ana", BorrowerEmail: "ana@example.com",
	})
	require.ErrorIs(t, err, liberr.ErrNotFound)
}

func TestRenewExtendsUntilCap(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	loanDate := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	loan, err := svc.Create(ctx, CreateParams{
		BookID: book.ID, BorrowerName: "Ana", BorrowerEmail: "ana@example.com", LoanDate: loanDate,
	})
	require.NoError(t, err)

	due := loan.DueDate
	for i := 1; i <= MaxRenewals; i++ {
		loan, err = svc.Renew(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LoanRenewed, loan.Status)
		assert.Equal(t, i, loan.RenewalCount)
		assert.Equal(t, due.AddDate(0, 0, LoanPeriodDays).Unix(), loan.DueDate.Unix())
		due = loan.DueDate
	}

	_, err = svc.Renew(ctx, loan.ID)
	require.ErrorIs(t, err, liberr.ErrLimitExceeded)
}

func TestRenewReturnedLoan(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	loan, err := svc.Create(ctx, CreateParams{
		BookID: book.ID, BorrowerName: "Ana", BorrowerEmail: "ana@example.com",
	})
	require.NoError(t, err)

	_, err = svc.Return(ctx, loan.ID, time.Time{})
	require.NoError(t, err)

	_, err = svc.Renew(ctx, loan.ID)
	require.ErrorIs(t, err, liberr.ErrInvalidState)
}

func TestReturnComputesFineAndRestocks(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	loanDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	loan, err := svc.Create(ctx, CreateParams{
		BookID: book.ID, BorrowerName: "Ana", BorrowerEmail: "ana@example.com", LoanDate: loanDate,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, availableCopies(t, db, book.ID))

	// three whole days past due
	returnDate := loan.DueDate.AddDate(0, 0, 3)
	returned, err := svc.Return(ctx, loan.ID, returnDate)
	require.NoError(t, err)

	assert.Equal(t, models.LoanReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.InDelta(t, 7.50, returned.Fine, 0.001)
	assert.Equal(t, 1, availableCopies(t, db, book.ID))

	_, err = svc.Return(ctx, loan.ID, returnDate)
	require.ErrorIs(t, err, liberr.ErrInvalidState)
}

func TestReturnOnTimeHasNoFine(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	loan, err := svc.Create(ctx, CreateParams{
		BookID: book.ID, BorrowerName: "Ana", BorrowerEmail: "ana@example.com",
	})
	require.NoError(t, err)

	returned, err := svc.Return(ctx, loan.ID, loan.DueDate.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Zero(t, returned.Fine)
}

func TestCheckoutWithReservationFulfillsIt(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	resSvc := reservations.NewService(db, reservations.NewRepo(db), nil, zerolog.Nop())
	res, err := resSvc.Create(ctx, reservations.CreateParams{
		BookID: book.ID, BorrowerName: "Ana", BorrowerEmail: "ana@example.com",
	})
	require.NoError(t, err)

	loan, err := svc.Create(ctx, CreateParams{
		BookID:        book.ID,
		BorrowerName:  "Ana Lima",
		BorrowerEmail: "ana@example.com",
		ReservationID: res.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, loan.Status)

	saved, err := svc.Reservations.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationFulfilled, saved.Status)
}

func TestCheckoutWithClosedReservationRollsBack(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	resSvc := reservations.NewService(db, reservations.NewRepo(db), nil, zerolog.Nop())
	res, err := resSvc.Create(ctx, reservations.CreateParams{
		BookID: book.ID, BorrowerName: "Ana", BorrowerEmail: "ana@example.com",
	})
	require.NoError(t, err)
	_, err = resSvc.Cancel(ctx, res.ID)
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateParams{
		BookID:        book.ID,
		BorrowerName:  "Ana",
		BorrowerEmail: "ana@example.com",
		ReservationID: res.ID,
	})
	require.ErrorIs(t, err, liberr.ErrInvalidState)

	// the whole transaction rolled back, the copy was never claimed
	assert.Equal(t, 1, availableCopies(t, db, book.ID))

	var loanCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM loans`).Scan(&loanCount))
	assert.Equal(t, 0, loanCount)
}

type captureNotifier struct {
	email string
	msg   notify.BookAvailableMessage
	calls int
}

func (c *captureNotifier) NotifyBookAvailable(email string, msg notify.BookAvailableMessage) bool {
	c.email = email
	c.msg = msg
	c.calls++
	return true
}

func TestReturnHandsOffToQueueHead(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 1)
	ctx := context.Background()

	notifier := &captureNotifier{}
	svc.Notifier = notifier

	loan, err := svc.Create(ctx, CreateParams{
		BookID: book.ID, BorrowerName: "Ana", BorrowerEmail: "ana@example.com",
	})
	require.NoError(t, err)

	resSvc := reservations.NewService(db, reservations.NewRepo(db), nil, zerolog.Nop())
	first, err := resSvc.Create(ctx, reservations.CreateParams{
		BookID: book.ID, BorrowerName: "Bruno", BorrowerEmail: "bruno@example.com",
	})
	require.NoError(t, err)
	_, err = resSvc.Create(ctx, reservations.CreateParams{
		BookID: book.ID, BorrowerName: "Carla", BorrowerEmail: "carla@example.com",
	})
	require.NoError(t, err)

	_, err = svc.Return(ctx, loan.ID, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, "bruno@example.com", notifier.email)
	assert.Equal(t, first.ID, notifier.msg.ReservationID)
	assert.Equal(t, 1, notifier.msg.Priority)
}

func TestListOverdueIsDerived(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	book := seedBook(t, db, 2)
	ctx := context.Background()

	// one loan far in the past, one current
	_, err := svc.Create(ctx, CreateParams{
		BookID: book.ID, BorrowerName: "Late", BorrowerEmail: "late@example.com",
		LoanDate: time.Now().UTC().AddDate(0, -2, 0),
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateParams{
		BookID: book.ID, BorrowerName: "Current", BorrowerEmail: "current@example.com",
	})
	require.NoError(t, err)

	items, total, err := svc.Loans.List(ctx, ListQuery{Status: models.LoanOverdue})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "late@example.com", items[0].BorrowerEmail)
	assert.Equal(t, models.LoanActive, items[0].Status)
	assert.True(t, items[0].Overdue)
}
