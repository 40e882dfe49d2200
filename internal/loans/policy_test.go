package loans

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDueDate(t *testing.T) {
	loanDate := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), DueDate(loanDate))
}

func TestExtendDueDate(t *testing.T) {
	due := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 29, 10, 0, 0, 0, time.UTC), ExtendDueDate(due))
}

func TestFine(t *testing.T) {
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		returnDate time.Time
		want       float64
	}{
		{"on time", due, 0},
		{"early", due.AddDate(0, 0, -2), 0},
		{"under a day late", due.Add(23 * time.Hour), 0},
		{"three days late", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), 7.50},
		{"ten days late", due.AddDate(0, 0, 10), 25.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Fine(due, tt.returnDate), 0.001)
		})
	}
}

func TestDaysLateTruncates(t *testing.T) {
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysLate(due, due.Add(23*time.Hour+59*time.Minute)))
	assert.Equal(t, 1, DaysLate(due, due.Add(24*time.Hour)))
	assert.Equal(t, 1, DaysLate(due, due.Add(47*time.Hour)))
}
