package loans

import "time"

// Lending policy. One definition; every entry point (REST, CLI, CSV
// tooling) goes through these.
const (
	LoanPeriodDays = 14
	MaxRenewals    = 3
	DailyFineRate  = 2.50
)

// DueDate is the initial due date for a loan taken on loanDate.
func DueDate(loanDate time.Time) time.Time {
	return loanDate.AddDate(0, 0, LoanPeriodDays)
}

// ExtendDueDate pushes an existing due date by one renewal period.
func ExtendDueDate(dueDate time.Time) time.Time {
	return dueDate.AddDate(0, 0, LoanPeriodDays)
}

// Fine charges DailyFineRate per whole day the return is past due.
// The day count truncates (23h late = 0 days), so the result depends
// only on the two timestamps, never on wall-clock jitter.
func Fine(dueDate, returnDate time.Time) float64 {
	daysLate := DaysLate(dueDate, returnDate)
	return float64(daysLate) * DailyFineRate
}

// DaysLate is max(0, floor(returnDate - dueDate in days)).
func DaysLate(dueDate, returnDate time.Time) int {
	if !returnDate.After(dueDate) {
		return 0
	}
	return int(returnDate.Sub(dueDate).Hours() / 24)
}
