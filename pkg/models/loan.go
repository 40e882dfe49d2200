package models

import "time"

// Stored loan states. "overdue" is never stored; it is derived at read
// time from the due date, see IsOverdue.
const (
	LoanActive   = "active"
	LoanRenewed  = "renewed"
	LoanReturned = "returned"
	LoanOverdue  = "overdue" // display only
)

type Loan struct {
	ID            string     `json:"id"`
	BookID        string     `json:"book_id"`
	BorrowerName  string     `json:"borrower_name"`
	BorrowerEmail string     `json:"borrower_email"`
	BorrowerPhone string     `json:"borrower_phone,omitempty"`
	LoanDate      time.Time  `json:"loan_date"`
	DueDate       time.Time  `json:"due_date"`
	ReturnDate    *time.Time `json:"return_date,omitempty"`
	Status        string     `json:"status"`
	Fine          float64    `json:"fine"`
	RenewalCount  int        `json:"renewal_count"`
	Notes         string     `json:"notes,omitempty"`
	Overdue       bool       `json:"overdue"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsOverdue reports whether an open loan is past its due date.
func (l Loan) IsOverdue(now time.Time) bool {
	if l.Status != LoanActive && l.Status != LoanRenewed {
		return false
	}
	return now.After(l.DueDate)
}

// Open reports whether the loan still holds a copy.
func (l Loan) Open() bool {
	return l.Status == LoanActive || l.Status == LoanRenewed
}
