package feed

import "time"

// Event types pushed to feed subscribers.
const (
	LoanCreated          = "loan.created"
	LoanRenewed          = "loan.renewed"
	LoanReturned         = "loan.returned"
	ReservationCreated   = "reservation.created"
	ReservationNotified  = "reservation.notified"
	ReservationFulfilled = "reservation.fulfilled"
	ReservationCancelled = "reservation.cancelled"
	InventoryChanged     = "inventory.changed"
	QueueNext            = "queue.next" // head of the queue after a return
)

type Event struct {
	Type            string    `json:"type"`
	BookID          string    `json:"book_id,omitempty"`
	LoanID          string    `json:"loan_id,omitempty"`
	ReservationID   string    `json:"reservation_id,omitempty"`
	BorrowerEmail   string    `json:"borrower_email,omitempty"`
	AvailableCopies *int      `json:"available_copies,omitempty"`
	Priority        int       `json:"priority,omitempty"`
	Fine            float64   `json:"fine,omitempty"`
	At              time.Time `json:"at"`
}
