package models

import "time"

// Reservation states. "expired" is stored only if staff set it manually;
// the usual path is the derived transition in EffectiveStatus.
const (
	ReservationActive    = "active"
	ReservationNotified  = "notified"
	ReservationFulfilled = "fulfilled"
	ReservationCancelled = "cancelled"
	ReservationExpired   = "expired"
)

type Reservation struct {
	ID               string     `json:"id"`
	BookID           string     `json:"book_id"`
	BorrowerName     string     `json:"borrower_name"`
	BorrowerEmail    string     `json:"borrower_email"`
	BorrowerPhone    string     `json:"borrower_phone,omitempty"`
	ReservationDate  time.Time  `json:"reservation_date"`
	NotificationDate *time.Time `json:"notification_date,omitempty"`
	ExpirationDate   *time.Time `json:"expiration_date,omitempty"`
	Status           string     `json:"status"`
	Priority         int        `json:"priority"`
	Notes            string     `json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EffectiveStatus is the reporting status: a notified reservation whose
// pickup window has passed reads as expired without a stored transition.
func (r Reservation) EffectiveStatus(now time.Time) string {
	if r.Status == ReservationNotified && r.ExpirationDate != nil && now.After(*r.ExpirationDate) {
		return ReservationExpired
	}
	return r.Status
}

// InQueue reports whether the reservation still occupies a queue slot.
func (r Reservation) InQueue(now time.Time) bool {
	s := r.EffectiveStatus(now)
	return s == ReservationActive || s == ReservationNotified
}
