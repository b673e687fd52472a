package order

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusOnHold    Status = "on-hold"
	StatusUnknown   Status = "unknown"
)

// IsTerminal reports whether the status is final; notifications never
// move an order out of a terminal status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (s Status) IsPaid() bool {
	return s == StatusPaid
}

// DisplayName returns the customer-facing status label.
func (s Status) DisplayName() string {
	switch s {
	case StatusPending:
		return "En attente de paiement"
	case StatusPaid:
		return "Payée"
	case StatusFailed:
		return "Échouée"
	case StatusCancelled:
		return "Annulée"
	case StatusOnHold:
		return "En attente de vérification"
	default:
		return "Inconnu"
	}
}

// PaymentMeta is the processor-side identity of an order's payment,
// written at initiation and updated by notifications.
type PaymentMeta struct {
	ExternalReference string
	OperationID       string
	PaymentMethod     string
	LastStatus        string
}

type Order struct {
	ID            uint
	TotalAmount   float64
	Currency      string
	Status        Status
	PaymentMethod string
	Payment       PaymentMeta
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Note struct {
	ID        uint
	OrderID   uint
	Note      string
	CreatedAt time.Time
}
