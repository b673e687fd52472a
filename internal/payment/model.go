package payment

import (
	"encoding/json"
	"time"
)

// Payment is the local record of an initiated ChapChapPay transaction.
type Payment struct {
	ID                uint
	OrderID           uint
	ExternalReference string
	OperationID       string
	PaymentURL        string
	Amount            float64
	Currency          string
	Status            string
	PaymentMethod     string
	Sandbox           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateRequest is the JSON body sent to the processor's creation endpoint.
type CreateRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	NotifyURL   string  `json:"notify_url"`
	ReturnURL   string  `json:"return_url"`
	CancelURL   string  `json:"cancel_url"`
}

// CreateResponse is the processor's answer on HTTP 201.
type CreateResponse struct {
	PaymentURL  string `json:"payment_url"`
	OperationID string `json:"operation_id"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Notification is the inbound server-to-server callback payload.
// It is authenticated before use and never persisted verbatim on the order.
type Notification struct {
	OrderID string `json:"order_id"`
	Status  struct {
		Code string `json:"code"`
	} `json:"status"`
	Amount      float64 `json:"amount"`
	OperationID string  `json:"operation_id"`
	Transaction struct {
		PaymentMethod string `json:"payment_method"`
	} `json:"transaction"`
}

// NotificationRecord is the audit row kept for every inbound callback.
type NotificationRecord struct {
	ID                int64
	Provider          string
	EventID           string
	ExternalReference string
	SignatureValid    bool
	Payload           json.RawMessage
	ReceivedAt        time.Time
	ProcessedAt       *time.Time
	ProcessError      string
}

// Notification status codes as the processor sends them.
const (
	CodeSuccess  = "success"
	CodeFailed   = "failed"
	CodeCanceled = "canceled"
	CodePending  = "pending"
)
