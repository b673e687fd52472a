package payment

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidAPIKey    = errors.New("invalid api key")
	ErrGatewayDown      = errors.New("payment gateway unreachable")
)

// Gateway is the authenticated handle on the ChapChapPay processor,
// injected into the Initiator and the webhook handler.
type Gateway interface {
	CreatePayment(ctx context.Context, req *CreateRequest) (*CreateResponse, error)

	// VerifySignature checks the HMAC-SHA256 of the raw callback body.
	VerifySignature(body []byte, signature string) error
	// VerifyAPIKey checks the callback's API-key header.
	VerifyAPIKey(key string) error

	// Sandbox reports whether the gateway runs with placeholder credentials
	// and must never reach the network.
	Sandbox() bool
}
