package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chapchap-pay/internal/logger"

	"go.uber.org/zap"
)

// Processor headers, on both the outbound creation call and the inbound callback.
const (
	HeaderAPIKey        = "CCP-Api-Key"
	HeaderHMACSignature = "CCP-Hmac-Signature"
)

// Placeholder keys that must never reach the live processor.
var sandboxKeys = map[string]struct{}{
	"":                   {},
	"test_key_123":       {},
	"votre_clé_api_ici":  {},
}

type chapChapGateway struct {
	apiKey        string
	encryptionKey string
	apiURL        string
	httpClient    *http.Client
}

func NewChapChapGateway(apiKey, encryptionKey, apiURL string) Gateway {
	if apiKey == "" {
		logger.L().Warn("ChapChapPay API key is empty, gateway runs in sandbox mode")
	}
	if encryptionKey == "" {
		logger.L().Warn("ChapChapPay encryption key is empty")
	}

	return &chapChapGateway{
		apiKey:        apiKey,
		encryptionKey: encryptionKey,
		apiURL:        apiURL,
		httpClient: &http.Client{
			Timeout: 45 * time.Second,
		},
	}
}

func (g *chapChapGateway) Sandbox() bool {
	_, ok := sandboxKeys[g.apiKey]
	return ok
}

func (g *chapChapGateway) CreatePayment(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", req.OrderID),
		zap.Float64("amount", req.Amount),
	)

	if g.Sandbox() {
		// The sandbox path is handled before the gateway is reached.
		return nil, fmt.Errorf("refusing to call processor with sandbox credentials")
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		log.Error("Failed to marshal payment request", zap.Error(err))
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, err
	}

	httpReq.Header.Set(HeaderAPIKey, g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	log.Info("Sending payment creation request to ChapChapPay")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		log.Error("ChapChapPay request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayDown, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		return nil, fmt.Errorf("failed to read chapchappay response: %w", err)
	}

	var res CreateResponse
	if err := json.Unmarshal(bodyBytes, &res); err != nil && resp.StatusCode == http.StatusCreated {
		log.Error("Failed decoding ChapChapPay response", zap.Error(err))
		return nil, err
	}

	if resp.StatusCode != http.StatusCreated || res.PaymentURL == "" {
		log.Error("ChapChapPay returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		msg := res.Message
		if msg == "" {
			msg = res.Error
		}
		if msg != "" {
			return nil, fmt.Errorf("chapchappay error: %s", msg)
		}
		return nil, fmt.Errorf("chapchappay error: status %d", resp.StatusCode)
	}

	log.Info("ChapChapPay payment created",
		zap.String("operation_id", res.OperationID),
	)

	return &res, nil
}

func (g *chapChapGateway) VerifySignature(body []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(g.encryptionKey))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(computed), []byte(signature)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func (g *chapChapGateway) VerifyAPIKey(key string) error {
	if subtle.ConstantTimeCompare([]byte(g.apiKey), []byte(key)) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}
