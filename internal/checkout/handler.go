package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"chapchap-pay/internal/auth"
	"chapchap-pay/internal/logger"
	"chapchap-pay/internal/order"
	"chapchap-pay/internal/payment"

	"go.uber.org/zap"
)

// PaymentInitiator is what the checkout surface needs from the payment layer.
type PaymentInitiator interface {
	Initiate(ctx context.Context, orderID uint) (*payment.InitiationResult, error)
}

// Handler exposes the customer-facing checkout endpoints.
type Handler struct {
	Initiator PaymentInitiator
	Orders    order.Service
}

func NewHandler(initiator PaymentInitiator, orders order.Service) *Handler {
	return &Handler{
		Initiator: initiator,
		Orders:    orders,
	}
}

type payRequest struct {
	OrderID uint `json:"order_id"`
}

type payResponse struct {
	Result      string `json:"result"`
	Redirect    string `json:"redirect,omitempty"`
	PaymentURL  string `json:"payment_url,omitempty"`
	OperationID string `json:"operation_id,omitempty"`
	Messages    string `json:"messages,omitempty"`
}

// HandlePay initiates a ChapChapPay payment for an order and returns the
// hosted payment page to redirect the customer to.
func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == 0 {
		writeJSON(w, http.StatusBadRequest, payResponse{
			Result:   "failure",
			Messages: "ID de commande manquant.",
		})
		return
	}

	if !h.authorized(r, req.OrderID) {
		writeJSON(w, http.StatusUnauthorized, payResponse{
			Result:   "failure",
			Messages: "Accès non autorisé à cette commande.",
		})
		return
	}

	res, err := h.Initiator.Initiate(ctx, req.OrderID)
	if err != nil {
		status, msg := initiateErrorResponse(err)
		log.Warn("payment initiation rejected",
			zap.Uint("order_id", req.OrderID),
			zap.Error(err),
		)
		writeJSON(w, status, payResponse{Result: "failure", Messages: msg})
		return
	}

	writeJSON(w, http.StatusOK, payResponse{
		Result:      "success",
		Redirect:    res.RedirectURL,
		PaymentURL:  res.RedirectURL,
		OperationID: res.OperationID,
	})
}

func initiateErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound, "Commande non trouvée."
	case errors.Is(err, payment.ErrGatewayDisabled):
		return http.StatusServiceUnavailable, "Gateway Chap Chap Pay non disponible."
	case errors.Is(err, payment.ErrBelowMinimum),
		errors.Is(err, payment.ErrUnsupportedCurrency):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, payment.ErrGatewayDown):
		return http.StatusBadGateway, "Erreur de connexion. Veuillez réessayer."
	default:
		return http.StatusBadGateway, "Erreur de paiement."
	}
}

// authorized checks the session-bound order token against the requested order.
func (h *Handler) authorized(r *http.Request, orderID uint) bool {
	token := auth.ExtractAccessToken(r)
	if token == "" {
		return false
	}

	claims, err := auth.ParseOrderToken(token)
	if err != nil {
		return false
	}
	return claims.OrderID == orderID
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
