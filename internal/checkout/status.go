package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"chapchap-pay/internal/order"
	"chapchap-pay/internal/payment"
	"chapchap-pay/internal/utils"
)

type statusRequest struct {
	OrderID uint `json:"order_id"`
}

type statusResponse struct {
	OrderID       uint     `json:"order_id"`
	Status        string   `json:"status"`
	StatusName    string   `json:"status_name"`
	IsPaid        bool     `json:"is_paid"`
	PaymentMethod string   `json:"payment_method,omitempty"`
	Instructions  []string `json:"instructions,omitempty"`
}

// HandleStatus answers the client-side "has my payment landed yet" poll.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == 0 {
		http.Error(w, "order_id required", http.StatusBadRequest)
		return
	}

	if !h.authorized(r, req.OrderID) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	o, err := h.Orders.GetOrder(r.Context(), req.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	res := statusResponse{
		OrderID:       o.ID,
		Status:        string(o.Status),
		StatusName:    o.Status.DisplayName(),
		IsPaid:        o.Status.IsPaid(),
		PaymentMethod: payment.MethodLabel(o.Payment.PaymentMethod),
	}

	// While the payment is still open, tell the customer how to complete it.
	if o.Status == order.StatusPending && o.PaymentMethod != "" {
		res.Instructions = payment.InjectVariables(
			payment.GetInstructions(o.PaymentMethod),
			payment.InstructionVars{"amount": utils.FormatGNF(o.TotalAmount)},
		)
	}

	writeJSON(w, http.StatusOK, res)
}
