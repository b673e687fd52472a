package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"chapchap-pay/internal/logger"
	"chapchap-pay/internal/metrics"
	"chapchap-pay/internal/order"
	"chapchap-pay/internal/payment"
	"chapchap-pay/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// amountTolerance is the absolute difference above which a notification
	// amount no longer matches the order total.
	amountTolerance = 0.001

	maxBodySize = 1 << 20
)

// Handler reconciles inbound ChapChapPay notifications with local orders.
type Handler struct {
	Orders   order.Service
	Gateway  payment.Gateway
	Payments payment.Repository
}

func NewHandler(orders order.Service, gateway payment.Gateway, payments payment.Repository) *Handler {
	return &Handler{
		Orders:   orders,
		Gateway:  gateway,
		Payments: payments,
	}
}

// HandleNotification is the notify_url route handler. Every gate fails
// closed; the processor retries anything that is not answered with 200.
func (h *Handler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Gate 1: HMAC over the raw body.
	if err := h.Gateway.VerifySignature(body, r.Header.Get(payment.HeaderHMACSignature)); err != nil {
		metrics.CallbacksUnauthorized.Inc()
		log.Warn("notification rejected: bad signature", zap.String("ip", r.RemoteAddr))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Gate 2: API key header.
	if err := h.Gateway.VerifyAPIKey(r.Header.Get(payment.HeaderAPIKey)); err != nil {
		metrics.CallbacksUnauthorized.Inc()
		log.Warn("notification rejected: bad api key", zap.String("ip", r.RemoteAddr))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Gate 3: parse, require the external reference.
	var notif payment.Notification
	if err := json.Unmarshal(body, &notif); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if notif.OrderID == "" {
		http.Error(w, "order_id required", http.StatusBadRequest)
		return
	}

	log = log.With(
		zap.String("external_reference", notif.OrderID),
		zap.String("status_code", notif.Status.Code),
		zap.String("operation_id", notif.OperationID),
	)

	// Audit every authenticated notification. A re-delivery is acknowledged
	// without reprocessing only when its first attempt ran to completion;
	// the processor retries until it gets a 200, so a retry after a failed
	// attempt must run the (idempotent) transition again rather than be
	// swallowed as a duplicate.
	eventID := notif.OperationID + ":" + notif.Status.Code
	if notif.OperationID == "" {
		eventID = uuid.New().String()
	}
	notifID, alreadyProcessed, err := h.Payments.SaveNotification(ctx, eventID, notif.OrderID, body, true)
	if err != nil {
		log.Error("failed to record notification", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if alreadyProcessed {
		log.Info("duplicate notification acknowledged")
		h.ack(w)
		return
	}

	// Gate 4: resolve the external reference to a local order.
	o, err := h.resolveOrder(r, notif.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			metrics.CallbacksRejected.Inc()
			h.markFailed(r, notifID, "order not found")
			log.Warn("notification for unknown order")
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		log.Error("failed to resolve order", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Gate 5: the amount must match the order total.
	if math.Abs(o.TotalAmount-notif.Amount) >= amountTolerance {
		reason := fmt.Sprintf(
			"Le montant du paiement (%s) ne correspond pas au montant de la commande (%s).",
			utils.FormatGNF(notif.Amount), utils.FormatGNF(o.TotalAmount),
		)
		if err := h.Orders.HoldForReview(ctx, o.ID, reason); err != nil {
			log.Error("failed to hold order", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		metrics.CallbacksRejected.Inc()
		h.markFailed(r, notifID, "amount mismatch")
		log.Warn("amount mismatch, order held for review",
			zap.Float64("order_total", o.TotalAmount),
			zap.Float64("notified_amount", notif.Amount),
		)
		h.ack(w)
		return
	}

	// Gate 6: dispatch on the processor's status code.
	switch notif.Status.Code {
	case payment.CodeSuccess:
		err = h.Orders.MarkAsPaid(ctx, o.ID, notif.OperationID, notif.Transaction.PaymentMethod)
	case payment.CodeFailed:
		err = h.Orders.MarkAsFailed(ctx, o.ID)
	case payment.CodeCanceled:
		err = h.Orders.MarkAsCancelled(ctx, o.ID)
	case payment.CodePending:
		err = h.Orders.MarkAsPending(ctx, o.ID, notif.OperationID)
	default:
		err = h.Orders.RecordUnknownStatus(ctx, o.ID, notif.Status.Code)
	}

	if errors.Is(err, order.ErrStatusConflict) {
		// The conflict is on record for manual review; a non-200 would only
		// make the processor redeliver the same conflicting notification.
		h.markFailed(r, notifID, "conflicting terminal status")
		log.Warn("conflicting terminal notification recorded")
		h.ack(w)
		return
	}
	if err != nil {
		log.Error("failed to apply notification", zap.Error(err))
		http.Error(w, "failed to update order", http.StatusInternalServerError)
		return
	}

	h.syncPaymentStatus(r, notif)

	if err := h.Payments.MarkNotificationProcessed(ctx, notifID); err != nil {
		log.Warn("failed to mark notification processed", zap.Error(err))
	}

	metrics.CallbacksAccepted.Inc()
	log.Info("notification processed")
	h.ack(w)
}

// resolveOrder maps the callback's external reference to a local order.
// The pattern fallback is a degraded-mode lookup: its result is trusted only
// when the order's own record does not contradict the reference.
func (h *Handler) resolveOrder(r *http.Request, ref string) (*order.Order, error) {
	ctx := r.Context()

	o, err := h.Orders.FindByReference(ctx, ref)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, order.ErrOrderNotFound) {
		return nil, err
	}

	orderID, ok := payment.ParseReference(ref)
	if !ok {
		return nil, order.ErrOrderNotFound
	}

	o, err = h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Payment.ExternalReference != "" && o.Payment.ExternalReference != ref {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

// syncPaymentStatus mirrors the order transition onto the payments row.
func (h *Handler) syncPaymentStatus(r *http.Request, notif payment.Notification) {
	var status string
	switch notif.Status.Code {
	case payment.CodeSuccess:
		status = string(order.StatusPaid)
	case payment.CodeFailed:
		status = string(order.StatusFailed)
	case payment.CodeCanceled:
		status = string(order.StatusCancelled)
	case payment.CodePending:
		status = string(order.StatusPending)
	default:
		return
	}

	if err := h.Payments.UpdatePaymentStatus(r.Context(), notif.OrderID, status); err != nil {
		logger.FromCtx(r.Context()).Warn("failed to sync payment status", zap.Error(err))
	}
}

func (h *Handler) markFailed(r *http.Request, notifID int64, reason string) {
	if err := h.Payments.MarkNotificationFailed(r.Context(), notifID, reason); err != nil {
		logger.FromCtx(r.Context()).Warn("failed to mark notification failed", zap.Error(err))
	}
}

func (h *Handler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "processed"})
}
