package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"chapchap-pay/internal/config"
	"chapchap-pay/internal/logger"
	"chapchap-pay/internal/metrics"
	"chapchap-pay/internal/order"
	"chapchap-pay/internal/utils"

	"go.uber.org/zap"
)

var (
	ErrGatewayDisabled     = errors.New("payment gateway disabled")
	ErrBelowMinimum        = errors.New("order total below minimum amount")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// InitiationResult is what the checkout surface needs to redirect the customer.
type InitiationResult struct {
	RedirectURL       string
	ExternalReference string
	OperationID       string
	Sandbox           bool
}

// Initiator validates an order, creates the payment on the processor side
// and persists the pending state plus the reconciliation references.
type Initiator struct {
	gateway  Gateway
	orders   order.Repository
	payments Repository

	enabled       bool
	minimumAmount float64
	currency      string
	shopName      string
	notifyURL     string
	returnURL     string
	cancelURL     string
}

func NewInitiator(gateway Gateway, orders order.Repository, payments Repository, cfg *config.Config) *Initiator {
	return &Initiator{
		gateway:       gateway,
		orders:        orders,
		payments:      payments,
		enabled:       cfg.CCPEnabled,
		minimumAmount: cfg.MinimumAmount,
		currency:      cfg.Currency,
		shopName:      cfg.ShopName,
		notifyURL:     cfg.NotifyURL,
		returnURL:     cfg.ReturnURL,
		cancelURL:     cfg.CancelURL,
	}
}

func (i *Initiator) Initiate(ctx context.Context, orderID uint) (*InitiationResult, error) {
	log := logger.FromCtx(ctx).With(zap.Uint("order_id", orderID))

	if !i.enabled {
		return nil, ErrGatewayDisabled
	}

	o, err := i.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Currency != i.currency {
		return nil, fmt.Errorf("%w: %s (seule la devise %s est acceptée)",
			ErrUnsupportedCurrency, o.Currency, i.currency)
	}

	if o.TotalAmount < i.minimumAmount {
		return nil, fmt.Errorf(
			"%w: le montant minimum pour payer avec Chap Chap Pay est de %s GNF, votre commande est de %s GNF",
			ErrBelowMinimum,
			utils.FormatGNF(i.minimumAmount),
			utils.FormatGNF(o.TotalAmount),
		)
	}

	ref := NewReference(o.ID, time.Now())

	if i.gateway.Sandbox() {
		return i.initiateSandbox(ctx, o, ref)
	}

	metrics.InitiationsStarted.Inc()

	req := &CreateRequest{
		Amount:      o.TotalAmount,
		Description: fmt.Sprintf("Commande %d - %s", o.ID, i.shopName),
		OrderID:     ref,
		NotifyURL:   i.notifyURL,
		ReturnURL:   i.returnURL,
		CancelURL:   i.cancelURL,
	}

	resp, err := i.gateway.CreatePayment(ctx, req)
	if err != nil {
		// The order keeps its prior state, the customer may retry checkout.
		metrics.InitiationsFailed.Inc()
		log.Error("payment initiation failed", zap.Error(err))
		return nil, err
	}

	if err := i.persistInitiation(ctx, o, ref, resp.OperationID, resp.PaymentURL, false); err != nil {
		return nil, err
	}

	note := fmt.Sprintf("Paiement ChapChapPay initié - Montant: %s GNF - OrderID: %s",
		utils.FormatGNF(o.TotalAmount), ref)
	if err := i.orders.AddNote(ctx, o.ID, note); err != nil {
		log.Warn("failed to append order note", zap.Error(err))
	}

	metrics.InitiationsSucceeded.Inc()
	log.Info("payment initiated",
		zap.String("external_reference", ref),
		zap.String("operation_id", resp.OperationID),
	)

	return &InitiationResult{
		RedirectURL:       resp.PaymentURL,
		ExternalReference: ref,
		OperationID:       resp.OperationID,
	}, nil
}

// initiateSandbox produces a synthetic redirect without touching the network.
// Only reachable with placeholder credentials.
func (i *Initiator) initiateSandbox(ctx context.Context, o *order.Order, ref string) (*InitiationResult, error) {
	log := logger.FromCtx(ctx).With(zap.Uint("order_id", o.ID))

	q := url.Values{}
	q.Set("order_id", strconv.FormatUint(uint64(o.ID), 10))
	q.Set("test_mode", "1")
	q.Set("chapchap_test", "1")
	q.Set("chapchap_order_id", ref)
	redirect := i.returnURL + "?" + q.Encode()

	if err := i.persistInitiation(ctx, o, ref, "", redirect, true); err != nil {
		return nil, err
	}

	note := fmt.Sprintf("Paiement ChapChapPay en mode test - Montant: %s GNF - OrderID: %s",
		utils.FormatGNF(o.TotalAmount), ref)
	if err := i.orders.AddNote(ctx, o.ID, note); err != nil {
		log.Warn("failed to append order note", zap.Error(err))
	}

	log.Info("payment initiated in sandbox mode", zap.String("external_reference", ref))

	return &InitiationResult{
		RedirectURL:       redirect,
		ExternalReference: ref,
		Sandbox:           true,
	}, nil
}

func (i *Initiator) persistInitiation(ctx context.Context, o *order.Order, ref, operationID, paymentURL string, sandbox bool) error {
	if err := i.orders.SetInitiated(ctx, o.ID, ref, operationID); err != nil {
		return fmt.Errorf("failed to persist initiation: %w", err)
	}

	p := &Payment{
		OrderID:           o.ID,
		ExternalReference: ref,
		OperationID:       operationID,
		PaymentURL:        paymentURL,
		Amount:            o.TotalAmount,
		Currency:          o.Currency,
		Status:            string(order.StatusPending),
		Sandbox:           sandbox,
	}
	if err := i.payments.SavePayment(ctx, p); err != nil {
		// The order already carries the reference, reconciliation still works.
		logger.FromCtx(ctx).Warn("failed to record payment row", zap.Error(err))
	}
	return nil
}
