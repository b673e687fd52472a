package payment

import (
	"context"
	"database/sql"
	"encoding/json"
)

const providerName = "CHAPCHAPPAY"

type Repository interface {
	SavePayment(ctx context.Context, p *Payment) error
	UpdatePaymentStatus(ctx context.Context, externalReference, status string) error
	GetPaymentByOrder(ctx context.Context, orderID uint) (*Payment, error)

	// SaveNotification records the inbound callback for audit. A re-delivery
	// (same provider event id) is reported as alreadyProcessed only when the
	// earlier attempt ran to completion; an unfinished attempt hands back its
	// existing row id so the caller reconciles again.
	SaveNotification(
		ctx context.Context,
		eventID string,
		externalReference string,
		payload json.RawMessage,
		signatureValid bool,
	) (notifID int64, alreadyProcessed bool, err error)

	MarkNotificationProcessed(ctx context.Context, notifID int64) error
	MarkNotificationFailed(ctx context.Context, notifID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SavePayment(ctx context.Context, p *Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (order_id,
		external_reference,
		operation_id,
		payment_url,
		amount,
		status,
		payment_method,
		provider,
		currency,
		sandbox)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		p.OrderID, p.ExternalReference, p.OperationID, p.PaymentURL, p.Amount,
		p.Status, p.PaymentMethod, providerName, p.Currency, p.Sandbox,
	)
	return err
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, externalReference, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = now() WHERE external_reference = $2
	`, status, externalReference)
	return err
}

func (r *repository) GetPaymentByOrder(ctx context.Context, orderID uint) (*Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, external_reference, operation_id, payment_url, amount, currency, status, payment_method, sandbox, created_at, updated_at
		FROM payments WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, orderID)

	var p Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.ExternalReference, &p.OperationID, &p.PaymentURL,
		&p.Amount, &p.Currency, &p.Status, &p.PaymentMethod, &p.Sandbox,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) SaveNotification(
	ctx context.Context,
	eventID string,
	externalReference string,
	payload json.RawMessage,
	signatureValid bool,
) (int64, bool, error) {

	// The no-op DO UPDATE makes the conflicting row visible to RETURNING.
	// processed_at decides whether the retry is a true duplicate or the
	// redelivery of a notification whose first attempt died mid-flight.
	const q = `
	INSERT INTO payment_notifications (
		provider,
		event_id,
		external_reference,
		signature_valid,
		payload
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET payload = EXCLUDED.payload
	RETURNING id, processed_at;
	`

	var id int64
	var processedAt sql.NullTime
	err := r.db.QueryRowContext(
		ctx,
		q,
		providerName,
		eventID,
		externalReference,
		signatureValid,
		payload,
	).Scan(&id, &processedAt)

	if err != nil {
		return 0, false, err
	}

	return id, processedAt.Valid, nil
}

func (r *repository) MarkNotificationProcessed(ctx context.Context, notifID int64) error {
	const q = `
	UPDATE payment_notifications
	SET processed_at = now()
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, notifID)
	return err
}

func (r *repository) MarkNotificationFailed(ctx context.Context, notifID int64, reason string) error {
	const q = `
	UPDATE payment_notifications
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, notifID, reason)
	return err
}
