package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Repository interface {
	GetOrder(ctx context.Context, orderID uint) (*Order, error)
	GetByExternalReference(ctx context.Context, ref string) (*Order, error)

	// SetInitiated stamps the external reference and processor operation id
	// on the order and moves it to pending, in a single statement.
	SetInitiated(ctx context.Context, orderID uint, ref, operationID string) error

	// UpdateStatusIfNotTerminal applies a status transition unless the order
	// already sits in a terminal status. It reports whether the row changed.
	UpdateStatusIfNotTerminal(ctx context.Context, orderID uint, to Status, meta PaymentMeta) (bool, error)

	AddNote(ctx context.Context, orderID uint, note string) error
	GetNotes(ctx context.Context, orderID uint) ([]Note, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `id, total_amount, currency, status, payment_method,
		external_reference, operation_id, payment_status, created_at, updated_at`

func scanOrder(row *sql.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TotalAmount, &o.Currency, &o.Status, &o.PaymentMethod,
		&o.Payment.ExternalReference, &o.Payment.OperationID, &o.Payment.LastStatus,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	o.Payment.PaymentMethod = o.PaymentMethod
	return &o, nil
}

func (r *repository) GetOrder(ctx context.Context, orderID uint) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE id = $1
	`, orderID)
	return scanOrder(row)
}

func (r *repository) GetByExternalReference(ctx context.Context, ref string) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE external_reference = $1
	`, ref)
	return scanOrder(row)
}

func (r *repository) SetInitiated(ctx context.Context, orderID uint, ref, operationID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
			external_reference = $3,
			operation_id = $4,
			updated_at = now()
		WHERE id = $1
	`, orderID, StatusPending, ref, operationID)
	if err != nil {
		return fmt.Errorf("failed to mark order initiated: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) UpdateStatusIfNotTerminal(ctx context.Context, orderID uint, to Status, meta PaymentMeta) (bool, error) {
	// Empty meta fields keep the previously stored values. The WHERE guard
	// makes the transition an exclusive single-row update: terminal orders
	// are never regressed, and concurrent callbacks for the same order
	// serialize on the row without a read-modify-write window.
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
			operation_id = COALESCE(NULLIF($3, ''), operation_id),
			payment_method = COALESCE(NULLIF($4, ''), payment_method),
			payment_status = COALESCE(NULLIF($5, ''), payment_status),
			updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('paid', 'failed', 'cancelled')
	`, orderID, to, meta.OperationID, meta.PaymentMethod, meta.LastStatus)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) AddNote(ctx context.Context, orderID uint, note string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_notes (order_id, note)
		VALUES ($1, $2)
	`, orderID, note)
	return err
}

func (r *repository) GetNotes(ctx context.Context, orderID uint) ([]Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, note, created_at
		FROM order_notes
		WHERE order_id = $1
		ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Note, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
