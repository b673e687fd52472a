package webhook

import (
	"context"
	"encoding/json"

	"chapchap-pay/internal/order"
	"chapchap-pay/internal/payment"

	"github.com/stretchr/testify/mock"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) GetOrder(ctx context.Context, orderID uint) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if o := args.Get(0); o != nil {
		return o.(*order.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderService) FindByReference(ctx context.Context, ref string) (*order.Order, error) {
	args := m.Called(ctx, ref)
	if o := args.Get(0); o != nil {
		return o.(*order.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderService) MarkAsPaid(ctx context.Context, orderID uint, operationID, paymentMethod string) error {
	return m.Called(ctx, orderID, operationID, paymentMethod).Error(0)
}

func (m *MockOrderService) MarkAsFailed(ctx context.Context, orderID uint) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *MockOrderService) MarkAsCancelled(ctx context.Context, orderID uint) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *MockOrderService) MarkAsPending(ctx context.Context, orderID uint, operationID string) error {
	return m.Called(ctx, orderID, operationID).Error(0)
}

func (m *MockOrderService) HoldForReview(ctx context.Context, orderID uint, reason string) error {
	return m.Called(ctx, orderID, reason).Error(0)
}

func (m *MockOrderService) RecordUnknownStatus(ctx context.Context, orderID uint, code string) error {
	return m.Called(ctx, orderID, code).Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) SavePayment(ctx context.Context, p *payment.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPaymentRepository) UpdatePaymentStatus(ctx context.Context, externalReference, status string) error {
	return m.Called(ctx, externalReference, status).Error(0)
}

func (m *MockPaymentRepository) GetPaymentByOrder(ctx context.Context, orderID uint) (*payment.Payment, error) {
	args := m.Called(ctx, orderID)
	if p := args.Get(0); p != nil {
		return p.(*payment.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentRepository) SaveNotification(ctx context.Context, eventID, externalReference string, payload json.RawMessage, signatureValid bool) (int64, bool, error) {
	args := m.Called(ctx, eventID, externalReference, payload, signatureValid)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepository) MarkNotificationProcessed(ctx context.Context, notifID int64) error {
	return m.Called(ctx, notifID).Error(0)
}

func (m *MockPaymentRepository) MarkNotificationFailed(ctx context.Context, notifID int64, reason string) error {
	return m.Called(ctx, notifID, reason).Error(0)
}
