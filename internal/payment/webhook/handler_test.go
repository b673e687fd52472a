package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chapchap-pay/internal/order"
	"chapchap-pay/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const (
	testAPIKey     = "live-api-key"
	testHMACSecret = "encryption-secret"
)

func testGateway() payment.Gateway {
	return payment.NewChapChapGateway(testAPIKey, testHMACSecret, "https://chapchappay.com/api/ecommerce/create")
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testHMACSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func notificationBody(t *testing.T, ref, code string, amount float64, operationID, method string) []byte {
	t.Helper()
	payload := map[string]interface{}{
		"order_id":     ref,
		"status":       map[string]interface{}{"code": code},
		"amount":       amount,
		"operation_id": operationID,
		"transaction":  map[string]interface{}{"payment_method": method},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func notifyRequest(body []byte, signature, apiKey string) *http.Request {
	req := httptest.NewRequest("POST", "/webhook/chapchap", bytes.NewBuffer(body))
	req.Header.Set(payment.HeaderHMACSignature, signature)
	req.Header.Set(payment.HeaderAPIKey, apiKey)
	return req
}

func pendingOrder(id uint, total float64, ref string) *order.Order {
	return &order.Order{
		ID:          id,
		TotalAmount: total,
		Currency:    "GNF",
		Status:      order.StatusPending,
		Payment:     order.PaymentMeta{ExternalReference: ref},
	}
}

func TestHandler_HandleNotification(t *testing.T) {
	ref := "CCP-101-1700000000"

	t.Run("Success_Paid", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "success", 50000, "OP123", "orange_money")
		req := notifyRequest(body, sign(body), testAPIKey)
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:success", ref, mock.Anything, true).
			Return(int64(1), false, nil)
		orders.On("FindByReference", mock.Anything, ref).Return(pendingOrder(101, 50000, ref), nil)
		orders.On("MarkAsPaid", mock.Anything, uint(101), "OP123", "orange_money").Return(nil)
		payments.On("UpdatePaymentStatus", mock.Anything, ref, "paid").Return(nil)
		payments.On("MarkNotificationProcessed", mock.Anything, int64(1)).Return(nil)

		h.HandleNotification(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"processed"}`, w.Body.String())
		orders.AssertExpectations(t)
		payments.AssertExpectations(t)
	})

	t.Run("AlteredBodyRejected", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "success", 50000, "OP123", "orange_money")
		signature := sign(body)
		altered := notificationBody(t, ref, "success", 99999, "OP123", "orange_money")

		w := httptest.NewRecorder()
		h.HandleNotification(w, notifyRequest(altered, signature, testAPIKey))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		orders.AssertNotCalled(t, "MarkAsPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		payments.AssertNotCalled(t, "SaveNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("BadAPIKeyRejected", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "success", 50000, "OP123", "orange_money")
		w := httptest.NewRecorder()
		h.HandleNotification(w, notifyRequest(body, sign(body), "wrong-key"))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := []byte(`{not json`)
		w := httptest.NewRecorder()
		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MissingOrderID", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := []byte(`{"status": {"code": "success"}, "amount": 50000}`)
		w := httptest.NewRecorder()
		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, "CCP-999-1700000000", "success", 50000, "OP123", "cc")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:success", "CCP-999-1700000000", mock.Anything, true).
			Return(int64(2), false, nil)
		orders.On("FindByReference", mock.Anything, "CCP-999-1700000000").Return(nil, order.ErrOrderNotFound)
		orders.On("GetOrder", mock.Anything, uint(999)).Return(nil, order.ErrOrderNotFound)
		payments.On("MarkNotificationFailed", mock.Anything, int64(2), "order not found").Return(nil)

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("FallbackResolution", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		// The order never got its reference stamped, exact lookup misses,
		// the embedded id is extracted and the empty stored reference does
		// not contradict it.
		body := notificationBody(t, ref, "success", 50000, "OP123", "paycard")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:success", ref, mock.Anything, true).
			Return(int64(3), false, nil)
		orders.On("FindByReference", mock.Anything, ref).Return(nil, order.ErrOrderNotFound)
		orders.On("GetOrder", mock.Anything, uint(101)).Return(pendingOrder(101, 50000, ""), nil)
		orders.On("MarkAsPaid", mock.Anything, uint(101), "OP123", "paycard").Return(nil)
		payments.On("UpdatePaymentStatus", mock.Anything, ref, "paid").Return(nil)
		payments.On("MarkNotificationProcessed", mock.Anything, int64(3)).Return(nil)

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusOK, w.Code)
		orders.AssertExpectations(t)
	})

	t.Run("FallbackContradictedByStoredReference", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "success", 50000, "OP123", "cc")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:success", ref, mock.Anything, true).
			Return(int64(4), false, nil)
		orders.On("FindByReference", mock.Anything, ref).Return(nil, order.ErrOrderNotFound)
		orders.On("GetOrder", mock.Anything, uint(101)).
			Return(pendingOrder(101, 50000, "CCP-101-1600000000"), nil)
		payments.On("MarkNotificationFailed", mock.Anything, int64(4), "order not found").Return(nil)

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusNotFound, w.Code)
		orders.AssertNotCalled(t, "MarkAsPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("AmountMismatchHoldsOrder", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "success", 9000, "OP123", "cc")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:success", ref, mock.Anything, true).
			Return(int64(5), false, nil)
		orders.On("FindByReference", mock.Anything, ref).Return(pendingOrder(101, 10000, ref), nil)
		orders.On("HoldForReview", mock.Anything, uint(101), mock.MatchedBy(func(reason string) bool {
			return len(reason) > 0
		})).Return(nil)
		payments.On("MarkNotificationFailed", mock.Anything, int64(5), "amount mismatch").Return(nil)

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusOK, w.Code)
		orders.AssertNotCalled(t, "MarkAsPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		orders.AssertExpectations(t)
	})

	t.Run("AmountWithinTolerance", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "success", 50000.0005, "OP123", "cc")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:success", ref, mock.Anything, true).
			Return(int64(6), false, nil)
		orders.On("FindByReference", mock.Anything, ref).Return(pendingOrder(101, 50000, ref), nil)
		orders.On("MarkAsPaid", mock.Anything, uint(101), "OP123", "cc").Return(nil)
		payments.On("UpdatePaymentStatus", mock.Anything, ref, "paid").Return(nil)
		payments.On("MarkNotificationProcessed", mock.Anything, int64(6)).Return(nil)

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusOK, w.Code)
		orders.AssertExpectations(t)
	})

	t.Run("DuplicateAcknowledgedWithoutReprocessing", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "success", 50000, "OP123", "cc")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:success", ref, mock.Anything, true).
			Return(int64(0), true, nil)

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusOK, w.Code)
		orders.AssertNotCalled(t, "FindByReference", mock.Anything, mock.Anything)
		orders.AssertNotCalled(t, "MarkAsPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("FailedStatus", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "failed", 50000, "OP123", "cc")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:failed", ref, mock.Anything, true).
			Return(int64(7), false, nil)
		orders.On("FindByReference", mock.Anything, ref).Return(pendingOrder(101, 50000, ref), nil)
		orders.On("MarkAsFailed", mock.Anything, uint(101)).Return(nil)
		payments.On("UpdatePaymentStatus", mock.Anything, ref, "failed").Return(nil)
		payments.On("MarkNotificationProcessed", mock.Anything, int64(7)).Return(nil)

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusOK, w.Code)
		orders.AssertExpectations(t)
	})

	t.Run("CanceledStatus", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "canceled", 50000, "OP123", "cc")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:canceled", ref, mock.Anything, true).
			Return(int64(8), false, nil)
		orders.On("FindByReference", mock.Anything, ref).Return(pendingOrder(101, 50000, ref), nil)
		orders.On("MarkAsCancelled", mock.Anything, uint(101)).Return(nil)
		payments.On("UpdatePaymentStatus", mock.Anything, ref, "cancelled").Return(nil)
		payments.On("MarkNotificationProcessed", mock.Anything, int64(8)).Return(nil)

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("PendingStatus", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "pending", 50000, "OP123", "cc")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:pending", ref, mock.Anything, true).
			Return(int64(9), false, nil)
		orders.On("FindByReference", mock.Anything, ref).Return(pendingOrder(101, 50000, ref), nil)
		orders.On("MarkAsPending", mock.Anything, uint(101), "OP123").Return(nil)
		payments.On("UpdatePaymentStatus", mock.Anything, ref, "pending").Return(nil)
		payments.On("MarkNotificationProcessed", mock.Anything, int64(9)).Return(nil)

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("UnknownStatusCodeAudited", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "refund_pending", 50000, "OP123", "cc")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:refund_pending", ref, mock.Anything, true).
			Return(int64(10), false, nil)
		orders.On("FindByReference", mock.Anything, ref).Return(pendingOrder(101, 50000, ref), nil)
		orders.On("RecordUnknownStatus", mock.Anything, uint(101), "refund_pending").Return(nil)
		payments.On("MarkNotificationProcessed", mock.Anything, int64(10)).Return(nil)

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusOK, w.Code)
		orders.AssertNotCalled(t, "MarkAsPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		orders.AssertExpectations(t)
	})

	t.Run("ConflictingTerminalAcknowledged", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "success", 50000, "OP123", "cc")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:success", ref, mock.Anything, true).
			Return(int64(11), false, nil)
		orders.On("FindByReference", mock.Anything, ref).Return(pendingOrder(101, 50000, ref), nil)
		orders.On("MarkAsPaid", mock.Anything, uint(101), "OP123", "cc").Return(order.ErrStatusConflict)
		payments.On("MarkNotificationFailed", mock.Anything, int64(11), "conflicting terminal status").Return(nil)

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusOK, w.Code)
		payments.AssertNotCalled(t, "MarkNotificationProcessed", mock.Anything, mock.Anything)
	})

	t.Run("ServiceErrorTriggersRetry", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "success", 50000, "OP123", "cc")
		w := httptest.NewRecorder()

		payments.On("SaveNotification", mock.Anything, "OP123:success", ref, mock.Anything, true).
			Return(int64(12), false, nil)
		orders.On("FindByReference", mock.Anything, ref).Return(pendingOrder(101, 50000, ref), nil)
		orders.On("MarkAsPaid", mock.Anything, uint(101), "OP123", "cc").Return(errors.New("db down"))

		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("RetryAfterFailureReappliesTransition", func(t *testing.T) {
		orders := new(MockOrderService)
		payments := new(MockPaymentRepository)
		h := NewHandler(orders, testGateway(), payments)

		body := notificationBody(t, ref, "success", 50000, "OP123", "cc")

		// First delivery dies applying the transition. The audit row exists
		// but is unprocessed, so the redelivery must not be deduplicated.
		payments.On("SaveNotification", mock.Anything, "OP123:success", ref, mock.Anything, true).
			Return(int64(13), false, nil).Twice()
		orders.On("FindByReference", mock.Anything, ref).Return(pendingOrder(101, 50000, ref), nil).Twice()
		orders.On("MarkAsPaid", mock.Anything, uint(101), "OP123", "cc").
			Return(errors.New("db down")).Once()

		w := httptest.NewRecorder()
		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		payments.AssertNotCalled(t, "MarkNotificationProcessed", mock.Anything, mock.Anything)

		// The processor redelivers the identical payload; this time the
		// dispatch succeeds and the order reaches paid.
		orders.On("MarkAsPaid", mock.Anything, uint(101), "OP123", "cc").Return(nil).Once()
		payments.On("UpdatePaymentStatus", mock.Anything, ref, "paid").Return(nil)
		payments.On("MarkNotificationProcessed", mock.Anything, int64(13)).Return(nil)

		w = httptest.NewRecorder()
		h.HandleNotification(w, notifyRequest(body, sign(body), testAPIKey))
		assert.Equal(t, http.StatusOK, w.Code)

		orders.AssertExpectations(t)
		payments.AssertExpectations(t)
	})
}
