package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payment-reconciler/clients"
	"payment-reconciler/controllers"
	"payment-reconciler/gateway"
	"payment-reconciler/models"
	"payment-reconciler/routes"
	"payment-reconciler/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubBackend satisfies the session manager's backend dependency with
// canned responses; status stays pending so handlers resolve synchronously
// only through widget signals.
type stubBackend struct {
	createErr error
}

func (s *stubBackend) CreateQrisPayment(ctx context.Context, creds clients.Credentials, req clients.CreateQrisPaymentRequest) (*models.PaymentIntent, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.PaymentIntent{
		PaymentID:   "pay-1",
		OrderID:     req.OrderID,
		OrderNumber: "ORD-001",
		SnapToken:   "tok-abc",
		ClientKey:   "SB-Mid-client-xyz",
		Amount:      req.Amount,
	}, nil
}

func (s *stubBackend) PaymentStatus(ctx context.Context, creds clients.Credentials, paymentID string) (*models.PaymentStatusInfo, error) {
	return &models.PaymentStatusInfo{TransactionStatus: models.StatusPending}, nil
}

func (s *stubBackend) SyncPaymentStatus(ctx context.Context, creds clients.Credentials, orderID string) (*models.SyncResult, error) {
	return &models.SyncResult{}, nil
}

func (s *stubBackend) FindOrderByNumber(ctx context.Context, creds clients.Credentials, orderNumber string) (*models.Order, error) {
	return &models.Order{ID: "order-1", OrderNumber: orderNumber}, nil
}

func newTestRouter(backend *stubBackend) *gin.Engine {
	gin.SetMode(gin.TestMode)
	sessions := services.NewSessionManager(backend, gateway.NewLeaseRegistry(), services.CoordinatorConfig{
		PollInterval: 5 * time.Millisecond,
		PollDeadline: time.Second,
	}, time.Minute, zap.NewNop())

	r := gin.New()
	routes.RegisterCheckoutRoutes(r, &controllers.CheckoutController{Sessions: sessions, Logger: zap.NewNop()})
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer token-123")
		req.Header.Set("X-Business-Id", "biz-1")
		req.Header.Set("X-Outlet-Id", "outlet-1")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func openSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/v1/checkout/qris", gin.H{
		"order_id":    "order-1",
		"amount":      150000,
		"terminal_id": "terminal-1",
	}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func TestOpenCheckoutRequiresAuth(t *testing.T) {
	r := newTestRouter(&stubBackend{})
	w := doJSON(r, http.MethodPost, "/v1/checkout/qris", gin.H{
		"order_id":    "order-1",
		"amount":      150000,
		"terminal_id": "terminal-1",
	}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOpenCheckoutReturnsWidgetBootstrap(t *testing.T) {
	r := newTestRouter(&stubBackend{})
	w := doJSON(r, http.MethodPost, "/v1/checkout/qris", gin.H{
		"order_id":    "order-1",
		"amount":      150000,
		"terminal_id": "terminal-1",
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SessionID  string               `json:"session_id"`
		Payment    models.PaymentIntent `json:"payment"`
		ScriptURL  string               `json:"script_url"`
		Production bool                 `json:"production"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "tok-abc", resp.Payment.SnapToken)
	assert.Equal(t, gateway.SandboxScriptURL, resp.ScriptURL)
	assert.False(t, resp.Production)
}

func TestOpenCheckoutValidatesBody(t *testing.T) {
	r := newTestRouter(&stubBackend{})
	w := doJSON(r, http.MethodPost, "/v1/checkout/qris", gin.H{"order_id": "order-1"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpenCheckoutBusyTerminal(t *testing.T) {
	r := newTestRouter(&stubBackend{})
	openSession(t, r)

	w := doJSON(r, http.MethodPost, "/v1/checkout/qris", gin.H{
		"order_id":    "order-2",
		"amount":      1000,
		"terminal_id": "terminal-1",
	}, true)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOpenCheckoutBackendFailure(t *testing.T) {
	r := newTestRouter(&stubBackend{createErr: assert.AnError})
	w := doJSON(r, http.MethodPost, "/v1/checkout/qris", gin.H{
		"order_id":    "order-1",
		"amount":      150000,
		"terminal_id": "terminal-1",
	}, true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSignalErrorResolvesSession(t *testing.T) {
	r := newTestRouter(&stubBackend{})
	sessionID := openSession(t, r)

	w := doJSON(r, http.MethodPost, "/v1/checkout/"+sessionID+"/signal", gin.H{
		"event":   "error",
		"message": "card declined",
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/v1/checkout/"+sessionID, nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		State  models.ReconciliationState `json:"state"`
		Result *models.PaymentResult      `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StateFailed, resp.State)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "card declined", resp.Result.Message)
}

func TestSignalRejectsUnknownEvent(t *testing.T) {
	r := newTestRouter(&stubBackend{})
	sessionID := openSession(t, r)

	w := doJSON(r, http.MethodPost, "/v1/checkout/"+sessionID+"/signal", gin.H{"event": "settled"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignalUnknownSession(t *testing.T) {
	r := newTestRouter(&stubBackend{})
	w := doJSON(r, http.MethodPost, "/v1/checkout/nope/signal", gin.H{"event": "pending"}, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCloseCheckout(t *testing.T) {
	r := newTestRouter(&stubBackend{})
	sessionID := openSession(t, r)

	w := doJSON(r, http.MethodDelete, "/v1/checkout/"+sessionID, nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/v1/checkout/"+sessionID, nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
