package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payment-reconciler/metrics"
	"payment-reconciler/models"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Credentials are forwarded verbatim from the calling terminal UI on every
// backend request. The backend scopes orders by business and outlet.
type Credentials struct {
	Token      string
	BusinessID string
	OutletID   string
}

// BackendClient talks to the POS backend order/payment API. The backend is the
// single source of truth for transaction status; widget callbacks only trigger
// reads against it.
type BackendClient struct {
	http   *resty.Client
	syncCB *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewBackendClient(baseURL string, timeout time.Duration, logger *zap.Logger) *BackendClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend-sync",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			state := float64(0)
			switch to {
			case gobreaker.StateOpen:
				state = 1
			case gobreaker.StateHalfOpen:
				state = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(state)
			logger.Info("Circuit breaker state changed",
				zap.String("circuit", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BackendClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(0), // the poller owns retry cadence
		syncCB: cb,
		logger: logger,
	}
}

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type CreateQrisPaymentRequest struct {
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
}

func (c *BackendClient) request(ctx context.Context, creds Credentials) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+creds.Token).
		SetHeader("X-Business-Id", creds.BusinessID).
		SetHeader("X-Outlet-Id", creds.OutletID)
}

func decodeEnvelope(resp *resty.Response, out interface{}) error {
	if resp.IsError() {
		return fmt.Errorf("backend error: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("backend rejected request: %s", env.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode backend payload: %w", err)
	}
	return nil
}

// CreateQrisPayment asks the backend to issue a new gateway session for the
// order. Each call produces a fresh PaymentIntent; intents are never reused.
func (c *BackendClient) CreateQrisPayment(ctx context.Context, creds Credentials, req CreateQrisPaymentRequest) (*models.PaymentIntent, error) {
	resp, err := c.request(ctx, creds).
		SetBody(req).
		Post("/v1/orders/payment/qris")
	if err != nil {
		return nil, fmt.Errorf("create qris payment: %w", err)
	}
	var intent models.PaymentIntent
	if err := decodeEnvelope(resp, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// PaymentStatus fetches the authoritative transaction status. The backend may
// reconcile the order record as a side effect and flags that with was_updated.
func (c *BackendClient) PaymentStatus(ctx context.Context, creds Credentials, paymentID string) (*models.PaymentStatusInfo, error) {
	resp, err := c.request(ctx, creds).
		Get("/v1/orders/payment/" + paymentID + "/status")
	if err != nil {
		return nil, fmt.Errorf("check payment status: %w", err)
	}
	var info models.PaymentStatusInfo
	if err := decodeEnvelope(resp, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SyncPaymentStatus asks the backend to reconcile the order with the gateway's
// recorded settlement. It mutates backend state, so it runs behind a circuit
// breaker.
func (c *BackendClient) SyncPaymentStatus(ctx context.Context, creds Credentials, orderID string) (*models.SyncResult, error) {
	res, err := c.syncCB.Execute(func() (interface{}, error) {
		resp, err := c.request(ctx, creds).
			Post("/v1/orders/" + orderID + "/sync-payment")
		if err != nil {
			return nil, fmt.Errorf("sync payment status: %w", err)
		}
		var out models.SyncResult
		if err := decodeEnvelope(resp, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		metrics.SyncAttempts.WithLabelValues("error").Inc()
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("sync temporarily unavailable: %w", err)
		}
		return nil, err
	}
	metrics.SyncAttempts.WithLabelValues("ok").Inc()
	return res.(*models.SyncResult), nil
}

// FindOrderByNumber resolves an order by its human-facing number. Used when an
// intent carries only the order number.
func (c *BackendClient) FindOrderByNumber(ctx context.Context, creds Credentials, orderNumber string) (*models.Order, error) {
	resp, err := c.request(ctx, creds).
		SetQueryParam("order_number", orderNumber).
		Get("/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("find order by number: %w", err)
	}
	var orders []models.Order
	if err := decodeEnvelope(resp, &orders); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("no order found for number %s", orderNumber)
	}
	return &orders[0], nil
}

// Order fetches the full order record for a UI refresh.
func (c *BackendClient) Order(ctx context.Context, creds Credentials, orderID string) (*models.Order, error) {
	resp, err := c.request(ctx, creds).
		Get("/v1/orders/" + orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch order: %w", err)
	}
	var order models.Order
	if err := decodeEnvelope(resp, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelPayment abandons a pending intent on the backend. Best effort; a
// settled payment cannot be cancelled this way.
func (c *BackendClient) CancelPayment(ctx context.Context, creds Credentials, paymentID string) error {
	resp, err := c.request(ctx, creds).
		Post("/v1/orders/payment/" + paymentID + "/cancel")
	if err != nil {
		return fmt.Errorf("cancel payment: %w", err)
	}
	return decodeEnvelope(resp, nil)
}
