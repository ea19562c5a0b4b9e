package services

import (
	"context"
	"sync"
	"time"

	"payment-reconciler/clients"
	"payment-reconciler/metrics"
	"payment-reconciler/models"

	"go.uber.org/zap"
)

// statusAPI is the slice of the backend client the reconciliation flow needs.
type statusAPI interface {
	PaymentStatus(ctx context.Context, creds clients.Credentials, paymentID string) (*models.PaymentStatusInfo, error)
	SyncPaymentStatus(ctx context.Context, creds clients.Credentials, orderID string) (*models.SyncResult, error)
	FindOrderByNumber(ctx context.Context, creds clients.Credentials, orderNumber string) (*models.Order, error)
}

// PollOutcome is the terminal verdict of one polling run.
type PollOutcome struct {
	State     models.ReconciliationState
	Order     *models.Order
	WasSynced bool
	Message   string
}

// StatusPoller repeatedly queries the backend transaction status on a fixed
// interval until a terminal status is reached, the deadline elapses, or it is
// stopped. Network errors on a tick are logged and the next tick retries;
// they never produce a failure verdict on their own.
type StatusPoller struct {
	backend  statusAPI
	interval time.Duration
	deadline time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewStatusPoller(backend statusAPI, interval, deadline time.Duration, logger *zap.Logger) *StatusPoller {
	return &StatusPoller{
		backend:  backend,
		interval: interval,
		deadline: deadline,
		logger:   logger,
	}
}

// Start begins polling in the background. deliver is invoked exactly once
// with the terminal outcome unless the poller is stopped first. Calling Start
// while a run is active is a no-op.
func (p *StatusPoller) Start(intent models.PaymentIntent, creds clients.Credentials, deliver func(PollOutcome)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	go p.run(ctx, intent, creds, deliver)
}

// Stop cancels the active run and waits for it to exit, so no further backend
// calls are issued after Stop returns. Safe to call when never started and
// safe to call repeatedly.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *StatusPoller) run(ctx context.Context, intent models.PaymentIntent, creds clients.Credentials, deliver func(PollOutcome)) {
	defer func() {
		p.mu.Lock()
		p.running = false
		close(p.done)
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.deadline)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			p.logger.Warn("Poll deadline elapsed without a terminal status",
				zap.String("payment_id", intent.PaymentID),
				zap.Duration("deadline", p.deadline),
			)
			deliver(PollOutcome{
				State:   models.StateUnconfirmed,
				Message: "payment not confirmed yet, check the order status later",
			})
			return
		case <-ticker.C:
			outcome := p.tick(ctx, intent, creds)
			if outcome == nil {
				metrics.PollTicks.Inc()
				continue
			}
			if ctx.Err() != nil {
				return
			}
			deliver(*outcome)
			return
		}
	}
}

// tick performs one status check. A nil return means keep polling.
func (p *StatusPoller) tick(ctx context.Context, intent models.PaymentIntent, creds clients.Credentials) *PollOutcome {
	info, err := p.backend.PaymentStatus(ctx, creds, intent.PaymentID)
	if err != nil {
		// Transient by policy: keep polling rather than falsely report failure.
		p.logger.Warn("Payment status check failed",
			zap.String("payment_id", intent.PaymentID),
			zap.Error(err),
		)
		return nil
	}

	switch {
	case info.TransactionStatus.Settled():
		if info.WasUpdated {
			return &PollOutcome{State: models.StateSuccess, Order: info.Order}
		}
		return p.syncSettled(ctx, intent, creds)
	case info.TransactionStatus.Declined():
		return &PollOutcome{
			State:   models.StateFailed,
			Message: "payment failed or was cancelled",
		}
	}
	return nil
}

// syncSettled handles the settled-but-not-applied case: ask the backend to
// reconcile the order explicitly. If the sync cannot complete, polling
// continues; the backend webhook may still land.
func (p *StatusPoller) syncSettled(ctx context.Context, intent models.PaymentIntent, creds clients.Credentials) *PollOutcome {
	orderID := intent.OrderID
	if orderID == "" {
		order, err := p.backend.FindOrderByNumber(ctx, creds, intent.OrderNumber)
		if err != nil {
			p.logger.Warn("Order lookup for sync failed",
				zap.String("order_number", intent.OrderNumber),
				zap.Error(err),
			)
			return nil
		}
		orderID = order.ID
	}

	res, err := p.backend.SyncPaymentStatus(ctx, creds, orderID)
	if err != nil {
		p.logger.Warn("Payment sync failed, will keep polling",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil
	}
	if !res.Synced {
		return nil
	}
	return &PollOutcome{State: models.StateSuccess, Order: res.Order, WasSynced: true}
}
