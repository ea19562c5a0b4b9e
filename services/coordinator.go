package services

import (
	"context"
	"sync"
	"time"

	"payment-reconciler/clients"
	"payment-reconciler/gateway"
	"payment-reconciler/metrics"
	"payment-reconciler/models"

	"go.uber.org/zap"
)

// CoordinatorConfig carries the reconciliation timings.
type CoordinatorConfig struct {
	PollInterval time.Duration
	PollDeadline time.Duration
}

// Coordinator owns the reconciliation state for one PaymentIntent. It folds
// the widget's optimistic callbacks and the poller's verdicts into a single
// write-once outcome: whichever terminal signal is accepted first wins and
// every later signal is a no-op. The completion callback fires at most once.
type Coordinator struct {
	intent  models.PaymentIntent
	creds   clients.Credentials
	backend statusAPI
	poller  *StatusPoller
	logger  *zap.Logger

	mu         sync.Mutex
	state      models.ReconciliationState
	result     *models.PaymentResult
	resolvedAt time.Time
	closed     bool
	onComplete func(models.PaymentResult)
}

func NewCoordinator(intent models.PaymentIntent, creds clients.Credentials, backend statusAPI, cfg CoordinatorConfig, logger *zap.Logger, onComplete func(models.PaymentResult)) *Coordinator {
	log := logger.With(
		zap.String("payment_id", intent.PaymentID),
		zap.String("order_number", intent.OrderNumber),
	)
	return &Coordinator{
		intent:     intent,
		creds:      creds,
		backend:    backend,
		poller:     NewStatusPoller(backend, cfg.PollInterval, cfg.PollDeadline, log),
		logger:     log,
		state:      models.StatePending,
		onComplete: onComplete,
	}
}

// State returns the current reconciliation state and, once terminal, the
// result delivered to the caller.
func (co *Coordinator) State() (models.ReconciliationState, *models.PaymentResult) {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.state, co.result
}

// ResolvedAt returns when a terminal state was reached, zero if not yet.
func (co *Coordinator) ResolvedAt() time.Time {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.resolvedAt
}

// HandleSignal ingests one widget callback forwarded by the terminal UI.
func (co *Coordinator) HandleSignal(ctx context.Context, sig gateway.Signal) {
	switch sig.Kind {
	case gateway.SignalSuccess:
		co.handleSuccess(ctx)
	case gateway.SignalPending:
		co.handlePending()
	case gateway.SignalError:
		co.handleError(sig.Message)
	case gateway.SignalClose:
		co.handleClose()
	}
}

// handleSuccess treats the widget's success callback as a hint: check the
// backend once, sync once if the settlement has not been applied, and only
// then fall back to the periodic poller.
func (co *Coordinator) handleSuccess(ctx context.Context) {
	if !co.beginChecking() {
		return
	}

	info, err := co.backend.PaymentStatus(ctx, co.creds, co.intent.PaymentID)
	if err != nil {
		co.logger.Warn("Status check after widget success failed, falling back to polling", zap.Error(err))
		co.startPoller()
		return
	}

	if info.TransactionStatus.Settled() {
		if info.WasUpdated {
			co.resolve(models.StateSuccess, models.PaymentResult{
				Method:     "qris",
				Success:    true,
				Order:      info.Order,
				WasUpdated: true,
			}, false)
			return
		}
		if co.trySync(ctx) {
			return
		}
	}

	// Settlement not confirmed yet; the poller takes over.
	co.startPoller()
}

// trySync performs the one explicit sync attempt of the optimistic path.
// Returns true when it resolved the session.
func (co *Coordinator) trySync(ctx context.Context) bool {
	orderID := co.intent.OrderID
	if orderID == "" {
		order, err := co.backend.FindOrderByNumber(ctx, co.creds, co.intent.OrderNumber)
		if err != nil {
			co.logger.Warn("Order lookup for sync failed", zap.Error(err))
			return false
		}
		orderID = order.ID
	}

	res, err := co.backend.SyncPaymentStatus(ctx, co.creds, orderID)
	if err != nil {
		co.logger.Warn("Explicit payment sync failed", zap.Error(err))
		return false
	}
	if !res.Synced {
		return false
	}
	return co.resolve(models.StateSuccess, models.PaymentResult{
		Method:    "qris",
		Success:   true,
		Order:     res.Order,
		WasSynced: true,
	}, false)
}

func (co *Coordinator) handlePending() {
	if !co.beginChecking() {
		return
	}
	co.startPoller()
}

func (co *Coordinator) handleError(message string) {
	if message == "" {
		message = "payment failed, please try again"
	}
	co.resolve(models.StateFailed, models.PaymentResult{
		Method:  "qris",
		Message: message,
	}, false)
}

// handleClose treats a close without any definitive callback as ambiguous:
// settlement can still complete server side, so polling starts instead of
// assuming failure. A close after checking already began changes nothing.
func (co *Coordinator) handleClose() {
	co.mu.Lock()
	if co.closed || co.state != models.StatePending {
		co.mu.Unlock()
		return
	}
	co.state = models.StateChecking
	co.mu.Unlock()
	co.startPoller()
}

// Close abandons the session: the poller stops synchronously and no further
// state transitions are accepted.
func (co *Coordinator) Close() {
	co.mu.Lock()
	if co.closed {
		co.mu.Unlock()
		return
	}
	co.closed = true
	co.mu.Unlock()
	co.poller.Stop()
}

// beginChecking moves pending into checking. It reports false when the
// session is closed or already terminal, in which case the signal is dropped.
func (co *Coordinator) beginChecking() bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	if co.closed || co.state.Terminal() {
		return false
	}
	co.state = models.StateChecking
	return true
}

func (co *Coordinator) startPoller() {
	co.poller.Start(co.intent, co.creds, co.pollDelivered)
}

func (co *Coordinator) pollDelivered(out PollOutcome) {
	switch out.State {
	case models.StateSuccess:
		co.resolve(models.StateSuccess, models.PaymentResult{
			Method:     "qris",
			Success:    true,
			Order:      out.Order,
			WasUpdated: !out.WasSynced,
			WasSynced:  out.WasSynced,
		}, true)
	case models.StateFailed:
		co.resolve(models.StateFailed, models.PaymentResult{
			Method:  "qris",
			Message: out.Message,
		}, true)
	case models.StateUnconfirmed:
		co.resolve(models.StateUnconfirmed, models.PaymentResult{
			Method:  "qris",
			Message: out.Message,
		}, true)
	}
}

// resolve is the single-assignment slot for the session outcome. The first
// accepted terminal transition wins; everything after is dropped.
func (co *Coordinator) resolve(state models.ReconciliationState, res models.PaymentResult, fromPoller bool) bool {
	co.mu.Lock()
	if co.closed || co.state.Terminal() {
		co.mu.Unlock()
		return false
	}
	co.state = state
	co.result = &res
	co.resolvedAt = time.Now()
	cb := co.onComplete
	co.mu.Unlock()

	// The poller self-terminates after delivering; stopping it from inside
	// its own delivery would deadlock.
	if !fromPoller {
		co.poller.Stop()
	}

	metrics.ReconcileOutcomes.WithLabelValues(string(state)).Inc()
	co.logger.Info("Reconciliation resolved",
		zap.String("state", string(state)),
		zap.Bool("success", res.Success),
	)
	if cb != nil {
		cb(res)
	}
	return true
}
