package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"payment-reconciler/clients"
	"payment-reconciler/gateway"
	"payment-reconciler/metrics"
	"payment-reconciler/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown or already swept sessions.
var ErrSessionNotFound = errors.New("checkout session not found")

// backendAPI is everything the checkout flow needs from the POS backend.
// *clients.BackendClient satisfies it.
type backendAPI interface {
	statusAPI
	CreateQrisPayment(ctx context.Context, creds clients.Credentials, req clients.CreateQrisPaymentRequest) (*models.PaymentIntent, error)
}

// CheckoutSession is one active checkout attempt: an immutable PaymentIntent,
// the terminal's interaction lease, and the coordinator reconciling its
// outcome.
type CheckoutSession struct {
	ID         string
	TerminalID string
	Intent     models.PaymentIntent
	CreatedAt  time.Time

	coordinator *Coordinator
	lease       *gateway.Lease
}

// State returns the session's reconciliation state and terminal result.
func (s *CheckoutSession) State() (models.ReconciliationState, *models.PaymentResult) {
	return s.coordinator.State()
}

// SessionManager registers active checkout sessions. Sessions are
// process-local: all durable order and payment state lives in the backend.
type SessionManager struct {
	backend   backendAPI
	leases    *gateway.LeaseRegistry
	cfg       CoordinatorConfig
	retention time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*CheckoutSession
}

func NewSessionManager(backend backendAPI, leases *gateway.LeaseRegistry, cfg CoordinatorConfig, retention time.Duration, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		backend:   backend,
		leases:    leases,
		cfg:       cfg,
		retention: retention,
		logger:    logger,
		sessions:  make(map[string]*CheckoutSession),
	}
}

// Open acquires the terminal, requests a fresh PaymentIntent from the backend
// and registers a session around it. The lease is released again on every
// exit path: terminal outcome, explicit close, or a failed open.
func (m *SessionManager) Open(ctx context.Context, creds clients.Credentials, terminalID, orderID string, amount int64) (*CheckoutSession, error) {
	sessionID := uuid.New().String()

	lease, err := m.leases.Acquire(terminalID, sessionID)
	if err != nil {
		return nil, err
	}

	intent, err := m.backend.CreateQrisPayment(ctx, creds, clients.CreateQrisPaymentRequest{
		OrderID: orderID,
		Amount:  amount,
	})
	if err != nil {
		lease.Release()
		return nil, err
	}

	session := &CheckoutSession{
		ID:         sessionID,
		TerminalID: terminalID,
		Intent:     *intent,
		CreatedAt:  time.Now(),
		lease:      lease,
	}
	session.coordinator = NewCoordinator(*intent, creds, m.backend, m.cfg, m.logger, func(res models.PaymentResult) {
		// The widget no longer owns the terminal once the outcome is known.
		lease.Release()
	})

	m.mu.Lock()
	m.sessions[sessionID] = session
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	m.logger.Info("Checkout session opened",
		zap.String("session_id", sessionID),
		zap.String("terminal_id", terminalID),
		zap.String("payment_id", intent.PaymentID),
	)
	return session, nil
}

// Get looks up an active session.
func (m *SessionManager) Get(sessionID string) (*CheckoutSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Signal forwards one widget callback to the session's coordinator.
func (m *SessionManager) Signal(ctx context.Context, sessionID string, sig gateway.Signal) error {
	session, ok := m.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	session.coordinator.HandleSignal(ctx, sig)
	return nil
}

// Close abandons a session: the poller stops before Close returns, further
// transitions are rejected and the terminal's lease is released.
func (m *SessionManager) Close(sessionID string) error {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	session.coordinator.Close()
	session.lease.Release()
	m.logger.Info("Checkout session closed", zap.String("session_id", sessionID))
	return nil
}

// Sweep drops sessions that reached a terminal state longer than the
// retention window ago. The short retention mirrors the success screen linger
// before the UI auto-closes.
func (m *SessionManager) Sweep() {
	cutoff := time.Now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.sessions {
		resolvedAt := session.coordinator.ResolvedAt()
		if resolvedAt.IsZero() || resolvedAt.After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		session.lease.Release()
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
}

// StartSweeper runs Sweep on an interval until the context is cancelled.
func (m *SessionManager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}
