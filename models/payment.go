package models

import "time"

// TransactionStatus is the authoritative payment state reported by the POS
// backend. The backend owns it; this service only reads it.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusSettlement TransactionStatus = "settlement"
	StatusCapture    TransactionStatus = "capture"
	StatusSuccess    TransactionStatus = "success"
	StatusDeny       TransactionStatus = "deny"
	StatusCancel     TransactionStatus = "cancel"
	StatusExpire     TransactionStatus = "expire"
	StatusFailed     TransactionStatus = "failed"
)

// Settled reports whether funds have been confirmed received.
func (s TransactionStatus) Settled() bool {
	switch s {
	case StatusSettlement, StatusCapture, StatusSuccess:
		return true
	}
	return false
}

// Declined reports whether the payment terminally failed on the gateway side.
func (s TransactionStatus) Declined() bool {
	switch s {
	case StatusDeny, StatusCancel, StatusExpire, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further status changes are expected.
func (s TransactionStatus) Terminal() bool {
	return s.Settled() || s.Declined()
}

// ReconciliationState is this service's belief about the payment outcome.
// Transitions are one-directional; success, failed and unconfirmed absorb.
type ReconciliationState string

const (
	StatePending     ReconciliationState = "pending"
	StateChecking    ReconciliationState = "checking"
	StateSuccess     ReconciliationState = "success"
	StateFailed      ReconciliationState = "failed"
	StateUnconfirmed ReconciliationState = "unconfirmed"
)

// Terminal reports whether the state accepts no further transitions.
func (s ReconciliationState) Terminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateUnconfirmed:
		return true
	}
	return false
}

// PaymentIntent is one checkout attempt's gateway session, issued by the
// backend. Immutable after creation and never reused; a retry needs a fresh
// intent.
type PaymentIntent struct {
	PaymentID        string `json:"payment_id"`
	OrderID          string `json:"order_id"`
	OrderNumber      string `json:"order_number"`
	SnapToken        string `json:"snap_token"`
	ClientKey        string `json:"client_key"`
	PaymentReference string `json:"payment_reference,omitempty"`
	Amount           int64  `json:"amount"`
}

// Order is the slice of the backend order record used to refresh the caller's
// UI without a reload.
type Order struct {
	ID            string     `json:"id"`
	OrderNumber   string     `json:"order_number"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	Total         int64      `json:"total"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// PaymentStatusInfo is the backend's answer to a status check. WasUpdated
// means the backend just reconciled the order record as part of this check.
type PaymentStatusInfo struct {
	TransactionStatus TransactionStatus `json:"transaction_status"`
	WasUpdated        bool              `json:"was_updated"`
	Order             *Order            `json:"order,omitempty"`
}

// SyncResult is the backend's answer to an explicit sync request.
type SyncResult struct {
	Synced bool   `json:"synced"`
	Order  *Order `json:"order,omitempty"`
}

// PaymentResult is delivered to the caller exactly once per PaymentIntent.
type PaymentResult struct {
	Method     string `json:"method"`
	Success    bool   `json:"success"`
	Order      *Order `json:"order,omitempty"`
	Message    string `json:"message,omitempty"`
	WasUpdated bool   `json:"was_updated,omitempty"`
	WasSynced  bool   `json:"was_synced,omitempty"`
}
