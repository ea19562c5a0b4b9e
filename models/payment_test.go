package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionStatusSets(t *testing.T) {
	settled := []TransactionStatus{StatusSettlement, StatusCapture, StatusSuccess}
	declined := []TransactionStatus{StatusDeny, StatusCancel, StatusExpire, StatusFailed}

	for _, s := range settled {
		assert.True(t, s.Settled(), s)
		assert.False(t, s.Declined(), s)
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range declined {
		assert.True(t, s.Declined(), s)
		assert.False(t, s.Settled(), s)
		assert.True(t, s.Terminal(), s)
	}

	assert.False(t, StatusPending.Terminal())
	assert.False(t, TransactionStatus("garbage").Terminal())
}

func TestReconciliationStateTerminality(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateChecking.Terminal())
	assert.True(t, StateSuccess.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateUnconfirmed.Terminal())
}
