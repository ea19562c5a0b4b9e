package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptURLByClientKey(t *testing.T) {
	assert.Equal(t, SandboxScriptURL, ScriptURL("SB-Mid-client-abc123"))
	assert.Equal(t, ProductionScriptURL, ScriptURL("Mid-client-abc123"))
	// Missing key defaults to sandbox rather than pointing at production.
	assert.Equal(t, SandboxScriptURL, ScriptURL(""))
}

func TestIsProduction(t *testing.T) {
	assert.False(t, IsProduction("SB-Mid-client-abc123"))
	assert.False(t, IsProduction(""))
	assert.True(t, IsProduction("Mid-client-abc123"))
}

func TestParseSignalKind(t *testing.T) {
	for _, event := range []string{"success", "pending", "error", "close"} {
		kind, err := ParseSignalKind(event)
		assert.NoError(t, err)
		assert.Equal(t, SignalKind(event), kind)
	}

	kind, err := ParseSignalKind("SUCCESS")
	assert.NoError(t, err)
	assert.Equal(t, SignalSuccess, kind)

	_, err = ParseSignalKind("settled")
	assert.Error(t, err)
}
