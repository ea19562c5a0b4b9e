package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Snap widget environment selection. Sandbox client keys carry the SB- prefix;
// anything else is treated as production.
const (
	sandboxKeyPrefix    = "SB-Mid-"
	SandboxScriptURL    = "https://app.sandbox.midtrans.com/snap/snap.js"
	ProductionScriptURL = "https://app.midtrans.com/snap/snap.js"
)

// IsProduction reports whether the client key belongs to the production
// environment.
func IsProduction(clientKey string) bool {
	return clientKey != "" && !strings.HasPrefix(clientKey, sandboxKeyPrefix)
}

// ScriptURL returns the widget script URL matching the client key's
// environment.
func ScriptURL(clientKey string) string {
	if IsProduction(clientKey) {
		return ProductionScriptURL
	}
	return SandboxScriptURL
}

// SignalKind identifies one of the four widget callbacks.
type SignalKind string

const (
	SignalSuccess SignalKind = "success"
	SignalPending SignalKind = "pending"
	SignalError   SignalKind = "error"
	SignalClose   SignalKind = "close"
)

// ParseSignalKind maps a callback event name forwarded by the terminal UI to
// a SignalKind.
func ParseSignalKind(event string) (SignalKind, error) {
	switch SignalKind(strings.ToLower(event)) {
	case SignalSuccess:
		return SignalSuccess, nil
	case SignalPending:
		return SignalPending, nil
	case SignalError:
		return SignalError, nil
	case SignalClose:
		return SignalClose, nil
	}
	return "", fmt.Errorf("unknown widget event %q", event)
}

// Signal is one widget callback forwarded by the terminal UI. The raw gateway
// payload is carried through untouched; it is a hint, never an authoritative
// answer.
type Signal struct {
	Kind    SignalKind
	Message string
	Raw     json.RawMessage
}
