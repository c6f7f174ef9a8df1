package types

import "strings"

// SubscriptionMode defines the RPC connection type
type SubscriptionMode int

const (
	WebSocketMode SubscriptionMode = iota
	HTTPMode
)

// GetSubscriptionMode returns mode based on RPC URL
func GetSubscriptionMode(rpcURL string) SubscriptionMode {
	if strings.HasPrefix(rpcURL, "wss://") || strings.HasPrefix(rpcURL, "ws://") {
		return WebSocketMode
	}
	return HTTPMode
}

func (m SubscriptionMode) String() string {
	switch m {
	case WebSocketMode:
		return "WebSocket"
	case HTTPMode:
		return "HTTP"
	default:
		return "Unknown"
	}
}

// LogFilter selects which program's transactions the subscription reports.
//
// Fields:
// - ProgramID: base58 address that the transaction must mention.
// - Commitment: the commitment level of the notifications.
type LogFilter struct {
	ProgramID  string
	Commitment string
}
