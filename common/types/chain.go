package types

import (
	"context"
)

// ChainConfig holds the connection settings of the watched chain.
//
// Fields:
// - Name: the name of the chain, used in log fields.
// - WsUrl: the URL of the chain's websocket endpoint.
// - RpcUrl: the URL of the chain's JSON-RPC endpoint.
// - LookupCommitment: the commitment used when fetching transaction details.
type ChainConfig struct {
	Name             string
	WsUrl            string
	RpcUrl           string
	LookupCommitment string
}

// LogStream is a lazy, non-restartable sequence of log notifications.
type LogStream interface {
	// Recv blocks until the next notification arrives.
	//
	// Parameters:
	// - ctx: the context for cancelling the wait.
	//
	// Returns:
	// - *LogEvent: the received notification.
	// - error: ErrSubscriptionClosed once the stream has ended, or the context error.
	Recv(ctx context.Context) (*LogEvent, error)

	// Close unsubscribes and releases the stream.
	Close()
}

// LogSubscriber provides log subscription functionality.
type LogSubscriber interface {
	// SubscribeLogs opens a log subscription for transactions matching the filter.
	//
	// Parameters:
	// - ctx: the context for managing the subscription.
	// - filter: the program and commitment to subscribe with.
	//
	// Returns:
	// - LogStream: the opened stream.
	// - error: an error if the subscription cannot be established.
	SubscribeLogs(ctx context.Context, filter LogFilter) (LogStream, error)
}

// DetailFetcher provides transaction lookup functionality.
type DetailFetcher interface {
	// GetTransactionDetail fetches the balance fields of a transaction.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - id: the transaction signature.
	//
	// Returns:
	// - *TransactionDetail: the fetched detail.
	// - error: ErrNotYetIndexed if the transaction is not found, or the transport error.
	GetTransactionDetail(ctx context.Context, id TransactionID) (*TransactionDetail, error)
}

// Chain combines all chain-specific functionality used by the monitor.
type Chain interface {
	LogSubscriber
	DetailFetcher

	// CheckConnection checks if the RPC endpoint is healthy.
	CheckConnection(ctx context.Context) error

	// ShutdownListeners stops all active subscriptions.
	ShutdownListeners()
}
