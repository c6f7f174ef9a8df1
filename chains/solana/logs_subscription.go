package solana

import (
	"context"
	"sync"
	"time"

	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/ClipFinance/whale-monitor/common/types"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// contextTimeout bounds a single dial + subscribe round.
	contextTimeout = 30 * time.Second
	// reconnectTimeout is the pause between reconnection attempts.
	reconnectTimeout = 5 * time.Second
	// maxReconnectAttempts is the number of resubscribe attempts before the stream ends.
	maxReconnectAttempts = 3
)

// logStream adapts a websocket logs subscription to types.LogStream.
type logStream struct {
	chain    *solana
	filter   types.LogFilter
	mentions sol.PublicKey

	mu     sync.Mutex
	client *ws.Client
	sub    *ws.LogSubscription
	closed bool
}

// SubscribeLogs opens a logsSubscribe stream for transactions mentioning the filter's program.
//
// Parameters:
// - ctx: the context for managing the initial dial.
// - filter: the program and commitment to subscribe with.
//
// Returns:
// - types.LogStream: the opened stream.
// - error: an error if the program id is invalid or the subscription cannot be established.
func (s *solana) SubscribeLogs(ctx context.Context, filter types.LogFilter) (types.LogStream, error) {
	mentions, err := sol.PublicKeyFromBase58(filter.ProgramID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse program id")
	}

	stream := &logStream{
		chain:    s,
		filter:   filter,
		mentions: mentions,
	}

	if err := stream.setupSubscription(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to setup logs subscription")
	}

	if err := s.trackStream(stream); err != nil {
		stream.Close()
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"chain":      s.config.Name,
		"program":    filter.ProgramID,
		"commitment": filter.Commitment,
	}).Info("Logs subscription established")

	return stream, nil
}

// Recv returns the next notification. Transport errors trigger a bounded
// reconnection; when it is exhausted the stream ends with ErrSubscriptionClosed.
func (l *logStream) Recv(ctx context.Context) (*types.LogEvent, error) {
	for {
		l.mu.Lock()
		sub, closed := l.sub, l.closed
		l.mu.Unlock()

		if closed || sub == nil {
			return nil, commonerrors.ErrSubscriptionClosed
		}

		result, err := sub.Recv(ctx)
		if err == nil {
			if result == nil {
				continue
			}
			return &types.LogEvent{
				ID:     types.TransactionID(result.Value.Signature.String()),
				Slot:   result.Context.Slot,
				Failed: result.Value.Err != nil,
				Logs:   result.Value.Logs,
			}, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if l.isClosed() {
			return nil, commonerrors.ErrSubscriptionClosed
		}

		l.chain.logger.WithField("chain", l.chain.config.Name).WithError(err).Error("Logs subscription error")
		if rerr := l.reconnectSubscription(ctx); rerr != nil {
			return nil, errors.Wrapf(commonerrors.ErrSubscriptionClosed, "reconnect failed: %v", rerr)
		}
	}
}

// Close unsubscribes and closes the websocket connection.
func (l *logStream) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.teardownLocked()
	l.mu.Unlock()

	l.chain.untrackStream(l)
}

func (l *logStream) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// teardownLocked releases the current subscription and connection. Caller holds l.mu.
func (l *logStream) teardownLocked() {
	if l.sub != nil {
		l.sub.Unsubscribe()
		l.sub = nil
	}
	if l.client != nil {
		l.client.Close()
		l.client = nil
	}
}

// setupSubscription dials the websocket endpoint and subscribes to logs.
//
// Parameters:
// - ctx: the parent context of the dial.
//
// Returns:
// - error: an error if dialing or subscribing fails.
func (l *logStream) setupSubscription(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, contextTimeout)
	defer cancel()

	client, err := ws.Connect(dialCtx, l.chain.config.WsUrl)
	if err != nil {
		return errors.Wrap(err, "failed to connect websocket")
	}

	sub, err := client.LogsSubscribeMentions(l.mentions, rpc.CommitmentType(l.filter.Commitment))
	if err != nil {
		client.Close()
		return errors.Wrap(err, "failed to subscribe to logs")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		sub.Unsubscribe()
		client.Close()
		return commonerrors.ErrSubscriptionClosed
	}

	l.client = client
	l.sub = sub
	return nil
}

// reconnectSubscription replaces a broken subscription, retrying up to
// maxReconnects times with reconnectDelay between attempts.
//
// Parameters:
// - ctx: the context for cancelling the reconnection.
//
// Returns:
// - error: an error if every attempt fails or the context is cancelled.
func (l *logStream) reconnectSubscription(ctx context.Context) error {
	l.mu.Lock()
	l.teardownLocked()
	l.mu.Unlock()

	maxAttempts := l.chain.maxReconnects
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		l.chain.logger.WithFields(logrus.Fields{
			"chain":   l.chain.config.Name,
			"attempt": attempt,
		}).Info("Attempting to reconnect logs subscription")

		if err = l.setupSubscription(ctx); err == nil {
			l.chain.logger.WithField("chain", l.chain.config.Name).Info("Successfully reconnected logs subscription")
			return nil
		}
		if errors.Is(err, commonerrors.ErrSubscriptionClosed) {
			return err
		}

		l.chain.logger.WithFields(logrus.Fields{
			"chain":   l.chain.config.Name,
			"attempt": attempt,
		}).WithError(err).Error("Reconnection attempt failed")

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.chain.reconnectDelay):
		}
	}

	return errors.Wrapf(err, "failed to reconnect after %d attempts", maxAttempts)
}
