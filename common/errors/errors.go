package errors

import "github.com/pkg/errors"

var (
	ErrInvalidConfig      = errors.New("invalid monitor configuration")
	ErrQueueClosed        = errors.New("queue closed")
	ErrSubscriptionClosed = errors.New("log subscription closed")
	ErrNotYetIndexed      = errors.New("transaction not yet indexed")
	ErrMalformedDetail    = errors.New("malformed transaction detail")
	ErrDeliveryFailed     = errors.New("alert delivery failed")
	ErrClientNotReady     = errors.New("client not initialized")
)
