package types

// LogEvent represents one log notification received from the subscription.
//
// Fields:
// - ID: the signature of the transaction that produced the logs.
// - Slot: the slot reported in the notification context.
// - Failed: true when the transaction returned an error.
// - Logs: the raw log lines emitted by the transaction.
type LogEvent struct {
	ID     TransactionID
	Slot   uint64
	Failed bool
	Logs   []string
}
