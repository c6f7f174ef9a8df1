package types

// TransactionID is the base58 signature naming one on-chain transaction.
type TransactionID string

// String returns the signature as a plain string.
func (id TransactionID) String() string {
	return string(id)
}

// TransactionDetail holds the balance fields of a fetched transaction.
//
// Fields:
// - ID: the transaction signature.
// - Slot: the slot the transaction landed in.
// - PreBalances: account balances in lamports before execution, in account-key order.
// - PostBalances: account balances in lamports after execution, in account-key order.
type TransactionDetail struct {
	ID           TransactionID
	Slot         uint64
	PreBalances  []uint64
	PostBalances []uint64
}

// BalanceDelta is the change of the primary account balance, in SOL.
//
// Fields:
// - ID: the transaction signature.
// - Amount: absolute difference between PreAmount and PostAmount.
// - PreAmount: balance before execution.
// - PostAmount: balance after execution.
type BalanceDelta struct {
	ID         TransactionID
	Amount     float64
	PreAmount  float64
	PostAmount float64
}

// AlertMessage is a formatted notification for one qualifying transaction.
type AlertMessage struct {
	ID   TransactionID
	Text string
	Link string
}
