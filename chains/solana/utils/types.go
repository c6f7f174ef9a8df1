package utils

import (
	"github.com/gagliardetto/solana-go/rpc"
)

type GetParsedTransactionOptsV2 struct {
	Commitment                     rpc.CommitmentType `json:"commitment,omitempty"`
	MaxSupportedTransactionVersion uint64             `json:"maxSupportedTransactionVersion,omitempty"`
}
