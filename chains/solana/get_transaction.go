package solana

import (
	"context"

	"github.com/ClipFinance/whale-monitor/chains/solana/utils"
	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/ClipFinance/whale-monitor/common/types"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// GetTransactionDetail fetches the balance fields of a transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - id: the transaction signature.
//
// Returns:
// - *types.TransactionDetail: the fetched detail.
// - error: ErrNotYetIndexed when the node has no record of the transaction,
// ErrMalformedDetail when the signature or the response is unusable, or the transport error.
func (s *solana) GetTransactionDetail(ctx context.Context, id types.TransactionID) (*types.TransactionDetail, error) {
	sig, err := sol.SignatureFromBase58(id.String())
	if err != nil {
		return nil, errors.Wrapf(commonerrors.ErrMalformedDetail, "failed to parse signature: %v", err)
	}

	out, err := utils.GetParsedTransactionV2(ctx, s.client, sig, &utils.GetParsedTransactionOptsV2{
		Commitment: rpc.CommitmentType(s.config.LookupCommitment),
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, errors.Wrap(commonerrors.ErrNotYetIndexed, id.String())
		}
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	if out.Meta == nil {
		return nil, errors.Wrap(commonerrors.ErrMalformedDetail, "transaction meta is missing")
	}

	return &types.TransactionDetail{
		ID:           id,
		Slot:         out.Slot,
		PreBalances:  out.Meta.PreBalances,
		PostBalances: out.Meta.PostBalances,
	}, nil
}
