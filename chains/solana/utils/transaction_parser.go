package utils

import (
	"context"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type GetParsedTransactionResultV2 struct {
	Slot        uint64
	BlockTime   *sol.UnixTimeSeconds
	Transaction *rpc.ParsedTransaction
	Meta        *rpc.ParsedTransactionMeta
}

// GetParsedTransactionV2 calls getTransaction with jsonParsed encoding.
// The typed client call rejects jsonParsed, so the request is issued raw.
// A null result is reported as rpc.ErrNotFound.
func GetParsedTransactionV2(
	ctx context.Context,
	client *rpc.Client,
	txSig sol.Signature,
	opts *GetParsedTransactionOptsV2,
) (out *GetParsedTransactionResultV2, err error) {
	params := []interface{}{txSig}
	obj := rpc.M{}
	if opts != nil {
		if opts.Commitment != "" {
			obj["commitment"] = opts.Commitment
		}
		obj["maxSupportedTransactionVersion"] = opts.MaxSupportedTransactionVersion
	}
	obj["encoding"] = sol.EncodingJSONParsed
	params = append(params, obj)
	err = client.RPCCallForInto(ctx, &out, "getTransaction", params)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, rpc.ErrNotFound
	}
	return
}
