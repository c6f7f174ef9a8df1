package pipeline

import (
	"context"
	"testing"
	"time"

	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolverConfig() ResolverConfig {
	cfg := DefaultResolverConfig()
	cfg.LookupRetryDelay = time.Millisecond
	return cfg
}

func TestComputeDelta(t *testing.T) {
	delta, ok := ComputeDelta(&types.TransactionDetail{
		ID:           "sig",
		PreBalances:  []uint64{1_000_000_000, 5},
		PostBalances: []uint64{800_000_000, 7},
	})
	require.True(t, ok)
	assert.Equal(t, types.TransactionID("sig"), delta.ID)
	assert.Equal(t, 0.2, delta.Amount)
	assert.Equal(t, 1.0, delta.PreAmount)
	assert.Equal(t, 0.8, delta.PostAmount)
}

func TestComputeDelta_Symmetric(t *testing.T) {
	out, ok := ComputeDelta(&types.TransactionDetail{PreBalances: []uint64{1_000_000_000}, PostBalances: []uint64{800_000_000}})
	require.True(t, ok)
	in, ok := ComputeDelta(&types.TransactionDetail{PreBalances: []uint64{800_000_000}, PostBalances: []uint64{1_000_000_000}})
	require.True(t, ok)

	assert.Equal(t, out.Amount, in.Amount)
	assert.GreaterOrEqual(t, in.Amount, 0.0)
}

func TestComputeDelta_EmptyBalances(t *testing.T) {
	tests := []struct {
		name   string
		detail *types.TransactionDetail
	}{
		{name: "nil detail"},
		{name: "empty pre", detail: &types.TransactionDetail{PostBalances: []uint64{1}}},
		{name: "empty post", detail: &types.TransactionDetail{PreBalances: []uint64{1}}},
		{name: "both empty", detail: &types.TransactionDetail{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, ok := ComputeDelta(tt.detail)
			assert.False(t, ok)
			assert.Nil(t, delta)
		})
	}
}

func TestQualifies(t *testing.T) {
	threshold := 0.1

	atThreshold, _ := ComputeDelta(&types.TransactionDetail{PreBalances: []uint64{1_000_000_000}, PostBalances: []uint64{900_000_000}})
	assert.False(t, Qualifies(*atThreshold, 0.1), "an amount equal to the threshold must not qualify")

	assert.False(t, Qualifies(types.BalanceDelta{Amount: threshold}, threshold))
	assert.False(t, Qualifies(types.BalanceDelta{Amount: 0.05}, threshold))
	assert.True(t, Qualifies(types.BalanceDelta{Amount: 0.1000001}, threshold))
	assert.True(t, Qualifies(types.BalanceDelta{Amount: 0.2}, threshold))
}

func TestResolver_Found(t *testing.T) {
	fetcher := newFakeFetcher().withBalances("sig", []uint64{1_000_000_000}, []uint64{800_000_000})
	resolver := NewResolver(fetcher, testResolverConfig(), quietLogger(), testMetrics())

	delta, ok := resolver.Resolve(context.Background(), "sig")
	require.True(t, ok)
	assert.Equal(t, 0.2, delta.Amount)
	assert.Equal(t, 1, fetcher.callCount("sig"))
}

func TestResolver_NotYetIndexedIsRetried(t *testing.T) {
	fetcher := newFakeFetcher().with("sig",
		lookupResult{err: errors.Wrap(commonerrors.ErrNotYetIndexed, "sig")},
		lookupResult{detail: &types.TransactionDetail{ID: "sig", PreBalances: []uint64{3_000_000_000}, PostBalances: []uint64{1_000_000_000}}},
	)
	resolver := NewResolver(fetcher, testResolverConfig(), quietLogger(), testMetrics())

	delta, ok := resolver.Resolve(context.Background(), "sig")
	require.True(t, ok)
	assert.Equal(t, 2.0, delta.Amount)
	assert.Equal(t, 2, fetcher.callCount("sig"))
}

func TestResolver_NotFoundGivesUp(t *testing.T) {
	fetcher := newFakeFetcher()
	resolver := NewResolver(fetcher, testResolverConfig(), quietLogger(), testMetrics())

	delta, ok := resolver.Resolve(context.Background(), "missing")
	assert.False(t, ok)
	assert.Nil(t, delta)
	assert.Equal(t, DefaultLookupAttempts, fetcher.callCount("missing"))
}

func TestResolver_OtherFailuresAreNotRetried(t *testing.T) {
	fetcher := newFakeFetcher().
		withError("malformed", errors.Wrap(commonerrors.ErrMalformedDetail, "missing meta")).
		withError("transport", errors.New("connection reset by peer")).
		withBalances("empty", nil, nil)
	resolver := NewResolver(fetcher, testResolverConfig(), quietLogger(), testMetrics())

	for _, id := range []types.TransactionID{"malformed", "transport", "empty"} {
		delta, ok := resolver.Resolve(context.Background(), id)
		assert.False(t, ok, id)
		assert.Nil(t, delta, id)
		assert.Equal(t, 1, fetcher.callCount(id), id)
	}
}

func TestResolver_BuildAlert(t *testing.T) {
	resolver := NewResolver(newFakeFetcher(), testResolverConfig(), quietLogger(), testMetrics())

	msg := resolver.BuildAlert(types.BalanceDelta{ID: "sig", Amount: 0.2, PreAmount: 1, PostAmount: 0.8})
	assert.Equal(t, types.TransactionID("sig"), msg.ID)
	assert.Equal(t, "https://solscan.io/tx/sig", msg.Link)
	assert.Contains(t, msg.Text, "0.20")
}
