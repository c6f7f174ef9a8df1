package pipeline

import (
	"context"
	"time"

	"github.com/ClipFinance/whale-monitor/alert"
	"github.com/ClipFinance/whale-monitor/chains/solana/utils"
	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/ClipFinance/whale-monitor/metrics"
	"github.com/ClipFinance/whale-monitor/retry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultAlertThreshold is the outflow in SOL that must be exceeded to raise an alert.
	DefaultAlertThreshold = 0.1
	// DefaultLookupTimeout bounds a single transaction lookup.
	DefaultLookupTimeout = 10 * time.Second
	// DefaultLookupAttempts is the number of lookups before a transaction counts as not found.
	DefaultLookupAttempts = 3
	// DefaultLookupRetryDelay is the wait between lookups of the same transaction.
	DefaultLookupRetryDelay = 500 * time.Millisecond
)

// ResolverConfig holds the resolver settings.
//
// Fields:
// - Threshold: minimum amount in SOL, an alert needs strictly more.
// - ExplorerURL: prefix of the transaction link.
// - LookupTimeout: bound on one detail lookup.
// - LookupAttempts: total lookups for a transaction that is not yet indexed.
// - LookupRetryDelay: wait between those lookups.
type ResolverConfig struct {
	Threshold        float64
	ExplorerURL      string
	LookupTimeout    time.Duration
	LookupAttempts   int
	LookupRetryDelay time.Duration
}

// DefaultResolverConfig returns the resolver defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Threshold:        DefaultAlertThreshold,
		ExplorerURL:      alert.DefaultExplorerURL,
		LookupTimeout:    DefaultLookupTimeout,
		LookupAttempts:   DefaultLookupAttempts,
		LookupRetryDelay: DefaultLookupRetryDelay,
	}
}

// Resolver turns a transaction id into the balance delta of its primary account.
type Resolver struct {
	fetcher types.DetailFetcher
	config  ResolverConfig
	policy  retry.Policy
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a resolver.
//
// Parameters:
// - fetcher: the transaction detail source.
// - config: the resolver settings.
// - logger: the logger for logging purposes.
// - m: the metrics sink.
//
// Returns:
// - *Resolver: the resolver.
func NewResolver(fetcher types.DetailFetcher, config ResolverConfig, logger *logrus.Logger, m *metrics.Metrics) *Resolver {
	if config.LookupTimeout <= 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}
	if config.LookupAttempts <= 0 {
		config.LookupAttempts = 1
	}

	r := &Resolver{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
		metrics: m,
	}

	r.policy = retry.Fixed(config.LookupAttempts, config.LookupRetryDelay)
	r.policy.Classify = func(err error) retry.Class {
		// only a missing transaction may show up later
		if errors.Is(err, commonerrors.ErrNotYetIndexed) {
			return retry.Retryable
		}
		return retry.Fatal
	}
	r.policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		r.metrics.IncLookupRetries()
		r.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    wait,
		}).WithError(err).Debug("Transaction not indexed yet, retrying lookup")
	}

	return r
}

// Threshold returns the configured alert threshold.
func (r *Resolver) Threshold() float64 {
	return r.config.Threshold
}

// Resolve fetches the transaction and computes its balance delta.
// Every failure is soft: it is logged and reported as ok == false.
//
// Parameters:
// - ctx: the context for managing the lookups.
// - id: the transaction signature.
//
// Returns:
// - *types.BalanceDelta: the delta when ok is true.
// - bool: false when the transaction was not found, malformed or unreachable.
func (r *Resolver) Resolve(ctx context.Context, id types.TransactionID) (*types.BalanceDelta, bool) {
	log := r.logger.WithField("signature", id)

	var detail *types.TransactionDetail
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		lookupCtx, cancel := context.WithTimeout(ctx, r.config.LookupTimeout)
		defer cancel()

		d, err := r.fetcher.GetTransactionDetail(lookupCtx, id)
		if err != nil {
			return err
		}
		detail = d
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, commonerrors.ErrNotYetIndexed):
		r.metrics.IncResolveOutcome(metrics.OutcomeNotFound)
		log.Debug("Transaction not found, skipping")
		return nil, false
	case errors.Is(err, commonerrors.ErrMalformedDetail):
		r.metrics.IncResolveOutcome(metrics.OutcomeMalformed)
		log.WithError(err).Warn("Malformed transaction detail, skipping")
		return nil, false
	default:
		r.metrics.IncResolveOutcome(metrics.OutcomeTransport)
		log.WithError(err).Warn("Failed to fetch transaction")
		return nil, false
	}

	delta, ok := ComputeDelta(detail)
	if !ok {
		r.metrics.IncResolveOutcome(metrics.OutcomeMalformed)
		log.Debug("Transaction has no balances, skipping")
		return nil, false
	}
	return delta, true
}

// BuildAlert formats the alert for a qualifying delta.
func (r *Resolver) BuildAlert(delta types.BalanceDelta) types.AlertMessage {
	return alert.NewMessage(delta, r.config.ExplorerURL)
}

// ComputeDelta takes the first entry of the pre and post balance lists, which belongs
// to the fee payer, and returns their absolute difference in SOL.
// Both lists must be non-empty.
func ComputeDelta(detail *types.TransactionDetail) (*types.BalanceDelta, bool) {
	if detail == nil || len(detail.PreBalances) == 0 || len(detail.PostBalances) == 0 {
		return nil, false
	}

	pre, post := detail.PreBalances[0], detail.PostBalances[0]
	return &types.BalanceDelta{
		ID:         detail.ID,
		Amount:     utils.LamportsToSol(utils.AbsDiffLamports(pre, post)),
		PreAmount:  utils.LamportsToSol(pre),
		PostAmount: utils.LamportsToSol(post),
	}, true
}

// Qualifies reports whether delta is strictly above threshold.
func Qualifies(delta types.BalanceDelta, threshold float64) bool {
	return delta.Amount > threshold
}
