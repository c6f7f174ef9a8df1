package solana

import (
	"context"

	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/pkg/errors"
)

const healthOK = "ok"

// CheckConnection checks the RPC endpoint by calling getHealth.
//
// Parameters:
// - ctx: the context for managing the connection check.
//
// Returns:
// - error: an error if the client is not initialized or the node reports itself unhealthy.
func (s *solana) CheckConnection(ctx context.Context) error {
	if s.client == nil {
		return commonerrors.ErrClientNotReady
	}

	status, err := s.client.GetHealth(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get health")
	}
	if status != healthOK {
		return errors.Errorf("node reported health %q", status)
	}
	return nil
}
