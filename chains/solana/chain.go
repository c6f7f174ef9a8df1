package solana

import (
	"sync"
	"time"

	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// solana represents the Solana chain implementation used by the monitor.
// The RPC client is created once and only read afterwards, so lookups
// issued from concurrent tasks share it without locking.
type solana struct {
	config *types.ChainConfig
	logger *logrus.Logger
	client *rpc.Client

	// reconnect pacing of log streams
	reconnectDelay time.Duration
	maxReconnects  int

	// Protected fields with their own mutexes
	streamsMutex sync.Mutex
	streams      map[*logStream]struct{}
	closed       bool
}

// NewSolanaChain creates a new Solana chain implementation.
//
// Parameters:
// - config: the chain configuration.
// - logger: the logger for logging events.
//
// Returns:
// - types.Chain: a new Solana chain instance.
// - error: an error if the configuration is incomplete.
func NewSolanaChain(config *types.ChainConfig, logger *logrus.Logger) (types.Chain, error) {
	return newSolana(config, logger)
}

func newSolana(config *types.ChainConfig, logger *logrus.Logger) (*solana, error) {
	if config == nil || config.RpcUrl == "" {
		return nil, errors.New("rpc url is required")
	}
	if types.GetSubscriptionMode(config.WsUrl) != types.WebSocketMode {
		return nil, errors.Errorf("websocket url expected, got %q", config.WsUrl)
	}

	return &solana{
		config:         config,
		logger:         logger,
		client:         rpc.New(config.RpcUrl),
		reconnectDelay: reconnectTimeout,
		maxReconnects:  maxReconnectAttempts,
		streams:        make(map[*logStream]struct{}),
	}, nil
}

func (s *solana) trackStream(stream *logStream) error {
	s.streamsMutex.Lock()
	defer s.streamsMutex.Unlock()

	if s.closed {
		return errors.New("chain listeners are shut down")
	}
	s.streams[stream] = struct{}{}
	return nil
}

func (s *solana) untrackStream(stream *logStream) {
	s.streamsMutex.Lock()
	delete(s.streams, stream)
	s.streamsMutex.Unlock()
}
