package connectionmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// defaultHealthCheckInterval is used when no positive interval is configured
	defaultHealthCheckInterval = 30 * time.Second
	// checkTimeout bounds a single health check
	checkTimeout = 5 * time.Second
)

// ConnectionMonitor represents connection state monitoring interface
type ConnectionMonitor interface {
	// Start starts connection monitoring
	Start(ctx context.Context) error
	// Stop stops connection monitoring
	Stop()
}

// BlockchainClient represents blockchain client interface
type BlockchainClient interface {
	// CheckConnection checks if connection is alive
	CheckConnection(ctx context.Context) error
}

// StatusReporter receives the result of every health check.
type StatusReporter interface {
	SetRpcHealthy(healthy bool)
}

type connectionMonitor struct {
	client       BlockchainClient
	reporter     StatusReporter
	logger       *logrus.Logger
	chainName    string
	interval     time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
	isMonitoring bool
	healthy      bool
	monitorMutex sync.RWMutex
}

// NewConnectionMonitor creates a new connection monitor instance.
//
// Parameters:
// - client: the blockchain client to monitor.
// - reporter: receives the health of each check, may be nil.
// - logger: the logger for logging purposes.
// - chainName: the name of the blockchain chain.
// - interval: the time between checks.
//
// Returns:
// - ConnectionMonitor: the new connection monitor instance.
func NewConnectionMonitor(
	client BlockchainClient,
	reporter StatusReporter,
	logger *logrus.Logger,
	chainName string,
	interval time.Duration,
) ConnectionMonitor {
	if interval <= 0 {
		interval = defaultHealthCheckInterval
	}
	return &connectionMonitor{
		client:    client,
		reporter:  reporter,
		logger:    logger,
		chainName: chainName,
		interval:  interval,
		healthy:   true,
	}
}

// Start runs one check right away and then keeps checking in the background.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - error: an error if the connection monitor is already running.
func (m *connectionMonitor) Start(ctx context.Context) error {
	m.monitorMutex.Lock()
	if m.isMonitoring {
		m.monitorMutex.Unlock()
		return errors.Errorf("connection monitor is already running for chain %s", m.chainName)
	}
	m.isMonitoring = true
	m.stopChan = make(chan struct{})
	m.doneChan = make(chan struct{})
	stop, done := m.stopChan, m.doneChan
	m.monitorMutex.Unlock()

	go m.monitorConnection(ctx, stop, done)
	return nil
}

// Stop stops connection monitoring and waits for the loop to exit.
func (m *connectionMonitor) Stop() {
	m.monitorMutex.Lock()
	if !m.isMonitoring {
		m.monitorMutex.Unlock()
		return
	}
	close(m.stopChan)
	done := m.doneChan
	m.isMonitoring = false
	m.monitorMutex.Unlock()

	<-done
}

// monitorConnection checks the connection state on every tick.
//
// Parameters:
// - ctx: the context for managing the request.
// - stop: closed by Stop.
// - done: closed when the loop exits.
func (m *connectionMonitor) monitorConnection(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.WithField("chain", m.chainName).Info("Connection monitoring stopped due to context cancellation")
			return

		case <-stop:
			m.logger.WithField("chain", m.chainName).Info("Connection monitoring stopped")
			return

		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs a single health check and logs state transitions.
//
// Parameters:
// - ctx: the context for managing the request.
func (m *connectionMonitor) check(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	err := m.client.CheckConnection(checkCtx)
	healthy := err == nil

	if m.reporter != nil {
		m.reporter.SetRpcHealthy(healthy)
	}

	m.monitorMutex.Lock()
	changed := m.healthy != healthy
	m.healthy = healthy
	m.monitorMutex.Unlock()

	switch {
	case !healthy:
		m.logger.WithFields(logrus.Fields{
			"chain": m.chainName,
			"error": err,
		}).Warn("Connection check failed")
	case changed:
		m.logger.WithField("chain", m.chainName).Info("Connection restored")
	default:
		m.logger.WithField("chain", m.chainName).Debug("Ping successful")
	}
}
