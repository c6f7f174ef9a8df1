package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	systemProgram = "11111111111111111111111111111111"
	txFailed      = `{"InstructionError":[0,{"Custom":1}]}`
	txSucceeded   = `null`
)

type logNotification struct {
	slot uint64
	err  string
}

// logsServer is a websocket endpoint that answers logsSubscribe. Connection n (1-based)
// sends scripts[n-1] and then stays open until drop is signalled. Dials beyond
// maxConns are rejected during the handshake.
type logsServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	scripts  [][]logNotification
	maxConns int32
	conns    atomic.Int32
	drop     chan struct{}
	done     chan struct{}

	mu       sync.Mutex
	requests []rpcRequest
}

func newLogsServer(t *testing.T, maxConns int32, scripts ...[]logNotification) *logsServer {
	t.Helper()
	s := &logsServer{
		scripts:  scripts,
		maxConns: maxConns,
		drop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serve(t, w, r)
	}))
	t.Cleanup(s.srv.Close)
	t.Cleanup(func() { close(s.done) })
	return s
}

func (s *logsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *logsServer) serve(t *testing.T, w http.ResponseWriter, r *http.Request) {
	n := s.conns.Add(1)
	if n > s.maxConns {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if !assert.NoError(t, err) {
		return
	}
	defer conn.Close()

	// the client may hang up right after subscribing
	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var req rpcRequest
	assert.NoError(t, json.Unmarshal(data, &req))
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	subID := 100 + n
	ack := fmt.Sprintf(`{"jsonrpc":"2.0","result":%d,"id":%s}`, subID, string(req.ID))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ack)); err != nil {
		return
	}

	if int(n) <= len(s.scripts) {
		for _, event := range s.scripts[n-1] {
			msg := fmt.Sprintf(`{"jsonrpc":"2.0","method":"logsNotification","params":{"result":{"context":{"slot":%d},"value":{"signature":%q,"err":%s,"logs":["Program %s invoke [1]"]}},"subscription":%d}}`,
				event.slot, testSignature(), event.err, systemProgram, subID)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
	}

	select {
	case <-s.drop:
	case <-s.done:
	}
}

func (s *logsServer) firstRequest() rpcRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[0]
}

func newWsTestChain(t *testing.T, wsURL string) *solana {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	chain, err := newSolana(&types.ChainConfig{
		Name:             "solana",
		WsUrl:            wsURL,
		RpcUrl:           "http://127.0.0.1:1",
		LookupCommitment: "confirmed",
	}, logger)
	require.NoError(t, err)
	chain.reconnectDelay = 10 * time.Millisecond
	return chain
}

func subscribe(t *testing.T, chain *solana) types.LogStream {
	t.Helper()
	stream, err := chain.SubscribeLogs(context.Background(), types.LogFilter{ProgramID: systemProgram, Commitment: "processed"})
	require.NoError(t, err)
	t.Cleanup(stream.Close)
	return stream
}

func recvEvent(t *testing.T, stream types.LogStream) *types.LogEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event, err := stream.Recv(ctx)
	require.NoError(t, err)
	return event
}

func TestLogStream_MapsNotificationsAndReconnects(t *testing.T) {
	server := newLogsServer(t, 2,
		[]logNotification{{slot: 10, err: txFailed}, {slot: 11, err: txSucceeded}},
		[]logNotification{{slot: 12, err: txFailed}, {slot: 13, err: txSucceeded}},
	)
	stream := subscribe(t, newWsTestChain(t, server.url()))

	event := recvEvent(t, stream)
	assert.Equal(t, testSignature(), event.ID)
	assert.True(t, event.Failed)
	assert.Equal(t, uint64(10), event.Slot)
	assert.NotEmpty(t, event.Logs)

	event = recvEvent(t, stream)
	assert.False(t, event.Failed)
	assert.Equal(t, uint64(11), event.Slot)

	req := server.firstRequest()
	assert.Equal(t, "logsSubscribe", req.Method)
	require.Len(t, req.Params, 2)
	assert.JSONEq(t, `{"mentions":["`+systemProgram+`"]}`, string(req.Params[0]))
	assert.JSONEq(t, `{"commitment":"processed"}`, string(req.Params[1]))

	server.drop <- struct{}{}

	event = recvEvent(t, stream)
	assert.True(t, event.Failed)
	assert.Equal(t, uint64(12), event.Slot)

	event = recvEvent(t, stream)
	assert.False(t, event.Failed)
	assert.Equal(t, uint64(13), event.Slot)

	assert.Equal(t, int32(2), server.conns.Load())
}

func TestLogStream_EndsAfterReconnectsExhausted(t *testing.T) {
	server := newLogsServer(t, 1, []logNotification{{slot: 10, err: txSucceeded}})
	chain := newWsTestChain(t, server.url())
	stream := subscribe(t, chain)

	recvEvent(t, stream)
	server.drop <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := stream.Recv(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, commonerrors.ErrSubscriptionClosed), "unexpected error: %v", err)
	assert.Equal(t, int32(1+chain.maxReconnects), server.conns.Load())
}

func TestLogStream_CloseEndsRecv(t *testing.T) {
	server := newLogsServer(t, 1)
	stream := subscribe(t, newWsTestChain(t, server.url()))

	result := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := stream.Recv(ctx)
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	stream.Close()

	select {
	case err := <-result:
		assert.True(t, errors.Is(err, commonerrors.ErrSubscriptionClosed), "unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("recv did not return after close")
	}

	_, err := stream.Recv(context.Background())
	assert.True(t, errors.Is(err, commonerrors.ErrSubscriptionClosed))
	assert.Equal(t, int32(1), server.conns.Load())
}

func TestShutdownListeners_ClosesStreams(t *testing.T) {
	server := newLogsServer(t, 2)
	chain := newWsTestChain(t, server.url())
	stream := subscribe(t, chain)

	chain.ShutdownListeners()

	_, err := stream.Recv(context.Background())
	assert.True(t, errors.Is(err, commonerrors.ErrSubscriptionClosed))

	_, err = chain.SubscribeLogs(context.Background(), types.LogFilter{ProgramID: systemProgram, Commitment: "processed"})
	assert.Error(t, err)
}
