package gateway

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Guliveer/guildkit/internal/auth"
	"github.com/Guliveer/guildkit/internal/logger"
)

var errClosed = errors.New("transport closed")

type fakeTransport struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	pingErr   atomic.Pointer[error]
	pings     atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) send(frame string) {
	f.frames <- []byte(frame)
}

func (f *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-f.frames:
		return data, nil
	case <-f.closed:
		return nil, errClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Ping(context.Context) error {
	f.pings.Add(1)
	if err := f.pingErr.Load(); err != nil {
		return *err
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands out transports in order. A nil entry or running out of
// entries yields a dial error.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	urls       []string
	headers    []http.Header
}

func (d *fakeDialer) Dial(_ context.Context, url string, header http.Header) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.urls)
	d.urls = append(d.urls, url)
	d.headers = append(d.headers, header.Clone())
	if n >= len(d.transports) || d.transports[n] == nil {
		return nil, errors.New("connection refused")
	}
	return d.transports[n], nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) header(i int) http.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.headers[i]
}

// logBuffer is written by the manager goroutines and read by the test.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recorder struct {
	events chan Event
}

func newRecorder() *recorder {
	return &recorder{events: make(chan Event, 64)}
}

func (r *recorder) HandleGatewayEvent(_ context.Context, ev Event) {
	r.events <- ev
}

func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for gateway event")
		return nil
	}
}

func (r *recorder) drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-r.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.URL = "wss://gateway.test/websocket/v"
	cfg.Backoff = Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2}
	cfg.HeartbeatInterval = -1
	return cfg
}

func newTestManager(t *testing.T, cfg Config, dialer Dialer) (*Manager, *recorder) {
	t.Helper()

	provider, err := auth.NewTokenProvider("secret-token")
	require.NoError(t, err)

	m := NewManager(cfg, provider, dialer, logger.Nop())
	rec := newRecorder()
	m.Subscribe(rec)
	t.Cleanup(m.Disconnect)
	return m, rec
}

const welcomeFrame = `{"op":1,"d":{"heartbeatIntervalMs":22500,"lastMessageId":"","botId":"bot1","user":{"id":"u-bot","type":"bot","name":"Helper"}}}`
