package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Guliveer/guildkit/internal/auth"
	"github.com/Guliveer/guildkit/internal/constants"
	"github.com/Guliveer/guildkit/internal/logger"
	"github.com/Guliveer/guildkit/internal/model"
)

// ErrReconnectExhausted is carried by the final DisconnectEvent when the
// backoff policy's attempt ceiling is hit.
var ErrReconnectExhausted = errors.New("gateway reconnect attempts exhausted")

// errSuperseded is returned by dial when Disconnect or a newer dial won the race.
var errSuperseded = errors.New("gateway connection superseded")

// State is the connection state.
type State int

const (
	// StateDisconnected is the initial and the terminal state.
	StateDisconnected State = iota
	// StateConnecting covers dialing, waiting for WELCOME, and backing off.
	StateConnecting
	// StateConnected is entered on WELCOME.
	StateConnected
)

var stateNames = map[State]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config configures a Manager.
type Config struct {
	// URL is the gateway endpoint without the version suffix.
	URL             string
	ProtocolVersion int
	Backoff         Backoff
	// HeartbeatInterval is used when WELCOME carries no interval. Negative
	// disables pings.
	HeartbeatInterval time.Duration
	DialTimeout       time.Duration
}

// DefaultConfig returns the production gateway settings.
func DefaultConfig() Config {
	return Config{
		URL:               constants.GatewayURL,
		ProtocolVersion:   constants.ProtocolVersion,
		Backoff:           DefaultBackoff(),
		HeartbeatInterval: constants.DefaultHeartbeatInterval,
		DialTimeout:       constants.DefaultDialTimeout,
	}
}

type subscription struct {
	id int
	h  Handler
}

// Manager owns the gateway connection. At most one transport is live at a
// time; every dial tears down the previous one and bumps the generation so
// trailing frames from the old connection are discarded.
type Manager struct {
	cfg    Config
	auth   auth.Provider
	dialer Dialer
	log    *logger.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         State
	transport     Transport
	generation    uint64
	welcomed      bool
	lastConnected time.Time
	lastAttempt   time.Time
	lastMessageID string
	cancel        context.CancelFunc
	done          chan struct{}

	subsMu sync.RWMutex
	subs   []subscription
	nextID int
}

// NewManager creates a Manager. A nil dialer selects WebSocketDialer.
func NewManager(cfg Config, provider auth.Provider, dialer Dialer, log *logger.Logger) *Manager {
	if dialer == nil {
		dialer = WebSocketDialer{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.URL == "" {
		cfg.URL = constants.GatewayURL
	}
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = constants.ProtocolVersion
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = constants.DefaultDialTimeout
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}

	return &Manager{
		cfg:    cfg,
		auth:   provider,
		dialer: dialer,
		log:    log,
		now:    time.Now,
	}
}

// Endpoint returns the versioned gateway URL.
func (m *Manager) Endpoint() string {
	return fmt.Sprintf("%s%d", m.cfg.URL, m.cfg.ProtocolVersion)
}

// Subscribe registers h for every future event and returns a function that
// removes it.
func (m *Manager) Subscribe(h Handler) (unsubscribe func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscription{id: id, h: h})

	return func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastConnected returns when the last WELCOME was processed; zero if never.
func (m *Manager) LastConnected() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastConnected
}

// LastAttempt returns when the last dial started.
func (m *Manager) LastAttempt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAttempt
}

// LastMessageID returns the resume cursor sent on the next handshake.
func (m *Manager) LastMessageID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessageID
}

// Connect starts the connection loop unless one is already running. It never
// fails: dial errors are logged and retried per the backoff policy. ctx
// bounds the lifetime of the loop.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.state = StateConnecting

	go m.loop(loopCtx, done)
}

// Disconnect closes the live transport and stops reconnecting. It does not
// wait for the loop goroutine; use Run for a blocking lifecycle.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel := m.cancel
	tr := m.transport
	m.cancel = nil
	m.transport = nil
	m.state = StateDisconnected
	m.generation++
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if tr != nil {
		if err := tr.Close(); err != nil {
			m.log.Debug("Closing gateway transport", "error", err)
		}
	}
}

// Run connects and blocks until ctx is cancelled, then disconnects and waits
// for the loop to exit.
func (m *Manager) Run(ctx context.Context) error {
	m.Connect(ctx)

	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	<-ctx.Done()
	m.Disconnect()
	if done != nil {
		<-done
	}
	return ctx.Err()
}

func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.loopExited(done)

	attempt := 0
	for {
		gen, tr, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, errSuperseded) {
				return
			}
			attempt++
			m.log.Warn("Gateway dial failed", "attempt", attempt, "error", err)
			if !m.backoff(ctx, gen, attempt, err, false) {
				return
			}
			continue
		}

		err = m.readLoop(ctx, gen, tr)
		welcomed := m.release(gen, tr)
		if ctx.Err() != nil {
			return
		}

		if welcomed {
			attempt = 0
		}
		attempt++
		if !m.backoff(ctx, gen, attempt, err, true) {
			return
		}
	}
}

// backoff waits before the next attempt, emitting a reconnecting
// DisconnectEvent first when an opened transport was lost. Giving up always
// emits the final DisconnectEvent. It returns false when the loop should stop.
func (m *Manager) backoff(ctx context.Context, gen uint64, attempt int, cause error, dropped bool) bool {
	if m.cfg.Backoff.Exhausted(attempt) {
		m.mu.Lock()
		if m.generation == gen {
			m.state = StateDisconnected
		}
		m.mu.Unlock()

		m.log.Event(ctx, model.EventGatewayGaveUp, "Gateway reconnect attempts exhausted",
			"attempts", attempt-1, "error", cause)
		m.emit(ctx, DisconnectEvent{
			Err:        fmt.Errorf("%w: %w", ErrReconnectExhausted, cause),
			Generation: gen,
		})
		return false
	}

	m.mu.Lock()
	if m.generation == gen {
		m.state = StateConnecting
	}
	m.mu.Unlock()

	if dropped {
		m.emit(ctx, DisconnectEvent{Err: cause, Generation: gen, Reconnecting: true})
	}

	delay := m.cfg.Backoff.Delay(attempt)
	m.log.Event(ctx, model.EventGatewayReconnecting, "Reconnecting to gateway",
		"attempt", attempt, "backoff", delay.Round(time.Millisecond))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// dial tears down any previous transport, then opens a new one. The
// returned generation identifies the new connection.
func (m *Manager) dial(ctx context.Context) (uint64, Transport, error) {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return 0, nil, ctx.Err()
	}
	old := m.transport
	m.transport = nil
	m.generation++
	gen := m.generation
	m.state = StateConnecting
	m.welcomed = false
	m.lastAttempt = m.now()

	header := http.Header{}
	for k, v := range m.auth.GetAuthHeaders() {
		header.Set(k, v)
	}
	if m.lastMessageID != "" {
		header.Set(constants.HeaderLastMessageID, m.lastMessageID)
	}
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()

	m.log.Debug("Dialing gateway", "url", m.Endpoint(), "generation", gen)
	tr, err := m.dialer.Dial(dialCtx, m.Endpoint(), header)
	if err != nil {
		return gen, nil, fmt.Errorf("dialing gateway: %w", err)
	}

	m.mu.Lock()
	if ctx.Err() != nil || m.generation != gen {
		m.mu.Unlock()
		_ = tr.Close()
		return gen, nil, errSuperseded
	}
	m.transport = tr
	m.mu.Unlock()

	return gen, tr, nil
}

// release clears the handle if it still belongs to gen and reports whether
// that connection was ever welcomed.
func (m *Manager) release(gen uint64, tr Transport) bool {
	m.mu.Lock()
	welcomed := m.welcomed && m.generation == gen
	if m.transport == tr {
		m.transport = nil
	}
	m.mu.Unlock()

	_ = tr.Close()
	return welcomed
}

func (m *Manager) loopExited(done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != done {
		return
	}
	m.cancel = nil
	m.state = StateDisconnected
}

// readLoop processes frames until the transport fails. A heartbeat goroutine
// is started after WELCOME; a failed ping closes the transport, which ends
// the loop.
func (m *Manager) readLoop(ctx context.Context, gen uint64, tr Transport) error {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()

	heartbeating := false
	for {
		data, err := tr.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.log.Event(ctx, model.EventGatewayDisconnected, "Gateway connection lost",
					"generation", gen, "error", err)
			}
			return err
		}

		welcome := m.handleFrame(ctx, gen, data)
		if welcome != nil && !heartbeating {
			heartbeating = true
			go m.heartbeat(hbCtx, gen, tr, m.heartbeatInterval(welcome))
		}
	}
}

func (m *Manager) heartbeatInterval(w *Welcome) time.Duration {
	if m.cfg.HeartbeatInterval < 0 {
		return 0
	}
	if w.HeartbeatIntervalMs > 0 {
		return time.Duration(w.HeartbeatIntervalMs) * time.Millisecond
	}
	return m.cfg.HeartbeatInterval
}

func (m *Manager) heartbeat(ctx context.Context, gen uint64, tr Transport, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := tr.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.log.Warn("Gateway ping failed, closing connection", "generation", gen, "error", err)
				_ = tr.Close()
				return
			}
		}
	}
}

// handleFrame decodes one frame and emits the resulting event. It returns
// the payload when the frame was a WELCOME.
func (m *Manager) handleFrame(ctx context.Context, gen uint64, data []byte) *Welcome {
	m.mu.Lock()
	current := m.generation == gen && m.state != StateDisconnected
	m.mu.Unlock()
	if !current {
		m.log.Debug("Dropping frame from superseded connection", "generation", gen)
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.log.Debug("Ignoring malformed gateway frame", "error", err)
		return nil
	}

	switch env.Op {
	case OpWelcome:
		var w Welcome
		if len(env.D) > 0 {
			if err := json.Unmarshal(env.D, &w); err != nil {
				m.log.Debug("Ignoring malformed WELCOME payload", "error", err)
			}
		}

		m.mu.Lock()
		m.lastConnected = m.now()
		m.state = StateConnected
		m.welcomed = true
		if m.lastMessageID == "" && w.LastMessageID != "" {
			m.lastMessageID = w.LastMessageID
		}
		m.mu.Unlock()

		m.log.Event(ctx, model.EventGatewayConnected, "Connected to gateway",
			"generation", gen, "user", w.User.Name)
		m.emit(ctx, ConnectEvent{Welcome: w, Generation: gen})
		return &w

	case OpDispatch:
		if env.S != "" {
			m.mu.Lock()
			m.lastMessageID = env.S
			m.mu.Unlock()
		}
		ev, err := decodeDispatch(env)
		if err != nil {
			m.log.Debug("Delivering dispatch as unknown event", "type", env.T, "error", err)
		}
		m.emit(ctx, ev)

	case OpResume:
		var p resumePayload
		if err := json.Unmarshal(env.D, &p); err == nil && p.LastMessageID != "" {
			m.mu.Lock()
			m.lastMessageID = p.LastMessageID
			m.mu.Unlock()
		}

	case OpError:
		m.mu.Lock()
		m.lastMessageID = ""
		m.mu.Unlock()
		m.log.Warn("Gateway rejected resume cursor, starting fresh", "payload", string(env.D))

	default:
		m.log.Debug("Ignoring gateway op", "op", env.Op)
	}
	return nil
}

func (m *Manager) emit(ctx context.Context, ev Event) {
	m.subsMu.RLock()
	subs := make([]Handler, len(m.subs))
	for i, s := range m.subs {
		subs[i] = s.h
	}
	m.subsMu.RUnlock()

	for _, h := range subs {
		h.HandleGatewayEvent(ctx, ev)
	}
}
