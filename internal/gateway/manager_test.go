package gateway

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/guildkit/internal/logger"
)

func TestConnectDialsVersionedURLWithBearerToken(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{transports: []*fakeTransport{newFakeTransport()}}
	m, _ := newTestManager(t, testConfig(), dialer)

	m.Connect(context.Background())
	require.Eventually(t, func() bool { return dialer.dials() == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, "wss://gateway.test/websocket/v1", dialer.urls[0])
	assert.Equal(t, "Bearer secret-token", dialer.header(0).Get("Authorization"))
	assert.Empty(t, dialer.header(0).Get("guilded-last-message-id"))
	assert.False(t, m.LastAttempt().IsZero())
	assert.Equal(t, StateConnecting, m.State())
}

func TestConnectIsNoOpWhileRunning(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{transports: []*fakeTransport{newFakeTransport(), newFakeTransport()}}
	m, _ := newTestManager(t, testConfig(), dialer)

	m.Connect(context.Background())
	m.Connect(context.Background())

	require.Eventually(t, func() bool { return dialer.dials() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, dialer.dials())
}

func TestWelcomeRecordsLastConnectedAndEmitsConnect(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	m, rec := newTestManager(t, testConfig(), &fakeDialer{transports: []*fakeTransport{tr}})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	assert.True(t, m.LastConnected().IsZero())
	m.Connect(context.Background())
	tr.send(welcomeFrame)

	ev := rec.next(t)
	connect, ok := ev.(ConnectEvent)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "bot1", connect.Welcome.BotID)
	assert.Equal(t, "Helper", connect.Welcome.User.Name)
	assert.Equal(t, 22500, connect.Welcome.HeartbeatIntervalMs)
	assert.Equal(t, fixed, m.LastConnected())
	assert.Equal(t, StateConnected, m.State())
}

func TestDispatchEmitsExactlyOneEventWithPayloadUnchanged(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	m, rec := newTestManager(t, testConfig(), &fakeDialer{transports: []*fakeTransport{tr}})
	m.Connect(context.Background())
	tr.send(welcomeFrame)
	_ = rec.next(t)

	payload := `{"serverId":"s1", "message":{"id":"m1","type":"default","channelId":"c1","content":"hi","createdAt":"2024-05-01T12:00:00Z","createdBy":"u1"}}`
	tr.send(`{"op":0,"t":"ChatMessageCreated","s":"m1","d":` + payload + `}`)

	ev := rec.next(t)
	created, ok := ev.(ChatMessageCreated)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, payload, string(created.Payload))
	assert.Equal(t, "m1", created.Message.ID)
	assert.Equal(t, "s1", created.Message.ServerID)
	assert.Equal(t, "m1", created.MessageID)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.drain())
	assert.Equal(t, "m1", m.LastMessageID())
}

func TestUnknownDispatchBecomesUnknownEvent(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	m, rec := newTestManager(t, testConfig(), &fakeDialer{transports: []*fakeTransport{tr}})
	m.Connect(context.Background())
	tr.send(welcomeFrame)
	_ = rec.next(t)

	tr.send(`{"op":0,"t":"CalendarEventCreated","d":{"serverId":"s1","calendarEvent":{"id":7}}}`)

	ev := rec.next(t)
	unknown, ok := ev.(UnknownEvent)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "CalendarEventCreated", unknown.Type())
	assert.Equal(t, "s1", unknown.ServerID)
	assert.JSONEq(t, `{"serverId":"s1","calendarEvent":{"id":7}}`, string(unknown.Payload))
}

func TestMismatchedDispatchPayloadIsStillDelivered(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	m, rec := newTestManager(t, testConfig(), &fakeDialer{transports: []*fakeTransport{tr}})
	m.Connect(context.Background())
	tr.send(welcomeFrame)
	_ = rec.next(t)

	frames := []struct {
		name    string
		payload string
	}{
		{TypeChatMessageCreated, `{"serverId":"s1"}`},
		{TypeServerMemberRemoved, `{"serverId":"s1"}`},
		{TypeChatMessageUpdated, `{"message":{"id":5}}`},
	}
	for _, f := range frames {
		tr.send(`{"op":0,"t":"` + f.name + `","d":` + f.payload + `}`)
	}

	for _, f := range frames {
		ev := rec.next(t)
		unknown, ok := ev.(UnknownEvent)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, f.name, unknown.Type())
		assert.Equal(t, f.payload, string(unknown.Payload))
	}
	assert.Empty(t, rec.drain())
}

func TestMalformedAndUnknownOpFramesAreIgnored(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	m, rec := newTestManager(t, testConfig(), &fakeDialer{transports: []*fakeTransport{tr}})
	m.Connect(context.Background())

	tr.send(`not json`)
	tr.send(`{"op":42,"d":{}}`)
	tr.send(welcomeFrame)

	_, ok := rec.next(t).(ConnectEvent)
	assert.True(t, ok)
	assert.Empty(t, rec.drain())
	assert.False(t, tr.isClosed())
}

func TestClosureTriggersExactlyOneReconnect(t *testing.T) {
	t.Parallel()

	first, second := newFakeTransport(), newFakeTransport()
	dialer := &fakeDialer{transports: []*fakeTransport{first, second}}
	m, rec := newTestManager(t, testConfig(), dialer)
	m.Connect(context.Background())
	first.send(welcomeFrame)
	_ = rec.next(t)

	first.Close()

	ev := rec.next(t)
	disconnect, ok := ev.(DisconnectEvent)
	require.True(t, ok, "got %T", ev)
	assert.True(t, disconnect.Reconnecting)
	assert.ErrorIs(t, disconnect.Err, errClosed)

	require.Eventually(t, func() bool { return dialer.dials() == 2 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, dialer.dials())

	second.send(welcomeFrame)
	_, ok = rec.next(t).(ConnectEvent)
	assert.True(t, ok)
}

func TestConnectionLossIsLoggedAsLifecycleEvent(t *testing.T) {
	t.Parallel()

	var out logBuffer
	log, err := logger.Setup(logger.Config{Level: slog.LevelInfo, Output: &out})
	require.NoError(t, err)

	tr := newFakeTransport()
	m, rec := newTestManager(t, testConfig(), &fakeDialer{transports: []*fakeTransport{tr}})
	m.log = log
	m.Connect(context.Background())
	tr.send(welcomeFrame)
	_ = rec.next(t)

	tr.Close()
	_, ok := rec.next(t).(DisconnectEvent)
	require.True(t, ok)

	assert.Contains(t, out.String(), "event=GATEWAY_CONNECTED")
	assert.Contains(t, out.String(), "Gateway connection lost")
	assert.Contains(t, out.String(), "event=GATEWAY_DISCONNECTED")
}

func TestClosureBeforeWelcomeReconnectsWithoutConnectEvent(t *testing.T) {
	t.Parallel()

	first, second := newFakeTransport(), newFakeTransport()
	dialer := &fakeDialer{transports: []*fakeTransport{first, second}}
	m, rec := newTestManager(t, testConfig(), dialer)
	m.Connect(context.Background())
	require.Eventually(t, func() bool { return dialer.dials() == 1 }, time.Second, time.Millisecond)

	first.Close()

	_, ok := rec.next(t).(DisconnectEvent)
	require.True(t, ok)
	require.Eventually(t, func() bool { return dialer.dials() == 2 }, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	for _, ev := range rec.drain() {
		_, isConnect := ev.(ConnectEvent)
		assert.False(t, isConnect, "unexpected connect event")
	}
	assert.True(t, m.LastConnected().IsZero())
	assert.Equal(t, 2, dialer.dials())
}

func TestReconnectSendsResumeCursor(t *testing.T) {
	t.Parallel()

	first, second := newFakeTransport(), newFakeTransport()
	dialer := &fakeDialer{transports: []*fakeTransport{first, second}}
	m, rec := newTestManager(t, testConfig(), dialer)
	m.Connect(context.Background())
	first.send(welcomeFrame)
	first.send(`{"op":0,"t":"ServerMemberRemoved","s":"msg-41","d":{"serverId":"s1","userId":"u2"}}`)
	_ = rec.next(t)
	_ = rec.next(t)

	first.Close()
	require.Eventually(t, func() bool { return dialer.dials() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, "msg-41", dialer.header(1).Get("guilded-last-message-id"))
}

func TestErrorOpClearsResumeCursor(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	m, rec := newTestManager(t, testConfig(), &fakeDialer{transports: []*fakeTransport{tr}})
	m.Connect(context.Background())
	tr.send(welcomeFrame)
	tr.send(`{"op":0,"t":"ServerMemberRemoved","s":"msg-41","d":{"serverId":"s1","userId":"u2"}}`)
	_ = rec.next(t)
	_ = rec.next(t)
	require.Equal(t, "msg-41", m.LastMessageID())

	tr.send(`{"op":8,"d":{"message":"invalid last message id"}}`)
	require.Eventually(t, func() bool { return m.LastMessageID() == "" }, time.Second, time.Millisecond)
}

func TestDisconnectStopsReconnectingAndIsIdempotent(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	dialer := &fakeDialer{transports: []*fakeTransport{tr, newFakeTransport()}}
	m, rec := newTestManager(t, testConfig(), dialer)
	m.Connect(context.Background())
	tr.send(welcomeFrame)
	_ = rec.next(t)

	m.Disconnect()
	m.Disconnect()

	assert.True(t, tr.isClosed())
	assert.Equal(t, StateDisconnected, m.State())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, dialer.dials())
	assert.Empty(t, rec.drain())
}

func TestDisconnectBeforeConnectIsSafe(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testConfig(), &fakeDialer{})
	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())
}

func TestDialFailuresRetryUntilMaxAttempts(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Backoff.MaxAttempts = 2
	dialer := &fakeDialer{}
	m, rec := newTestManager(t, cfg, dialer)
	m.Connect(context.Background())

	final, ok := rec.next(t).(DisconnectEvent)
	require.True(t, ok)
	assert.False(t, final.Reconnecting)
	assert.ErrorIs(t, final.Err, ErrReconnectExhausted)

	require.Eventually(t, func() bool { return m.State() == StateDisconnected }, time.Second, time.Millisecond)
	assert.Equal(t, 3, dialer.dials())
	assert.Empty(t, rec.drain())
}

func TestDialFailuresAfterDropEmitNoExtraDisconnects(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Backoff.MaxAttempts = 3
	first := newFakeTransport()
	dialer := &fakeDialer{transports: []*fakeTransport{first, nil, nil, nil}}
	m, rec := newTestManager(t, cfg, dialer)
	m.Connect(context.Background())
	first.send(welcomeFrame)
	_ = rec.next(t)

	first.Close()

	dropped, ok := rec.next(t).(DisconnectEvent)
	require.True(t, ok)
	assert.True(t, dropped.Reconnecting)
	assert.ErrorIs(t, dropped.Err, errClosed)

	final, ok := rec.next(t).(DisconnectEvent)
	require.True(t, ok)
	assert.False(t, final.Reconnecting)
	assert.ErrorIs(t, final.Err, ErrReconnectExhausted)
	assert.Equal(t, 4, dialer.dials())
	assert.Empty(t, rec.drain())
}

func TestConnectAfterGivingUpStartsNewLoop(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Backoff.MaxAttempts = 1
	dialer := &fakeDialer{transports: []*fakeTransport{nil, nil, newFakeTransport()}}
	m, rec := newTestManager(t, cfg, dialer)
	m.Connect(context.Background())

	ev, ok := rec.next(t).(DisconnectEvent)
	require.True(t, ok)
	require.False(t, ev.Reconnecting)

	require.Eventually(t, func() bool {
		m.Connect(context.Background())
		return dialer.dials() == 3
	}, time.Second, 5*time.Millisecond)
}

func TestHeartbeatFailureClosesAndReconnects(t *testing.T) {
	t.Parallel()

	first, second := newFakeTransport(), newFakeTransport()
	pingErr := errors.New("pong timeout")
	first.pingErr.Store(&pingErr)

	cfg := testConfig()
	cfg.HeartbeatInterval = 0
	dialer := &fakeDialer{transports: []*fakeTransport{first, second}}
	m, rec := newTestManager(t, cfg, dialer)
	m.Connect(context.Background())
	first.send(`{"op":1,"d":{"heartbeatIntervalMs":5}}`)
	_ = rec.next(t)

	_, ok := rec.next(t).(DisconnectEvent)
	require.True(t, ok)
	assert.True(t, first.isClosed())
	assert.GreaterOrEqual(t, first.pings.Load(), int32(1))
	require.Eventually(t, func() bool { return dialer.dials() == 2 }, time.Second, time.Millisecond)
}

func TestFramesFromSupersededGenerationAreDropped(t *testing.T) {
	t.Parallel()

	m, rec := newTestManager(t, testConfig(), &fakeDialer{})
	m.mu.Lock()
	m.generation = 2
	m.state = StateConnecting
	m.mu.Unlock()

	assert.Nil(t, m.handleFrame(context.Background(), 1, []byte(welcomeFrame)))
	assert.Empty(t, rec.drain())
	assert.True(t, m.LastConnected().IsZero())

	assert.NotNil(t, m.handleFrame(context.Background(), 2, []byte(welcomeFrame)))
	assert.Len(t, rec.drain(), 1)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	m, rec := newTestManager(t, testConfig(), &fakeDialer{})
	other := newRecorder()
	unsubscribe := m.Subscribe(other)
	unsubscribe()

	m.mu.Lock()
	m.generation = 1
	m.state = StateConnecting
	m.mu.Unlock()
	m.handleFrame(context.Background(), 1, []byte(welcomeFrame))

	assert.Len(t, rec.drain(), 1)
	assert.Empty(t, other.drain())
}

func TestRunDisconnectsWhenContextEnds(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	m, rec := newTestManager(t, testConfig(), &fakeDialer{transports: []*fakeTransport{tr}})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	tr.send(welcomeFrame)
	_ = rec.next(t)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, tr.isClosed())
	assert.Equal(t, StateDisconnected, m.State())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "State(9)", State(9).String())
}
