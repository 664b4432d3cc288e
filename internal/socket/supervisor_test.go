package socket_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"camera-dashboard/internal/config"
	"camera-dashboard/internal/dispatcher"
	"camera-dashboard/internal/socket"
	"camera-dashboard/internal/types"
)

// staticTokens фейковый источник токена
type staticTokens struct {
	token string
}

func (s *staticTokens) CurrentToken() (string, bool) {
	return s.token, s.token != ""
}

// fakeConn управляемое из теста соединение
type fakeConn struct {
	events chan types.Event
	errs   chan error
	closed chan struct{}
	once   sync.Once

	// leaky: Close не прерывает чтение — имитация события,
	// доехавшего после teardown сессии.
	leaky bool
}

func newFakeConn(leaky bool) *fakeConn {
	return &fakeConn{
		events: make(chan types.Event, 8),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
		leaky:  leaky,
	}
}

func (c *fakeConn) ReadEvent() (types.Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case err := <-c.errs:
		return types.Event{}, err
	case <-c.closed:
		return types.Event{}, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	if !c.leaky {
		c.once.Do(func() { close(c.closed) })
	}
	return nil
}

// fakeTransport считает попытки установки и выдает fakeConn
type fakeTransport struct {
	mu       sync.Mutex
	failures int
	leaky    bool
	dials    []time.Time
	conns    []*fakeConn
}

func (t *fakeTransport) Dial(_ context.Context, _, _ string) (socket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dials = append(t.dials, time.Now())
	if len(t.dials) <= t.failures {
		return nil, errors.New("dial refused")
	}

	conn := newFakeConn(t.leaky)
	t.conns = append(t.conns, conn)
	return conn, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dials)
}

func (t *fakeTransport) dialTimes() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]time.Time, len(t.dials))
	copy(out, t.dials)
	return out
}

func (t *fakeTransport) lastConn() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

func testConfig(base time.Duration, maxAttempts int) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Socket.URL = "ws://test/ws"
	cfg.Socket.BaseInterval = base
	cfg.Socket.MaxAttempts = maxAttempts
	cfg.Socket.HandshakeTimeout = 500 * time.Millisecond
	return cfg
}

func newSupervisor(t *testing.T, transport socket.Transport, cfg *config.Config) (*socket.Supervisor, *dispatcher.Dispatcher) {
	t.Helper()
	bus := dispatcher.New(zap.NewNop())
	s := socket.NewSupervisor(cfg, transport, &staticTokens{token: "tok"}, bus, zap.NewNop())
	t.Cleanup(s.Disconnect)
	return s, bus
}

func TestConnect_Idempotent(t *testing.T) {
	transport := &fakeTransport{}
	s, bus := newSupervisor(t, transport, testConfig(10*time.Millisecond, 5))

	var connected atomic.Int32
	bus.OnConnected(func() { connected.Add(1) })

	s.Connect()
	s.Connect()

	require.Eventually(t, func() bool {
		return s.State().State == socket.StateConnected
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, transport.dialCount())
	assert.Equal(t, int32(1), connected.Load())
}

func TestConnect_WithoutCredentialIsNoop(t *testing.T) {
	transport := &fakeTransport{}
	cfg := testConfig(10*time.Millisecond, 5)
	bus := dispatcher.New(zap.NewNop())
	s := socket.NewSupervisor(cfg, transport, &staticTokens{}, bus, zap.NewNop())

	s.Connect()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, transport.dialCount())
	assert.Equal(t, socket.StateDisconnected, s.State().State)
}

func TestBackoff_DelaysGrowMonotonically(t *testing.T) {
	transport := &fakeTransport{failures: 100}
	s, _ := newSupervisor(t, transport, testConfig(30*time.Millisecond, 4))

	s.Connect()

	// 4 попытки: немедленно, +30ms, +60ms, +120ms.
	require.Eventually(t, func() bool {
		return transport.dialCount() == 4 && s.State().State == socket.StateDisconnected
	}, 2*time.Second, 5*time.Millisecond)

	times := transport.dialTimes()
	var gaps []time.Duration
	for i := 1; i < len(times); i++ {
		gaps = append(gaps, times[i].Sub(times[i-1]))
	}
	for i := 1; i < len(gaps); i++ {
		assert.Greater(t, gaps[i], gaps[i-1],
			"delay before attempt %d must exceed the previous one", i+2)
	}
}

func TestBackoff_TerminalAfterMaxAttemptsThenManualReconnect(t *testing.T) {
	transport := &fakeTransport{failures: 3}
	s, bus := newSupervisor(t, transport, testConfig(5*time.Millisecond, 3))

	var errEvents atomic.Int32
	bus.OnError(func(error) { errEvents.Add(1) })

	s.Connect()

	require.Eventually(t, func() bool {
		return s.State().State == socket.StateDisconnected && transport.dialCount() == 3
	}, time.Second, 2*time.Millisecond)

	// Ровно одно терминальное error-событие, дальнейших авторетраев нет.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), errEvents.Load())
	assert.Equal(t, 3, transport.dialCount())

	// Явный Connect начинает с чистого счетчика и успешно подключается.
	s.Connect()
	require.Eventually(t, func() bool {
		return s.State().State == socket.StateConnected
	}, time.Second, 2*time.Millisecond)
	assert.Equal(t, 4, transport.dialCount())
	assert.Equal(t, 0, s.State().Attempt)
}

func TestReadLoop_DeliversEventsAndRecoversFromClosure(t *testing.T) {
	transport := &fakeTransport{}
	s, bus := newSupervisor(t, transport, testConfig(5*time.Millisecond, 5))

	var alerts atomic.Int32
	var connected atomic.Int32
	bus.OnAlert(func(types.Alert) { alerts.Add(1) })
	bus.OnConnected(func() { connected.Add(1) })

	s.Connect()
	require.Eventually(t, func() bool { return connected.Load() == 1 }, time.Second, 2*time.Millisecond)

	transport.lastConn().events <- types.Event{
		Type:  types.EventAlert,
		Alert: &types.Alert{ID: "a1", Timestamp: time.Now()},
	}
	require.Eventually(t, func() bool { return alerts.Load() == 1 }, time.Second, 2*time.Millisecond)

	// Неожиданное закрытие канала: супервизор уходит в backoff и
	// переустанавливает соединение сам.
	transport.lastConn().errs <- errors.New("server went away")
	require.Eventually(t, func() bool { return connected.Load() == 2 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 2, transport.dialCount())
}

func TestReadLoop_MalformedEventIsSkipped(t *testing.T) {
	transport := &fakeTransport{}
	s, bus := newSupervisor(t, transport, testConfig(5*time.Millisecond, 5))

	var alerts atomic.Int32
	bus.OnAlert(func(types.Alert) { alerts.Add(1) })

	s.Connect()
	require.Eventually(t, func() bool {
		return s.State().State == socket.StateConnected
	}, time.Second, 2*time.Millisecond)

	conn := transport.lastConn()
	conn.errs <- fmt.Errorf("%w: garbage", socket.ErrMalformedEvent)
	conn.events <- types.Event{Type: types.EventAlert, Alert: &types.Alert{ID: "a1"}}

	require.Eventually(t, func() bool { return alerts.Load() == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, socket.StateConnected, s.State().State)
	assert.Equal(t, 1, transport.dialCount())
}

func TestDisconnect_DropsStaleSessionEvents(t *testing.T) {
	transport := &fakeTransport{leaky: true}
	s, bus := newSupervisor(t, transport, testConfig(5*time.Millisecond, 5))

	s.Connect()
	require.Eventually(t, func() bool {
		return s.State().State == socket.StateConnected
	}, time.Second, 2*time.Millisecond)

	conn := transport.lastConn()
	gen := s.Generation()
	s.Disconnect()
	assert.Equal(t, gen+1, s.Generation())

	// Подписка новой "сессии": опоздавшее событие старого соединения
	// не должно до нее дойти.
	var leaked atomic.Int32
	bus.OnAlert(func(types.Alert) { leaked.Add(1) })

	conn.events <- types.Event{Type: types.EventAlert, Alert: &types.Alert{ID: "late"}}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), leaked.Load())
	assert.Equal(t, socket.StateDisconnected, s.State().State)
}

func TestDisconnect_IdempotentFromAnyState(t *testing.T) {
	transport := &fakeTransport{}
	s, _ := newSupervisor(t, transport, testConfig(5*time.Millisecond, 5))

	// Из Disconnected.
	s.Disconnect()
	s.Disconnect()

	s.Connect()
	require.Eventually(t, func() bool {
		return s.State().State == socket.StateConnected
	}, time.Second, 2*time.Millisecond)

	// Из Connected, дважды подряд.
	s.Disconnect()
	s.Disconnect()
	assert.Equal(t, socket.StateDisconnected, s.State().State)
}

func TestDecodeEvent(t *testing.T) {
	ev, err := socket.DecodeEvent([]byte(`{"type":"stream_status","payload":{"cameraId":"1","status":"active","isStreaming":true}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Status)
	assert.Equal(t, types.StatusActive, ev.Status.Status)

	ev, err = socket.DecodeEvent([]byte(`{"type":"alert","payload":{"id":"a1","cameraId":"1","confidence":0.92}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Alert)
	assert.Equal(t, "a1", ev.Alert.ID)

	ev, err = socket.DecodeEvent([]byte(`{"type":"connected"}`))
	require.NoError(t, err)
	assert.Equal(t, types.EventConnected, ev.Type)

	ev, err = socket.DecodeEvent([]byte(`{"type":"error","payload":{"message":"session expired"}}`))
	require.NoError(t, err)
	require.Error(t, ev.Err)
	assert.Equal(t, "session expired", ev.Err.Error())

	_, err = socket.DecodeEvent([]byte(`not json`))
	assert.ErrorIs(t, err, socket.ErrMalformedEvent)

	_, err = socket.DecodeEvent([]byte(`{"type":"alert","payload":"not an object"}`))
	assert.ErrorIs(t, err, socket.ErrMalformedEvent)

	_, err = socket.DecodeEvent([]byte(`{"type":"telemetry","payload":{}}`))
	assert.ErrorIs(t, err, socket.ErrMalformedEvent)
}
