package socket

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"camera-dashboard/internal/auth"
	"camera-dashboard/internal/config"
	"camera-dashboard/internal/dispatcher"
	"camera-dashboard/internal/types"
)

// ErrMaxAttemptsReached терминальная ошибка после исчерпания попыток
// Дальнейших автоматических попыток нет до явного вызова Connect.
var ErrMaxAttemptsReached = errors.New("connection failed after maximum attempts")

// State фаза жизненного цикла канала
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateBackoff      State = "backoff"
)

// ConnectionState наблюдаемое состояние супервизора
// Принадлежит только супервизору; остальные компоненты его лишь читают.
type ConnectionState struct {
	State       State
	Attempt     int
	NextRetryAt time.Time
}

// Supervisor владеет жизненным циклом одного логического канала событий
// Держит не больше одной попытки установки одновременно, ведет exponential
// backoff и счетчик поколений сессии для отбрасывания опоздавших событий.
// Данных камер и тревог не хранит: единственный побочный эффект — публикации
// в диспетчер.
type Supervisor struct {
	cfg       *config.Config
	transport Transport
	tokens    auth.TokenSource
	bus       *dispatcher.Dispatcher
	logger    *zap.Logger

	mu         sync.Mutex
	state      ConnectionState
	conn       Conn
	retryTimer *time.Timer
	gen        uint64
}

// NewSupervisor создает новый супервизор канала
func NewSupervisor(
	cfg *config.Config,
	transport Transport,
	tokens auth.TokenSource,
	bus *dispatcher.Dispatcher,
	logger *zap.Logger,
) *Supervisor {
	return &Supervisor{
		cfg:       cfg,
		transport: transport,
		tokens:    tokens,
		bus:       bus,
		logger:    logger,
		state:     ConnectionState{State: StateDisconnected},
	}
}

// State возвращает копию текущего состояния
func (s *Supervisor) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Generation возвращает номер текущего поколения сессии
func (s *Supervisor) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gen
}

// Connect начинает установку канала
// Идемпотентен: при живой или устанавливаемой сессии — no-op. Без валидного
// токена молча (с логом) не делает ничего: вызывать положено только после
// успешной аутентификации. Счетчик попыток сбрасывается.
func (s *Supervisor) Connect() {
	s.mu.Lock()

	if s.state.State == StateConnected || s.state.State == StateConnecting {
		s.mu.Unlock()
		return
	}

	token, ok := s.tokens.CurrentToken()
	if !ok {
		s.logger.Warn("Connect skipped: no valid credential")
		s.mu.Unlock()
		return
	}

	s.stopRetryTimerLocked()
	s.state = ConnectionState{State: StateConnecting}
	gen := s.gen
	s.mu.Unlock()

	go s.dial(gen, token)
}

// Disconnect разбирает сессию целиком
// Безопасен из любого состояния: закрывает соединение, гасит таймер retry,
// сбрасывает счетчик попыток, инкрементирует поколение (опоздавшие события
// прошлой сессии будут отброшены) и очищает подписки диспетчера.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()

	s.gen++
	s.stopRetryTimerLocked()
	conn := s.conn
	s.conn = nil
	s.state = ConnectionState{State: StateDisconnected}
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Debug("Close on disconnect", zap.Error(err))
		}
	}
	s.bus.Clear()
	s.logger.Info("Disconnected")
}

// dial выполняет одну попытку установки канала
func (s *Supervisor) dial(gen uint64, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetHandshakeTimeout())
	defer cancel()

	conn, err := s.transport.Dial(ctx, s.cfg.Socket.URL, token)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		s.logger.Warn("Channel establishment failed", zap.Error(err))
		terminal := s.failLocked()
		s.mu.Unlock()
		if terminal {
			s.publishTerminalError()
		}
		return
	}

	s.conn = conn
	s.state = ConnectionState{State: StateConnected}
	s.mu.Unlock()

	s.logger.Info("Channel established")
	s.bus.Publish(types.Event{Type: types.EventConnected})

	go s.readLoop(conn, gen)
}

// readLoop читает события соединения и раздает их через диспетчер
func (s *Supervisor) readLoop(conn Conn, gen uint64) {
	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			if errors.Is(err, ErrMalformedEvent) {
				// Одно испорченное сообщение не валит канал и остальных
				// подписчиков: отбрасываем и читаем дальше.
				s.logger.Warn("Dropped malformed event", zap.Error(err))
				continue
			}

			s.mu.Lock()
			if gen != s.gen || s.conn != conn {
				// Намеренный teardown, не сбой.
				s.mu.Unlock()
				return
			}
			s.logger.Warn("Channel closed unexpectedly", zap.Error(err))
			s.conn = nil
			terminal := s.failLocked()
			s.mu.Unlock()
			if terminal {
				s.publishTerminalError()
			}
			return
		}

		s.mu.Lock()
		stale := gen != s.gen
		s.mu.Unlock()
		if stale {
			s.logger.Debug("Dropped event from stale session",
				zap.String("event_type", string(ev.Type)))
			return
		}

		s.bus.Publish(ev)
	}
}

// failLocked фиксирует неудачную попытку и планирует retry
// Возвращает true, когда достигнут предел попыток и состояние терминально.
// Вызывается с удержанным s.mu.
func (s *Supervisor) failLocked() bool {
	attempt := s.state.Attempt + 1

	if attempt >= s.cfg.GetMaxAttempts() {
		s.state = ConnectionState{State: StateDisconnected}
		s.logger.Error("Max connection attempts reached",
			zap.Int("attempts", attempt))
		return true
	}

	delay := s.cfg.GetBaseInterval() * time.Duration(1<<(attempt-1))
	s.state = ConnectionState{
		State:       StateBackoff,
		Attempt:     attempt,
		NextRetryAt: time.Now().Add(delay),
	}

	gen := s.gen
	s.retryTimer = time.AfterFunc(delay, func() { s.retry(gen) })

	s.logger.Info("Retry scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))
	return false
}

// retry выполняет отложенную попытку переподключения
func (s *Supervisor) retry(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state.State != StateBackoff {
		s.mu.Unlock()
		return
	}

	token, ok := s.tokens.CurrentToken()
	if !ok {
		// Токен истек за время backoff: авторизационная ошибка терминальна,
		// транспортные ретраи ее не лечат.
		s.logger.Warn("Retry aborted: credential no longer valid")
		s.state = ConnectionState{State: StateDisconnected}
		s.mu.Unlock()
		return
	}

	attempt := s.state.Attempt
	s.state = ConnectionState{State: StateConnecting, Attempt: attempt}
	s.mu.Unlock()

	go s.dial(gen, token)
}

func (s *Supervisor) stopRetryTimerLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

func (s *Supervisor) publishTerminalError() {
	s.bus.Publish(types.Event{Type: types.EventError, Err: ErrMaxAttemptsReached})
}
