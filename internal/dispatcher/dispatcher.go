package dispatcher

import (
	"sync"

	"go.uber.org/zap"

	"camera-dashboard/internal/types"
)

// Token идентифицирует одну регистрацию обработчика
type Token struct {
	eventType types.EventType
	id        uint64
}

type registration struct {
	id uint64
	fn func(types.Event)
}

// Dispatcher типизированный publish/subscribe хаб
// Обработчики вызываются синхронно, в порядке регистрации, на горутине
// публикующего. Паника одного обработчика изолируется и не мешает остальным.
type Dispatcher struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[types.EventType][]registration
	logger   *zap.Logger
}

// New создает новый диспетчер
func New(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[types.EventType][]registration),
		logger:   logger,
	}
}

func (d *Dispatcher) subscribe(eventType types.EventType, fn func(types.Event)) Token {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.handlers[eventType] = append(d.handlers[eventType], registration{id: d.nextID, fn: fn})
	return Token{eventType: eventType, id: d.nextID}
}

// OnConnected регистрирует обработчик установки канала
func (d *Dispatcher) OnConnected(fn func()) Token {
	return d.subscribe(types.EventConnected, func(types.Event) { fn() })
}

// OnAlert регистрирует обработчик входящих тревог
func (d *Dispatcher) OnAlert(fn func(types.Alert)) Token {
	return d.subscribe(types.EventAlert, func(ev types.Event) {
		if ev.Alert != nil {
			fn(*ev.Alert)
		}
	})
}

// OnStreamStatus регистрирует обработчик смены статуса камеры
func (d *Dispatcher) OnStreamStatus(fn func(types.StreamStatus)) Token {
	return d.subscribe(types.EventStreamStatus, func(ev types.Event) {
		if ev.Status != nil {
			fn(*ev.Status)
		}
	})
}

// OnError регистрирует обработчик терминальных ошибок канала
func (d *Dispatcher) OnError(fn func(error)) Token {
	return d.subscribe(types.EventError, func(ev types.Event) { fn(ev.Err) })
}

// Publish рассылает событие всем текущим обработчикам его типа
func (d *Dispatcher) Publish(ev types.Event) {
	d.mu.Lock()
	regs := make([]registration, len(d.handlers[ev.Type]))
	copy(regs, d.handlers[ev.Type])
	d.mu.Unlock()

	for _, reg := range regs {
		d.invoke(reg, ev)
	}
}

func (d *Dispatcher) invoke(reg registration, ev types.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Event handler panicked",
				zap.String("event_type", string(ev.Type)),
				zap.Uint64("handler_id", reg.id),
				zap.Any("panic", r))
		}
	}()
	reg.fn(ev)
}

// Unsubscribe снимает одну регистрацию по токену
func (d *Dispatcher) Unsubscribe(token Token) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.handlers[token.eventType]
	for i, reg := range regs {
		if reg.id == token.id {
			d.handlers[token.eventType] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Clear снимает все регистрации
// Вызывается супервизором при disconnect, чтобы обработчики не протекали
// между циклами переподключения.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers = make(map[types.EventType][]registration)
}

// HandlerCount возвращает число обработчиков типа события
func (d *Dispatcher) HandlerCount(eventType types.EventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.handlers[eventType])
}
