package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"

	"camera-dashboard/internal/types"
)

// ErrMalformedEvent возвращается ReadEvent для одного нечитаемого сообщения
// Канал при этом остается живым: сообщение отбрасывается, чтение продолжается.
var ErrMalformedEvent = errors.New("malformed event payload")

// Transport абстракция установки канала событий
// Реальный WebSocket и тестовый фейк взаимозаменяемы: супервизор и логика
// реконсиляции от конкретного транспорта не зависят.
type Transport interface {
	Dial(ctx context.Context, rawURL, token string) (Conn, error)
}

// Conn одно установленное соединение канала событий
type Conn interface {
	// ReadEvent блокируется до следующего входящего события.
	// ErrMalformedEvent означает одно испорченное сообщение; любая другая
	// ошибка означает закрытие канала.
	ReadEvent() (types.Event, error)
	Close() error
}

// envelope формат сообщения канала на проводе
type envelope struct {
	Type    types.EventType `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeEvent разбирает конверт в типизированное событие
func DecodeEvent(data []byte) (types.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return types.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch env.Type {
	case types.EventConnected:
		return types.Event{Type: types.EventConnected}, nil

	case types.EventAlert:
		var alert types.Alert
		if err := json.Unmarshal(env.Payload, &alert); err != nil {
			return types.Event{}, fmt.Errorf("%w: alert: %v", ErrMalformedEvent, err)
		}
		return types.Event{Type: types.EventAlert, Alert: &alert}, nil

	case types.EventStreamStatus:
		var status types.StreamStatus
		if err := json.Unmarshal(env.Payload, &status); err != nil {
			return types.Event{}, fmt.Errorf("%w: stream_status: %v", ErrMalformedEvent, err)
		}
		return types.Event{Type: types.EventStreamStatus, Status: &status}, nil

	case types.EventError:
		var body types.APIError
		if err := json.Unmarshal(env.Payload, &body); err != nil {
			return types.Event{}, fmt.Errorf("%w: error: %v", ErrMalformedEvent, err)
		}
		return types.Event{Type: types.EventError, Err: &body}, nil

	default:
		return types.Event{}, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, env.Type)
	}
}

// WebSocketTransport реализация Transport поверх gorilla/websocket
type WebSocketTransport struct {
	dialer *websocket.Dialer
}

// NewWebSocketTransport создает новый WebSocket-транспорт
func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{
		dialer: &websocket.Dialer{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Dial устанавливает соединение; токен передается query-параметром
func (t *WebSocketTransport) Dial(ctx context.Context, rawURL, token string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid socket url %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, _, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	return &wsConn{ws: ws}, nil
}

// wsConn соединение поверх gorilla/websocket
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) ReadEvent() (types.Event, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return types.Event{}, err
	}
	return DecodeEvent(data)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
