package types

import "time"

// CameraStatus операционный статус камеры (существует только на клиенте)
type CameraStatus string

const (
	StatusActive     CameraStatus = "active"
	StatusInactive   CameraStatus = "inactive"
	StatusConnecting CameraStatus = "connecting"
	StatusError      CameraStatus = "error"
)

// Camera структура для камеры
// Поля IsStreaming, Status, FPS и DetectionEnabled живут только на клиенте
// и никогда не сохраняются на сервере.
type Camera struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SourceURL string    `json:"sourceUrl"`
	Location  string    `json:"location"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`

	IsStreaming      bool         `json:"isStreaming"`
	Status           CameraStatus `json:"status"`
	FPS              int          `json:"fps"`
	DetectionEnabled bool         `json:"detectionEnabled"`
}

// AlertType тип тревоги
type AlertType string

const (
	AlertFaceDetected  AlertType = "face_detected"
	AlertStreamError   AlertType = "stream_error"
	AlertCameraOffline AlertType = "camera_offline"
)

// Alert структура для тревоги
// CameraID — слабая ссылка: имя камеры разрешается через Store.CameraName,
// а не кэшируется как принадлежность.
type Alert struct {
	ID         string    `json:"id"`
	CameraID   string    `json:"cameraId"`
	Type       AlertType `json:"type"`
	Message    string    `json:"message"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	IsRead     bool      `json:"isRead"`
}

// StreamStatus полезная нагрузка события stream_status
type StreamStatus struct {
	CameraID    string       `json:"cameraId"`
	Status      CameraStatus `json:"status"`
	IsStreaming bool         `json:"isStreaming"`
}

// User структура для пользователя
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginCredentials данные для входа
type LoginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthToken токен сессии с временем истечения
type AuthToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// Expired проверяет истечение токена
func (t AuthToken) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// APIError структурированное тело ошибки REST-границы
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// EventType тип входящего сообщения канала событий
type EventType string

const (
	EventConnected    EventType = "connected"
	EventAlert        EventType = "alert"
	EventStreamStatus EventType = "stream_status"
	EventError        EventType = "error"
)

// Event — tagged union входящих сообщений канала: заполнено только поле,
// соответствующее Type. Обработчики получают уже типизированную нагрузку.
type Event struct {
	Type   EventType
	Alert  *Alert
	Status *StreamStatus
	Err    error
}
