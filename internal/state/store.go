package state

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"camera-dashboard/internal/types"
)

// UnknownCameraName имя для тревог, чья камера уже удалена
const UnknownCameraName = "Unknown camera"

// Store единственный источник правды для потребителей состояния
// Объединяет снапшот REST-границы и потоковые дельты канала событий.
// Все аксессоры возвращают копии на момент вызова, никогда живые ссылки.
type Store struct {
	mu        sync.RWMutex
	cameras   []types.Camera
	alerts    []types.Alert
	maxAlerts int
	ready     bool
	logger    *zap.Logger
}

// NewStore создает новое хранилище
func NewStore(maxAlerts int, logger *zap.Logger) *Store {
	if maxAlerts <= 0 {
		maxAlerts = 50
	}
	return &Store{
		maxAlerts: maxAlerts,
		logger:    logger,
	}
}

// Seed замещает все хранилище данными снапшота
// Операционные поля камер сбрасываются к известному значению по умолчанию:
// сервер их не хранит, доверять пришедшим значениям нельзя.
func (s *Store) Seed(cameras []types.Camera, alerts []types.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cameras = make([]types.Camera, len(cameras))
	copy(s.cameras, cameras)
	for i := range s.cameras {
		if s.cameras[i].Status == "" {
			s.cameras[i].Status = types.StatusInactive
			s.cameras[i].IsStreaming = false
		}
	}

	s.alerts = make([]types.Alert, len(alerts))
	copy(s.alerts, alerts)
	sort.SliceStable(s.alerts, func(i, j int) bool {
		return s.alerts[i].Timestamp.After(s.alerts[j].Timestamp)
	})
	if len(s.alerts) > s.maxAlerts {
		s.alerts = s.alerts[:s.maxAlerts]
	}

	s.ready = true
	s.logger.Info("Store seeded",
		zap.Int("cameras", len(s.cameras)),
		zap.Int("alerts", len(s.alerts)))
}

// Ready сообщает, загружен ли снапшот
// До первого Seed потребители должны показывать состояние загрузки,
// а не пустой список камер.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ready
}

// Cameras возвращает копию списка камер
func (s *Store) Cameras() []types.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Camera, len(s.cameras))
	copy(out, s.cameras)
	return out
}

// Camera возвращает копию камеры по идентификатору
func (s *Store) Camera(cameraID string) (types.Camera, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cam := range s.cameras {
		if cam.ID == cameraID {
			return cam, true
		}
	}
	return types.Camera{}, false
}

// Alerts возвращает копию списка тревог (по убыванию времени)
func (s *Store) Alerts() []types.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// CameraName разрешает имя камеры для показа тревоги
// Тревоги переживают свою камеру, поэтому отсутствие записи — не ошибка.
func (s *Store) CameraName(cameraID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cam := range s.cameras {
		if cam.ID == cameraID {
			return cam.Name
		}
	}
	return UnknownCameraName
}

// ApplyStreamStatus применяет потоковое событие статуса камеры
// Событие о неизвестной камере отбрасывается: камеры не материализуются
// из статусных событий, только из снапшота или подтверждения команды.
func (s *Store) ApplyStreamStatus(status types.StreamStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cameras {
		if s.cameras[i].ID == status.CameraID {
			s.cameras[i].Status = status.Status
			s.cameras[i].IsStreaming = status.IsStreaming
			return
		}
	}

	s.logger.Warn("Dropped status event for unknown camera",
		zap.String("camera_id", status.CameraID),
		zap.String("status", string(status.Status)))
}

// ApplyAlert вставляет тревогу с сохранением порядка по убыванию времени
// Сеть может переупорядочить события, поэтому вставка идет в отсортированную
// позицию, а не всегда в голову. После вставки список усекается до предела.
func (s *Store) ApplyAlert(alert types.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := sort.Search(len(s.alerts), func(i int) bool {
		return s.alerts[i].Timestamp.Before(alert.Timestamp)
	})

	s.alerts = append(s.alerts, types.Alert{})
	copy(s.alerts[pos+1:], s.alerts[pos:])
	s.alerts[pos] = alert

	if len(s.alerts) > s.maxAlerts {
		s.alerts = s.alerts[:s.maxAlerts]
	}
}

// ApplyCameraMutation применяет подтвержденный сервером результат команды
// Существующая запись замещается целиком; неизвестный id (подтверждение
// создания) добавляется в конец.
func (s *Store) ApplyCameraMutation(camera types.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if camera.Status == "" {
		camera.Status = types.StatusInactive
	}

	for i := range s.cameras {
		if s.cameras[i].ID == camera.ID {
			s.cameras[i] = camera
			return
		}
	}
	s.cameras = append(s.cameras, camera)
}

// RestoreCamera откатывает камеру к записи до спекулятивной мутации
// Если камера тем временем удалена, откатывать нечего.
func (s *Store) RestoreCamera(prior types.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cameras {
		if s.cameras[i].ID == prior.ID {
			s.cameras[i] = prior
			return
		}
	}
}

// SpeculateStatus спекулятивно меняет статус камеры (только статус)
// Возвращает запись до изменения для точного отката при отказе команды.
func (s *Store) SpeculateStatus(cameraID string, status types.CameraStatus) (types.Camera, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cameras {
		if s.cameras[i].ID == cameraID {
			prior := s.cameras[i]
			s.cameras[i].Status = status
			return prior, true
		}
	}
	return types.Camera{}, false
}

// RemoveCamera удаляет камеру
// Тревоги удаленной камеры сохраняются: их имя разрешается через CameraName
// как UnknownCameraName.
func (s *Store) RemoveCamera(cameraID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cameras {
		if s.cameras[i].ID == cameraID {
			s.cameras = append(s.cameras[:i:i], s.cameras[i+1:]...)
			return
		}
	}
}

// MarkAlertRead помечает тревогу прочитанной
// Переход только false→true; обратного пути нет.
func (s *Store) MarkAlertRead(alertID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts[i].IsRead = true
			return
		}
	}
}

// MarkAllAlertsRead помечает все тревоги прочитанными
func (s *Store) MarkAllAlertsRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		s.alerts[i].IsRead = true
	}
}

// UnreadCount возвращает число непрочитанных тревог
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, alert := range s.alerts {
		if !alert.IsRead {
			count++
		}
	}
	return count
}

// ActiveCount возвращает число активных камер
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, cam := range s.cameras {
		if cam.Status == types.StatusActive {
			count++
		}
	}
	return count
}
