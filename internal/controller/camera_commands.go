package controller

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"camera-dashboard/internal/api"
	"camera-dashboard/internal/state"
	"camera-dashboard/internal/types"
)

// ErrUnknownCamera команда адресована камере, которой нет в хранилище
var ErrUnknownCamera = errors.New("unknown camera")

// GenerationSource номер поколения текущей сессии
// Подтверждение команды, пришедшее после teardown сессии, применять нельзя.
type GenerationSource interface {
	Generation() uint64
}

// CameraCommandService сервис пользовательских команд с оптимистичными
// локальными эффектами
// Каждая команда: спекулятивная мутация хранилища → round trip к серверу →
// подтверждение (влить авторитетный ответ) или отказ (откатить к значению
// до команды и отдать ошибку вызывающему).
// Команды к одной камере сериализуются: второй вызов ждет разрешения
// первого, иначе перемешанные спекулятивные состояния нельзя однозначно
// откатить.
type CameraCommandService struct {
	api    api.Client
	store  *state.Store
	gens   GenerationSource
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCameraCommandService создает новый сервис команд
func NewCameraCommandService(
	apiClient api.Client,
	store *state.Store,
	gens GenerationSource,
	logger *zap.Logger,
) *CameraCommandService {
	return &CameraCommandService{
		api:    apiClient,
		store:  store,
		gens:   gens,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// cameraLock возвращает мьютекс сериализации команд одной камеры
func (s *CameraCommandService) cameraLock(cameraID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[cameraID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[cameraID] = lock
	}
	return lock
}

// StartStream запускает стрим камеры
// Локальный статус немедленно становится connecting; сервер подтверждает
// авторитетным состоянием либо команда откатывается.
func (s *CameraCommandService) StartStream(ctx context.Context, cameraID string) error {
	return s.toggleStream(ctx, cameraID, true)
}

// StopStream останавливает стрим камеры
func (s *CameraCommandService) StopStream(ctx context.Context, cameraID string) error {
	return s.toggleStream(ctx, cameraID, false)
}

func (s *CameraCommandService) toggleStream(ctx context.Context, cameraID string, start bool) error {
	lock := s.cameraLock(cameraID)
	lock.Lock()
	defer lock.Unlock()

	gen := s.gens.Generation()

	speculative := types.StatusInactive
	if start {
		speculative = types.StatusConnecting
	}

	prior, ok := s.store.SpeculateStatus(cameraID, speculative)
	if !ok {
		return ErrUnknownCamera
	}

	var confirmed types.Camera
	var err error
	if start {
		confirmed, err = s.api.StartStream(ctx, cameraID)
	} else {
		confirmed, err = s.api.StopStream(ctx, cameraID)
	}

	if s.gens.Generation() != gen {
		// Сессия разобрана, пока команда была в полете: ответ игнорируется,
		// хранилище уже пересеяно или будет пересеяно новой сессией.
		s.logger.Info("Stale command resolution ignored",
			zap.String("camera_id", cameraID))
		return err
	}

	if err != nil {
		// Откат к записи до команды, не к захардкоженному значению:
		// две команды могли гоняться.
		s.store.RestoreCamera(prior)
		s.logger.Warn("Stream command rejected",
			zap.String("camera_id", cameraID),
			zap.Bool("start", start),
			zap.Error(err))
		return err
	}

	s.store.ApplyCameraMutation(confirmed)
	return nil
}

// CreateCamera создает камеру
// Без спекулятивной вставки: идентификатора еще нет, запись появляется
// только на подтверждении.
func (s *CameraCommandService) CreateCamera(ctx context.Context, camera types.Camera) (types.Camera, error) {
	gen := s.gens.Generation()

	confirmed, err := s.api.CreateCamera(ctx, camera)
	if err != nil {
		return types.Camera{}, err
	}

	if s.gens.Generation() != gen {
		s.logger.Info("Stale create confirmation ignored",
			zap.String("camera_id", confirmed.ID))
		return confirmed, nil
	}

	s.store.ApplyCameraMutation(confirmed)
	return confirmed, nil
}

// UpdateCamera обновляет описательные поля камеры
func (s *CameraCommandService) UpdateCamera(ctx context.Context, camera types.Camera) (types.Camera, error) {
	lock := s.cameraLock(camera.ID)
	lock.Lock()
	defer lock.Unlock()

	gen := s.gens.Generation()

	prior, ok := s.store.Camera(camera.ID)
	if !ok {
		return types.Camera{}, ErrUnknownCamera
	}

	// Спекулятивно применяем описательные поля, операционные не трогаем.
	speculative := camera
	speculative.IsStreaming = prior.IsStreaming
	speculative.Status = prior.Status
	speculative.FPS = prior.FPS
	s.store.ApplyCameraMutation(speculative)

	confirmed, err := s.api.UpdateCamera(ctx, camera)

	if s.gens.Generation() != gen {
		s.logger.Info("Stale update resolution ignored",
			zap.String("camera_id", camera.ID))
		return confirmed, err
	}

	if err != nil {
		s.store.RestoreCamera(prior)
		return types.Camera{}, err
	}

	s.store.ApplyCameraMutation(confirmed)
	return confirmed, nil
}

// DeleteCamera удаляет камеру
// Запись исчезает из хранилища только на подтверждении, поэтому пути
// "откатить удаление" не существует.
func (s *CameraCommandService) DeleteCamera(ctx context.Context, cameraID string) error {
	lock := s.cameraLock(cameraID)
	lock.Lock()
	defer lock.Unlock()

	gen := s.gens.Generation()

	if err := s.api.DeleteCamera(ctx, cameraID); err != nil {
		return err
	}

	if s.gens.Generation() != gen {
		s.logger.Info("Stale delete confirmation ignored",
			zap.String("camera_id", cameraID))
		return nil
	}

	s.store.RemoveCamera(cameraID)
	return nil
}

// MarkAlertRead помечает тревогу прочитанной
// Fire-and-forget: локальный флаг переключается сразу, отказ сервера
// логируется и не откатывает локальное состояние — прочитанность это
// удобство, не инвариант безопасности.
func (s *CameraCommandService) MarkAlertRead(ctx context.Context, alertID string) {
	s.store.MarkAlertRead(alertID)

	if err := s.api.MarkAlertRead(ctx, alertID); err != nil {
		s.logger.Warn("Failed to persist alert read flag",
			zap.String("alert_id", alertID),
			zap.Error(err))
	}
}

// MarkAllAlertsRead помечает все непрочитанные тревоги прочитанными
func (s *CameraCommandService) MarkAllAlertsRead(ctx context.Context) {
	unread := make([]string, 0)
	for _, alert := range s.store.Alerts() {
		if !alert.IsRead {
			unread = append(unread, alert.ID)
		}
	}

	s.store.MarkAllAlertsRead()

	for _, alertID := range unread {
		if err := s.api.MarkAlertRead(ctx, alertID); err != nil {
			s.logger.Warn("Failed to persist alert read flag",
				zap.String("alert_id", alertID),
				zap.Error(err))
		}
	}
}
