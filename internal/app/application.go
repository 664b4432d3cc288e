package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"camera-dashboard/internal/api"
	"camera-dashboard/internal/auth"
	"camera-dashboard/internal/config"
	"camera-dashboard/internal/controller"
	"camera-dashboard/internal/dispatcher"
	"camera-dashboard/internal/socket"
	"camera-dashboard/internal/state"
	"camera-dashboard/internal/types"
)

// Session один клиентский сеанс дашборда
// Явно собранный объект с внятным владением и teardown вместо глобальных
// синглтонов: тесты могут держать несколько независимых сессий.
type Session struct {
	cfg    *config.Config
	logger *zap.Logger

	Auth       *auth.Manager
	API        api.Client
	Bus        *dispatcher.Dispatcher
	Supervisor *socket.Supervisor
	Store      *state.Store
	Commands   *controller.CameraCommandService
}

// NewSession создает сессию с настоящим WebSocket-транспортом и REST-клиентом
func NewSession(cfg *config.Config, logger *zap.Logger) *Session {
	authMgr := auth.NewManager(logger)
	apiClient := api.NewRestClient(cfg, authMgr, logger)
	return NewCustomSession(cfg, apiClient, socket.NewWebSocketTransport(), authMgr, logger)
}

// NewCustomSession собирает сессию из заданных компонентов
// Транспорт и REST-клиент подменяемы: тестовая сессия работает без сети.
func NewCustomSession(
	cfg *config.Config,
	apiClient api.Client,
	transport socket.Transport,
	authMgr *auth.Manager,
	logger *zap.Logger,
) *Session {
	bus := dispatcher.New(logger)
	supervisor := socket.NewSupervisor(cfg, transport, authMgr, bus, logger)
	store := state.NewStore(cfg.GetMaxAlerts(), logger)
	commands := controller.NewCameraCommandService(apiClient, store, supervisor, logger)

	return &Session{
		cfg:        cfg,
		logger:     logger,
		Auth:       authMgr,
		API:        apiClient,
		Bus:        bus,
		Supervisor: supervisor,
		Store:      store,
		Commands:   commands,
	}
}

// Login выполняет вход и сохраняет токен сессии
func (s *Session) Login(ctx context.Context, email, password string) error {
	token, err := s.API.Login(ctx, types.LoginCredentials{Email: email, Password: password})
	if err != nil {
		return err
	}

	s.Auth.SetToken(token)
	return nil
}

// Start загружает снапшот, сеет хранилище и открывает канал событий
// До успешного снапшота хранилище не готово: потребители показывают
// загрузку, а не пустой экран без камер.
func (s *Session) Start(ctx context.Context) error {
	if !s.Auth.IsAuthenticated() {
		return fmt.Errorf("session start requires authentication")
	}

	if err := s.Refresh(ctx); err != nil {
		return err
	}

	// Потоковые дельты направляются в хранилище. Подписки живут до
	// Disconnect: супервизор чистит диспетчер при teardown.
	s.Bus.OnAlert(s.Store.ApplyAlert)
	s.Bus.OnStreamStatus(s.Store.ApplyStreamStatus)
	s.Bus.OnConnected(func() {
		s.logger.Info("Event channel ready")
	})

	s.Supervisor.Connect()
	return nil
}

// Refresh выполняет авторитетный снапшот и пересеивает хранилище
// Ошибка снапшота отдается вызывающему: ни ретраев, ни частичного кэша —
// "не смогли достучаться" отличимо от "камер еще нет".
func (s *Session) Refresh(ctx context.Context) error {
	cameras, err := s.API.GetCameras(ctx)
	if err != nil {
		return fmt.Errorf("snapshot load failed: %w", err)
	}

	alerts, err := s.API.GetAlerts(ctx, api.AlertQuery{PerPage: s.cfg.GetMaxAlerts()})
	if err != nil {
		return fmt.Errorf("snapshot load failed: %w", err)
	}

	s.Store.Seed(cameras, alerts)
	return nil
}

// Stop разбирает сессию
func (s *Session) Stop() {
	s.Supervisor.Disconnect()
}

// Logout разбирает сессию и сбрасывает учетные данные
func (s *Session) Logout() {
	s.Stop()
	s.Auth.Clear()
}
