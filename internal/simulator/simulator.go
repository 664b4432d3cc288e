package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"camera-dashboard/internal/config"
	"camera-dashboard/internal/types"
)

// Server локальный бэкенд-симулятор
// Реализует REST и WebSocket границы дашборда с фейковым парком камер:
// периодические тревоги и смены статусов вместо настоящего детектора.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpServer *http.Server
	wsUpgrader websocket.Upgrader

	mu      sync.Mutex
	cameras []types.Camera
	alerts  []types.Alert
	tokens  map[string]types.User
	clients map[*wsClient]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// wsClient одно подключение канала событий
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer создает новый симулятор
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:    cfg,
		logger: logger,
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tokens:  make(map[string]types.User),
		clients: make(map[*wsClient]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	s.seedFleet()
	return s
}

// seedFleet наполняет парк стартовыми камерами и тревогами
func (s *Server) seedFleet() {
	now := time.Now()

	s.cameras = []types.Camera{
		{
			ID: "1", Name: "Main Entrance", SourceURL: "rtsp://camera1.example.com/stream",
			Location: "Building A - Main Door", Enabled: true, CreatedAt: now.Add(-90 * 24 * time.Hour),
			IsStreaming: true, Status: types.StatusActive, FPS: 30, DetectionEnabled: true,
		},
		{
			ID: "2", Name: "Parking Lot", SourceURL: "rtsp://camera2.example.com/stream",
			Location: "Parking Area - North", Enabled: true, CreatedAt: now.Add(-60 * 24 * time.Hour),
			IsStreaming: false, Status: types.StatusInactive, FPS: 25,
		},
		{
			ID: "3", Name: "Conference Room", SourceURL: "rtsp://camera3.example.com/stream",
			Location: "Building B - Room 201", Enabled: true, CreatedAt: now.Add(-30 * 24 * time.Hour),
			IsStreaming: true, Status: types.StatusActive, FPS: 30, DetectionEnabled: true,
		},
		{
			ID: "4", Name: "Lobby Camera", SourceURL: "rtsp://camera4.example.com/stream",
			Location: "Main Lobby", Enabled: false, CreatedAt: now.Add(-14 * 24 * time.Hour),
			IsStreaming: false, Status: types.StatusError,
		},
	}

	s.alerts = []types.Alert{
		{
			ID: uuid.NewString(), CameraID: "1", Type: types.AlertFaceDetected,
			Message: "Face detected with 95% confidence", Confidence: 0.95,
			Timestamp: now.Add(-5 * time.Minute),
		},
		{
			ID: uuid.NewString(), CameraID: "3", Type: types.AlertFaceDetected,
			Message: "Face detected with 87% confidence", Confidence: 0.87,
			Timestamp: now.Add(-15 * time.Minute), IsRead: true,
		},
		{
			ID: uuid.NewString(), CameraID: "4", Type: types.AlertStreamError,
			Message: "Stream connection lost",
			Timestamp: now.Add(-30 * time.Minute), IsRead: true,
		},
	}
}

// Start запускает HTTP сервер и фоновые генераторы событий
func (s *Server) Start() error {
	router := s.newRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	})

	addr := fmt.Sprintf("%s:%d", s.cfg.Simulator.Host, s.cfg.Simulator.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.startEventGenerators()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.logger.Info("Simulator listening", zap.String("address", addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Simulator server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop останавливает симулятор
func (s *Server) Stop() {
	s.cancel()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("Simulator shutdown error", zap.Error(err))
		}
	}

	s.mu.Lock()
	for client := range s.clients {
		close(client.send)
		delete(s.clients, client)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Simulator stopped")
}

// startEventGenerators запускает тикеры фейковых событий
func (s *Server) startEventGenerators() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Simulator.AlertInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.emitFakeAlert()
			case <-s.ctx.Done():
				return
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Simulator.StatusInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.emitFakeStatus()
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// emitFakeAlert генерирует тревогу на случайной камере с детекцией
func (s *Server) emitFakeAlert() {
	s.mu.Lock()

	var candidates []types.Camera
	for _, cam := range s.cameras {
		if cam.DetectionEnabled && cam.Status == types.StatusActive {
			candidates = append(candidates, cam)
		}
	}
	if len(candidates) == 0 {
		s.mu.Unlock()
		return
	}

	cam := candidates[rand.Intn(len(candidates))]
	confidence := 0.8 + rand.Float64()*0.2
	alert := types.Alert{
		ID:         uuid.NewString(),
		CameraID:   cam.ID,
		Type:       types.AlertFaceDetected,
		Message:    fmt.Sprintf("Face detected with %d%% confidence", int(confidence*100)),
		Confidence: confidence,
		Timestamp:  time.Now(),
	}
	s.alerts = append([]types.Alert{alert}, s.alerts...)
	s.mu.Unlock()

	s.broadcast(types.EventAlert, alert)
}

// emitFakeStatus случайно меняет статус одной камеры
func (s *Server) emitFakeStatus() {
	statuses := []types.CameraStatus{
		types.StatusActive, types.StatusInactive, types.StatusConnecting, types.StatusError,
	}

	s.mu.Lock()
	if len(s.cameras) == 0 {
		s.mu.Unlock()
		return
	}

	i := rand.Intn(len(s.cameras))
	status := statuses[rand.Intn(len(statuses))]
	s.cameras[i].Status = status
	s.cameras[i].IsStreaming = status == types.StatusActive
	payload := types.StreamStatus{
		CameraID:    s.cameras[i].ID,
		Status:      status,
		IsStreaming: s.cameras[i].IsStreaming,
	}
	s.mu.Unlock()

	s.broadcast(types.EventStreamStatus, payload)
}

// broadcast рассылает событие всем подключенным клиентам
func (s *Server) broadcast(eventType types.EventType, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to encode event payload", zap.Error(err))
		return
	}
	msg, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": json.RawMessage(raw),
	})
	if err != nil {
		s.logger.Error("Failed to encode event envelope", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
			s.logger.Warn("Client send buffer full, dropping event")
		}
	}
}

// handleSocket апгрейдит соединение и регистрирует клиента
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !s.validToken(token) {
		http.Error(w, `{"message":"invalid or missing token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 32)}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.mu.Unlock()

	s.logger.Info("Event channel client connected", zap.Int("clients", total))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writeLoop(client)
	}()
}

// writeLoop пишет события клиенту до закрытия канала
func (s *Server) writeLoop(client *wsClient) {
	defer func() {
		client.conn.Close()

		s.mu.Lock()
		if _, ok := s.clients[client]; ok {
			close(client.send)
			delete(s.clients, client)
		}
		s.mu.Unlock()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("Client write failed", zap.Error(err))
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// validToken проверяет выданный симулятором токен
func (s *Server) validToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.tokens[token]
	return ok
}
