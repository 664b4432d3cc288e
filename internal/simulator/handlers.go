package simulator

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"camera-dashboard/internal/types"
)

// Router возвращает HTTP-роутер симулятора (для httptest)
func (s *Server) Router() http.Handler {
	return s.newRouter()
}

// newRouter собирает gin-роутер симулятора
func (s *Server) newRouter() http.Handler {
	if gin.Mode() == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "dashboard-simulator"})
	})

	router.GET("/ws", func(c *gin.Context) {
		s.handleSocket(c.Writer, c.Request)
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/login", s.handleLogin)
		apiV1.POST("/register", s.handleLogin)

		authed := apiV1.Group("", s.authMiddleware())
		{
			authed.GET("/cameras", s.handleGetCameras)
			authed.POST("/cameras", s.handleCreateCamera)
			authed.PUT("/cameras/:id", s.handleUpdateCamera)
			authed.DELETE("/cameras/:id", s.handleDeleteCamera)
			authed.POST("/cameras/:id/start", s.handleStartStream)
			authed.POST("/cameras/:id/stop", s.handleStopStream)
			authed.GET("/alerts", s.handleGetAlerts)
			authed.POST("/alerts/:id/read", s.handleMarkAlertRead)
		}
	}

	return router
}

// authMiddleware проверяет bearer-токен
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || !s.validToken(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "invalid or missing token",
			})
			return
		}
		c.Next()
	}
}

// handleLogin принимает любые непустые учетные данные и выдает токен
func (s *Server) handleLogin(c *gin.Context) {
	var creds types.LoginCredentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if creds.Email == "" || creds.Password == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
		return
	}

	user := types.User{ID: uuid.NewString(), Email: creds.Email}
	token := types.AuthToken{
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
		User:      user,
	}

	s.mu.Lock()
	s.tokens[token.Token] = user
	s.mu.Unlock()

	s.logger.Info("Issued session token", zap.String("user", user.Email))
	c.JSON(http.StatusOK, token)
}

func (s *Server) handleGetCameras(c *gin.Context) {
	s.mu.Lock()
	out := make([]types.Camera, len(s.cameras))
	copy(out, s.cameras)
	s.mu.Unlock()

	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateCamera(c *gin.Context) {
	var camera types.Camera
	if err := c.ShouldBindJSON(&camera); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if camera.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "camera name is required"})
		return
	}

	camera.ID = uuid.NewString()
	camera.CreatedAt = time.Now()
	camera.Status = types.StatusInactive
	camera.IsStreaming = false

	s.mu.Lock()
	s.cameras = append(s.cameras, camera)
	s.mu.Unlock()

	c.JSON(http.StatusOK, camera)
}

func (s *Server) handleUpdateCamera(c *gin.Context) {
	var update types.Camera
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cameras {
		if s.cameras[i].ID == id {
			s.cameras[i].Name = update.Name
			s.cameras[i].SourceURL = update.SourceURL
			s.cameras[i].Location = update.Location
			s.cameras[i].Enabled = update.Enabled
			s.cameras[i].DetectionEnabled = update.DetectionEnabled
			c.JSON(http.StatusOK, s.cameras[i])
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"message": "camera not found"})
}

func (s *Server) handleDeleteCamera(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cameras {
		if s.cameras[i].ID == id {
			s.cameras = append(s.cameras[:i], s.cameras[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"message": "camera not found"})
}

// setStreaming переводит камеру в целевое состояние стрима
func (s *Server) setStreaming(c *gin.Context, start bool) {
	id := c.Param("id")

	s.mu.Lock()
	var updated *types.Camera
	for i := range s.cameras {
		if s.cameras[i].ID == id {
			if start && !s.cameras[i].Enabled {
				s.mu.Unlock()
				c.JSON(http.StatusConflict, gin.H{"message": "camera is disabled"})
				return
			}
			if start {
				s.cameras[i].Status = types.StatusActive
				s.cameras[i].IsStreaming = true
				s.cameras[i].FPS = 30
			} else {
				s.cameras[i].Status = types.StatusInactive
				s.cameras[i].IsStreaming = false
				s.cameras[i].FPS = 0
			}
			cam := s.cameras[i]
			updated = &cam
			break
		}
	}
	s.mu.Unlock()

	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "camera not found"})
		return
	}

	s.broadcast(types.EventStreamStatus, types.StreamStatus{
		CameraID:    updated.ID,
		Status:      updated.Status,
		IsStreaming: updated.IsStreaming,
	})
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleStartStream(c *gin.Context) {
	s.setStreaming(c, true)
}

func (s *Server) handleStopStream(c *gin.Context) {
	s.setStreaming(c, false)
}

func (s *Server) handleGetAlerts(c *gin.Context) {
	cameraID := c.Query("cameraId")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	per, _ := strconv.Atoi(c.DefaultQuery("per", "50"))
	if page < 1 {
		page = 1
	}
	if per < 1 || per > 200 {
		per = 50
	}

	var from, to time.Time
	if v := c.Query("from"); v != "" {
		from, _ = time.Parse(time.RFC3339, v)
	}
	if v := c.Query("to"); v != "" {
		to, _ = time.Parse(time.RFC3339, v)
	}

	s.mu.Lock()
	filtered := make([]types.Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		if cameraID != "" && alert.CameraID != cameraID {
			continue
		}
		if !from.IsZero() && alert.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && alert.Timestamp.After(to) {
			continue
		}
		filtered = append(filtered, alert)
	}
	s.mu.Unlock()

	start := (page - 1) * per
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + per
	if end > len(filtered) {
		end = len(filtered)
	}

	c.JSON(http.StatusOK, filtered[start:end])
}

func (s *Server) handleMarkAlertRead(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].IsRead = true
			c.Status(http.StatusNoContent)
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"message": "alert not found"})
}
