package auth

import (
	"sync"

	"go.uber.org/zap"

	"camera-dashboard/internal/types"
)

// TokenSource источник текущего токена для REST и канала событий
type TokenSource interface {
	CurrentToken() (string, bool)
}

// Manager хранит токен текущей сессии
// Истекший токен читается как отсутствующий; супервизор канала трактует
// отсутствие токена как нарушение предусловия, а не как транспортную ошибку.
type Manager struct {
	mu     sync.RWMutex
	token  *types.AuthToken
	logger *zap.Logger
}

// NewManager создает новый менеджер учетных данных
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// SetToken сохраняет токен после успешного входа
func (m *Manager) SetToken(token types.AuthToken) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = &token
	m.logger.Info("Credential stored",
		zap.String("user", token.User.Email),
		zap.Time("expires_at", token.ExpiresAt))
}

// CurrentToken возвращает действующий токен, если он есть
func (m *Manager) CurrentToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == nil {
		return "", false
	}
	if m.token.Expired() {
		return "", false
	}
	return m.token.Token, true
}

// CurrentUser возвращает пользователя текущей сессии
func (m *Manager) CurrentUser() (types.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == nil || m.token.Expired() {
		return types.User{}, false
	}
	return m.token.User, true
}

// IsAuthenticated проверяет наличие действующего токена
func (m *Manager) IsAuthenticated() bool {
	_, ok := m.CurrentToken()
	return ok
}

// Clear сбрасывает сохраненный токен (logout)
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = nil
}
