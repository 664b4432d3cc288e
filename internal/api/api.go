package api

import (
	"context"
	"time"

	"camera-dashboard/internal/types"
)

// AlertQuery параметры выборки тревог
type AlertQuery struct {
	CameraID string
	Page     int
	PerPage  int
	From     time.Time
	To       time.Time
}

// Client интерфейс REST-границы сервера
// Все мутирующие вызовы возвращают авторитетный обновленный ресурс.
// Ответ не-2xx приходит как *types.APIError с текстом сервера без изменений.
type Client interface {
	Login(ctx context.Context, creds types.LoginCredentials) (types.AuthToken, error)
	Register(ctx context.Context, creds types.LoginCredentials) (types.AuthToken, error)

	GetCameras(ctx context.Context) ([]types.Camera, error)
	GetAlerts(ctx context.Context, query AlertQuery) ([]types.Alert, error)

	CreateCamera(ctx context.Context, camera types.Camera) (types.Camera, error)
	UpdateCamera(ctx context.Context, camera types.Camera) (types.Camera, error)
	DeleteCamera(ctx context.Context, cameraID string) error

	StartStream(ctx context.Context, cameraID string) (types.Camera, error)
	StopStream(ctx context.Context, cameraID string) (types.Camera, error)

	MarkAlertRead(ctx context.Context, alertID string) error
}
