package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"camera-dashboard/internal/auth"
	"camera-dashboard/internal/config"
	"camera-dashboard/internal/types"
)

// RestClient реализация Client поверх resty
type RestClient struct {
	http   *resty.Client
	tokens auth.TokenSource
	logger *zap.Logger
}

// NewRestClient создает новый REST-клиент
func NewRestClient(cfg *config.Config, tokens auth.TokenSource, logger *zap.Logger) *RestClient {
	r := resty.New()
	r.SetBaseURL(cfg.API.BaseURL)
	r.SetTimeout(cfg.GetRequestTimeout())
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")

	c := &RestClient{
		http:   r,
		tokens: tokens,
		logger: logger,
	}

	// Bearer-заголовок берется у источника на каждый запрос: токен мог
	// смениться или истечь между вызовами.
	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if token, ok := c.tokens.CurrentToken(); ok {
			req.SetHeader("Authorization", "Bearer "+token)
		}
		return nil
	})

	return c
}

// apiError превращает не-2xx ответ в *types.APIError
func apiError(resp *resty.Response) error {
	apiErr, ok := resp.Error().(*types.APIError)
	if !ok || apiErr.Message == "" {
		apiErr = &types.APIError{Message: http.StatusText(resp.StatusCode())}
	}
	apiErr.StatusCode = resp.StatusCode()
	return apiErr
}

// Login выполняет вход и возвращает токен сессии
func (c *RestClient) Login(ctx context.Context, creds types.LoginCredentials) (types.AuthToken, error) {
	var token types.AuthToken
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(creds).
		SetResult(&token).
		SetError(&types.APIError{}).
		Post("/login")
	if err != nil {
		return types.AuthToken{}, fmt.Errorf("login request failed: %w", err)
	}
	if resp.IsError() {
		return types.AuthToken{}, apiError(resp)
	}
	return token, nil
}

// Register регистрирует пользователя и возвращает токен сессии
func (c *RestClient) Register(ctx context.Context, creds types.LoginCredentials) (types.AuthToken, error) {
	var token types.AuthToken
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(creds).
		SetResult(&token).
		SetError(&types.APIError{}).
		Post("/register")
	if err != nil {
		return types.AuthToken{}, fmt.Errorf("register request failed: %w", err)
	}
	if resp.IsError() {
		return types.AuthToken{}, apiError(resp)
	}
	return token, nil
}

// GetCameras возвращает полный список камер (снапшот)
func (c *RestClient) GetCameras(ctx context.Context) ([]types.Camera, error) {
	var cameras []types.Camera
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&cameras).
		SetError(&types.APIError{}).
		Get("/cameras")
	if err != nil {
		return nil, fmt.Errorf("get cameras failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return cameras, nil
}

// GetAlerts возвращает список тревог по параметрам выборки (снапшот)
func (c *RestClient) GetAlerts(ctx context.Context, query AlertQuery) ([]types.Alert, error) {
	req := c.http.R().SetContext(ctx)

	if query.CameraID != "" {
		req.SetQueryParam("cameraId", query.CameraID)
	}
	if query.Page > 0 {
		req.SetQueryParam("page", strconv.Itoa(query.Page))
	}
	if query.PerPage > 0 {
		req.SetQueryParam("per", strconv.Itoa(query.PerPage))
	}
	if !query.From.IsZero() {
		req.SetQueryParam("from", query.From.Format(time.RFC3339))
	}
	if !query.To.IsZero() {
		req.SetQueryParam("to", query.To.Format(time.RFC3339))
	}

	var alerts []types.Alert
	resp, err := req.
		SetResult(&alerts).
		SetError(&types.APIError{}).
		Get("/alerts")
	if err != nil {
		return nil, fmt.Errorf("get alerts failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return alerts, nil
}

// CreateCamera создает камеру
func (c *RestClient) CreateCamera(ctx context.Context, camera types.Camera) (types.Camera, error) {
	var created types.Camera
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(camera).
		SetResult(&created).
		SetError(&types.APIError{}).
		Post("/cameras")
	if err != nil {
		return types.Camera{}, fmt.Errorf("create camera failed: %w", err)
	}
	if resp.IsError() {
		return types.Camera{}, apiError(resp)
	}
	return created, nil
}

// UpdateCamera обновляет камеру
func (c *RestClient) UpdateCamera(ctx context.Context, camera types.Camera) (types.Camera, error) {
	var updated types.Camera
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(camera).
		SetResult(&updated).
		SetError(&types.APIError{}).
		Put("/cameras/" + camera.ID)
	if err != nil {
		return types.Camera{}, fmt.Errorf("update camera %s failed: %w", camera.ID, err)
	}
	if resp.IsError() {
		return types.Camera{}, apiError(resp)
	}
	return updated, nil
}

// DeleteCamera удаляет камеру
func (c *RestClient) DeleteCamera(ctx context.Context, cameraID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&types.APIError{}).
		Delete("/cameras/" + cameraID)
	if err != nil {
		return fmt.Errorf("delete camera %s failed: %w", cameraID, err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

// StartStream запускает стрим камеры
func (c *RestClient) StartStream(ctx context.Context, cameraID string) (types.Camera, error) {
	var camera types.Camera
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&camera).
		SetError(&types.APIError{}).
		Post("/cameras/" + cameraID + "/start")
	if err != nil {
		return types.Camera{}, fmt.Errorf("start stream %s failed: %w", cameraID, err)
	}
	if resp.IsError() {
		return types.Camera{}, apiError(resp)
	}
	return camera, nil
}

// StopStream останавливает стрим камеры
func (c *RestClient) StopStream(ctx context.Context, cameraID string) (types.Camera, error) {
	var camera types.Camera
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&camera).
		SetError(&types.APIError{}).
		Post("/cameras/" + cameraID + "/stop")
	if err != nil {
		return types.Camera{}, fmt.Errorf("stop stream %s failed: %w", cameraID, err)
	}
	if resp.IsError() {
		return types.Camera{}, apiError(resp)
	}
	return camera, nil
}

// MarkAlertRead помечает тревогу прочитанной
func (c *RestClient) MarkAlertRead(ctx context.Context, alertID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&types.APIError{}).
		Post("/alerts/" + alertID + "/read")
	if err != nil {
		return fmt.Errorf("mark alert %s read failed: %w", alertID, err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}
