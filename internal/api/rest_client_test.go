package api_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"camera-dashboard/internal/api"
	"camera-dashboard/internal/auth"
	"camera-dashboard/internal/config"
	"camera-dashboard/internal/simulator"
	"camera-dashboard/internal/types"
)

// newClient поднимает симулятор под httptest и возвращает клиента к нему
func newClient(t *testing.T) (*api.RestClient, *auth.Manager) {
	t.Helper()

	sim := simulator.NewServer(config.GetDefaultConfig(), zap.NewNop())
	ts := httptest.NewServer(sim.Router())
	t.Cleanup(ts.Close)

	cfg := config.GetDefaultConfig()
	cfg.API.BaseURL = ts.URL + "/api/v1"
	cfg.API.RequestTimeout = 5 * time.Second

	tokens := auth.NewManager(zap.NewNop())
	return api.NewRestClient(cfg, tokens, zap.NewNop()), tokens
}

// login выполняет вход и сохраняет токен в менеджере
func login(t *testing.T, client *api.RestClient, tokens *auth.Manager) {
	t.Helper()

	token, err := client.Login(context.Background(), types.LoginCredentials{
		Email: "admin@example.com", Password: "secret",
	})
	require.NoError(t, err)
	tokens.SetToken(token)
}

func TestLogin(t *testing.T) {
	client, _ := newClient(t)

	token, err := client.Login(context.Background(), types.LoginCredentials{
		Email: "admin@example.com", Password: "secret",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, token.Token)
	assert.Equal(t, "admin@example.com", token.User.Email)
	assert.False(t, token.Expired())
}

func TestLogin_RejectedCredentials(t *testing.T) {
	client, _ := newClient(t)

	_, err := client.Login(context.Background(), types.LoginCredentials{
		Email: "admin@example.com",
	})
	require.Error(t, err)

	var apiErr *types.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	// Текст сервера доходит до вызывающего без изменений.
	assert.Equal(t, "invalid credentials", apiErr.Message)
}

func TestRequestWithoutToken_Unauthorized(t *testing.T) {
	client, _ := newClient(t)

	_, err := client.GetCameras(context.Background())
	require.Error(t, err)

	var apiErr *types.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
}

func TestGetCameras(t *testing.T) {
	client, tokens := newClient(t)
	login(t, client, tokens)

	cameras, err := client.GetCameras(context.Background())
	require.NoError(t, err)

	require.Len(t, cameras, 4)
	assert.Equal(t, "Main Entrance", cameras[0].Name)
}

func TestStartStream_ReturnsAuthoritativeCamera(t *testing.T) {
	client, tokens := newClient(t)
	login(t, client, tokens)

	// Камера "2" включена, но стрим не идет.
	cam, err := client.StartStream(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, cam.Status)
	assert.True(t, cam.IsStreaming)
	assert.Equal(t, 30, cam.FPS)

	cam, err = client.StopStream(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInactive, cam.Status)
	assert.False(t, cam.IsStreaming)
}

func TestStartStream_DisabledCameraConflict(t *testing.T) {
	client, tokens := newClient(t)
	login(t, client, tokens)

	// Камера "4" выключена.
	_, err := client.StartStream(context.Background(), "4")
	require.Error(t, err)

	var apiErr *types.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.StatusCode)
	assert.Equal(t, "camera is disabled", apiErr.Message)
}

func TestCameraCRUD(t *testing.T) {
	client, tokens := newClient(t)
	login(t, client, tokens)
	ctx := context.Background()

	created, err := client.CreateCamera(ctx, types.Camera{
		Name: "Loading Dock", SourceURL: "rtsp://camera5.example.com/stream", Enabled: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, types.StatusInactive, created.Status)

	created.Name = "Loading Dock East"
	updated, err := client.UpdateCamera(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "Loading Dock East", updated.Name)

	require.NoError(t, client.DeleteCamera(ctx, created.ID))

	err = client.DeleteCamera(ctx, created.ID)
	var apiErr *types.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, "camera not found", apiErr.Message)
}

func TestGetAlerts_FilterAndPaging(t *testing.T) {
	client, tokens := newClient(t)
	login(t, client, tokens)
	ctx := context.Background()

	all, err := client.GetAlerts(ctx, api.AlertQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	forCamera, err := client.GetAlerts(ctx, api.AlertQuery{CameraID: "1"})
	require.NoError(t, err)
	require.Len(t, forCamera, 1)
	assert.Equal(t, "1", forCamera[0].CameraID)

	paged, err := client.GetAlerts(ctx, api.AlertQuery{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestMarkAlertRead(t *testing.T) {
	client, tokens := newClient(t)
	login(t, client, tokens)
	ctx := context.Background()

	alerts, err := client.GetAlerts(ctx, api.AlertQuery{})
	require.NoError(t, err)
	require.NotEmpty(t, alerts)

	require.NoError(t, client.MarkAlertRead(ctx, alerts[0].ID))

	var apiErr *types.APIError
	err = client.MarkAlertRead(ctx, "ghost")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}
