package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"camera-dashboard/internal/app"
	"camera-dashboard/internal/types"
)

// GetClientCommand возвращает команду headless-клиента дашборда
func GetClientCommand() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "Run the headless dashboard client",
		Description: `Connect to the dashboard server, keep the camera/alert store
in sync and log every state transition.

Examples:
  camera-dashboard client --email admin@example.com --password secret
  camera-dashboard client --config ./config/config.yaml --log-level debug`,
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:     "email",
				Usage:    "Account email",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "Account password",
				Required: true,
			},
		),
		Action: runClient,
	}
}

func runClient(c *cli.Context) error {
	cmdCtx, err := NewCommandContext(c)
	if err != nil {
		return err
	}
	defer cmdCtx.Logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	session := app.NewSession(cmdCtx.Config, cmdCtx.Logger)
	defer session.Stop()

	if err := session.Login(ctx, c.String("email"), c.String("password")); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := session.Start(ctx); err != nil {
		return err
	}

	cmdCtx.Logger.Info("Dashboard client started",
		zap.Int("cameras", len(session.Store.Cameras())),
		zap.Int("alerts", len(session.Store.Alerts())))

	// Хранилище уже подписано сессией; эти обработчики только логируют
	// входящий поток для наблюдения за клиентом без UI.
	session.Bus.OnAlert(func(alert types.Alert) {
		cmdCtx.Logger.Info("Alert",
			zap.String("camera", session.Store.CameraName(alert.CameraID)),
			zap.String("type", string(alert.Type)),
			zap.String("message", alert.Message),
			zap.Int("unread", session.Store.UnreadCount()))
	})
	session.Bus.OnStreamStatus(func(status types.StreamStatus) {
		cmdCtx.Logger.Info("Stream status",
			zap.String("camera", session.Store.CameraName(status.CameraID)),
			zap.String("status", string(status.Status)),
			zap.Bool("streaming", status.IsStreaming),
			zap.Int("active", session.Store.ActiveCount()))
	})
	session.Bus.OnError(func(err error) {
		cmdCtx.Logger.Error("Event channel gave up", zap.Error(err))
		stop()
	})

	<-ctx.Done()
	cmdCtx.Logger.Info("Shutting down")
	return nil
}
