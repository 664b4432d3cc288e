package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"camera-dashboard/internal/simulator"
)

// GetSimulatorCommand возвращает команду локального бэкенд-симулятора
func GetSimulatorCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulator",
		Usage: "Run the local backend simulator",
		Description: `Serve the dashboard REST API and event channel with a fake
camera fleet: periodic face-detection alerts and stream status flips.

Examples:
  camera-dashboard simulator
  camera-dashboard simulator --port 3001`,
		Flags: append(commonFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override simulator port",
			},
		),
		Action: runSimulator,
	}
}

func runSimulator(c *cli.Context) error {
	cmdCtx, err := NewCommandContext(c)
	if err != nil {
		return err
	}
	defer cmdCtx.Logger.Sync()

	if port := c.Int("port"); port > 0 {
		cmdCtx.Config.Simulator.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	server := simulator.NewServer(cmdCtx.Config, cmdCtx.Logger)
	if err := server.Start(); err != nil {
		return err
	}

	cmdCtx.Logger.Info("Simulator started",
		zap.String("host", cmdCtx.Config.Simulator.Host),
		zap.Int("port", cmdCtx.Config.Simulator.Port))

	<-ctx.Done()
	server.Stop()
	return nil
}
