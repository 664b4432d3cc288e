package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// GetVersionCommand возвращает команду вывода версии
func GetVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			fmt.Println("Camera Dashboard Client - Version 1.0.0")
			return nil
		},
	}
}
