package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"camera-dashboard/internal/app/commands"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cliApp := &cli.App{
		Name:     "camera-dashboard",
		Usage:    "Live camera dashboard sync client",
		Version:  fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		Commands: commands.GetCommands(),
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
