// cmd/punkhunt/main.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/punkhunt/internal/config"
	"github.com/tbourn/punkhunt/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	envFile  string
	logLevel string
	noColor  bool

	cfg config.Config

	dimColor  = color.New(color.Faint)
	boldColor = color.New(color.Bold)
)

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errCancelled):
		return 130
	default:
		return 1
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "punkhunt",
		Short: "Punk HUNT companion",
		Long: `punkhunt serves the Punk HUNT companion API and drives the game from a terminal.

It mints ducks and zappers, fires zappers, reports game state, and relays
the trollbox. Configuration comes from the environment (and an optional
.env file); see "punkhunt serve --help" for the HTTP server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil && !(envFile == ".env" && errors.Is(err, os.ErrNotExist)) {
					return fmt.Errorf("failed to load %s: %w", envFile, err)
				}
			}
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			loaded.LogLevel = sysutil.FirstNonEmpty(logLevel, loaded.LogLevel)
			cfg = loaded
			if noColor {
				color.NoColor = true
			}
			sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty || cmd.Name() != "serve", os.Stderr)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newServeCmd(),
		newLaneCmd(laneMintDucks),
		newLaneCmd(laneMintZappers),
		newLaneCmd(laneShoot),
		newStatusCmd(),
		newHoldersCmd(),
		newChatCmd(),
		newFAQCmd(),
	)
	return root
}

func main() {
	err := newRootCmd().Execute()
	if err != nil && !errors.Is(err, errCancelled) {
		color.Red("Error: %v", err)
	}
	os.Exit(exitCode(err))
}
