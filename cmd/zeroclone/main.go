// Command zeroclone runs self-play, serves games over HTTP and evaluates
// value functions against each other.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brensch/zeroclone/config"
	"github.com/brensch/zeroclone/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:           "zeroclone",
		Short:         "Monte-Carlo tree search self-play for two-player board games",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Setup(logLevel, logFormat); err != nil {
				return err
			}
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to the YAML config (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatAuto, "Log format (auto, console, json)")

	rootCmd.AddCommand(selfplayCmd, serveCmd, playCmd, arenaCmd, benchCmd, datasetCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("zeroclone failed")
		stop()
		os.Exit(1)
	}
}
