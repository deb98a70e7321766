package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nutribot/internal/config"
	"nutribot/internal/logging"
)

type app struct {
	v         *viper.Viper
	cfg       config.Config
	logCloser io.Closer
}

func newRootCmd(a *app) *cobra.Command {
	var envPath, configFile string

	rootCmd := &cobra.Command{
		Use:           "nutribot",
		Short:         "Chat with NutriBot, a personal dietitian assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, envPath, configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			closer, err := logging.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
			if err != nil {
				return err
			}
			a.logCloser = closer
			log.Debug().Str("backend", cfg.Backend).Msg("configuration loaded")
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envPath, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.String("backend", config.BackendHTTP, "advice backend: http, openai or mock")
	flags.String("advice-url", "", "advice service endpoint for the http backend")
	flags.Duration("advice-timeout", 0, "transport timeout for one advice round-trip")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "log format (auto, console, json)")
	flags.String("log-file", "", "write logs to this file instead of stderr")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address")

	for key, flag := range map[string]string{
		"backend":        "backend",
		"advice.url":     "advice-url",
		"advice.timeout": "advice-timeout",
		"log.level":      "log-level",
		"log.format":     "log-format",
		"log.file":       "log-file",
		"metrics.addr":   "metrics-addr",
	} {
		cobra.CheckErr(a.v.BindPFlag(key, flags.Lookup(flag)))
	}

	chatCmd := newChatCmd(a)
	rootCmd.AddCommand(chatCmd, newTelegramCmd(a), newAskCmd(a))
	rootCmd.RunE = chatCmd.RunE

	return rootCmd
}

// closeLog releases the log file, if one was opened.
func (a *app) closeLog() error {
	if a.logCloser == nil {
		return nil
	}
	err := a.logCloser.Close()
	a.logCloser = nil
	return err
}

func execute(ctx context.Context, a *app, args []string) error {
	defer func() {
		_ = a.closeLog()
	}()

	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	if err := execute(ctx, a, os.Args[1:]); err != nil {
		cancel()
		cobra.CheckErr(err)
	}
}
