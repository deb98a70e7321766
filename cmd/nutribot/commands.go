package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"nutribot/internal/adapter/telegram"
	"nutribot/internal/adapter/tui"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// the alternate screen owns the terminal
			if a.cfg.Log.File == "" {
				log.Logger = log.Output(io.Discard)
			}

			s, err := newSession(a.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.run(cmd.Context(), a.cfg.MetricsAddr, func(ctx context.Context) error {
				events, err := s.bus.Subscribe(ctx)
				if err != nil {
					return err
				}
				return tui.Run(ctx, s.svc, events)
			})
		},
	}
}

func newTelegramCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Serve the session through a Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateTelegram(); err != nil {
				return err
			}

			s, err := newSession(a.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			bot, err := telegram.NewBot(a.cfg.Telegram, s.svc)
			if err != nil {
				return err
			}

			err = s.run(cmd.Context(), a.cfg.MetricsAddr, func(ctx context.Context) error {
				events, err := s.bus.Subscribe(ctx)
				if err != nil {
					return err
				}
				return bot.Run(ctx, events)
			})
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("shutting down")
				return nil
			}
			return err
		},
	}
}

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(a.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			answer, err := ask(cmd.Context(), s, strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
			return err
		},
	}
}

func ask(ctx context.Context, s *session, question string) (string, error) {
	if !s.svc.Submit(ctx, question) {
		return "", errors.New("nothing to ask")
	}
	if err := s.svc.WaitContext(ctx); err != nil {
		return "", errors.Wrap(err, "waiting for advice")
	}

	msgs := s.svc.Messages()
	last := msgs[len(msgs)-1]
	if !last.IsAssistant() {
		return "", errors.New("no answer received")
	}
	return last.Content, nil
}
