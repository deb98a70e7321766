package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"nutribot/internal/adapter/advice"
	"nutribot/internal/adapter/events"
	"nutribot/internal/adapter/memory"
	"nutribot/internal/adapter/metrics"
	"nutribot/internal/adapter/mock"
	"nutribot/internal/adapter/openai"
	"nutribot/internal/config"
	"nutribot/internal/domain"
	"nutribot/internal/usecase/chat"
)

type session struct {
	svc      *chat.Service
	bus      *events.Bus
	registry *prometheus.Registry
}

func newAdvisor(cfg config.Config) (domain.Advisor, error) {
	switch cfg.Backend {
	case config.BackendHTTP:
		return advice.NewClient(cfg.Advice.URL, cfg.Advice.Timeout), nil
	case config.BackendOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			Model:        cfg.OpenAI.Model,
			SystemPrompt: cfg.OpenAI.SystemPrompt,
			MaxTokens:    cfg.OpenAI.MaxTokens,
			ContextLimit: cfg.OpenAI.ContextLimit,
		}), nil
	case config.BackendMock:
		return mock.NewAdvisor(cfg.Advice.MockDelay), nil
	}
	return nil, errors.Errorf("unknown backend %q", cfg.Backend)
}

func newSession(cfg config.Config) (*session, error) {
	advisor, err := newAdvisor(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{}
	if cfg.MetricsAddr != "" {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		instrumented, err := metrics.InstrumentAdvisor(advisor, s.registry)
		if err != nil {
			return nil, errors.Wrap(err, "register advice metrics")
		}
		advisor = instrumented
	}

	s.bus = events.NewBus(log.Logger)
	store := memory.NewStore(chat.Welcome(cfg.WelcomeMessage, time.Now()))
	s.svc = chat.NewService(store, advisor, chat.WithNotifier(s.bus))

	log.Info().Str("backend", cfg.Backend).Msg("session ready")
	return s, nil
}

func (s *session) Close() error {
	return s.bus.Close()
}

// run executes frontend next to the metrics endpoint, if one is configured,
// and stops the endpoint once frontend returns.
func (s *session) run(ctx context.Context, addr string, frontend func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return frontend(gctx)
	})

	if s.registry != nil && addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info().Str("addr", addr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
