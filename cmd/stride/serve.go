package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hperssn/stride/internal/catalog"
	httpapi "github.com/hperssn/stride/internal/http"
	"github.com/hperssn/stride/internal/logging"
	"github.com/hperssn/stride/internal/runner"
	"github.com/hperssn/stride/internal/storage"
	"github.com/hperssn/stride/internal/stream"
)

type ServeCmd struct {
	Addr   string `help:"Listen address (overrides SERVER_PORT)"`
	Policy string `help:"Conflict policy: reject, resume-existing or preempt (overrides CONFLICT_POLICY)"`
}

func (s *ServeCmd) Run(cli *CLI) error {
	cfg := cli.cfg
	if s.Addr != "" {
		cfg.ServerPort = s.Addr
	}
	if s.Policy != "" {
		cfg.ConflictPolicy = s.Policy
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	repo, err := storage.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer repo.Close()

	exercises, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
	}

	journal := storage.NewJournal(repo)
	timer := runner.NewTimer(runner.Config{
		TickInterval:   cfg.TickInterval,
		StopOnComplete: cfg.StopOnComplete,
		OnFinish:       journal.Record,
	})
	defer timer.Close()

	binder := runner.NewBinder(timer, runner.BinderConfig{
		PollInterval: cfg.PollInterval,
		AttachDelay:  cfg.AttachDelay,
		Policy:       cfg.Policy(),
	})
	hub := stream.NewHub(rdb)
	events, unsubscribe := timer.Subscribe(64)
	defer unsubscribe()

	srv := &http.Server{
		Addr: cfg.ServerPort,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Timer:   timer,
			Binder:  binder,
			Catalog: exercises,
			Repo:    repo,
			Journal: journal,
			Hub:     hub,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Logger.Info("Listening", "addr", cfg.ServerPort, "policy", cfg.Policy())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return hub.Relay(ctx, events) })
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
