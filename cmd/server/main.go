package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/company-registry/internal/app"
	"github.com/ogurasousui/company-registry/internal/platform/config"
	"github.com/ogurasousui/company-registry/internal/platform/httpserver"
	"github.com/ogurasousui/company-registry/internal/platform/logger"
	"github.com/ogurasousui/company-registry/internal/platform/server"
	"github.com/ogurasousui/company-registry/internal/workers/sweeper"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.EffectivePath(*configPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Error("failed to initialize application", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := run(ctx, a); err != nil {
		lg.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App) error {
	cfg := a.Config
	g, ctx := errgroup.WithContext(ctx)

	grpcServer := server.New(cfg.Server.ListenAddr, a.RegistryHandler())
	g.Go(func() error {
		a.Logger.Info("gRPC server listening", "addr", cfg.Server.ListenAddr)
		return grpcServer.Run(ctx)
	})

	if cfg.Server.AdminAddr != "" {
		admin := httpserver.New(cfg.Server.AdminAddr, httpserver.NewRouter(a.Gatherer, a.Ready))
		g.Go(func() error {
			a.Logger.Info("admin server listening", "addr", cfg.Server.AdminAddr)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return admin.Shutdown(shutdownCtx)
		})
	}

	w, err := sweeper.New(sweeper.Config{
		Refresher:          a.Orchestrator,
		Clock:              clock.WallClock,
		Logger:             a.Logger,
		SourceName:         cfg.Registry.Source,
		Interval:           cfg.Registry.SweepInterval,
		StalenessThreshold: cfg.Registry.StalenessThreshold,
		RunOnStart:         cfg.Registry.SweepOnStart,
	})
	if err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		w.Kill()
		return w.Wait()
	})

	return g.Wait()
}
