// Package app は設定からアプリケーションの依存関係を組み立てます。
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ogurasousui/company-registry/internal/adapters/grpc/handler"
	"github.com/ogurasousui/company-registry/internal/adapters/notifier"
	"github.com/ogurasousui/company-registry/internal/adapters/repository/memory"
	pgrepo "github.com/ogurasousui/company-registry/internal/adapters/repository/postgres"
	"github.com/ogurasousui/company-registry/internal/adapters/source/httpfetch"
	"github.com/ogurasousui/company-registry/internal/adapters/source/opendatabot"
	"github.com/ogurasousui/company-registry/internal/adapters/source/youcontrol"
	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/freshness"
	"github.com/ogurasousui/company-registry/internal/core/refresh"
	"github.com/ogurasousui/company-registry/internal/core/source"
	"github.com/ogurasousui/company-registry/internal/core/subscription"
	"github.com/ogurasousui/company-registry/internal/core/user"
	"github.com/ogurasousui/company-registry/internal/platform/config"
	pgdb "github.com/ogurasousui/company-registry/internal/platform/db/postgres"
	"github.com/ogurasousui/company-registry/internal/platform/metrics"
)

// App は組み立て済みのサービス群です。
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Gatherer は /metrics で公開するレジストリです。
	Gatherer prometheus.Gatherer

	Sources       *source.Registry
	Orchestrator  *refresh.Orchestrator
	Cache         *freshness.Cache
	Subscriptions *subscription.Service
	Users         *user.Service

	ready   func(context.Context) error
	closers []func() error
}

// Option は App の組み立てを調整します。
type Option func(*options)

type options struct {
	httpClient *http.Client
	notifier   subscription.Notifier
	clock      company.Clock
}

// WithHTTPClient はレジストリへのリクエストに使う HTTP クライアントを指定します。
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithNotifier は設定の notifier.driver の代わりに n を使います。
func WithNotifier(n subscription.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClock は時刻の取得元を差し替えます。
func WithClock(c company.Clock) Option {
	return func(o *options) { o.clock = c }
}

type stores struct {
	companies company.Repository
	users     user.Repository
	subs      subscription.Repository
	tx        company.TransactionManager
}

// New は cfg に従って App を組み立てます。失敗した場合は途中まで開いた接続を閉じます。
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	o := options{clock: company.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(reg)
	a.Gatherer = reg

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	n := o.notifier
	if n == nil {
		var closeNotifier func() error
		n, closeNotifier, err = notifier.New(ctx, cfg.Notifier, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeNotifier)
	}

	a.Sources = newSourceRegistry(cfg.Registry, o.httpClient)
	if _, err := a.Sources.Get(cfg.Registry.Source); err != nil {
		return nil, fmt.Errorf("app: registry.source: %w", err)
	}

	a.Users = user.NewService(st.users,
		user.WithTransactionManager(st.tx),
		user.WithClock(o.clock),
		user.WithLogger(logger.With("component", "user")),
	)
	a.Subscriptions = subscription.NewService(st.subs, st.companies, st.users, n,
		subscription.WithTransactionManager(st.tx),
		subscription.WithClock(o.clock),
		subscription.WithLogger(logger.With("component", "subscription")),
		subscription.WithMetrics(a.Metrics),
	)
	a.Orchestrator = refresh.New(a.Sources, st.companies, st.tx,
		refresh.WithNotifier(a.Subscriptions),
		refresh.WithClock(o.clock),
		refresh.WithLogger(logger.With("component", "refresh")),
		refresh.WithMetrics(a.Metrics),
		refresh.WithItemTimeout(cfg.Registry.SweepItemTimeout),
	)
	a.Cache = freshness.New(st.companies, st.tx, a.Orchestrator,
		freshness.WithClock(o.clock),
		freshness.WithLogger(logger.With("component", "freshness")),
		freshness.WithMetrics(a.Metrics),
	)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (stores, error) {
	switch a.Config.Store.Driver {
	case config.StoreDriverMemory:
		s := memory.NewStore()
		a.ready = func(context.Context) error { return nil }
		return stores{
			companies: s.Companies(),
			users:     s.Users(),
			subs:      s.Subscriptions(),
			tx:        s.TransactionManager(),
		}, nil
	case config.StoreDriverPostgres, "":
		pool, err := pgdb.NewPool(ctx, a.Config.Database)
		if err != nil {
			return stores{}, fmt.Errorf("app: open postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		a.ready = pool.Ping
		return stores{
			companies: pgrepo.NewCompanyRepository(pool),
			users:     pgrepo.NewUserRepository(pool),
			subs:      pgrepo.NewSubscriptionRepository(pool),
			tx:        pgdb.NewTransactionManager(pool),
		}, nil
	default:
		return stores{}, fmt.Errorf("app: unsupported store driver %q", a.Config.Store.Driver)
	}
}

func newSourceRegistry(cfg config.RegistryConfig, hc *http.Client) *source.Registry {
	fetchOpts := httpfetch.Options{
		Delay:      cfg.RequestDelay,
		Timeout:    cfg.RequestTimeout,
		UserAgent:  cfg.UserAgent,
		HTTPClient: hc,
	}
	urlFor := func(name, def string) string {
		if tmpl, ok := cfg.BaseURLs[name]; ok {
			return tmpl
		}
		return def
	}

	return source.NewRegistry(
		youcontrol.New(httpfetch.New(youcontrol.Name, fetchOpts), urlFor(youcontrol.Name, youcontrol.DefaultURLTemplate)),
		opendatabot.New(httpfetch.New(opendatabot.Name, fetchOpts), urlFor(opendatabot.Name, opendatabot.DefaultURLTemplate)),
	)
}

// RegistryHandler は gRPC サービス実装を返します。
func (a *App) RegistryHandler() *handler.RegistryGrpcHandler {
	return handler.NewRegistryGrpcHandler(a.Cache, a.Subscriptions, a.Users, a.Config.Registry.Source, a.Config.Registry.ReadMaxAge)
}

// Ready はストアへの疎通を確認します。
func (a *App) Ready(ctx context.Context) error {
	if a.ready == nil {
		return errors.New("app: store not initialised")
	}
	return a.ready(ctx)
}

// Close は開いた接続を逆順に閉じます。
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
