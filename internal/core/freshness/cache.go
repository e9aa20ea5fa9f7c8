// Package freshness は保存済みレコードを TTL に基づいて返し、古い場合のみ再取得するキャッシュアサイドの読み取り経路です。
package freshness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/refresh"
)

// ErrRecordUnavailable は保存済みレコードが無く、取得にも失敗した場合に返却されます。
var ErrRecordUnavailable = errors.New("record unavailable")

// Lookup result labels for Metrics.ObserveLookup.
const (
	LookupHit         = "hit"
	LookupMiss        = "miss"
	LookupStaleServed = "stale_served"
	LookupUnavailable = "unavailable"
)

// Refresher は一件の再取得と通知を行います。
type Refresher interface {
	Refresh(ctx context.Context, code, sourceName string) (refresh.Outcome, error)
}

// Metrics はキャッシュ参照の計測点です。
type Metrics interface {
	ObserveLookup(sourceName, result string)
}

// Cache は GetOrRefresh を提供します。
type Cache struct {
	companies company.Repository
	tx        company.TransactionManager
	refresher Refresher
	clock     company.Clock
	logger    *slog.Logger
	metrics   Metrics
	tracer    trace.Tracer
	group     singleflight.Group
}

// Option は Cache の任意設定です。
type Option func(*Cache)

func WithClock(clock company.Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New は Cache を生成します。
func New(companies company.Repository, tx company.TransactionManager, refresher Refresher, opts ...Option) *Cache {
	if tx == nil {
		tx = company.NoopTransactionManager{}
	}
	c := &Cache{
		companies: companies,
		tx:        tx,
		refresher: refresher,
		clock:     company.RealClock{},
		logger:    slog.New(slog.DiscardHandler),
		tracer:    otel.Tracer("github.com/ogurasousui/company-registry/internal/core/freshness"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrRefresh は保存済みレコードの経過時間が maxAge 未満であればそのまま返し、
// そうでなければ sourceName から再取得して返します。
// 再取得に失敗した場合、古いレコードがあればそれを返し、無ければ ErrRecordUnavailable を返します。
func (c *Cache) GetOrRefresh(ctx context.Context, code, sourceName string, maxAge time.Duration) (*company.Record, error) {
	code, err := company.NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "freshness.GetOrRefresh", trace.WithAttributes(
		attribute.String("registry.code", code),
		attribute.String("registry.source", sourceName),
	))
	defer span.End()

	var stored *company.Record
	err = c.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		rec, err := c.companies.FindByCode(txCtx, code)
		if err != nil && !errors.Is(err, company.ErrCompanyNotFound) {
			return err
		}
		stored = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stored != nil && c.clock.Now().Sub(stored.LastUpdated) < maxAge {
		span.SetAttributes(attribute.String("registry.lookup", LookupHit))
		c.observe(sourceName, LookupHit)
		return stored, nil
	}

	out, err := c.refresh(ctx, code, sourceName)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}

	if out.Err != nil {
		if stored != nil {
			span.SetAttributes(attribute.String("registry.lookup", LookupStaleServed))
			c.observe(sourceName, LookupStaleServed)
			c.logger.WarnContext(ctx, "serving stale record after fetch failure",
				"code", code, "source", sourceName, "last_updated", stored.LastUpdated, "err", out.Err)
			return stored, nil
		}
		span.SetAttributes(attribute.String("registry.lookup", LookupUnavailable))
		c.observe(sourceName, LookupUnavailable)
		return nil, fmt.Errorf("%w: %w", ErrRecordUnavailable, out.Err)
	}

	span.SetAttributes(attribute.String("registry.lookup", LookupMiss))
	c.observe(sourceName, LookupMiss)
	return out.Record, nil
}

// refresh は同じ (source, code) への同時の再取得を一つにまとめます。
// 共有した呼び出しが他の呼び出し元のキャンセルで失敗した場合は、自身のコンテキストでやり直します。
func (c *Cache) refresh(ctx context.Context, code, sourceName string) (refresh.Outcome, error) {
	ch := c.group.DoChan(sourceName+"\x00"+code, func() (any, error) {
		return c.refresher.Refresh(ctx, code, sourceName)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return refresh.Outcome{}, ctx.Err()
	case res = <-ch:
	}

	out, _ := res.Val.(refresh.Outcome)
	if res.Shared && ctx.Err() == nil && (isContextErr(res.Err) || (out.Err != nil && isContextErr(out.Err))) {
		return c.refresher.Refresh(ctx, code, sourceName)
	}
	return out, res.Err
}

func (c *Cache) observe(sourceName, result string) {
	if c.metrics != nil {
		c.metrics.ObserveLookup(sourceName, result)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
