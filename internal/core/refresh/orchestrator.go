// Package refresh は外部レジストリからの再取得、差分判定、保存、購読者通知を一つのサイクルとして実行します。
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/source"
	"github.com/ogurasousui/company-registry/internal/core/subscription"
)

const tracerName = "github.com/ogurasousui/company-registry/internal/core/refresh"

// Outcome は一件の再取得サイクルの結果です。Err が非 nil の場合、ストアには触れていません。
type Outcome struct {
	Code    string
	Record  *company.Record
	Changed bool
	Created bool
	Err     *source.FetchError
}

// AdapterLookup は source 名から Adapter を解決します。
type AdapterLookup interface {
	Get(name string) (source.Adapter, error)
}

// SubscriberNotifier は変更された会社の購読者へ通知します。
type SubscriberNotifier interface {
	NotifySubscribers(ctx context.Context, companyID string) (subscription.DeliveryReport, error)
}

// Metrics は再取得の計測点です。
type Metrics interface {
	ObserveRefresh(sourceName, result string)
	ObserveFetchError(sourceName string, kind source.Kind)
	ObserveSweep(sourceName string, elapsed time.Duration, report SweepReport)
}

// Result labels for Metrics.ObserveRefresh.
const (
	ResultCreated   = "created"
	ResultChanged   = "changed"
	ResultUnchanged = "unchanged"
	ResultFailed    = "failed"
)

// Orchestrator は再取得サイクルを実行します。
type Orchestrator struct {
	adapters    AdapterLookup
	companies   company.Repository
	tx          company.TransactionManager
	notifier    SubscriberNotifier
	clock       company.Clock
	logger      *slog.Logger
	metrics     Metrics
	tracer      trace.Tracer
	itemTimeout time.Duration
}

// Option は Orchestrator の任意設定です。
type Option func(*Orchestrator)

func WithNotifier(n SubscriberNotifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithClock(clock company.Clock) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithItemTimeout は一括再取得における一件あたりの上限時間です。0 以下なら上限を設けません。
func WithItemTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.itemTimeout = d }
}

// New は Orchestrator を生成します。
func New(adapters AdapterLookup, companies company.Repository, tx company.TransactionManager, opts ...Option) *Orchestrator {
	if tx == nil {
		tx = company.NoopTransactionManager{}
	}
	o := &Orchestrator{
		adapters:  adapters,
		companies: companies,
		tx:        tx,
		clock:     company.RealClock{},
		logger:    slog.New(slog.DiscardHandler),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RefreshOne は code のレコードを取得し、保存済みの値と異なる場合のみ書き込みます。
// 取得はトランザクションの外で行い、取得に失敗した場合は Outcome.Err を設定してストアには触れません。
// 返却エラーはトランザクションやコンテキストの失敗など、取得以外の失敗に限られます。
func (o *Orchestrator) RefreshOne(ctx context.Context, code, sourceName string) (Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "refresh.RefreshOne", trace.WithAttributes(
		attribute.String("registry.code", code),
		attribute.String("registry.source", sourceName),
	))
	defer span.End()

	out, err := o.refreshOne(ctx, code, sourceName)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.observeRefresh(sourceName, ResultFailed)
	case out.Err != nil:
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Kind.String())
		o.observeRefresh(sourceName, ResultFailed)
		if o.metrics != nil {
			o.metrics.ObserveFetchError(sourceName, out.Err.Kind)
		}
	default:
		span.SetAttributes(attribute.Bool("registry.changed", out.Changed), attribute.Bool("registry.created", out.Created))
		o.observeRefresh(sourceName, resultLabel(out))
	}
	return out, err
}

func (o *Orchestrator) refreshOne(ctx context.Context, code, sourceName string) (Outcome, error) {
	adapter, err := o.adapters.Get(sourceName)
	if err != nil {
		return Outcome{}, err
	}

	fetched, err := adapter.Fetch(ctx, code)
	if err != nil {
		fe, ok := source.AsFetchError(err)
		if !ok {
			fe = source.Unreachable(sourceName, code, err)
		}
		return Outcome{Code: code, Err: fe}, nil
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	fetched.Code = code

	out, err := o.persist(ctx, fetched)
	if errors.Is(err, company.ErrCodeAlreadyExists) {
		// 並行した初回取得が先に挿入した場合は、既存行への更新としてやり直します。
		out, err = o.persist(ctx, fetched)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("refresh: persist %s: %w", code, err)
	}
	return out, nil
}

func (o *Orchestrator) persist(ctx context.Context, fetched *company.Record) (Outcome, error) {
	out := Outcome{Code: fetched.Code}
	err := o.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := o.companies.FindByCodeForUpdate(txCtx, fetched.Code)
		if err != nil && !errors.Is(err, company.ErrCompanyNotFound) {
			return err
		}

		now := o.clock.Now()
		if current == nil {
			rec := fetched.Clone()
			rec.ID = ""
			rec.LastUpdated = now
			rec.CreatedAt = now
			created, err := o.companies.Create(txCtx, rec)
			if err != nil {
				return err
			}
			out.Record, out.Changed, out.Created = created, true, true
			return nil
		}

		fields := company.ChangedFields(current, fetched)
		if len(fields) == 0 {
			out.Record = current
			return nil
		}

		lastUpdated := now
		if lastUpdated.Before(current.LastUpdated) {
			lastUpdated = current.LastUpdated
		}
		next := fetched.Clone()
		next.ID = current.ID
		updated, err := o.companies.UpdateFields(txCtx, next, fields, lastUpdated)
		if err != nil {
			return err
		}
		out.Record, out.Changed = updated, true
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// Refresh は RefreshOne を実行し、既存レコードが変更された場合に購読者へ通知します。
// 初回作成時は通知しません。通知の失敗はログに残すのみで、コミット済みの変更は取り消しません。
func (o *Orchestrator) Refresh(ctx context.Context, code, sourceName string) (Outcome, error) {
	out, err := o.RefreshOne(ctx, code, sourceName)
	if err != nil || out.Err != nil {
		return out, err
	}

	switch {
	case out.Created:
		o.logger.InfoContext(ctx, "company record created", "code", code, "source", sourceName, "company_id", out.Record.ID)
	case out.Changed:
		o.logger.InfoContext(ctx, "company record changed", "code", code, "source", sourceName, "company_id", out.Record.ID)
		o.notify(ctx, out.Record)
	}
	return out, nil
}

func (o *Orchestrator) notify(ctx context.Context, record *company.Record) {
	if o.notifier == nil {
		return
	}
	// 変更はコミット済みなので、呼び出し元のキャンセルに関わらず通知を試みます。
	notifyCtx := context.WithoutCancel(ctx)
	if _, err := o.notifier.NotifySubscribers(notifyCtx, record.ID); err != nil {
		o.logger.ErrorContext(ctx, "notify subscribers failed", "code", record.Code, "company_id", record.ID, "err", err)
	}
}

func (o *Orchestrator) observeRefresh(sourceName, result string) {
	if o.metrics != nil {
		o.metrics.ObserveRefresh(sourceName, result)
	}
}

func resultLabel(out Outcome) string {
	switch {
	case out.Created:
		return ResultCreated
	case out.Changed:
		return ResultChanged
	default:
		return ResultUnchanged
	}
}
