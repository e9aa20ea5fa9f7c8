package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/source"
)

// SweepReport は一括再取得の集計です。
type SweepReport struct {
	Total     int
	Created   int
	Changed   int
	Unchanged int
	Failed    int
}

// RefreshAll は last_updated が stalenessThreshold 以上古いレコードを古い順に一件ずつ再取得します。
// 一件の失敗はログに残して次のレコードへ進みます。ctx がキャンセルされた場合はその時点で中断します。
func (o *Orchestrator) RefreshAll(ctx context.Context, sourceName string, stalenessThreshold time.Duration) (SweepReport, error) {
	sweepID := uuid.NewString()
	ctx, span := o.tracer.Start(ctx, "refresh.RefreshAll", trace.WithAttributes(
		attribute.String("registry.source", sourceName),
		attribute.String("registry.sweep_id", sweepID),
	))
	defer span.End()

	logger := o.logger.With("sweep_id", sweepID, "source", sourceName)
	started := o.clock.Now()
	cutoff := started.Add(-stalenessThreshold)

	var stale []*company.Record
	err := o.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		var err error
		stale, err = o.companies.FindOlderThan(txCtx, cutoff)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return SweepReport{}, err
	}

	report := SweepReport{Total: len(stale)}
	logger.InfoContext(ctx, "sweep started", "stale", report.Total, "cutoff", cutoff)

	for _, rec := range stale {
		if err := ctx.Err(); err != nil {
			logger.WarnContext(ctx, "sweep cancelled", "processed", processed(report))
			return report, err
		}

		out, err := o.refreshItem(ctx, rec.Code, sourceName)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				logger.WarnContext(ctx, "sweep cancelled", "processed", processed(report))
				return report, ctx.Err()
			}
			report.Failed++
			logger.ErrorContext(ctx, "refresh failed", "code", rec.Code, "err", err)
		case out.Err != nil:
			report.Failed++
			logger.WarnContext(ctx, "fetch failed", "code", rec.Code, "kind", out.Err.Kind.String(), "err", out.Err)
		case out.Created:
			report.Created++
		case out.Changed:
			report.Changed++
		default:
			report.Unchanged++
		}
	}

	elapsed := o.clock.Now().Sub(started)
	span.SetAttributes(
		attribute.Int("registry.sweep.total", report.Total),
		attribute.Int("registry.sweep.changed", report.Changed),
		attribute.Int("registry.sweep.failed", report.Failed),
	)
	if o.metrics != nil {
		o.metrics.ObserveSweep(sourceName, elapsed, report)
	}
	logger.InfoContext(ctx, "sweep finished",
		"total", report.Total, "created", report.Created, "changed", report.Changed,
		"unchanged", report.Unchanged, "failed", report.Failed, "elapsed", elapsed)
	return report, nil
}

// refreshItem は送信枠を確保してから一件あたりの上限時間を開始します。
// 読み取り経路と共有する送信間隔の待ちは上限時間に含めません。
func (o *Orchestrator) refreshItem(ctx context.Context, code, sourceName string) (Outcome, error) {
	if adapter, err := o.adapters.Get(sourceName); err == nil {
		if pacer, ok := adapter.(source.Pacer); ok {
			paced, err := pacer.Pace(ctx)
			if err != nil {
				return Outcome{}, fmt.Errorf("refresh: pace %s: %w", code, err)
			}
			ctx = paced
		}
	}

	if o.itemTimeout <= 0 {
		return o.Refresh(ctx, code, sourceName)
	}
	itemCtx, cancel := context.WithTimeout(ctx, o.itemTimeout)
	defer cancel()
	return o.Refresh(itemCtx, code, sourceName)
}

func processed(r SweepReport) int {
	return r.Created + r.Changed + r.Unchanged + r.Failed
}
