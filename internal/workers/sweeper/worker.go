package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"gopkg.in/tomb.v2"

	"github.com/ogurasousui/company-registry/internal/core/refresh"
)

// Refresher は古いレコードを一括で再取得します。
type Refresher interface {
	RefreshAll(ctx context.Context, sourceName string, stalenessThreshold time.Duration) (refresh.SweepReport, error)
}

// Config は Worker の設定です。
type Config struct {
	Refresher          Refresher
	Clock              clock.Clock
	Logger             *slog.Logger
	SourceName         string
	Interval           time.Duration
	StalenessThreshold time.Duration
	// RunOnStart が true の場合、最初のスイープを待たずに実行します。
	RunOnStart bool
}

// Validate は設定値を検証します。
func (c Config) Validate() error {
	if c.Refresher == nil {
		return errors.New("sweeper: missing refresher")
	}
	if c.Clock == nil {
		return errors.New("sweeper: missing clock")
	}
	if c.SourceName == "" {
		return errors.New("sweeper: missing source name")
	}
	if c.Interval <= 0 {
		return errors.New("sweeper: interval must be positive")
	}
	if c.StalenessThreshold < 0 {
		return errors.New("sweeper: staleness threshold must not be negative")
	}
	return nil
}

// Worker は一定間隔でスイープを実行します。スイープはループ内で同期的に走るため重なりません。
type Worker struct {
	tomb   tomb.Tomb
	cfg    Config
	logger *slog.Logger
}

// New は Worker を生成し、ループを開始します。
func New(cfg Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &Worker{cfg: cfg, logger: logger.With("worker", "sweeper", "source", cfg.SourceName)}
	w.tomb.Go(w.loop)
	return w, nil
}

// Kill はループを停止させます。実行中のスイープはキャンセルされます。
func (w *Worker) Kill() {
	w.tomb.Kill(nil)
}

// Wait はループの終了を待ちます。
func (w *Worker) Wait() error {
	return w.tomb.Wait()
}

func (w *Worker) loop() error {
	initial := w.cfg.Interval
	if w.cfg.RunOnStart {
		initial = 0
	}

	timer := w.cfg.Clock.NewTimer(initial)
	defer timer.Stop()

	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying
		case <-timer.Chan():
			w.sweep()
			timer.Reset(w.cfg.Interval)
		}
	}
}

func (w *Worker) sweep() {
	ctx := w.tomb.Context(context.Background())

	report, err := w.cfg.Refresher.RefreshAll(ctx, w.cfg.SourceName, w.cfg.StalenessThreshold)
	switch {
	case err == nil:
		w.logger.Debug("sweep finished", "total", report.Total, "failed", report.Failed)
	case ctx.Err() != nil:
		w.logger.Info("sweep interrupted", "processed", report.Created+report.Changed+report.Unchanged+report.Failed)
	default:
		// 次の周期で再試行します。
		w.logger.Error("sweep failed", "err", err)
	}
}
