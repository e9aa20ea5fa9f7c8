package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ogurasousui/company-registry/internal/core/refresh"
	"github.com/ogurasousui/company-registry/internal/core/source"
)

// Metrics はレジストリの Prometheus メトリクスを保持します。
// freshness、refresh、subscription の各 Metrics インターフェースを満たします。
type Metrics struct {
	Lookups       *prometheus.CounterVec
	Refreshes     *prometheus.CounterVec
	FetchErrors   *prometheus.CounterVec
	SweepDuration *prometheus.HistogramVec
	SweepItems    *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

// New は reg にメトリクスを登録して返します。
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "company_registry_lookups_total",
			Help: "Read-path lookups by result (hit, miss, stale_served, unavailable)",
		}, []string{"source", "result"}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "company_registry_refreshes_total",
			Help: "Refresh cycles by result (created, changed, unchanged, failed)",
		}, []string{"source", "result"}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "company_registry_fetch_errors_total",
			Help: "Source fetch failures by kind",
		}, []string{"source", "kind"}),
		SweepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "company_registry_sweep_duration_seconds",
			Help:    "Duration of staleness sweeps",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800},
		}, []string{"source"}),
		SweepItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "company_registry_sweep_items_total",
			Help: "Records visited by staleness sweeps by outcome",
		}, []string{"source", "outcome"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "company_registry_notifications_total",
			Help: "Subscriber notifications by delivery result",
		}, []string{"result"}),
	}
}

// ObserveLookup は読み取り経路の結果を記録します。
func (m *Metrics) ObserveLookup(sourceName, result string) {
	m.Lookups.WithLabelValues(sourceName, result).Inc()
}

// ObserveRefresh はリフレッシュ一件の結果を記録します。
func (m *Metrics) ObserveRefresh(sourceName, result string) {
	m.Refreshes.WithLabelValues(sourceName, result).Inc()
}

// ObserveFetchError は取得失敗を種別ごとに記録します。
func (m *Metrics) ObserveFetchError(sourceName string, kind source.Kind) {
	m.FetchErrors.WithLabelValues(sourceName, kind.String()).Inc()
}

// ObserveSweep はスイープの所要時間と件数を記録します。
func (m *Metrics) ObserveSweep(sourceName string, elapsed time.Duration, report refresh.SweepReport) {
	m.SweepDuration.WithLabelValues(sourceName).Observe(elapsed.Seconds())
	m.SweepItems.WithLabelValues(sourceName, refresh.ResultCreated).Add(float64(report.Created))
	m.SweepItems.WithLabelValues(sourceName, refresh.ResultChanged).Add(float64(report.Changed))
	m.SweepItems.WithLabelValues(sourceName, refresh.ResultUnchanged).Add(float64(report.Unchanged))
	m.SweepItems.WithLabelValues(sourceName, refresh.ResultFailed).Add(float64(report.Failed))
}

// ObserveNotification は通知の配信結果を記録します。
func (m *Metrics) ObserveNotification(delivered bool) {
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	m.Notifications.WithLabelValues(result).Inc()
}
