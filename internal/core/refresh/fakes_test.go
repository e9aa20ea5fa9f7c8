package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/source"
	"github.com/ogurasousui/company-registry/internal/core/subscription"
)

const testSource = "youcontrol"

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedAdapter は code ごとに応答を差し替えられる Adapter です。
type scriptedAdapter struct {
	mu      sync.Mutex
	records map[string]*company.Record
	errs    map[string]error
	hook    func(ctx context.Context, code string) error
	calls   map[string]int
}

func newScriptedAdapter() *scriptedAdapter {
	return &scriptedAdapter{
		records: make(map[string]*company.Record),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (a *scriptedAdapter) Name() string { return testSource }

func (a *scriptedAdapter) Fetch(ctx context.Context, code string) (*company.Record, error) {
	a.mu.Lock()
	a.calls[code]++
	hook := a.hook
	rec, err := a.records[code], a.errs[code]
	a.mu.Unlock()

	if hook != nil {
		if hookErr := hook(ctx, code); hookErr != nil {
			return nil, hookErr
		}
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, source.NotFound(testSource, code, nil)
	}
	return rec.Clone(), nil
}

func (a *scriptedAdapter) set(code string, rec *company.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[code] = rec
	delete(a.errs, code)
}

func (a *scriptedAdapter) fail(code string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs[code] = err
}

func (a *scriptedAdapter) callCount(code string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[code]
}

type recordingNotifier struct {
	mu       sync.Mutex
	notified []string
	err      error
}

func (n *recordingNotifier) NotifySubscribers(_ context.Context, companyID string) (subscription.DeliveryReport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, companyID)
	if n.err != nil {
		return subscription.DeliveryReport{}, n.err
	}
	return subscription.DeliveryReport{Recipients: 1, Delivered: 1}, nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notified)
}

// failingRepository は UpdateFields で一部の属性を書き込んだ後に失敗するリポジトリです。
type failingRepository struct {
	company.Repository
	err error
}

func (r *failingRepository) UpdateFields(ctx context.Context, rec *company.Record, fields []company.Field, lastUpdated time.Time) (*company.Record, error) {
	if len(fields) > 0 {
		if _, err := r.Repository.UpdateFields(ctx, rec, fields[:1], lastUpdated); err != nil {
			return nil, err
		}
	}
	return nil, r.err
}

func strPtr(s string) *string { return &s }

func acme(status string) *company.Record {
	return &company.Record{
		Code:         "12345",
		Name:         strPtr("Acme LLC"),
		Status:       strPtr(status),
		LegalForm:    strPtr("LLC"),
		MainActivity: strPtr("62.01 Computer programming"),
	}
}
