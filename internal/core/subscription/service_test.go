package subscription_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ogurasousui/company-registry/internal/adapters/repository/memory"
	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/subscription"
	"github.com/ogurasousui/company-registry/internal/core/user"
)

type recordingNotifier struct {
	mu     sync.Mutex
	sent   []subscription.Message
	failTo map[string]bool
}

func (n *recordingNotifier) Send(_ context.Context, msg subscription.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failTo[msg.Recipient] {
		return errors.New("mailbox unavailable")
	}
	n.sent = append(n.sent, msg)
	return nil
}

type countingMetrics struct {
	delivered, failed int
}

func (m *countingMetrics) ObserveNotification(delivered bool) {
	if delivered {
		m.delivered++
		return
	}
	m.failed++
}

type fixture struct {
	store    *memory.Store
	svc      *subscription.Service
	notifier *recordingNotifier
	metrics  *countingMetrics
	company  *company.Record
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	name := "Acme LLC"
	rec, err := store.Companies().Create(context.Background(), &company.Record{Code: "12345", Name: &name, LastUpdated: time.Now()})
	if err != nil {
		t.Fatalf("seed company: %v", err)
	}

	notifier := &recordingNotifier{failTo: map[string]bool{}}
	metrics := &countingMetrics{}
	svc := subscription.NewService(store.Subscriptions(), store.Companies(), store.Users(), notifier,
		subscription.WithTransactionManager(store.TransactionManager()),
		subscription.WithMetrics(metrics),
	)
	return &fixture{store: store, svc: svc, notifier: notifier, metrics: metrics, company: rec}
}

func (f *fixture) addUser(t *testing.T, email, name string) *user.User {
	t.Helper()
	u, err := f.store.Users().Create(context.Background(), &user.User{Email: email, Name: name})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestService_Subscribe_Uniqueness(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "Alice")
	ctx := context.Background()

	if _, err := f.svc.Subscribe(ctx, u.ID, "12345"); err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	if _, err := f.svc.Subscribe(ctx, u.ID, " 12345 "); !errors.Is(err, subscription.ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}

	if err := f.svc.Unsubscribe(ctx, u.ID, "12345"); err != nil {
		t.Fatalf("Unsubscribe returned error: %v", err)
	}
	if _, err := f.svc.Subscribe(ctx, u.ID, "12345"); err != nil {
		t.Fatalf("resubscribe returned error: %v", err)
	}
	if _, err := f.svc.Subscribe(ctx, u.ID, "12345"); !errors.Is(err, subscription.ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed after resubscribe, got %v", err)
	}

	subs, err := f.store.Subscriptions().SubscribersOf(ctx, f.company.ID)
	if err != nil {
		t.Fatalf("SubscribersOf returned error: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected exactly one subscription, got %d", len(subs))
	}
}

func TestService_Subscribe_Concurrent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "Alice")

	const attempts = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Subscribe(context.Background(), u.ID, "12345")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, subscription.ErrAlreadySubscribed):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || dupes != attempts-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d and %d", attempts-1, successes, dupes)
	}
}

func TestService_Subscribe_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	u := f.addUser(t, "alice@example.com", "Alice")
	ctx := context.Background()

	if _, err := f.svc.Subscribe(ctx, u.ID, "00000"); !errors.Is(err, company.ErrCompanyNotFound) {
		t.Fatalf("expected ErrCompanyNotFound, got %v", err)
	}
	if _, err := f.svc.Subscribe(ctx, "missing-user", "12345"); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := f.svc.Subscribe(ctx, u.ID, "bad code"); !errors.Is(err, company.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if err := f.svc.Unsubscribe(ctx, u.ID, "12345"); !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
	if err := f.svc.Unsubscribe(ctx, u.ID, "00000"); !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound for unknown company, got %v", err)
	}
}

func TestService_NotifySubscribers_RendersMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.addUser(t, "alice@example.com", "Alice")
	ctx := context.Background()
	if _, err := f.svc.Subscribe(ctx, alice.ID, "12345"); err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}

	report, err := f.svc.NotifySubscribers(ctx, f.company.ID)
	if err != nil {
		t.Fatalf("NotifySubscribers returned error: %v", err)
	}
	if report != (subscription.DeliveryReport{Recipients: 1, Delivered: 1}) {
		t.Fatalf("unexpected report %+v", report)
	}

	msg := f.notifier.sent[0]
	if msg.Recipient != "alice@example.com" || msg.Subject != subscription.Subject {
		t.Fatalf("unexpected message header %+v", msg)
	}
	if !strings.Contains(msg.Body, "Hello Alice,") || !strings.Contains(msg.Body, "Acme LLC") {
		t.Fatalf("unexpected body %q", msg.Body)
	}
	if msg.CompanyCode != "12345" || msg.CompanyID != f.company.ID {
		t.Fatalf("unexpected company reference %+v", msg)
	}
}

func TestService_NotifySubscribers_IsolatesFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	emails := []string{"a@example.com", "b@example.com", "c@example.com"}
	for _, email := range emails {
		u := f.addUser(t, email, "")
		if _, err := f.svc.Subscribe(ctx, u.ID, "12345"); err != nil {
			t.Fatalf("Subscribe returned error: %v", err)
		}
	}
	f.notifier.failTo["b@example.com"] = true

	report, err := f.svc.NotifySubscribers(ctx, f.company.ID)
	if err != nil {
		t.Fatalf("NotifySubscribers returned error: %v", err)
	}
	if report.Recipients != 3 || report.Delivered != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(f.notifier.sent) != 2 || f.notifier.sent[1].Recipient != "c@example.com" {
		t.Fatalf("expected delivery to continue after failure, sent %v", f.notifier.sent)
	}
	if !strings.Contains(f.notifier.sent[0].Body, "Hello a@example.com,") {
		t.Fatalf("expected email fallback for empty name, got %q", f.notifier.sent[0].Body)
	}
	if f.metrics.delivered != 2 || f.metrics.failed != 1 {
		t.Fatalf("unexpected metrics %+v", f.metrics)
	}
}

func TestService_NotifySubscribers_MissingCompanyIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	report, err := f.svc.NotifySubscribers(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report != (subscription.DeliveryReport{}) || len(f.notifier.sent) != 0 {
		t.Fatalf("expected no deliveries, got %+v", report)
	}
}

func TestService_NotifySubscribers_NoSubscribers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	report, err := f.svc.NotifySubscribers(context.Background(), f.company.ID)
	if err != nil {
		t.Fatalf("NotifySubscribers returned error: %v", err)
	}
	if report.Recipients != 0 || len(f.notifier.sent) != 0 {
		t.Fatalf("unexpected deliveries %+v", report)
	}
}
