package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/company-registry/internal/core/subscription"
	"github.com/ogurasousui/company-registry/internal/core/user"
	"github.com/ogurasousui/company-registry/internal/platform/config"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []subscription.Message
}

func (n *recordingNotifier) Send(ctx context.Context, msg subscription.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) messages() []subscription.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]subscription.Message(nil), n.sent...)
}

func memoryConfig(baseURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":0"},
		Store:  config.StoreConfig{Driver: config.StoreDriverMemory},
		Registry: config.RegistryConfig{
			Source:             "youcontrol",
			BaseURLs:           map[string]string{"youcontrol": baseURL + "/company/{code}"},
			RequestTimeout:     5 * time.Second,
			StalenessThreshold: time.Hour,
			ReadMaxAge:         time.Hour,
			SweepInterval:      time.Minute,
			SweepItemTimeout:   5 * time.Second,
		},
		Notifier: config.NotifierConfig{Driver: config.NotifierDriverLog},
	}
}

func TestApp_EndToEndMemory(t *testing.T) {
	t.Parallel()

	var (
		name    atomic.Value
		fetches atomic.Int32
	)
	name.Store("Acme LLC")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		if r.URL.Path != "/company/12345" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><body><h1 class="company-name">%s</h1></body></html>`, name.Load())
	}))
	defer srv.Close()

	clock := &manualClock{now: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}

	a, err := New(context.Background(), memoryConfig(srv.URL), nil, WithClock(clock), WithNotifier(notifier))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.Ready(ctx); err != nil {
		t.Fatalf("Ready returned error: %v", err)
	}

	rec, err := a.Cache.GetOrRefresh(ctx, "12345", "youcontrol", time.Hour)
	if err != nil {
		t.Fatalf("GetOrRefresh returned error: %v", err)
	}
	if rec.Name == nil || *rec.Name != "Acme LLC" {
		t.Fatalf("unexpected record %+v", rec)
	}

	u, err := a.Users.CreateUser(ctx, user.CreateUserInput{Email: "alice@example.com", Name: "Alice"})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if _, err := a.Subscriptions.Subscribe(ctx, u.ID, "12345"); err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}

	name.Store("Acme Group")
	clock.Advance(2 * time.Hour)

	report, err := a.Orchestrator.RefreshAll(ctx, "youcontrol", time.Hour)
	if err != nil {
		t.Fatalf("RefreshAll returned error: %v", err)
	}
	if report.Changed != 1 {
		t.Fatalf("expected one changed record, got %+v", report)
	}

	sent := notifier.messages()
	if len(sent) != 1 || sent[0].Recipient != "alice@example.com" || sent[0].CompanyCode != "12345" {
		t.Fatalf("unexpected notifications %+v", sent)
	}

	before := fetches.Load()
	resp, err := a.RegistryHandler().GetCompany(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		"code": structpb.NewStringValue("12345"),
	}})
	if err != nil {
		t.Fatalf("GetCompany returned error: %v", err)
	}
	if got := resp.GetFields()["name"].GetStringValue(); got != "Acme Group" {
		t.Fatalf("unexpected name %q", got)
	}
	if fetches.Load() != before {
		t.Fatal("fresh record must be served without fetching")
	}

	if _, err := a.RegistryHandler().GetCompany(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		"code":      structpb.NewStringValue("12345"),
		"use_cache": structpb.NewBoolValue(false),
	}}); err != nil {
		t.Fatalf("GetCompany without cache returned error: %v", err)
	}
	if fetches.Load() != before+1 {
		t.Fatalf("expected use_cache=false to fetch once, got %d fetches", fetches.Load()-before)
	}
}

func TestNew_UnknownSource(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig("http://127.0.0.1:1")
	cfg.Registry.Source = "edr"

	if _, err := New(context.Background(), cfg, nil, WithNotifier(&recordingNotifier{})); err == nil {
		t.Fatal("expected error for unknown source")
	}
}
