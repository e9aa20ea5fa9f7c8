package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMemoryConfig(t *testing.T, baseURL string) string {
	t.Helper()

	content := `server:
  listen_addr: ":0"
store:
  driver: memory
registry:
  source: youcontrol
  request_delay: "0s"
  base_urls:
    youcontrol: "` + baseURL + `/company/{code}"
log:
  level: error
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFetchCommand_PrintsRecord(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/company/12345" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body><h1 class="company-name">Acme LLC</h1></body></html>`))
	}))
	defer srv.Close()

	out, err := execute(t, "--config", writeMemoryConfig(t, srv.URL), "fetch", "12345")
	if err != nil {
		t.Fatalf("fetch returned error: %v", err)
	}

	var view map[string]any
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("output is not json: %q: %v", out, err)
	}
	if view["code"] != "12345" || view["name"] != "Acme LLC" {
		t.Fatalf("unexpected view %v", view)
	}
	if v, ok := view["status"]; !ok || v != nil {
		t.Fatalf("expected null status, got %v", v)
	}
}

func TestFetchCommand_UnknownCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := execute(t, "--config", writeMemoryConfig(t, srv.URL), "fetch", "99999")
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestSweepCommand_EmptyStore(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "--config", writeMemoryConfig(t, "http://127.0.0.1:1"), "sweep")
	if err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}
	if !strings.Contains(out, `"Total": 0`) {
		t.Fatalf("unexpected report %q", out)
	}
}

func TestMigrateCommand_RejectsMemoryStore(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "--config", writeMemoryConfig(t, "http://127.0.0.1:1"), "migrate", "up")
	if err == nil {
		t.Fatal("expected error for memory store")
	}
}

func TestMigrateCommand_RejectsUnknownAction(t *testing.T) {
	t.Parallel()

	if _, err := execute(t, "migrate", "sideways"); err == nil {
		t.Fatal("expected error for invalid action")
	}
}

func TestUserAddCommand_RequiresFlags(t *testing.T) {
	t.Parallel()

	if _, err := execute(t, "--config", writeMemoryConfig(t, "http://127.0.0.1:1"), "user", "add", "--email", "a@example.com"); err == nil {
		t.Fatal("expected error for missing --name")
	}
}
