package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/good-yellow-bee/projectdesk/pkg/config"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func get(h http.HandlerFunc) (*httptest.ResponseRecorder, HealthResponse) {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/health", nil))
	var resp HealthResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestHealthAndLive(t *testing.T) {
	h := NewHandler()
	rec, resp := get(h.Health)
	if rec.Code != http.StatusOK || resp.Status != "ok" || resp.Version != config.Version {
		t.Errorf("health = %d %+v", rec.Code, resp)
	}
	rec, resp = get(h.Live)
	if rec.Code != http.StatusOK || resp.Status != "live" {
		t.Errorf("live = %d %+v", rec.Code, resp)
	}
}

func TestReady(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "health.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	h := NewHandler()
	h.RegisterChecker(NewSQLiteChecker(db))
	h.RegisterChecker(NewRedisChecker(fakePinger{}))
	h.RegisterChecker(NewUploadsChecker(func() error { return nil }))

	rec, resp := get(h.Ready)
	if rec.Code != http.StatusOK || resp.Status != "ready" {
		t.Fatalf("ready = %d %+v", rec.Code, resp)
	}
	for _, name := range []string{"sqlite", "redis", "uploads"} {
		if resp.Checks[name] != "ok" {
			t.Errorf("check %s = %q", name, resp.Checks[name])
		}
	}

	h.RegisterChecker(NewRedisChecker(fakePinger{err: errors.New("connection refused")}))
	rec, resp = get(h.Ready)
	if rec.Code != http.StatusServiceUnavailable || resp.Status != "not_ready" {
		t.Errorf("not ready = %d %+v", rec.Code, resp)
	}
}

func TestCheckersWithoutBackends(t *testing.T) {
	ctx := context.Background()
	if err := NewSQLiteChecker(nil).Check(ctx); err == nil {
		t.Error("nil database passed")
	}
	if err := NewRedisChecker(nil).Check(ctx); err == nil {
		t.Error("nil pinger passed")
	}
	if err := NewUploadsChecker(nil).Check(ctx); err == nil {
		t.Error("nil uploads check passed")
	}
}

func TestVersion(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler().Version(rec, httptest.NewRequest("GET", "/health/version", nil))
	var info config.BuildInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil || info.Version != config.Version || info.GoVersion == "" {
		t.Errorf("version = %s, %v", rec.Body.String(), err)
	}
}
