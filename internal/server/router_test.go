package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/groundworklabs/groundwork/internal/cache"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create users table: %v", err)
	}
	return db
}

func newTestCacheForRouter(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewWithClient(cache.Config{Prefix: "test:", DefaultTTL: time.Minute}, client)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func TestHealthz(t *testing.T) {
	h := NewRouter(RouterConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestReadyzReportsDependencyFailure(t *testing.T) {
	h := NewRouter(RouterConfig{DB: okPinger{}, Cache: failingPinger{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["database"] != "ok" {
		t.Errorf("expected database ok, got %q", body["database"])
	}
	if body["cache"] == "ok" {
		t.Error("expected cache failure to be reported")
	}
}

func TestReadyzAllHealthy(t *testing.T) {
	h := NewRouter(RouterConfig{DB: okPinger{}, Cache: okPinger{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", rec.Code)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	db := newTestDB(t)
	store := NewUserStore(db, "sqlite", newTestCacheForRouter(t))
	h := NewRouter(RouterConfig{Users: store})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"email":"ada@example.com"}`))
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created User
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if created.ID == 0 || created.Email != "ada@example.com" {
		t.Errorf("unexpected user %+v", created)
	}

	// First read hits the database and fills the cache; second is served from
	// cache. Both must return the same record.
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/1", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("get status = %d (read %d)", rec.Code, i)
		}
		var got User
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.ID != created.ID || got.Email != created.Email {
			t.Errorf("read %d: got %+v, want %+v", i, got, created)
		}
	}
}

func TestGetUserValidation(t *testing.T) {
	db := newTestDB(t)
	store := NewUserStore(db, "sqlite", nil)
	h := NewRouter(RouterConfig{Users: store})

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{"not found", "/api/users/999", http.StatusNotFound},
		{"bad id", "/api/users/abc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func TestCreateUserValidation(t *testing.T) {
	db := newTestDB(t)
	store := NewUserStore(db, "sqlite", nil)
	h := NewRouter(RouterConfig{Users: store})

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing email", `{}`, http.StatusUnprocessableEntity},
		{"not an email", `{"email":"nope"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(tc.body))
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}
