package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/groundworklabs/groundwork/internal/logging"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig wires the handlers and their dependencies.
type RouterConfig struct {
	Users      *UserStore
	DB         Pinger
	Cache      Pinger
	Middleware []Middleware
}

// NewRouter builds the scaffold's route table: liveness, readiness and the
// placeholder user resource.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		status := http.StatusOK

		if cfg.DB != nil {
			if err := cfg.DB.Ping(r.Context()); err != nil {
				checks["database"] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				checks["database"] = "ok"
			}
		}
		if cfg.Cache != nil {
			if err := cfg.Cache.Ping(r.Context()); err != nil {
				checks["cache"] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				checks["cache"] = "ok"
			}
		}
		writeJSON(w, status, checks)
	})

	if cfg.Users != nil {
		mux.HandleFunc("POST /api/users", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Email string `json:"email"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			email := strings.TrimSpace(body.Email)
			if email == "" || !strings.Contains(email, "@") {
				writeError(w, http.StatusUnprocessableEntity, "valid email required")
				return
			}

			user, err := cfg.Users.Create(r.Context(), email)
			if err != nil {
				logging.FromContext(r.Context()).Error("create user", "error", err)
				writeError(w, http.StatusInternalServerError, "could not create user")
				return
			}
			writeJSON(w, http.StatusCreated, user)
		})

		mux.HandleFunc("GET /api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "id must be an integer")
				return
			}

			user, err := cfg.Users.Get(r.Context(), id)
			if errors.Is(err, ErrUserNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			if err != nil {
				logging.FromContext(r.Context()).Error("get user", "id", id, "error", err)
				writeError(w, http.StatusInternalServerError, "could not load user")
				return
			}
			writeJSON(w, http.StatusOK, user)
		})
	}

	return Chain(mux, cfg.Middleware...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
