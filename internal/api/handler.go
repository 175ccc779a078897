package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antariksh/spacebot/internal/gateway"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Gateway abstracts the remote question-answering service for the HTTP layer.
type Gateway interface {
	Ask(ctx context.Context, query string) ([]string, error)
	Health(ctx context.Context) (map[string]any, error)
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Gateway Gateway
	Log     *slog.Logger
}

// NewHandler returns the http.Handler for the local host: the embedded
// informational pages plus the /api/chat relay and /api/health.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/", handlePage("index.html"))
	r.Get("/missions", handlePage("missions.html"))
	r.Get("/gallery", handlePage("gallery.html"))
	r.Post("/api/chat", handleChat(deps))
	r.Get("/api/health", handleHealth(deps))

	return r
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			httpError(w, http.StatusBadRequest, "query is required")
			return
		}

		lines, err := deps.Gateway.Ask(r.Context(), req.Query)
		if err != nil {
			var gwErr *gateway.Error
			if errors.As(err, &gwErr) {
				deps.Log.Warn("chat relay failed", "detail", gwErr.Detail)
				httpError(w, http.StatusBadGateway, "%s", gwErr.Detail)
				return
			}
			httpError(w, http.StatusBadGateway, "upstream error: %v", err)
			return
		}

		// A single line is returned as a plain string, matching the
		// upstream contract; multiple lines come back as an array.
		var response any = lines
		if len(lines) == 1 {
			response = lines[0]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"response": response,
			"status":   "success",
		})
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if _, err := deps.Gateway.Health(r.Context()); err != nil {
			deps.Log.Debug("upstream health check failed", "error", err)
			json.NewEncoder(w).Encode(map[string]any{
				"status":   "degraded",
				"upstream": "unreachable",
			})
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"upstream": "reachable",
		})
	}
}

func handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := pagesFS.ReadFile("pages/" + name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	}
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"error":  fmt.Sprintf(format, args...),
		"status": "error",
	})
}
