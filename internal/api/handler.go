// Package api exposes the pipeline to operators over HTTP JSON and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/madigan/contentpipe/internal/content"
	"github.com/madigan/contentpipe/internal/pipeline"
	"github.com/madigan/contentpipe/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds the handler's dependencies.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Token        string
}

// NewHandler builds the management router. Every route except /health
// requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/jobs", handleListJobs(deps))
		r.Post("/jobs", handleCreateJob(deps))
		r.Post("/jobs/auto-generate", handleAutoGenerate(deps))
		r.Get("/jobs/{id}", handleGetJob(deps))
		r.Post("/jobs/{id}/advance", handleAdvanceJob(deps))
		r.Patch("/jobs/{id}", handlePatchJob(deps))
		r.Delete("/jobs/{id}", handleDeleteJob(deps))
		r.Get("/opportunities", handleListOpportunities(deps))
		r.Get("/status", handleStatus(deps))
	})

	return r
}

func handleListJobs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := deps.Orchestrator.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if jobs == nil {
			jobs = []content.ContentJob{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

type createJobRequest struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
	// Advance starts the pipeline immediately after creation.
	Advance bool `json:"advance"`
}

func handleCreateJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createJobRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Keyword == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "keyword is required")
			return
		}

		job, err := deps.Orchestrator.Create(r.Context(), req.Keyword, content.Category(req.Category))
		if err != nil {
			writeError(w, err)
			return
		}
		if req.Advance {
			job, err = deps.Orchestrator.Advance(r.Context(), job.ID)
			if err != nil {
				writeError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusCreated, job)
	}
}

type autoGenerateRequest struct {
	Count int `json:"count"`
}

func handleAutoGenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req autoGenerateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Count <= 0 {
			req.Count = 1
		}

		jobs, err := deps.Orchestrator.AutoGenerate(r.Context(), req.Count)
		if err != nil {
			writeError(w, err)
			return
		}
		if jobs == nil {
			jobs = []content.ContentJob{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Orchestrator.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleAdvanceJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Orchestrator.Advance(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

type patchJobRequest struct {
	Action  string                `json:"action"`
	Updates *pipeline.PostUpdates `json:"updates"`
}

func handlePatchJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req patchJobRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var (
			job content.ContentJob
			err error
		)
		switch req.Action {
		case "publish":
			job, err = deps.Orchestrator.Publish(r.Context(), id)
		case "update":
			if req.Updates == nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "updates is required for action update")
				return
			}
			job, err = deps.Orchestrator.UpdatePost(r.Context(), id, *req.Updates)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown action %q", req.Action)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleDeleteJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Orchestrator.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleListOpportunities(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opps, err := deps.Orchestrator.Opportunities(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if opps == nil {
			opps = []content.KeywordOpportunity{}
		}
		writeJSON(w, http.StatusOK, opps)
	}
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := deps.Orchestrator.Status(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP statuses: missing records to
// 404, precondition violations to 409, everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.Is(err, pipeline.ErrInvalidState):
		httpError(w, http.StatusConflict, "invalid_operation_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
