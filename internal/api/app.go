package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/think/internal/criteria"
	"github.com/kalambet/think/internal/evaluation"
	"github.com/kalambet/think/internal/export"
	"github.com/kalambet/think/internal/session"
	"github.com/kalambet/think/internal/storage"
)

// EvaluateRequest is the body of POST /evaluations. Text may be empty.
type EvaluateRequest struct {
	Text     string       `json:"text"`
	Criteria criteria.Set `json:"criteria"`
}

// UnmarshalJSON requires criteria to carry exactly the five keys.
func (req *EvaluateRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text     string          `json:"text"`
		Criteria json.RawMessage `json:"criteria"`
	}
	if err := decodeStrict(data, &raw); err != nil {
		return err
	}
	c, err := parseCriteria(raw.Criteria)
	if err != nil {
		return err
	}
	req.Text, req.Criteria = raw.Text, c
	return nil
}

// ScoreRequest is the body of POST /score.
type ScoreRequest struct {
	Criteria criteria.Set `json:"criteria"`
}

// UnmarshalJSON requires criteria to carry exactly the five keys.
func (req *ScoreRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Criteria json.RawMessage `json:"criteria"`
	}
	if err := decodeStrict(data, &raw); err != nil {
		return err
	}
	c, err := parseCriteria(raw.Criteria)
	if err != nil {
		return err
	}
	req.Criteria = c
	return nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseCriteria(raw json.RawMessage) (criteria.Set, error) {
	if len(raw) == 0 {
		return criteria.Set{}, errors.New("criteria is required")
	}
	return criteria.ParseSet(raw)
}

// SessionRequest is the body of POST /session.
type SessionRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SessionPatch is the body of PATCH /session. Omitted fields are left alone.
type SessionPatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// StateReader reports when a persisted blob was last written.
// Implemented by storage.Store.
type StateReader interface {
	StateUpdatedAt(key string) (time.Time, error)
}

type AppDeps struct {
	Evaluations *evaluation.Store
	Sessions    *session.Manager
	State       StateReader // optional; reports last_saved on /status
	Token       string
	Metrics     http.Handler // optional; served unauthenticated at /metrics
}

// NewAppHandler returns the local REST API. Everything except /health and
// /metrics requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/evaluations", handleCreateEvaluation(deps))
		r.Get("/evaluations", handleListEvaluations(deps))
		r.Get("/evaluations/deletion-summary", handleDeletionSummary(deps))
		r.Post("/evaluations/clear", handleClearEvaluations(deps))
		r.Get("/evaluations/{id}", handleGetEvaluation(deps))
		r.Delete("/evaluations/{id}", handleDeleteEvaluation(deps))

		r.Post("/score", handleScore)
		r.Get("/stats", handleStats(deps))
		r.Get("/progression", handleProgression(deps))

		r.Get("/status", handleStatus(deps))
		r.Get("/export", handleExport(deps))

		r.Get("/session", handleGetSession(deps))
		r.Post("/session", handleCreateSession(deps))
		r.Patch("/session", handlePatchSession(deps))
	})

	return r
}

func handleCreateEvaluation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EvaluateRequest
		if err := decodeBody(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		e := deps.Evaluations.Save(req.Text, req.Criteria)
		writeJSON(w, http.StatusCreated, newEvaluationView(e))
	}
}

func handleListEvaluations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := deps.Evaluations.Load()
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", raw)
				return
			}
			if n > 0 && n < len(list) {
				list = list[:n]
			}
		}
		writeJSON(w, http.StatusOK, newEvaluationViews(list))
	}
}

func handleGetEvaluation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := deps.Evaluations.Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "evaluation not found")
			return
		}
		writeJSON(w, http.StatusOK, newEvaluationView(e))
	}
}

func handleDeleteEvaluation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		switch out := deps.Evaluations.Delete(id); out {
		case evaluation.NotFound:
			httpError(w, http.StatusNotFound, "not_found", "evaluation not found")
		case evaluation.Protected:
			e, _ := deps.Evaluations.Get(id)
			writeJSON(w, http.StatusOK, map[string]any{
				"status":       out.String(),
				"deletable_at": newEvaluationView(e).DeletableAt,
			})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": out.String()})
		}
	}
}

func handleDeletionSummary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Evaluations.DeletionSummary())
	}
}

func handleClearEvaluations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Evaluations.ClearDeletable())
	}
}

func handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, newScoreView(req.Criteria))
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, newStatsView(deps.Evaluations))
	}
}

func handleProgression(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, newProgressionView(deps.Evaluations.Progression()))
	}
}

func handleGetSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.GetSession()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get session: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session":             s,
			"onboarding_complete": s.OnboardingComplete(),
		})
	}
}

func handleCreateSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionRequest
		if err := decodeBody(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		s, err := deps.Sessions.CreateSession(req.Name, req.Email)
		if errors.Is(err, session.ErrNameRequired) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create session: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"session":             s,
			"onboarding_complete": true,
		})
	}
}

func handlePatchSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionPatch
		if err := decodeBody(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Name == nil && req.Email == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "nothing to update: set name or email")
			return
		}

		for _, f := range []struct {
			key   string
			value *string
		}{
			{session.KeyName, req.Name},
			{session.KeyEmail, req.Email},
		} {
			if f.value == nil {
				continue
			}
			err := deps.Sessions.SetField(f.key, *f.value)
			if errors.Is(err, session.ErrNameRequired) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to update session: %v", err)
				return
			}
		}

		handleGetSession(deps)(w, r)
	}
}

func handleStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum := deps.Evaluations.DeletionSummary()
		resp := map[string]any{
			"evaluations": len(deps.Evaluations.Load()),
			"protected":   sum.Protected,
			"deletable":   sum.Deletable,
			"streak":      deps.Evaluations.Progression().ConsecutiveDays,
			"last_saved":  nil,
		}
		if deps.State != nil {
			t, err := deps.State.StateUpdatedAt(evaluation.EvaluationsKey)
			switch {
			case err == nil:
				resp["last_saved"] = t.UTC()
			case !errors.Is(err, storage.ErrNotFound):
				httpError(w, http.StatusInternalServerError, "api_error", "failed to read state: %v", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		doc := export.Document{
			ExportedAt:  time.Now().UTC(),
			Evaluations: deps.Evaluations.Load(),
			Progression: deps.Evaluations.Progression(),
		}
		w.Header().Set("Content-Type", f.ContentType())
		if err := export.Write(w, f, doc); err != nil {
			slog.Error("export failed", "format", f, "error", err)
		}
	}
}
