// Package api exposes the campaign store over HTTP and MCP.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/voicecheck/internal/campaign"
	"github.com/kalambet/voicecheck/internal/contacts"
	"github.com/kalambet/voicecheck/internal/storage"
	"github.com/kalambet/voicecheck/internal/worker"
)

const (
	maxJSONBodySize = 1 << 20  // 1MB
	maxCSVBodySize  = 10 << 20 // 10MB

	defaultJobLimit = 20
	maxJobLimit     = 200
)

type AppDeps struct {
	Store  *storage.Store
	Token  string
	Logger *slog.Logger
}

// NewHandler returns the management API. Everything except /health needs
// the bearer token.
func NewHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/contacts", handleListContacts(deps))
		r.Post("/contacts", handleAddContacts(deps))
		r.Post("/contacts/import", handleImportContacts(deps))
		r.Get("/contacts/{id}", handleGetContact(deps))

		r.Get("/results", handleListResults(deps))
		r.Get("/results/export", handleExportResults(deps))
		r.Get("/summary", handleSummary(deps))

		r.Get("/recall", handleListRecall(deps))
		r.Post("/recall/requeue", handleRequeue(deps))

		r.Post("/campaigns", handleStartCampaign(deps))
		r.Get("/campaigns", handleListCampaigns(deps))
		r.Get("/campaigns/{id}", handleGetCampaign(deps))
	})

	return r
}

func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if token == "" || !strings.HasPrefix(auth, prefix) ||
				subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="voicecheck"`)
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleListContacts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			list []campaign.Contact
			err  error
		)
		switch status := campaign.Status(r.URL.Query().Get("status")); status {
		case "":
			list, err = deps.Store.AllContacts()
		case campaign.StatusPending, campaign.StatusCompleted:
			list, err = deps.Store.ContactsByStatus(status)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "status must be pending or completed, got %q", status)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list contacts: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(list))
	}
}

// ContactInput is one contact in a POST /contacts body.
type ContactInput struct {
	FamilyName string `json:"family_name"`
	GivenName  string `json:"given_name"`
	Phone      string `json:"phone"`
}

func handleAddContacts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
		defer r.Body.Close()

		var in []ContactInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(in) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one contact is required")
			return
		}

		batch := make([]campaign.Contact, 0, len(in))
		for i, c := range in {
			phone := contacts.NormalizePhone(c.Phone)
			if phone == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "contact %d: phone is required", i)
				return
			}
			batch = append(batch, campaign.Contact{
				FamilyName: strings.TrimSpace(c.FamilyName),
				GivenName:  strings.TrimSpace(c.GivenName),
				Phone:      phone,
			})
		}

		added, err := deps.Store.AddContacts(batch)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add contacts: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, added)
	}
}

func handleImportContacts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxCSVBodySize)
		defer r.Body.Close()

		batch, err := contacts.Import(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid CSV: %v", err)
			return
		}
		if len(batch) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "CSV has no contacts")
			return
		}

		added, err := deps.Store.AddContacts(batch)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add contacts: %v", err)
			return
		}
		deps.Logger.Info("contacts imported", "count", len(added))
		writeJSON(w, http.StatusCreated, map[string]any{
			"imported": len(added),
			"contacts": added,
		})
	}
}

func handleGetContact(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		c, err := deps.Store.GetContact(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "contact %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get contact: %v", err)
			return
		}
		outcomes, err := deps.Store.OutcomesForContact(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list outcomes: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"contact":  c,
			"outcomes": nonNil(outcomes),
		})
	}
}

func handleListResults(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			outcomes []campaign.Outcome
			err      error
		)
		if id := r.URL.Query().Get("contact_id"); id != "" {
			outcomes, err = deps.Store.OutcomesForContact(id)
		} else {
			outcomes, err = deps.Store.AllOutcomes()
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list results: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(outcomes))
	}
}

func handleExportResults(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := deps.Store.AllContacts()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list contacts: %v", err)
			return
		}
		outcomes, err := deps.Store.AllOutcomes()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list results: %v", err)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="voicecheck_results.csv"`)
		if err := contacts.ExportOutcomes(w, outcomes, all); err != nil {
			// Headers are gone; all we can do is log.
			deps.Logger.Error("exporting results", "error", err)
		}
	}
}

func handleSummary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := loadSummary(deps.Store)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute summary: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleListRecall(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		candidates, err := recallCandidates(deps.Store)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to select recall candidates: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(candidates))
	}
}

func handleRequeue(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := requeueCandidates(deps.Store)
		if err != nil {
			deps.Logger.Warn("requeue finished with errors", "requeued", n, "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "requeued %d contacts with errors: %v", n, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"requeued": n})
	}
}

// StartCampaignRequest is the optional body of POST /campaigns.
type StartCampaignRequest struct {
	ContactIDs []string `json:"contact_ids"`
}

func handleStartCampaign(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
		defer r.Body.Close()

		var req StartCampaignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		job, err := enqueueCampaign(deps.Store, req.ContactIDs, "api")
		var unknown *unknownContactError
		switch {
		case errors.As(err, &unknown):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case errors.Is(err, errNothingToCall):
			httpError(w, http.StatusConflict, "conflict", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to start campaign: %v", err)
			return
		}

		deps.Logger.Info("campaign queued", "job_id", job.ID, "contacts", len(req.ContactIDs))
		writeJSON(w, http.StatusAccepted, job)
	}
}

func handleListCampaigns(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultJobLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = min(n, maxJobLimit)
		}
		jobs, err := deps.Store.ListJobs(worker.JobType, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list campaigns: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(jobs))
	}
}

func handleGetCampaign(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		job, err := deps.Store.GetJob(id)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && job.Type != worker.JobType) {
			httpError(w, http.StatusNotFound, "not_found", "campaign %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get campaign: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
