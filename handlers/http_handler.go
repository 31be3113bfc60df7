// Package handlers provides HTTP request handlers for the interactions API endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/giygas/interactions-api/interactions"
	"github.com/giygas/interactions-api/interactions/entities"
	"github.com/giygas/interactions-api/interfaces"
	"github.com/giygas/interactions-api/logging"
	"github.com/giygas/interactions-api/profile"
	"github.com/giygas/interactions-api/scheduler"
	"github.com/giygas/interactions-api/validation"
)

// retryAfterSeconds is advertised when an upstream service failed
const retryAfterSeconds = 30

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	checker   *interactions.Checker
	profiles  *profile.Manager
	refresher interfaces.Refresher
	health    interfaces.HealthChecker
	validator *validation.InputValidator
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(checker *interactions.Checker, profiles *profile.Manager, refresher interfaces.Refresher, health interfaces.HealthChecker, validator *validation.InputValidator) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		checker:   checker,
		profiles:  profiles,
		refresher: refresher,
		health:    health,
		validator: validator,
	}
}

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// HealthResponse is the body of /health
type HealthResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

type addRequest struct {
	UserHash    string   `json:"userHash"`
	Medications []string `json:"medications"`
	Dosages     []string `json:"dosages"`
	Frequencies []int    `json:"frequencies"`
}

type removeRequest struct {
	UserHash    string   `json:"userHash"`
	Medications []string `json:"medications"`
}

type invalidateResponse struct {
	Key         string `json:"key"`
	Invalidated bool   `json:"invalidated"`
}

type refreshResponse struct {
	entities.RefreshReport
	DurationMS int64 `json:"durationMs"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if w.Header().Get("Last-Modified") == "" {
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Warn("Failed to write response", "error", err)
	}
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	h.RespondWithJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

// respondWithFailure maps an error of the service onto its HTTP answer
func (h *HTTPHandlerImpl) respondWithFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrValidation):
		h.RespondWithError(w, http.StatusBadRequest, err.Error())

	case interactions.IsClientError(err):
		h.RespondWithError(w, http.StatusBadRequest, interactions.Reason(err))

	case interactions.IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
		logging.Warn("Upstream failure", "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		code := http.StatusBadGateway
		if !interactions.IsRetryable(err) {
			code = http.StatusGatewayTimeout
		}
		h.RespondWithJSON(w, code, ErrorResponse{
			Error:     http.StatusText(code),
			Message:   interactions.Reason(err),
			Code:      code,
			Retryable: true,
		})

	case errors.Is(err, profile.ErrProfileNotFound):
		h.RespondWithError(w, http.StatusNotFound, "No medication profile for this user")

	case errors.Is(err, scheduler.ErrRefreshInProgress):
		h.RespondWithError(w, http.StatusConflict, "A refresh is already running")

	case errors.Is(err, context.Canceled):
		// The client went away, nobody reads the answer
		logging.Debug("Request cancelled by client", "path", r.URL.Path)

	default:
		logging.Error("Request failed", "path", r.URL.Path, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// CheckInteractions answers GET /medicationChecker/check?medications=a,b[&userHash=u][&fresh=true]
func (h *HTTPHandlerImpl) CheckInteractions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	names := interactions.ParseMedicationList(query.Get("medications"))
	userHash := query.Get("userHash")

	if len(names) == 0 && userHash == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Missing medications parameter")
		return
	}

	if err := h.validator.ValidateMedicationList(names); err != nil {
		logging.Warn("Unusual user input", "medications", query.Get("medications"))
		h.respondWithFailure(w, r, err)
		return
	}

	if userHash != "" {
		if err := h.validator.ValidateUserHash(userHash); err != nil {
			h.respondWithFailure(w, r, err)
			return
		}
	}

	fresh := false
	if raw := query.Get("fresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.RespondWithError(w, http.StatusBadRequest, "fresh must be a boolean")
			return
		}
		fresh = parsed
	}

	resp, err := h.checker.Check(r.Context(), interactions.CheckRequest{
		Medications: names,
		UserID:      userHash,
		BypassCache: fresh,
	})
	if err != nil {
		h.respondWithFailure(w, r, err)
		return
	}

	w.Header().Set("X-Cache", string(resp.Outcome))
	w.Header().Set("Last-Modified", resp.LastRefreshed.UTC().Format(http.TimeFormat))
	h.RespondWithJSON(w, http.StatusOK, resp)
}

// InvalidateInteractions answers POST /medicationChecker/invalidate?medications=a,b
func (h *HTTPHandlerImpl) InvalidateInteractions(w http.ResponseWriter, r *http.Request) {
	names := interactions.ParseMedicationList(r.URL.Query().Get("medications"))
	if err := h.validator.ValidateMedicationList(names); err != nil {
		h.respondWithFailure(w, r, err)
		return
	}

	set, err := interactions.Normalize(names)
	if err != nil {
		h.respondWithFailure(w, r, err)
		return
	}

	invalidated, err := h.checker.Cache().Invalidate(r.Context(), set)
	if err != nil {
		h.respondWithFailure(w, r, err)
		return
	}

	logging.Info("Interaction row invalidated", "key", set.Key(), "found", invalidated)
	h.RespondWithJSON(w, http.StatusOK, invalidateResponse{Key: set.Key(), Invalidated: invalidated})
}

// AddMedications answers POST /medicationChecker/add
func (h *HTTPHandlerImpl) AddMedications(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.validator.ValidateUserHash(req.UserHash); err != nil {
		h.respondWithFailure(w, r, err)
		return
	}
	if len(req.Medications) == 0 {
		h.RespondWithError(w, http.StatusBadRequest, "medications cannot be empty")
		return
	}
	if (req.Dosages != nil && len(req.Dosages) != len(req.Medications)) ||
		(req.Frequencies != nil && len(req.Frequencies) != len(req.Medications)) {
		h.RespondWithError(w, http.StatusBadRequest, "dosages and frequencies must match medications in length")
		return
	}

	entries := make([]entities.MedicationEntry, 0, len(req.Medications))
	for i, name := range req.Medications {
		entry := entities.MedicationEntry{Name: name}
		if req.Dosages != nil {
			entry.Dosage = req.Dosages[i]
		}
		if req.Frequencies != nil {
			entry.Frequency = req.Frequencies[i]
		}

		if err := h.validator.ValidateMedicationName(entry.Name); err != nil {
			h.respondWithFailure(w, r, err)
			return
		}
		if err := h.validator.ValidateDosage(entry.Dosage); err != nil {
			h.respondWithFailure(w, r, err)
			return
		}
		if err := h.validator.ValidateFrequency(entry.Frequency); err != nil {
			h.respondWithFailure(w, r, err)
			return
		}
		entries = append(entries, entry)
	}

	p, err := h.profiles.AddMany(r.Context(), req.UserHash, entries)
	if err != nil {
		h.respondWithFailure(w, r, err)
		return
	}
	h.RespondWithJSON(w, http.StatusOK, p)
}

// RemoveMedications answers POST /medicationChecker/remove
func (h *HTTPHandlerImpl) RemoveMedications(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.validator.ValidateUserHash(req.UserHash); err != nil {
		h.respondWithFailure(w, r, err)
		return
	}
	if len(req.Medications) == 0 {
		h.RespondWithError(w, http.StatusBadRequest, "medications cannot be empty")
		return
	}

	p, err := h.profiles.Remove(r.Context(), req.UserHash, req.Medications)
	if err != nil {
		h.respondWithFailure(w, r, err)
		return
	}
	h.RespondWithJSON(w, http.StatusOK, p)
}

// LoadProfile answers GET /medicationChecker/load?userHash=u
func (h *HTTPHandlerImpl) LoadProfile(w http.ResponseWriter, r *http.Request) {
	userHash := r.URL.Query().Get("userHash")
	if err := h.validator.ValidateUserHash(userHash); err != nil {
		h.respondWithFailure(w, r, err)
		return
	}

	p, err := h.profiles.Load(r.Context(), userHash)
	if err != nil {
		h.respondWithFailure(w, r, err)
		return
	}
	h.RespondWithJSON(w, http.StatusOK, p)
}

// RunWeeklyTasks answers POST /weeklyTasks/runAll by running a full refresh.
// The run is not tied to the client connection.
func (h *HTTPHandlerImpl) RunWeeklyTasks(w http.ResponseWriter, r *http.Request) {
	report, err := h.refresher.RefreshAll(context.WithoutCancel(r.Context()))
	if err != nil {
		h.respondWithFailure(w, r, err)
		return
	}
	h.RespondWithJSON(w, http.StatusOK, refreshResponse{
		RefreshReport: report,
		DurationMS:    report.Duration.Milliseconds(),
	})
}

// HealthCheck returns service health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.health.HealthCheck(r.Context())
	h.RespondWithJSON(w, httpStatus, HealthResponse{Status: status, Data: data})
}
