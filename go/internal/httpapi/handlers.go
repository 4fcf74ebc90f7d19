// Package httpapi exposes the draft session operations over JSON HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draftcalc"
	"github.com/mcdev12/draftroom/go/internal/ledger"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/recommend"
	"github.com/mcdev12/draftroom/go/internal/reconcile"
	"github.com/mcdev12/draftroom/go/internal/session"
)

// Handlers binds the session App, reconciliation adapter, and recommendation
// port to HTTP endpoints. The recommender may be nil; its endpoint then
// returns 503.
type Handlers struct {
	app         *session.App
	adapter     *reconcile.Adapter
	recommender recommend.Port
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(app *session.App, adapter *reconcile.Adapter, recommender recommend.Port) *Handlers {
	return &Handlers{
		app:         app,
		adapter:     adapter,
		recommender: recommender,
	}
}

type createSessionBody struct {
	TeamCount   int             `json:"team_count"`
	TotalRounds int             `json:"total_rounds"`
	UserSlot    int             `json:"user_slot"`
	SyncMode    models.SyncMode `json:"sync_mode"`
	Teams       []models.Team   `json:"teams,omitempty"`
}

type pickBody struct {
	Number int           `json:"number"`
	Player models.Player `json:"player"`
	// Optional; defaults to manual. Glue code bridging a live feed over HTTP
	// sets "live" so ahead-of-order picks get buffered.
	Source models.PickSource `json:"source,omitempty"`
}

type syncErrorBody struct {
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleCreateSession creates a session and starts its draft in one call.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.app.CreateSession(r.Context(), session.CreateSessionRequest{
		TeamCount:   body.TeamCount,
		TotalRounds: body.TotalRounds,
		UserSlot:    body.UserSlot,
		SyncMode:    body.SyncMode,
		Teams:       body.Teams,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	started, err := h.app.StartDraft(r.Context(), created.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().
		Str("session_id", started.ID.String()).
		Int("team_count", started.TeamCount).
		Int("total_rounds", started.TotalRounds).
		Str("sync_mode", string(started.SyncMode)).
		Msg("session created and started")

	writeJSON(w, http.StatusCreated, started)
}

// HandleGetSession returns the session snapshot with its confirmed picks.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.app.Snapshot(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HandleSubmitPick records a manual pick for the current slot.
func (h *Handlers) HandleSubmitPick(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var body pickBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source := body.Source
	switch source {
	case models.PickSourceLive, models.PickSourceManual:
	case "":
		source = models.PickSourceManual
	default:
		writeJSONError(w, http.StatusBadRequest, "invalid pick source")
		return
	}

	err := h.adapter.Propose(r.Context(), id, models.PickProposal{
		Number: body.Number,
		Player: body.Player,
		Source: source,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := h.app.Snapshot(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HandleSyncError degrades the session to sync-error.
func (h *Handlers) HandleSyncError(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var body syncErrorBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.adapter.ReportSyncError(r.Context(), id, body.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSyncRecovered restores live sync and drains buffered picks.
func (h *Handlers) HandleSyncRecovered(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.adapter.ReportSyncRecovered(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRecommendations proxies the session snapshot through the
// recommendation port.
func (h *Handlers) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if h.recommender == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no recommendation service configured")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	snapshot, err := h.app.Snapshot(id)
	if err != nil {
		writeError(w, err)
		return
	}

	players, err := h.recommender.Recommend(r.Context(), snapshot, limit)
	if err != nil {
		log.Error().Err(err).Str("session_id", id.String()).Msg("recommendation request failed")
		writeJSONError(w, http.StatusBadGateway, "recommendation service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"players": players})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, draftcalc.ErrInvalidConfig):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrAlreadyStarted),
		errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrSessionCompleted),
		errors.Is(err, session.ErrStaleProposal),
		errors.Is(err, ledger.ErrOutOfSequence),
		errors.Is(err, ledger.ErrDuplicatePlayer),
		errors.Is(err, reconcile.ErrPendingOverflow):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("internal error")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
