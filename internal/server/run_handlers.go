package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/groverq/internal/quantum"
	"github.com/aristath/groverq/internal/reliability"
	"github.com/aristath/groverq/internal/runs"
)

// maxActions bounds the action counts accepted by the iteration endpoint.
const maxActions = 1 << 20

// RunHandlers serves the run API
type RunHandlers struct {
	service  *runs.Service
	archiver *reliability.RunArchiver
	defaults runs.Request
	log      zerolog.Logger
}

// NewRunHandlers creates run handlers. Request bodies of POST /api/runs are
// decoded over defaults, so omitted fields keep their configured values.
func NewRunHandlers(service *runs.Service, archiver *reliability.RunArchiver, defaults runs.Request, log zerolog.Logger) *RunHandlers {
	return &RunHandlers{
		service:  service,
		archiver: archiver,
		defaults: defaults,
		log:      log.With().Str("handler", "runs").Logger(),
	}
}

// HandleCreateRun handles POST /api/runs
func (h *RunHandlers) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	req := h.defaults
	if r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			h.log.Debug().Err(err).Msg("Failed to decode request body")
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	req.Trigger = runs.TriggerAPI
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.service.Submit(r.Context(), req)
	switch {
	case errors.Is(err, runs.ErrQueueFull):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Failed to submit run")
		http.Error(w, "Failed to submit run", http.StatusInternalServerError)
		return
	}

	writeData(w, http.StatusAccepted, run, h.log)
}

// HandleListRuns handles GET /api/runs?limit=&status=
func (h *RunHandlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be an integer in 1..500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	status := runs.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		http.Error(w, "unknown status "+strconv.Quote(string(status)), http.StatusBadRequest)
		return
	}

	list, err := h.service.Repository().List(r.Context(), limit, status)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*runs.Run{}
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"runs":  list,
		"count": len(list),
	}, h.log)
}

// HandleGetRun handles GET /api/runs/{id}
func (h *RunHandlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, run, h.log)
}

// HandleGetEpisodes handles GET /api/runs/{id}/episodes
func (h *RunHandlers) HandleGetEpisodes(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	episodes, err := h.service.Repository().Episodes(r.Context(), run.ID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to load episodes")
		http.Error(w, "Failed to load episodes", http.StatusInternalServerError)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"run_id":   run.ID,
		"status":   run.Status,
		"episodes": episodes,
	}, h.log)
}

// HandleGetQTable handles GET /api/runs/{id}/qtable
func (h *RunHandlers) HandleGetQTable(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	artifacts, err := h.service.Repository().Artifacts(r.Context(), run.ID)
	if errors.Is(err, runs.ErrNotFound) {
		http.Error(w, "run "+run.ID+" has no learned state yet", http.StatusConflict)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to load artifacts")
		http.Error(w, "Failed to load learned state", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"run_id":    run.ID,
		"qtable":    artifacts.QTable,
		"lengths":   artifacts.Lengths,
		"saturated": artifacts.Saturated,
		"depths":    artifacts.Depths,
	}
	if run.Summary != nil {
		response["greedy_policy"] = run.Summary.GreedyPolicy
	}
	writeData(w, http.StatusOK, response, h.log)
}

// HandleListArchives handles GET /api/archives
func (h *RunHandlers) HandleListArchives(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		http.Error(w, "Archiving is not enabled", http.StatusNotFound)
		return
	}

	archives, err := h.archiver.ListArchives(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list archives")
		http.Error(w, "Failed to list archives", http.StatusBadGateway)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"archives": archives,
		"count":    len(archives),
	}, h.log)
}

// HandleMaxIterations handles GET /api/quantum/max-iterations?actions=
func (h *RunHandlers) HandleMaxIterations(w http.ResponseWriter, r *http.Request) {
	actions, err := strconv.Atoi(r.URL.Query().Get("actions"))
	if err != nil || actions < 1 || actions > maxActions {
		http.Error(w, "actions must be an integer in 1..1048576", http.StatusBadRequest)
		return
	}

	width := quantum.RegisterWidth(actions)
	writeData(w, http.StatusOK, map[string]interface{}{
		"actions":        actions,
		"width":          width,
		"dimension":      quantum.Dimension(width),
		"max_iterations": quantum.MaxIterations(width),
		"unused_states":  quantum.Dimension(width) - actions,
	}, h.log)
}

func (h *RunHandlers) loadRun(w http.ResponseWriter, r *http.Request) (*runs.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := h.service.Repository().Get(r.Context(), id)
	if errors.Is(err, runs.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to load run")
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}
