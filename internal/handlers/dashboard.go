package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"strava-activity-mapper/internal/activity"
	"strava-activity-mapper/internal/config"
	"strava-activity-mapper/internal/database"
	"strava-activity-mapper/internal/demo"
	"strava-activity-mapper/internal/pipeline"
	"strava-activity-mapper/internal/session"
	"strava-activity-mapper/internal/strava"
)

// DashboardHandler serves the computed views for the current session
type DashboardHandler struct {
	sessions *session.Manager
	pipeline *pipeline.Pipeline
	chart    config.Chart
	logger   *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(sessions *session.Manager, p *pipeline.Pipeline, chart config.Chart, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		sessions: sessions,
		pipeline: p,
		chart:    chart,
		logger:   logger,
	}
}

type activitiesResponse struct {
	Loaded     bool     `json:"loaded"`
	Columns    []string `json:"columns"`
	Activities any      `json:"activities"`
}

// HandleDashboard handles GET /api/dashboard. Without a session, or before
// anything was loaded, it answers loaded=false with every view empty.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, h.current(w, r))
}

// HandleActivities handles GET /api/activities, the canonical activity
// table. With ?columns=display it answers the table of unique events instead.
func (h *DashboardHandler) HandleActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	d := h.current(w, r)
	resp := activitiesResponse{Loaded: d.Loaded}
	switch r.URL.Query().Get("columns") {
	case "", "all":
		resp.Columns = activity.Columns
		resp.Activities = d.Activities
	case "display":
		resp.Columns = h.chart.DisplayColumns
		resp.Activities = d.Table
	default:
		writeError(w, h.logger, http.StatusBadRequest, "columns must be all or display")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// HandleRefresh handles POST /api/refresh: the pipeline runs again with the
// session's token and the cached dashboard is replaced
func (h *DashboardHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := h.sessions.Resolve(w, r)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			h.logger.Error("session_lookup_failed", "error", err)
		}
		writeError(w, h.logger, http.StatusUnauthorized, "Not connected")
		return
	}

	var d *pipeline.Dashboard
	if sess.Demo {
		d, err = h.pipeline.LoadDemo()
	} else {
		d, err = h.pipeline.Run(r.Context(), sess.AccessToken, pipeline.Athlete{
			Name:      sess.AthleteName,
			CreatedAt: sess.AthleteCreatedAt,
		})
	}
	if err != nil {
		h.logger.Error("refresh_failed", "session_id", sess.ID, "error", err)
		status := http.StatusInternalServerError
		var transportErr *strava.TransportError
		switch {
		case strava.IsAuthorization(err):
			status = http.StatusUnauthorized
		case errors.As(err, &transportErr):
			status = http.StatusBadGateway
		}
		writeError(w, h.logger, status, userMessage(err, h.chart))
		return
	}

	h.save(sess.ID, d)
	writeJSON(w, h.logger, http.StatusOK, d)
}

// HandleDemo handles POST /api/demo. The demo dashboard is attached to the
// current session, or to a new demo session when there is none.
func (h *DashboardHandler) HandleDemo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	d, err := h.pipeline.LoadDemo()
	if err != nil {
		h.logger.Error("demo_load_failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load demo data")
		return
	}

	sess, err := h.sessions.Resolve(w, r)
	if err != nil {
		sess = &database.Session{AthleteName: demo.AthleteName, Demo: true}
		if err := h.sessions.Create(sess); err != nil {
			h.logger.Error("session_create_failed", "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to load demo data")
			return
		}
		h.sessions.SetCookie(w, sess)
	}

	h.save(sess.ID, d)
	writeJSON(w, h.logger, http.StatusOK, d)
}

func (h *DashboardHandler) current(w http.ResponseWriter, r *http.Request) *pipeline.Dashboard {
	sess, err := h.sessions.Resolve(w, r)
	if err != nil {
		return pipeline.Empty(h.chart)
	}

	var d pipeline.Dashboard
	found, err := h.sessions.Dashboards().Load(sess.ID, &d)
	if err != nil {
		h.logger.Error("dashboard_load_failed", "session_id", sess.ID, "error", err)
	}
	if !found || err != nil {
		empty := pipeline.Empty(h.chart)
		empty.AthleteName = sess.AthleteName
		empty.CreatedAt = sess.AthleteCreatedAt
		return empty
	}
	return &d
}

func (h *DashboardHandler) save(sessionID string, d *pipeline.Dashboard) {
	if err := h.sessions.Dashboards().Save(sessionID, d); err != nil {
		h.logger.Error("dashboard_save_failed", "session_id", sessionID, "error", err)
	}
}
