package handlers

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"strava-activity-mapper/internal/config"
	"strava-activity-mapper/internal/database"
	"strava-activity-mapper/internal/oauth"
	"strava-activity-mapper/internal/pipeline"
	"strava-activity-mapper/internal/session"
	"strava-activity-mapper/internal/strava"
)

// OAuthHandler handles OAuth flow endpoints
type OAuthHandler struct {
	oauthManager *oauth.Manager
	sessions     *session.Manager
	pipeline     *pipeline.Pipeline
	chart        config.Chart
	logger       *slog.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(oauthManager *oauth.Manager, sessions *session.Manager, p *pipeline.Pipeline, chart config.Chart, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauthManager: oauthManager,
		sessions:     sessions,
		pipeline:     p,
		chart:        chart,
		logger:       logger,
	}
}

// HandleAuthStart initiates the OAuth flow by redirecting to Strava
func (h *OAuthHandler) HandleAuthStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	authURL, _, err := h.oauthManager.GenerateAuthURL()
	if err != nil {
		h.logger.Error("oauth_start_failed", "error", err)
		http.Error(w, "Failed to start OAuth flow", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleCallback exchanges the code, opens a session and builds the first
// dashboard. A failed first fetch still leaves the athlete connected with the
// error recorded on the dashboard.
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	tokenResp, err := h.oauthManager.HandleCallback(r.Context(), oauth.Callback{
		Code:  query.Get("code"),
		State: query.Get("state"),
		Scope: query.Get("scope"),
		Error: query.Get("error"),
	})
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrInvalidState):
			http.Error(w, "Invalid or expired authorization request. Please try again.", http.StatusBadRequest)
		case errors.Is(err, oauth.ErrAccessDenied), errors.Is(err, oauth.ErrInsufficientScope):
			http.Error(w, h.chart.ScopeErrorMessage, http.StatusForbidden)
		default:
			h.logger.Error("oauth_callback_failed", "error", err)
			http.Error(w, "Failed to complete authorization", http.StatusBadGateway)
		}
		return
	}

	athleteID := tokenResp.Athlete.ID
	sess := &database.Session{
		AthleteID:        &athleteID,
		AthleteName:      tokenResp.AthleteName(),
		AthleteCreatedAt: tokenResp.Athlete.CreatedAt,
		AccessToken:      tokenResp.AccessToken,
		RefreshToken:     tokenResp.RefreshToken,
		TokenExpiresAt:   tokenResp.ExpiresAt,
		Scope:            query.Get("scope"),
	}
	if err := h.sessions.Create(sess); err != nil {
		h.logger.Error("session_create_failed", "error", err)
		http.Error(w, "Failed to complete authorization", http.StatusInternalServerError)
		return
	}
	h.sessions.SetCookie(w, sess)

	d, err := h.pipeline.Run(r.Context(), sess.AccessToken, pipeline.Athlete{
		Name:      sess.AthleteName,
		CreatedAt: sess.AthleteCreatedAt,
	})
	if err != nil {
		h.logger.Error("initial_fetch_failed", "session_id", sess.ID, "error", err)
		d = pipeline.Empty(h.chart)
		d.AthleteName = sess.AthleteName
		d.Error = userMessage(err, h.chart)
	}
	if err := h.sessions.Dashboards().Save(sess.ID, d); err != nil {
		h.logger.Error("dashboard_save_failed", "session_id", sess.ID, "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := connectedPage.Execute(w, connectedView{
		Title:      h.chart.Title,
		Athlete:    sess.AthleteName,
		Activities: len(d.Table),
		Error:      d.Error,
	}); err != nil {
		h.logger.Error("response_render_failed", "error", err)
	}
}

// userMessage maps a pipeline error to what the athlete is shown
func userMessage(err error, chart config.Chart) string {
	if strava.IsAuthorization(err) {
		return chart.FetchErrorMessage
	}
	return "Failed to load activities. Please try again later."
}

type connectedView struct {
	Title      string
	Athlete    string
	Activities int
	Error      string
}

var connectedPage = template.Must(template.New("connected").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
	<style>
		body {
			font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif;
			max-width: 600px;
			margin: 100px auto;
			padding: 20px;
			text-align: center;
		}
		h1 { color: #FC4C02; }
		p { color: #666; line-height: 1.6; }
	</style>
</head>
<body>
	<h1>{{.Title}}</h1>
	<p>Connected as <strong>{{.Athlete}}</strong>.</p>
	{{if .Error}}<p>{{.Error}}</p>{{else}}<p>{{.Activities}} activities loaded.</p>{{end}}
	<p><a href="/api/dashboard">View dashboard data</a></p>
</body>
</html>`))
