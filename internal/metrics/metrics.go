package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// HTTP endpoints
	EndpointOAuthStart    = "oauth_start"
	EndpointOAuthCallback = "oauth_callback"
	EndpointDashboard     = "dashboard"
	EndpointRefresh       = "refresh"
	EndpointDemo          = "demo"
	EndpointActivities    = "activities"
	EndpointHealth        = "health"

	// Strava API operations
	OpExchangeToken  = "exchange_token"
	OpListActivities = "list_activities"

	// Rate limit types
	RateLimitOverall15Min = "overall_15min"
	RateLimitOverallDaily = "overall_daily"

	// Rate limit buckets
	BucketLimit = "limit"
	BucketUsage = "usage"

	// Pipeline sources
	SourceStrava = "strava"
	SourceDemo   = "demo"

	// Results
	ResultSuccess      = "success"
	ResultFailure      = "failure"
	ResultUnauthorized = "unauthorized"
	ResultRejected     = "rejected"
	ResultHit          = "hit"
	ResultMiss         = "miss"

	// Database operations
	DBOpCreateState           = "create_state"
	DBOpConsumeState          = "consume_state"
	DBOpDeleteExpiredStates   = "delete_expired_states"
	DBOpCreateSession         = "create_session"
	DBOpGetSession            = "get_session"
	DBOpTouchSession          = "touch_session"
	DBOpDeleteSession         = "delete_session"
	DBOpDeleteExpiredSessions = "delete_expired_sessions"
	DBOpCountSessions         = "count_sessions"

	// Scheduled jobs
	JobSessionCleanup = "session_cleanup"
	JobStateCleanup   = "state_cleanup"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)
)

// Strava API Metrics
var (
	StravaAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_api_requests_total",
			Help: "Total number of Strava API requests",
		},
		[]string{"operation", "status_code"},
	)

	StravaAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strava_api_request_duration_seconds",
			Help:    "Strava API request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation", "status_code"},
	)

	StravaRateLimitUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strava_rate_limit_usage",
			Help: "Strava API rate limit usage",
		},
		[]string{"limit_type", "bucket"},
	)

	StravaPagesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strava_pages_fetched_total",
			Help: "Total number of activity pages fetched",
		},
	)
)

// Circuit Breaker Metrics
var (
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
		},
		[]string{"breaker"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests seen by the circuit breaker by result",
		},
		[]string{"breaker", "result"},
	)
)

// Pipeline Metrics
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs by source and result",
		},
		[]string{"source", "result"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "Time spent fetching, normalizing and aggregating",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	ActivitiesPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_activities_count",
			Help:    "Number of activities normalized per pipeline run",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	NormalizationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "normalization_failures_total",
			Help: "Total number of pipeline runs aborted by a malformed record",
		},
	)
)

// Session Metrics
var (
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of unexpired sessions",
		},
	)

	DashboardCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_total",
			Help: "Dashboard cache lookups by result",
		},
		[]string{"result"},
	)

	ScheduledJobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_job_runs_total",
			Help: "Scheduled job runs by job and result",
		},
		[]string{"job", "result"},
	)
)

// Database Metrics
var (
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Database operation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	DBOperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation"},
	)
)
