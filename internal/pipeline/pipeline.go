// Package pipeline wires fetching, normalization and aggregation together.
// Data flows one way: raw records become a canonical table, the table is
// reduced into the dashboard views.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"strava-activity-mapper/internal/activity"
	"strava-activity-mapper/internal/config"
	"strava-activity-mapper/internal/demo"
	"strava-activity-mapper/internal/geo"
	"strava-activity-mapper/internal/metrics"
	"strava-activity-mapper/internal/strava"
)

// ActivityLister retrieves every activity of the athlete owning accessToken
type ActivityLister interface {
	ListAllActivities(ctx context.Context, accessToken string) ([]strava.RawActivity, error)
}

// Athlete identifies whose dashboard is being built
type Athlete struct {
	Name      string
	CreatedAt string
}

// Pipeline turns an access token, or the demo data, into a dashboard
type Pipeline struct {
	lister     ActivityLister
	normalizer *activity.Normalizer
	chart      config.Chart
	logger     *slog.Logger
}

// New creates a pipeline. resolver may be nil, in which case the configured
// placeholder country is used.
func New(lister ActivityLister, chart config.Chart, resolver geo.CountryResolver, logger *slog.Logger) *Pipeline {
	if resolver == nil {
		resolver = geo.NewStaticResolver(chart.PlaceholderCountry)
	}
	return &Pipeline{
		lister:     lister,
		normalizer: activity.NewNormalizer(chart.AppLabel, chart.ActivityURL, resolver),
		chart:      chart,
		logger:     logger,
	}
}

// Run fetches the athlete's activities and builds the dashboard. A fault
// from the provider surfaces as *strava.AuthorizationError, a malformed
// record as *activity.ParseError.
func (p *Pipeline) Run(ctx context.Context, accessToken string, athlete Athlete) (*Dashboard, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues(metrics.SourceStrava).Observe(time.Since(start).Seconds())
	}()

	raws, err := p.lister.ListAllActivities(ctx, accessToken)
	if err != nil {
		result := metrics.ResultFailure
		if strava.IsAuthorization(err) {
			result = metrics.ResultUnauthorized
		}
		metrics.PipelineRunsTotal.WithLabelValues(metrics.SourceStrava, result).Inc()
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	d, err := p.build(raws, metrics.SourceStrava, athlete)
	if err != nil {
		return nil, err
	}
	p.logger.Info("pipeline_completed",
		"source", metrics.SourceStrava,
		"activities", len(d.Table),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return d, nil
}

// LoadDemo builds the dashboard from the embedded demo activities
func (p *Pipeline) LoadDemo() (*Dashboard, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues(metrics.SourceDemo).Observe(time.Since(start).Seconds())
	}()

	raws, err := demo.Records()
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues(metrics.SourceDemo, metrics.ResultFailure).Inc()
		return nil, err
	}
	return p.build(raws, metrics.SourceDemo, Athlete{Name: demo.AthleteName})
}

// FromRecords builds a dashboard from records already in hand
func (p *Pipeline) FromRecords(raws []map[string]any, source string, athlete Athlete) (*Dashboard, error) {
	return p.build(raws, source, athlete)
}

func (p *Pipeline) build(raws []map[string]any, source string, athlete Athlete) (*Dashboard, error) {
	table, err := p.normalizer.NormalizeAll(raws)
	if err != nil {
		metrics.NormalizationFailuresTotal.Inc()
		metrics.PipelineRunsTotal.WithLabelValues(source, metrics.ResultFailure).Inc()
		p.logger.Error("normalization_failed", "source", source, "error", err)
		return nil, err
	}

	d := Build(table, p.chart)
	d.Loaded = true
	d.Source = source
	d.AthleteName = athlete.Name
	d.CreatedAt = athlete.CreatedAt
	d.GeneratedAt = time.Now().UTC()

	metrics.ActivitiesPerRun.Observe(float64(len(table)))
	metrics.PipelineRunsTotal.WithLabelValues(source, metrics.ResultSuccess).Inc()
	return d, nil
}
