package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Margin is the padding around a plot, in pixels
type Margin struct {
	LeftRight int `toml:"left_right" json:"left_right"`
	TopBottom int `toml:"top_bottom" json:"top_bottom"`
}

// Chart holds the presentation constants shared by the pipeline and the API.
// It is built once at startup and only read afterwards.
type Chart struct {
	Title              string            `toml:"title" json:"title"`
	AppLabel           string            `toml:"app_label" json:"app_label"`
	ColorMap           map[string]string `toml:"color_map" json:"color_map"`
	ActivityURL        string            `toml:"activity_url" json:"activity_url"`
	PlaceholderCountry string            `toml:"placeholder_country" json:"placeholder_country"`
	Margin             Margin            `toml:"margin" json:"margin"`
	TopRowHeight       int               `toml:"top_row_height" json:"top_row_height"`
	BottomRowHeight    int               `toml:"bottom_row_height" json:"bottom_row_height"`
	DisplayColumns     []string          `toml:"display_columns" json:"display_columns"`
	NoDataText         string            `toml:"no_data_text" json:"no_data_text"`
	ScopeErrorMessage  string            `toml:"scope_error_message" json:"-"`
	FetchErrorMessage  string            `toml:"fetch_error_message" json:"-"`
	Scope              string            `toml:"scope" json:"-"`
}

// DefaultChart returns the built-in presentation constants
func DefaultChart() Chart {
	return Chart{
		Title:              "Activity Mapper",
		AppLabel:           "Strava",
		ColorMap:           map[string]string{"Strava": "#FC4C02"},
		ActivityURL:        "https://www.strava.com/activities/",
		PlaceholderCountry: "Undefined",
		Margin:             Margin{LeftRight: 20, TopBottom: 25},
		TopRowHeight:       200,
		BottomRowHeight:    600,
		DisplayColumns:     []string{"name", "id", "date", "sport_type", "country"},
		NoDataText:         "No Data to Display",
		ScopeErrorMessage:  "The scope provided is not sufficient. Please allow to view activities.",
		FetchErrorMessage:  "An error occurred while retrieving the data. Please try to authorize again.",
		Scope:              "activity:read,activity:read_all",
	}
}

// LoadChart returns the defaults, overridden by the keys present in the TOML
// file at path. An empty path yields the defaults.
func LoadChart(path string) (Chart, error) {
	chart := DefaultChart()
	if path == "" {
		return chart, nil
	}

	md, err := toml.DecodeFile(path, &chart)
	if err != nil {
		return Chart{}, fmt.Errorf("failed to load chart config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Chart{}, fmt.Errorf("chart config %s: unknown key %s", path, undecoded[0])
	}
	if chart.AppLabel == "" {
		return Chart{}, fmt.Errorf("chart config %s: app_label must not be empty", path)
	}
	return chart, nil
}

// Color returns the colour configured for app, or "" if none is
func (c Chart) Color(app string) string {
	return c.ColorMap[app]
}
