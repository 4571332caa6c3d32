package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"strava-activity-mapper/internal/config"
	"strava-activity-mapper/internal/geo"
	"strava-activity-mapper/internal/pipeline"
	"strava-activity-mapper/internal/strava"
)

func main() {
	// Disable structured logging for CLI
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env file is not an error
	_ = godotenv.Load()

	chart, err := config.LoadChart(os.Getenv("CHART_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load chart configuration: %v\n", err)
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "fetch":
		handleFetch(chart, logger)
	case "demo":
		handleDemo(chart, logger)
	case "decode":
		handleDecode()
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`strava-activity-mapper CLI

Usage:
  cli <command> [options]

Commands:
  fetch <access_token>  Fetch every activity of the token's athlete and print a summary
  demo                  Print the dashboard built from the demo activities as JSON
  decode <polyline>     Decode an encoded polyline and print its coordinates
  help                  Show this help message

Examples:
  cli fetch 83ebeabdec09f6670863766f792ead24d61fe3f9
  cli demo > dashboard.json
  cli decode '_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@'

Environment Variables:
  CHART_CONFIG_PATH  - TOML file overriding the presentation defaults
  FETCH_CONCURRENCY  - Pages fetched in parallel by 'fetch' (default: 1)`)
}

func handleFetch(chart config.Chart, logger *slog.Logger) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: Access token required")
		fmt.Fprintln(os.Stderr, "Usage: cli fetch <access_token>")
		os.Exit(1)
	}

	var concurrency int
	if v := os.Getenv("FETCH_CONCURRENCY"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &concurrency); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid FETCH_CONCURRENCY: %s\n", v)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := strava.NewClient(os.Getenv("STRAVA_CLIENT_ID"), os.Getenv("STRAVA_CLIENT_SECRET"), logger)
	defer client.CloseIdleConnections()
	fetcher := strava.NewFetcher(client, strava.MaxPerPage, concurrency, logger)

	fmt.Println("Fetching activities...")

	d, err := pipeline.New(fetcher, chart, nil, logger).Run(ctx, os.Args[2], pipeline.Athlete{})
	if err != nil {
		var authErr *strava.AuthorizationError
		var transportErr *strava.TransportError
		switch {
		case errors.As(err, &authErr):
			fmt.Fprintf(os.Stderr, "Error: Strava rejected the token (HTTP %d): %s\n", authErr.StatusCode, authErr.Message)
			fmt.Fprintln(os.Stderr, chart.FetchErrorMessage)
		case errors.As(err, &transportErr):
			fmt.Fprintf(os.Stderr, "Error: Request failed: %v\n", transportErr)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	printSummary(d)

	status := client.GetRateLimitStatus()
	fmt.Printf("\nRate limit usage: %d/%d (15 min), %d/%d (daily)\n",
		status.Usage15Min, status.Limit15Min, status.UsageDaily, status.LimitDaily)
}

func printSummary(d *pipeline.Dashboard) {
	if !d.HasData() {
		fmt.Println(d.Chart.NoDataText)
		return
	}

	fmt.Printf("\nFound %d activit(ies)\n", len(d.Table))
	first, last := d.Table[len(d.Table)-1], d.Table[0]
	fmt.Printf("  From %s to %s\n", first.Date, last.Date)
	fmt.Printf("  Weeks with activity: %d\n", len(d.Weekly.Counts))

	fmt.Println("\nBy sport:")
	for _, s := range d.SportTypes {
		fmt.Printf("  %-20s %d\n", s.SportType, s.Counts)
	}

	days := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	fmt.Println("\nBy weekday:")
	for _, w := range d.Weekdays {
		fmt.Printf("  %s  %5.1f%%\n", days[w.Weekday], w.Percentage*100)
	}

	fmt.Printf("\nBusiest 10-minute slot: %d activit(ies)\n", d.Clock.MaxCount)
}

func handleDemo(chart config.Chart, logger *slog.Logger) {
	d, err := pipeline.New(nil, chart, nil, logger).LoadDemo()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load demo data: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to encode dashboard: %v\n", err)
		os.Exit(1)
	}
}

func handleDecode() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: Encoded polyline required")
		fmt.Fprintln(os.Stderr, "Usage: cli decode <polyline>")
		os.Exit(1)
	}

	coords, err := geo.Decode(strings.TrimSpace(os.Args[2]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(coords) == 0 {
		fmt.Println("No coordinates.")
		return
	}
	for _, c := range coords {
		fmt.Printf("%.5f,%.5f\n", c.Lat, c.Lon)
	}
}
