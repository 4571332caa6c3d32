package strava

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// MaxPerPage is the largest page size the listing endpoint accepts
const MaxPerPage = 200

// PageSource fetches one page of activities
type PageSource interface {
	ListActivitiesPage(ctx context.Context, accessToken string, page, perPage int) (Page, error)
}

// Fetcher walks the paginated activity listing until it is exhausted
type Fetcher struct {
	source      PageSource
	perPage     int
	concurrency int
	logger      *slog.Logger
}

// NewFetcher creates a fetcher. concurrency <= 1 fetches one page at a time;
// larger values fetch windows of that many pages in parallel.
func NewFetcher(source PageSource, perPage, concurrency int, logger *slog.Logger) *Fetcher {
	if perPage < 1 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		source:      source,
		perPage:     perPage,
		concurrency: concurrency,
		logger:      logger,
	}
}

// walk is the outcome of one pass over the listing. faultStatus is the HTTP
// status of the page that answered with a fault object.
type walk struct {
	records     []RawActivity
	faulted     bool
	faultStatus int
}

// FetchAll returns every raw record in provider order. If the provider
// answers a page with a fault object, that object is appended as served and
// fetching stops. Pages are requested until one holds fewer than perPage
// records.
func (f *Fetcher) FetchAll(ctx context.Context, accessToken string) ([]RawActivity, error) {
	w, err := f.fetch(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return w.records, nil
}

// ListAllActivities is FetchAll with the fault classified: a trailing fault
// object becomes an *AuthorizationError and no partial records are returned.
func (f *Fetcher) ListAllActivities(ctx context.Context, accessToken string) ([]RawActivity, error) {
	w, err := f.fetch(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if !w.faulted {
		return w.records, nil
	}
	fault, ok := AuthorizationFault(w.records)
	if !ok {
		fault = &AuthorizationError{Message: faultMessage(w.records[len(w.records)-1])}
	}
	if fault.StatusCode == 0 {
		fault.StatusCode = w.faultStatus
	}
	f.logger.Warn("authorization_fault", "status", fault.StatusCode, "message", fault.Message)
	return nil, fault
}

func (f *Fetcher) fetch(ctx context.Context, accessToken string) (walk, error) {
	var (
		w   walk
		err error
	)
	if f.concurrency > 1 {
		w, err = f.fetchWindows(ctx, accessToken)
	} else {
		w, err = f.fetchSequential(ctx, accessToken)
	}
	if err != nil {
		return walk{}, err
	}

	f.logger.Info("activities_fetched", "records", len(w.records), "concurrency", f.concurrency)
	return w, nil
}

func (f *Fetcher) fetchSequential(ctx context.Context, accessToken string) (walk, error) {
	w := walk{records: []RawActivity{}}
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return walk{}, err
		}

		p, err := f.source.ListActivitiesPage(ctx, accessToken, page, f.perPage)
		if err != nil {
			return walk{}, err
		}

		if f.appendPage(&w, p) {
			return w, nil
		}
	}
}

// fetchWindows requests pages in windows of f.concurrency and then walks each
// window in page order with the same stop rules as the sequential walk, so
// both modes produce identical output.
func (f *Fetcher) fetchWindows(ctx context.Context, accessToken string) (walk, error) {
	w := walk{records: []RawActivity{}}
	for first := 1; ; first += f.concurrency {
		if err := ctx.Err(); err != nil {
			return walk{}, err
		}

		pages := make([]Page, f.concurrency)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(f.concurrency)
		for i := range pages {
			number := first + i
			g.Go(func() error {
				p, err := f.source.ListActivitiesPage(gctx, accessToken, number, f.perPage)
				if err != nil {
					return err
				}
				pages[i] = p
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return walk{}, err
		}

		for _, p := range pages {
			if f.appendPage(&w, p) {
				return w, nil
			}
		}
	}
}

// appendPage adds p to w and reports whether the walk is over
func (f *Fetcher) appendPage(w *walk, p Page) bool {
	if p.IsFault() {
		w.records = append(w.records, p.Fault)
		w.faulted = true
		w.faultStatus = p.Status
		return true
	}
	w.records = append(w.records, p.Records...)
	return len(p.Records) < f.perPage
}
