package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/john/emoterain/internal/metrics"
)

// Fetcher pulls catalogs from a Source into a Store.
type Fetcher struct {
	source Source
	store  *Store
	logger *slog.Logger
}

// NewFetcher creates a fetcher writing into store.
func NewFetcher(source Source, store *Store, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{source: source, store: store, logger: logger}
}

// Fetch loads channel's catalog. Failures leave the catalog as it was and
// are only logged; it reports whether records were merged.
func (f *Fetcher) Fetch(ctx context.Context, channel string) bool {
	channel = NormalizeChannel(channel)

	records, err := f.source.Fetch(ctx, channel)
	switch {
	case errors.Is(err, ErrNotFound):
		metrics.CatalogFetches.WithLabelValues("not_found").Inc()
		f.logger.Info("no community emotes for channel", "channel", channel)
		return false
	case err != nil:
		metrics.CatalogFetches.WithLabelValues("error").Inc()
		f.logger.Warn("community emote fetch failed", "channel", channel, "error", err)
		return false
	}

	size := f.store.Merge(channel, records)
	metrics.CatalogFetches.WithLabelValues("ok").Inc()
	metrics.CatalogEntries.WithLabelValues(channel).Set(float64(size))
	f.logger.Info("community emotes loaded", "channel", channel, "received", len(records), "total", size)
	return true
}

// FetchAll fetches every channel concurrently and waits for all of them.
func (f *Fetcher) FetchAll(ctx context.Context, channels []string) {
	var wg sync.WaitGroup
	for _, channel := range channels {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			f.Fetch(ctx, channel)
		}(channel)
	}
	wg.Wait()
}

// Refresher fetches all catalogs once at start and then on a fixed interval.
type Refresher struct {
	fetcher  *Fetcher
	channels []string
	interval time.Duration
	clock    clockwork.Clock
}

// NewRefresher creates a refresher. An interval <= 0 fetches only once.
func NewRefresher(fetcher *Fetcher, channels []string, interval time.Duration, clock clockwork.Clock) *Refresher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Refresher{
		fetcher:  fetcher,
		channels: channels,
		interval: interval,
		clock:    clock,
	}
}

// Start runs until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) error {
	r.fetcher.FetchAll(ctx, r.channels)

	if r.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.fetcher.logger.Debug("refreshing community emotes", "channels", len(r.channels))
			r.fetcher.FetchAll(ctx, r.channels)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
