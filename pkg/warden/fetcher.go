package warden

import (
	"context"
	"log/slog"

	"github.com/scality/log-warden/pkg/util"
)

// Fetcher retrieves all raw log records for assistants over a time window,
// following pagination cursors. It does not retry or throttle: fetch failures
// are per-assistant and must not block other assistants, so retry is left to
// the persistence layer and rate limiting to the platform.
type Fetcher struct {
	source    LogSource
	logger    *slog.Logger
	metrics   *Metrics
	excluded  map[string]bool
	pageLimit int
}

// FetcherConfig holds fetcher configuration
type FetcherConfig struct {
	Source LogSource
	Logger *slog.Logger
	// Metrics is optional
	Metrics *Metrics
	// ExcludedAssistants are assistant names skipped before any network call
	ExcludedAssistants []string
	PageLimit          int
}

// NewFetcher creates a new fetcher
func NewFetcher(cfg FetcherConfig) *Fetcher {
	return &Fetcher{
		source:    cfg.Source,
		excluded:  util.StringSet(cfg.ExcludedAssistants),
		pageLimit: cfg.PageLimit,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// FetchLogs fetches all raw log records of one assistant environment within
// the window, accumulating every page in arrival order. The window is
// expected to bound the result size, so no streaming back-pressure is applied.
func (f *Fetcher) FetchLogs(ctx context.Context, environmentID string, window TimeWindow) ([]RawLogRecord, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	var records []RawLogRecord
	cursor := ""

	for {
		page, err := f.source.ListLogs(ctx, environmentID, window, f.pageLimit, cursor)
		if err != nil {
			f.logger.Error("failed to fetch logs page",
				"environmentID", environmentID,
				"cursor", cursor,
				"error", err)
			return nil, err
		}

		f.observeRateLimit(environmentID, page.RateLimit)

		records = append(records, page.Records...)

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return records, nil
}

// observeRateLimit surfaces the platform's rate-limit telemetry. Callers
// should treat repeated near-zero remaining values as an early warning.
func (f *Fetcher) observeRateLimit(environmentID string, rl RateLimit) {
	if rl.Limit == 0 && rl.Remaining == 0 {
		return
	}

	f.logger.Info("source rate limit",
		"environmentID", environmentID,
		"remaining", rl.Remaining,
		"limit", rl.Limit,
		"reset", rl.Reset)

	if f.metrics != nil {
		f.metrics.Collection.RateLimitRemaining.Set(float64(rl.Remaining))
	}
}

// FetchAllAssistants fetches the window's records for every eligible
// assistant, keyed by assistant name. Assistants are processed sequentially
// in listing order. Excluded assistants and assistants without a "live"
// environment are skipped without error; a fetch failure for one assistant is
// logged and does not stop the remaining assistants.
func (f *Fetcher) FetchAllAssistants(ctx context.Context, window TimeWindow) (map[string][]RawLogRecord, error) {
	assistants, err := f.source.ListAssistants(ctx)
	if err != nil {
		return nil, err
	}

	fetched := make(map[string][]RawLogRecord)

	for _, assistant := range assistants {
		if f.excluded[assistant.Name] {
			f.logger.Info("skipping excluded assistant", "assistant", assistant.Name)
			continue
		}

		liveEnv, ok := assistant.LiveEnvironment()
		if !ok {
			f.logger.Warn("assistant has no live environment, skipping",
				"assistant", assistant.Name)
			continue
		}

		f.logger.Info("fetching assistant logs",
			"assistant", assistant.Name,
			"environmentID", liveEnv.EnvironmentID)

		records, err := f.FetchLogs(ctx, liveEnv.EnvironmentID, window)
		if err != nil {
			f.logger.Error("failed to fetch logs for assistant",
				"assistant", assistant.Name,
				"environmentID", liveEnv.EnvironmentID,
				"error", err)
			continue
		}

		fetched[assistant.Name] = records

		if f.metrics != nil {
			f.metrics.Collection.LogsFetched.Add(float64(len(records)))
		}
	}

	return fetched, nil
}
