package warden

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CollectionJobName identifies the collection pipeline in failure notifications
const CollectionJobName = "log-collection"

// Collector drives the two periodic pipelines: the collection cycle that
// pulls the current day's logs into storage, and the audit cycle that
// reconciles the previous day and repairs gaps.
type Collector struct {
	fetcher     *Fetcher
	transformer *Transformer
	sanitizer   *Sanitizer
	persistence *PersistenceEngine
	audit       *AuditEngine
	artifacts   ArtifactWriter
	notifier    Notifier
	logger      *slog.Logger
	metrics     *Metrics
	now         func() time.Time

	collectionInterval time.Duration
	auditInterval      time.Duration
}

// CollectorConfig holds collector configuration
type CollectorConfig struct {
	Fetcher     *Fetcher
	Transformer *Transformer
	Sanitizer   *Sanitizer
	Persistence *PersistenceEngine
	Audit       *AuditEngine
	Artifacts   ArtifactWriter
	Notifier    Notifier
	Logger      *slog.Logger
	// Metrics is optional
	Metrics *Metrics

	// CollectionInterval is the period between collection runs
	CollectionInterval time.Duration
	// AuditInterval is the period between audit runs
	AuditInterval time.Duration
}

// NewCollector creates a new collector
func NewCollector(cfg CollectorConfig) *Collector {
	return &Collector{
		fetcher:            cfg.Fetcher,
		transformer:        cfg.Transformer,
		sanitizer:          cfg.Sanitizer,
		persistence:        cfg.Persistence,
		audit:              cfg.Audit,
		artifacts:          cfg.Artifacts,
		notifier:           cfg.Notifier,
		logger:             cfg.Logger,
		metrics:            cfg.Metrics,
		now:                time.Now,
		collectionInterval: cfg.CollectionInterval,
		auditInterval:      cfg.AuditInterval,
	}
}

// CollectionRunStats summarizes one collection run
type CollectionRunStats struct {
	Fetched    int `json:"fetched"`
	Saved      int `json:"saved"`
	Duplicates int `json:"duplicates"`
	Dropped    int `json:"dropped"`
	Failed     int `json:"failedAssistants"`
}

// collectionArtifact is the JSON payload written after each collection run.
// Raw records are sanitized before they leave the process.
type collectionArtifact struct {
	Timestamp time.Time                          `json:"timestamp"`
	Window    TimeWindow                         `json:"window"`
	Stats     CollectionRunStats                 `json:"stats"`
	Raw       map[string][]RawLogRecord          `json:"rawLogs"`
	Saved     map[string][]StandardizedLogRecord `json:"savedLogs"`
}

// RunCollection executes one collection cycle over the current UTC day:
// fetch everything the source has for the window so far, transform it and
// upsert it. Re-running within the same day is safe; records already stored
// are counted as duplicates and not rewritten.
func (c *Collector) RunCollection(ctx context.Context) (CollectionRunStats, error) {
	started := c.now()
	window := DayWindow(started.UTC())

	logger := c.logger.With("windowStart", window.Start, "windowEnd", window.End)
	logger.Info("starting collection run")

	fetched, err := c.fetcher.FetchAllAssistants(ctx, window)
	if err != nil {
		return CollectionRunStats{}, c.failCollection(ctx, fmt.Errorf("failed to fetch logs: %w", err))
	}

	standardized := c.transformer.ProcessAllAssistants(fetched)
	results := c.persistence.SaveProcessedLogs(ctx, standardized)

	stats := CollectionRunStats{}
	sanitizedRaw := make(map[string][]RawLogRecord, len(fetched))
	savedByAssistant := make(map[string][]StandardizedLogRecord)

	for _, assistantName := range sortedKeys(fetched) {
		nFetched := len(fetched[assistantName])
		stats.Fetched += nFetched
		stats.Dropped += nFetched - len(standardized[assistantName])
		sanitizedRaw[assistantName] = c.sanitizer.SanitizeRecords(fetched[assistantName])

		result := results[assistantName]
		if result.Err != "" {
			stats.Failed++
			continue
		}
		stats.Saved += result.Count
		stats.Duplicates += result.Duplicates
		if len(result.SavedLogs) > 0 {
			savedByAssistant[assistantName] = result.SavedLogs
		}
	}

	artifact := collectionArtifact{
		Timestamp: c.now().UTC(),
		Window:    window,
		Stats:     stats,
		Raw:       sanitizedRaw,
		Saved:     savedByAssistant,
	}
	if _, err := c.artifacts.WriteJSON(ctx, "logs", artifact); err != nil {
		logger.Error("failed to write collection artifact", "error", err)
	}

	logger.Info("collection run completed",
		"fetched", stats.Fetched,
		"saved", stats.Saved,
		"duplicates", stats.Duplicates,
		"dropped", stats.Dropped,
		"failedAssistants", stats.Failed)

	if c.metrics != nil {
		c.metrics.Collection.LogsDropped.Add(float64(stats.Dropped))
		c.metrics.Collection.RunDuration.Observe(c.now().Sub(started).Seconds())
	}

	if stats.Failed > 0 {
		err := fmt.Errorf("collection run completed with %d failed assistants", stats.Failed)
		return stats, c.failCollection(ctx, err)
	}

	if c.metrics != nil {
		c.metrics.Collection.RunsTotal.WithLabelValues("success").Inc()
	}
	return stats, nil
}

// failCollection records a failed run, notifies stakeholders and returns the cause
func (c *Collector) failCollection(ctx context.Context, cause error) error {
	c.logger.Error("collection run failed", "error", cause)

	if err := c.notifier.NotifyFailure(ctx, cause, CollectionJobName, c.now()); err != nil {
		c.logger.Error("failed to notify stakeholders of collection failure", "error", err)
	}

	if c.metrics != nil {
		c.metrics.Collection.RunsTotal.WithLabelValues("failed").Inc()
	}
	return cause
}

// RunAudit audits one UTC calendar day. A zero date selects the previous
// day: the audit deliberately lags one day behind collection so the audited
// window is closed and the source's view of it is final.
func (c *Collector) RunAudit(ctx context.Context, date time.Time) (SyncReport, error) {
	if date.IsZero() {
		date = c.now().UTC().AddDate(0, 0, -1)
	}
	return c.audit.AuditForDay(ctx, date)
}

// Run runs the collector main loop until the context is cancelled.
//
// Collection and audit run on independent timers. Cycle errors are logged
// and the next tick retries; the loop only exits on context cancellation.
// An audit tick that fires during a collection run waits for it, the two
// pipelines share the persistence engine and are not run concurrently.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info("collector starting",
		"collectionIntervalSeconds", c.collectionInterval.Seconds(),
		"auditIntervalSeconds", c.auditInterval.Seconds())

	if _, err := c.RunCollection(ctx); err != nil {
		c.logger.Error("initial collection run failed", "error", err)
	}

	collectionTicker := time.NewTicker(c.collectionInterval)
	defer collectionTicker.Stop()
	auditTicker := time.NewTicker(c.auditInterval)
	defer auditTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector stopping")
			return ctx.Err()

		case <-collectionTicker.C:
			if _, err := c.RunCollection(ctx); err != nil {
				c.logger.Error("collection run failed", "error", err)
			}

		case <-auditTicker.C:
			if _, err := c.RunAudit(ctx, time.Time{}); err != nil {
				c.logger.Error("audit run failed", "error", err)
			}
		}
	}
}
