package warden

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditJobName identifies the audit pipeline in failure notifications
const AuditJobName = "log-audit"

// AuditEngine re-fetches a day's window, determines which fetched records are
// present in storage versus missing, replays the missing subset through the
// transformer and persistence engine, and produces a durable sync report.
type AuditEngine struct {
	fetcher     *Fetcher
	transformer *Transformer
	sanitizer   *Sanitizer
	persistence *PersistenceEngine
	logStore    LogStore
	reports     ReportStore
	artifacts   ArtifactWriter
	notifier    Notifier
	logger      *slog.Logger
	metrics     *Metrics
	now         func() time.Time
}

// AuditConfig holds audit engine configuration
type AuditConfig struct {
	Fetcher     *Fetcher
	Transformer *Transformer
	Sanitizer   *Sanitizer
	Persistence *PersistenceEngine
	LogStore    LogStore
	Reports     ReportStore
	Artifacts   ArtifactWriter
	Notifier    Notifier
	Logger      *slog.Logger
	// Metrics is optional
	Metrics *Metrics
}

// NewAuditEngine creates a new audit engine
func NewAuditEngine(cfg AuditConfig) *AuditEngine {
	return &AuditEngine{
		fetcher:     cfg.Fetcher,
		transformer: cfg.Transformer,
		sanitizer:   cfg.Sanitizer,
		persistence: cfg.Persistence,
		logStore:    cfg.LogStore,
		reports:     cfg.Reports,
		artifacts:   cfg.Artifacts,
		notifier:    cfg.Notifier,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		now:         time.Now,
	}
}

// AuditForDay reconciles one UTC calendar day. If a report (other than a
// FAILURE one) already exists for the day, it is returned unchanged and no
// repair is performed. The existence guard is re-derived from the store on
// every invocation so it stays correct across process restarts.
func (ae *AuditEngine) AuditForDay(ctx context.Context, date time.Time) (SyncReport, error) {
	started := ae.now()

	if date.IsZero() {
		return SyncReport{}, &ValidationError{Msg: "audit date must be set"}
	}
	window := DayWindow(date)

	logger := ae.logger.With("windowStart", window.Start, "windowEnd", window.End)
	logger.Info("starting audit run")

	existing, err := ae.reports.FindReportInWindow(ctx, window)
	if err != nil {
		return ae.failAudit(ctx, window, fmt.Errorf("failed to check for existing report: %w", err))
	}
	if existing != nil && existing.SyncStatus.Status != SyncFailure {
		logger.Info("report already exists for window, skipping audit",
			"reportID", existing.ID,
			"status", existing.SyncStatus.Status)
		if ae.metrics != nil {
			ae.metrics.Audit.RunsTotal.WithLabelValues("SKIPPED").Inc()
		}
		return *existing, nil
	}

	fetched, err := ae.fetcher.FetchAllAssistants(ctx, window)
	if err != nil {
		return ae.failAudit(ctx, window, fmt.Errorf("failed to fetch logs for audit window: %w", err))
	}

	syncStatus, summary, err := ae.crossCheck(ctx, fetched)
	if err != nil {
		return ae.failAudit(ctx, window, err)
	}

	if len(syncStatus.MissingLogs) > 0 {
		logger.Info("found missing logs, starting repair",
			"nMissing", len(syncStatus.MissingLogs))
		ae.repair(ctx, fetched, syncStatus.MissingLogs)
	}

	report := SyncReport{
		ID:            uuid.NewString(),
		Timestamp:     ae.now().UTC(),
		Window:        window,
		SyncStatus:    syncStatus,
		Summary:       summary,
		SanitizedLogs: ae.sanitizedLogsForReport(fetched, syncStatus.MissingLogs),
	}

	// The database write and the file artifact are independent records of
	// the run; both are attempted even if one fails.
	dbErr := ae.reports.CreateReport(ctx, report)
	if _, fileErr := ae.artifacts.WriteJSON(ctx, "sync-report", report); fileErr != nil {
		logger.Error("failed to write sync report artifact", "error", fileErr)
	}
	if dbErr != nil {
		return ae.failAudit(ctx, window, fmt.Errorf("failed to persist sync report: %w", dbErr))
	}

	logger.Info("audit run completed",
		"status", report.SyncStatus.Status,
		"totalLogs", report.Summary.TotalLogs,
		"includedLogs", report.Summary.IncludedLogs,
		"missingLogs", report.Summary.MissingLogs)

	if ae.metrics != nil {
		ae.metrics.Audit.RunsTotal.WithLabelValues(report.SyncStatus.Status).Inc()
		ae.metrics.Audit.RunDuration.Observe(ae.now().Sub(started).Seconds())
	}

	return report, nil
}

// crossCheck partitions each assistant's fetched records into included and
// missing with one batched existence query per assistant
func (ae *AuditEngine) crossCheck(ctx context.Context,
	fetched map[string][]RawLogRecord) (SyncStatus, SyncSummary, error) {
	syncStatus := SyncStatus{
		Status:       SyncSuccess,
		MissingLogs:  []LogRef{},
		IncludedLogs: []LogRef{},
	}
	summary := SyncSummary{Assistants: []AssistantSummary{}}

	for _, assistantName := range sortedKeys(fetched) {
		records := fetched[assistantName]

		collection, err := CollectionName(assistantName)
		if err != nil {
			return SyncStatus{}, SyncSummary{}, err
		}

		assistantSummary := AssistantSummary{
			Name:         assistantName,
			ExternalLogs: len(records),
		}

		if len(records) > 0 {
			ids := make([]string, len(records))
			for i, record := range records {
				ids[i] = record.LogID
			}

			existingIDs, err := ae.logStore.FindIDsIn(ctx, collection, ids)
			if err != nil {
				return SyncStatus{}, SyncSummary{}, &DatabaseError{
					Op: "existence check", Collection: collection, Err: err}
			}

			existing := make(map[string]bool, len(existingIDs))
			for _, id := range existingIDs {
				existing[id] = true
			}

			for _, record := range records {
				ref := LogRef{
					Assistant: assistantName,
					LogID:     record.LogID,
					Timestamp: record.RequestTimestamp,
				}
				if existing[record.LogID] {
					syncStatus.IncludedLogs = append(syncStatus.IncludedLogs, ref)
					assistantSummary.SavedLogs++
				} else {
					syncStatus.MissingLogs = append(syncStatus.MissingLogs, ref)
				}
			}
		}

		summary.Assistants = append(summary.Assistants, assistantSummary)
	}

	if len(syncStatus.MissingLogs) > 0 {
		syncStatus.Status = SyncPartial
	}

	summary.IncludedLogs = len(syncStatus.IncludedLogs)
	summary.MissingLogs = len(syncStatus.MissingLogs)
	summary.TotalLogs = summary.IncludedLogs + summary.MissingLogs

	if ae.metrics != nil {
		ae.metrics.Audit.MissingLogs.Add(float64(summary.MissingLogs))
	}

	return syncStatus, summary, nil
}

// repair replays exactly the missing records through the transformer and
// persistence engine, the same path the collection pipeline uses. Records
// are re-selected by id from the original fetch, not re-fetched. Included
// records are never resubmitted.
func (ae *AuditEngine) repair(ctx context.Context,
	fetched map[string][]RawLogRecord, missing []LogRef) {
	missingByAssistant := make(map[string]map[string]bool)
	for _, ref := range missing {
		if missingByAssistant[ref.Assistant] == nil {
			missingByAssistant[ref.Assistant] = make(map[string]bool)
		}
		missingByAssistant[ref.Assistant][ref.LogID] = true
	}

	toRepair := make(map[string][]RawLogRecord, len(missingByAssistant))
	for assistantName, missingIDs := range missingByAssistant {
		for _, record := range fetched[assistantName] {
			if missingIDs[record.LogID] {
				toRepair[assistantName] = append(toRepair[assistantName], record)
			}
		}
	}

	standardized := ae.transformer.ProcessAllAssistants(toRepair)
	results := ae.persistence.SaveProcessedLogs(ctx, standardized)

	repaired := 0
	for assistantName, result := range results {
		if result.Err != "" {
			ae.logger.Error("repair failed for assistant",
				"assistant", assistantName,
				"error", result.Err)
			continue
		}
		repaired += result.Count
	}

	ae.logger.Info("repair completed", "nRepaired", repaired)

	if ae.metrics != nil {
		ae.metrics.Audit.RepairedLogs.Add(float64(repaired))
	}
}

// sanitizedLogsForReport restricts the sanitizer output to the assistants
// that had missing logs, keeping the report small
func (ae *AuditEngine) sanitizedLogsForReport(fetched map[string][]RawLogRecord,
	missing []LogRef) map[string][]RawLogRecord {
	if len(missing) == 0 {
		return nil
	}

	affected := make(map[string]bool)
	for _, ref := range missing {
		affected[ref.Assistant] = true
	}

	sanitized := make(map[string][]RawLogRecord, len(affected))
	for assistantName := range affected {
		sanitized[assistantName] = ae.sanitizer.SanitizeRecords(fetched[assistantName])
	}
	return sanitized
}

// failAudit persists a FAILURE report for traceability, notifies
// stakeholders and re-raises the triggering error
func (ae *AuditEngine) failAudit(ctx context.Context, window TimeWindow, cause error) (SyncReport, error) {
	ae.logger.Error("audit run failed",
		"windowStart", window.Start,
		"windowEnd", window.End,
		"error", cause)

	report := SyncReport{
		ID:        uuid.NewString(),
		Timestamp: ae.now().UTC(),
		Window:    window,
		SyncStatus: SyncStatus{
			Status:       SyncFailure,
			MissingLogs:  []LogRef{},
			IncludedLogs: []LogRef{},
		},
		Summary: SyncSummary{Assistants: []AssistantSummary{}},
	}

	if err := ae.reports.CreateReport(ctx, report); err != nil {
		ae.logger.Error("failed to persist failure report", "error", err)
	}
	if _, err := ae.artifacts.WriteJSON(ctx, "sync-report", report); err != nil {
		ae.logger.Error("failed to write failure report artifact", "error", err)
	}

	if err := ae.notifier.NotifyFailure(ctx, cause, AuditJobName, ae.now()); err != nil {
		ae.logger.Error("failed to notify stakeholders of audit failure", "error", err)
	}

	if ae.metrics != nil {
		ae.metrics.Audit.RunsTotal.WithLabelValues(SyncFailure).Inc()
	}

	return report, cause
}

// CheckPreviousAudits scans the calendar days inside the window for days
// lacking any sync report (or holding only a FAILURE one) and audits each.
// Per-day failures are collected so one bad day does not stop the backfill.
func (ae *AuditEngine) CheckPreviousAudits(ctx context.Context, window TimeWindow) error {
	if err := window.Validate(); err != nil {
		return err
	}

	var failures []error

	for day := window.Start.UTC(); !day.After(window.End); day = day.AddDate(0, 0, 1) {
		dayWindow := DayWindow(day)

		report, err := ae.reports.FindReportInWindow(ctx, dayWindow)
		if err != nil {
			failures = append(failures, fmt.Errorf("failed to look up report for %s: %w",
				day.Format("2006-01-02"), err))
			continue
		}
		if report != nil && report.SyncStatus.Status != SyncFailure {
			continue
		}

		ae.logger.Info("backfilling audit for day", "day", day.Format("2006-01-02"))

		if _, err := ae.AuditForDay(ctx, day); err != nil {
			failures = append(failures, fmt.Errorf("backfill audit for %s failed: %w",
				day.Format("2006-01-02"), err))
		}
	}

	return errors.Join(failures...)
}
