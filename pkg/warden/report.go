package warden

import "time"

// Sync statuses of a reconciliation run
const (
	SyncSuccess = "SUCCESS"
	SyncPartial = "PARTIAL"
	SyncFailure = "FAILURE"
)

// LogRef identifies one raw log record inside a sync report
type LogRef struct {
	Assistant string `json:"assistant"`
	LogID     string `json:"log_id"`
	Timestamp string `json:"timestamp"`
}

// SyncStatus classifies a day's fetched records into included (already in
// the store) and missing (fetched but absent from the store).
type SyncStatus struct {
	Status       string   `json:"status"`
	MissingLogs  []LogRef `json:"missing_logs"`
	IncludedLogs []LogRef `json:"included_logs"`
}

// AssistantSummary holds per-assistant reconciliation counts
type AssistantSummary struct {
	Name         string `json:"name"`
	ExternalLogs int    `json:"external_logs"`
	SavedLogs    int    `json:"saved_logs"`
}

// SyncSummary aggregates the counts of one reconciliation run.
// Invariant: IncludedLogs + MissingLogs == TotalLogs.
type SyncSummary struct {
	TotalLogs    int                `json:"total_logs"`
	IncludedLogs int                `json:"included_logs"`
	MissingLogs  int                `json:"missing_logs"`
	Assistants   []AssistantSummary `json:"assistants"`
}

// SyncReport is the persisted outcome of one audit run for a given day.
// Once created it is the record of truth for that day's reconciliation and
// a later run for the same window must return it instead of re-auditing.
type SyncReport struct {
	ID            string                    `json:"id"`
	Timestamp     time.Time                 `json:"timestamp"`
	Window        TimeWindow                `json:"window"`
	SyncStatus    SyncStatus                `json:"sync_status"`
	Summary       SyncSummary               `json:"summary"`
	SanitizedLogs map[string][]RawLogRecord `json:"sanitized_logs,omitempty"`
}
