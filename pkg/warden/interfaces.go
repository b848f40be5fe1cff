package warden

import (
	"context"
	"time"
)

// LogSource is the external conversational platform the logs are pulled from
type LogSource interface {
	// ListAssistants returns the fleet of assistants visible to the account
	ListAssistants(ctx context.Context) ([]Assistant, error)

	// ListLogs returns one page of raw log records for an assistant
	// environment, server-side filtered on request_timestamp within window.
	// cursor is empty for the first page.
	ListLogs(ctx context.Context, environmentID string, window TimeWindow,
		pageLimit int, cursor string) (LogsPage, error)
}

// LogStore is the keyed document store standardized records are committed to.
// All writes are upserts keyed by log_id, the store's idempotency primitive.
type LogStore interface {
	// BulkUpsert submits records to the named collection as one unordered
	// upsert-by-log_id operation and returns the records that were newly
	// inserted. Resubmitting an existing log_id is a no-op.
	BulkUpsert(ctx context.Context, collection string,
		records []StandardizedLogRecord) ([]StandardizedLogRecord, error)

	// FindIDsIn returns the subset of ids already present in the collection
	FindIDsIn(ctx context.Context, collection string, ids []string) ([]string, error)
}

// ReportStore persists sync reports and answers the per-day existence guard
type ReportStore interface {
	CreateReport(ctx context.Context, report SyncReport) error

	// FindReportInWindow returns the newest report recorded for the window,
	// or nil if none exists
	FindReportInWindow(ctx context.Context, window TimeWindow) (*SyncReport, error)
}

// Notifier alerts stakeholders of pipeline failures
type Notifier interface {
	NotifyFailure(ctx context.Context, failure error, job string, at time.Time) error
}

// ArtifactWriter writes a timestamped JSON artifact and returns its location
type ArtifactWriter interface {
	WriteJSON(ctx context.Context, prefix string, payload any) (string, error)
}

// Uploader mirrors an artifact to object storage
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, content []byte) error
}
