package warden

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scality/log-warden/pkg/clickhouse"
)

// ClickHouseReportStore implements ReportStore on the audit_reports table
type ClickHouseReportStore struct {
	client   *clickhouse.Client
	logger   *slog.Logger
	database string

	ensureOnce sync.Once
	ensureErr  error
}

// NewClickHouseReportStore creates a new report store
func NewClickHouseReportStore(client *clickhouse.Client, database string, logger *slog.Logger) *ClickHouseReportStore {
	if database == "" {
		database = clickhouse.DatabaseName
	}
	return &ClickHouseReportStore{
		client:   client,
		database: database,
		logger:   logger,
	}
}

func (s *ClickHouseReportStore) ensureTable(ctx context.Context) error {
	s.ensureOnce.Do(func() {
		query := fmt.Sprintf(`
            CREATE TABLE IF NOT EXISTS %s.%s (
                report_id String,
                created_at DateTime64(3, 'UTC'),
                window_start DateTime64(3, 'UTC'),
                window_end DateTime64(3, 'UTC'),
                status String,
                report String
            )
            ENGINE = MergeTree
            ORDER BY (window_start, created_at)
        `, s.database, clickhouse.TableAuditReports)

		if err := s.client.Exec(ctx, query); err != nil {
			s.ensureErr = fmt.Errorf("failed to ensure table %s: %w",
				clickhouse.TableAuditReports, err)
		}
	})
	return s.ensureErr
}

// CreateReport persists a sync report
func (s *ClickHouseReportStore) CreateReport(ctx context.Context, report SyncReport) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal sync report %s: %w", report.ID, err)
	}

	query := fmt.Sprintf(`
        INSERT INTO %s.%s (report_id, created_at, window_start, window_end, status, report)
        VALUES (?, ?, ?, ?, ?, ?)
    `, s.database, clickhouse.TableAuditReports)

	err = s.client.Exec(ctx, query,
		report.ID,
		report.Timestamp,
		report.Window.Start,
		report.Window.End,
		report.SyncStatus.Status,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync report %s: %w", report.ID, err)
	}

	s.logger.Info("sync report persisted",
		"reportID", report.ID,
		"status", report.SyncStatus.Status,
		"windowStart", report.Window.Start,
		"windowEnd", report.Window.End)

	return nil
}

// FindReportInWindow returns the newest report whose window overlaps the
// given one, or nil if none exists
func (s *ClickHouseReportStore) FindReportInWindow(ctx context.Context, window TimeWindow) (*SyncReport, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
        SELECT report
        FROM %s.%s
        WHERE window_start <= ? AND window_end >= ?
        ORDER BY created_at DESC
        LIMIT 1
    `, s.database, clickhouse.TableAuditReports)

	row := s.client.QueryRow(ctx, query, window.End, window.Start)

	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query sync report for window: %w", err)
	}

	var report SyncReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored sync report: %w", err)
	}

	return &report, nil
}
