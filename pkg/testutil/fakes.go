// Package testutil provides in-memory implementations of the pipeline's
// external dependencies for tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/scality/log-warden/pkg/warden"
)

// ListLogsCall records one ListLogs invocation for assertions
type ListLogsCall struct {
	EnvironmentID string
	Cursor        string
	PageLimit     int
	Window        warden.TimeWindow
}

// FakeSource implements warden.LogSource over canned pages. Pages are keyed
// by environment ID and cursor, with "" addressing the first page.
type FakeSource struct {
	mu sync.Mutex

	Assistants []warden.Assistant
	// Pages maps environmentID -> cursor -> page
	Pages map[string]map[string]warden.LogsPage

	ListAssistantsErr error
	// ListLogsErr fails every ListLogs call for the given environment ID
	ListLogsErr map[string]error

	ListLogsCalls []ListLogsCall
}

// NewFakeSource creates an empty fake source
func NewFakeSource() *FakeSource {
	return &FakeSource{
		Pages:       make(map[string]map[string]warden.LogsPage),
		ListLogsErr: make(map[string]error),
	}
}

// AddPages installs a paged sequence of records for an environment, chaining
// the given cursors. len(cursors) must be len(pages)-1.
func (s *FakeSource) AddPages(environmentID string, cursors []string, pages ...[]warden.RawLogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Pages[environmentID] == nil {
		s.Pages[environmentID] = make(map[string]warden.LogsPage)
	}

	cursor := ""
	for i, records := range pages {
		next := ""
		if i < len(cursors) {
			next = cursors[i]
		}
		s.Pages[environmentID][cursor] = warden.LogsPage{Records: records, NextCursor: next}
		cursor = next
	}
}

// ListAssistants implements warden.LogSource
func (s *FakeSource) ListAssistants(_ context.Context) ([]warden.Assistant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListAssistantsErr != nil {
		return nil, s.ListAssistantsErr
	}
	return s.Assistants, nil
}

// ListLogs implements warden.LogSource
func (s *FakeSource) ListLogs(_ context.Context, environmentID string, window warden.TimeWindow,
	pageLimit int, cursor string) (warden.LogsPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ListLogsCalls = append(s.ListLogsCalls, ListLogsCall{
		EnvironmentID: environmentID,
		Cursor:        cursor,
		PageLimit:     pageLimit,
		Window:        window,
	})

	if err := s.ListLogsErr[environmentID]; err != nil {
		return warden.LogsPage{}, err
	}
	return s.Pages[environmentID][cursor], nil
}

// FakeLogStore implements warden.LogStore in memory, keyed by collection and
// log_id. It honors the upsert contract: resubmitting an existing log_id is
// a no-op and only newly inserted records are returned.
type FakeLogStore struct {
	mu sync.Mutex

	collections map[string]map[string]warden.StandardizedLogRecord

	// TransientFailures fails the next N BulkUpsert calls with TransientErr
	// before letting calls through, to exercise retry paths
	TransientFailures int
	TransientErr      error

	// UpsertErr fails every BulkUpsert call
	UpsertErr error
	// FindErr fails every FindIDsIn call
	FindErr error

	UpsertCalls int
}

// NewFakeLogStore creates an empty fake log store
func NewFakeLogStore() *FakeLogStore {
	return &FakeLogStore{
		collections: make(map[string]map[string]warden.StandardizedLogRecord),
	}
}

// BulkUpsert implements warden.LogStore
func (s *FakeLogStore) BulkUpsert(_ context.Context, collection string,
	records []warden.StandardizedLogRecord) ([]warden.StandardizedLogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.UpsertCalls++

	if s.TransientFailures > 0 {
		s.TransientFailures--
		return nil, s.TransientErr
	}
	if s.UpsertErr != nil {
		return nil, s.UpsertErr
	}

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]warden.StandardizedLogRecord)
	}

	var inserted []warden.StandardizedLogRecord
	for _, record := range records {
		if _, exists := s.collections[collection][record.LogID]; exists {
			continue
		}
		s.collections[collection][record.LogID] = record
		inserted = append(inserted, record)
	}
	return inserted, nil
}

// FindIDsIn implements warden.LogStore
func (s *FakeLogStore) FindIDsIn(_ context.Context, collection string, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FindErr != nil {
		return nil, s.FindErr
	}

	var found []string
	for _, id := range ids {
		if _, exists := s.collections[collection][id]; exists {
			found = append(found, id)
		}
	}
	return found, nil
}

// Seed inserts records directly, bypassing failure injection
func (s *FakeLogStore) Seed(collection string, records ...warden.StandardizedLogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]warden.StandardizedLogRecord)
	}
	for _, record := range records {
		s.collections[collection][record.LogID] = record
	}
}

// Count returns the number of records stored in a collection
func (s *FakeLogStore) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

// Has reports whether the collection holds the given log_id
func (s *FakeLogStore) Has(collection, logID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.collections[collection][logID]
	return exists
}

// FakeReportStore implements warden.ReportStore in memory
type FakeReportStore struct {
	mu sync.Mutex

	Reports []warden.SyncReport

	CreateErr error
	FindErr   error
}

// NewFakeReportStore creates an empty fake report store
func NewFakeReportStore() *FakeReportStore {
	return &FakeReportStore{}
}

// CreateReport implements warden.ReportStore
func (s *FakeReportStore) CreateReport(_ context.Context, report warden.SyncReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.Reports = append(s.Reports, report)
	return nil
}

// FindReportInWindow implements warden.ReportStore. The newest report whose
// window overlaps the given one wins, matching the database-backed store.
func (s *FakeReportStore) FindReportInWindow(_ context.Context, window warden.TimeWindow) (*warden.SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FindErr != nil {
		return nil, s.FindErr
	}

	for i := len(s.Reports) - 1; i >= 0; i-- {
		report := s.Reports[i]
		if !report.Window.Start.After(window.End) && !report.Window.End.Before(window.Start) {
			found := report
			return &found, nil
		}
	}
	return nil, nil
}

// NotifiedFailure records one NotifyFailure invocation
type NotifiedFailure struct {
	Failure error
	Job     string
	At      time.Time
}

// FakeNotifier implements warden.Notifier and records every notification
type FakeNotifier struct {
	mu sync.Mutex

	Notifications []NotifiedFailure
	Err           error
}

// NotifyFailure implements warden.Notifier
func (n *FakeNotifier) NotifyFailure(_ context.Context, failure error, job string, at time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.Notifications = append(n.Notifications, NotifiedFailure{Failure: failure, Job: job, At: at})
	return n.Err
}

// ArtifactWrite records one WriteJSON invocation
type ArtifactWrite struct {
	Name    string
	Payload any
}

// FakeArtifactWriter implements warden.ArtifactWriter and records payloads
type FakeArtifactWriter struct {
	mu sync.Mutex

	Writes []ArtifactWrite
	Err    error
}

// WriteJSON implements warden.ArtifactWriter
func (w *FakeArtifactWriter) WriteJSON(_ context.Context, name string, payload any) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.Err != nil {
		return "", w.Err
	}
	w.Writes = append(w.Writes, ArtifactWrite{Name: name, Payload: payload})
	return "/tmp/" + name + ".json", nil
}

// FakeUploader implements warden.Uploader and keeps uploaded objects in memory
type FakeUploader struct {
	mu sync.Mutex

	Objects map[string][]byte
	Err     error
}

// NewFakeUploader creates an empty fake uploader
func NewFakeUploader() *FakeUploader {
	return &FakeUploader{Objects: make(map[string][]byte)}
}

// Upload implements warden.Uploader, storing content under "bucket/key"
func (u *FakeUploader) Upload(_ context.Context, bucket, key string, content []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.Err != nil {
		return u.Err
	}
	u.Objects[bucket+"/"+key] = content
	return nil
}
