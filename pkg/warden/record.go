package warden

import (
	"fmt"
	"time"
)

// Assistant is one assistant listed by the external conversational platform
type Assistant struct {
	Name         string                 `json:"name"`
	AssistantID  string                 `json:"assistant_id"`
	Language     string                 `json:"language"`
	Description  string                 `json:"description"`
	Environments []AssistantEnvironment `json:"assistant_environments"`
}

// AssistantEnvironment is a named deployment environment of an assistant
type AssistantEnvironment struct {
	Name          string `json:"name"`
	EnvironmentID string `json:"environment_id"`
}

// LiveEnvironment returns the assistant's "live" environment, if any
func (a Assistant) LiveEnvironment() (AssistantEnvironment, bool) {
	for _, env := range a.Environments {
		if env.Name == "live" {
			return env, true
		}
	}
	return AssistantEnvironment{}, false
}

// RawLogRecord is one transcript entry as returned by the platform.
// The input/response payloads are schema-flexible and kept opaque.
// log_id is unique per assistant but not across assistants.
type RawLogRecord struct {
	LogID             string         `json:"log_id"`
	RequestTimestamp  string         `json:"request_timestamp"`
	ResponseTimestamp string         `json:"response_timestamp"`
	Language          string         `json:"language"`
	CustomerID        string         `json:"customer_id,omitempty"`
	AssistantID       string         `json:"assistant_id"`
	SessionID         string         `json:"session_id,omitempty"`
	Input             map[string]any `json:"input"`
	Response          map[string]any `json:"response"`
}

// RateLimit carries the rate-limit telemetry headers of one platform response
type RateLimit struct {
	Remaining int
	Limit     int
	Reset     time.Time
}

// LogsPage is one page of raw log records plus the cursor to the next page
type LogsPage struct {
	Records    []RawLogRecord
	NextCursor string
	RateLimit  RateLimit
}

// TimeWindow is an inclusive UTC time interval scoping fetch and audit
type TimeWindow struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Validate checks the window invariant Start <= End
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return &ValidationError{Msg: "time window boundaries must be set"}
	}
	if w.End.Before(w.Start) {
		return &ValidationError{Msg: fmt.Sprintf(
			"time window start %s is after end %s", w.Start, w.End)}
	}
	return nil
}

// Contains reports whether t falls inside the window (boundaries inclusive)
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// DayWindow returns the UTC calendar-day window containing date
func DayWindow(date time.Time) TimeWindow {
	date = date.UTC()
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return TimeWindow{
		Start: start,
		End:   start.Add(24*time.Hour - time.Millisecond),
	}
}

// UserInfo identifies the user behind one conversation turn
type UserInfo struct {
	SessionID string `json:"session_id"`
	Chapa     string `json:"chapa,omitempty"`
	Emplid    string `json:"emplid,omitempty"`
}

// StandardizedLogRecord is the normalized, store-ready shape derived from a
// RawLogRecord. log_id is carried through unchanged and is the dedup key.
type StandardizedLogRecord struct {
	LogID          string         `json:"log_id"`
	ConversationID string         `json:"conversation_id"`
	User           UserInfo       `json:"user"`
	Context        map[string]any `json:"context"`
	Input          string         `json:"input"`
	Intents        []any          `json:"intents"`
	Entities       []any          `json:"entities"`
	Output         []any          `json:"output"`
	Timestamp      time.Time      `json:"timestamp"`

	// TimestampUnreliable marks records whose request_timestamp could not be
	// parsed and whose Timestamp was substituted with the processing time.
	TimestampUnreliable bool `json:"timestamp_unreliable,omitempty"`
}

// Validate checks the standardized shape before persistence
func (r StandardizedLogRecord) Validate() error {
	if r.LogID == "" {
		return &ValidationError{Msg: "standardized record has empty log_id"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Msg: fmt.Sprintf(
			"standardized record %s has zero timestamp", r.LogID)}
	}
	return nil
}

// SaveResult reports the outcome of one persistence call for one assistant.
// When Success is true, Count + Duplicates equals the number of records
// submitted in that call.
type SaveResult struct {
	Success    bool                    `json:"success"`
	Count      int                     `json:"count"`
	Duplicates int                     `json:"duplicates"`
	SavedLogs  []StandardizedLogRecord `json:"saved_logs,omitempty"`
	Err        string                  `json:"error,omitempty"`
}
