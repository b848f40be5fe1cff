package warden

import (
	"log/slog"
	"sort"
	"time"
)

// Transformer maps raw log records into the standardized, store-ready shape.
// The mapping is deterministic; a per-record failure drops the record from
// the output and never aborts the batch (completeness is enforced later by
// the audit engine, not here).
type Transformer struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewTransformer creates a new transformer
func NewTransformer(logger *slog.Logger) *Transformer {
	return &Transformer{logger: logger, now: time.Now}
}

// Transform maps one assistant's raw records into standardized records,
// sorted by timestamp descending. Records that fail to map are logged with
// their log_id and dropped.
func (t *Transformer) Transform(assistantName string, records []RawLogRecord) []StandardizedLogRecord {
	standardized := make([]StandardizedLogRecord, 0, len(records))

	for _, record := range records {
		std, err := t.transformOne(record)
		if err != nil {
			terr := &TransformationError{Assistant: assistantName, LogID: record.LogID, Err: err}
			t.logger.Error("dropping log record that failed to transform",
				"assistant", assistantName,
				"logID", record.LogID,
				"error", terr)
			continue
		}
		standardized = append(standardized, std)
	}

	sort.SliceStable(standardized, func(i, j int) bool {
		return standardized[i].Timestamp.After(standardized[j].Timestamp)
	})

	return standardized
}

// ProcessAllAssistants applies Transform per assistant, independently
func (t *Transformer) ProcessAllAssistants(fetched map[string][]RawLogRecord) map[string][]StandardizedLogRecord {
	processed := make(map[string][]StandardizedLogRecord, len(fetched))
	for assistantName, records := range fetched {
		processed[assistantName] = t.Transform(assistantName, records)
	}
	return processed
}

func (t *Transformer) transformOne(record RawLogRecord) (StandardizedLogRecord, error) {
	response := record.Response
	context := mapAt(response, "context")

	// conversation_id lives on one of two alternate paths depending on the
	// platform API version that produced the record; first non-empty wins.
	conversationID := stringAt(response, "context", "metadata", "user_id")
	if conversationID == "" {
		conversationID = stringAt(response, "context", "global", "system", "user_id")
	}

	userDefined := mapAt(response, "context", "skills", "main skill", "user_defined")

	timestamp, unreliable := t.parseTimestamp(record.RequestTimestamp)

	std := StandardizedLogRecord{
		LogID:          record.LogID,
		ConversationID: conversationID,
		User: UserInfo{
			SessionID: record.SessionID,
			Chapa:     stringAt(userDefined, "chapa"),
			Emplid:    stringAt(userDefined, "emplid"),
		},
		Context:             context,
		Input:               stringAt(response, "input", "text"),
		Intents:             sliceAt(response, "output", "intents"),
		Entities:            sliceAt(response, "output", "entities"),
		Output:              sliceAt(response, "output", "generic"),
		Timestamp:           timestamp,
		TimestampUnreliable: unreliable,
	}

	if err := std.Validate(); err != nil {
		return StandardizedLogRecord{}, err
	}

	return std, nil
}

// parseTimestamp parses the platform's request_timestamp. An unparseable
// value falls back to the current time with the unreliable flag set instead
// of dropping the record.
func (t *Transformer) parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), false
		}
	}
	return t.now().UTC(), true
}

// mapAt walks nested maps along path, returning nil if any step is absent
// or not a map
func mapAt(m map[string]any, path ...string) map[string]any {
	current := m
	for _, key := range path {
		next, ok := current[key].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

// stringAt returns the string at the nested path, or "" if absent or not a string
func stringAt(m map[string]any, path ...string) string {
	if len(path) == 0 {
		return ""
	}
	parent := mapAt(m, path[:len(path)-1]...)
	if parent == nil {
		return ""
	}
	value, _ := parent[path[len(path)-1]].(string)
	return value
}

// sliceAt returns the slice at the nested path, or an empty slice
func sliceAt(m map[string]any, path ...string) []any {
	if len(path) == 0 {
		return []any{}
	}
	parent := mapAt(m, path[:len(path)-1]...)
	if parent == nil {
		return []any{}
	}
	value, ok := parent[path[len(path)-1]].([]any)
	if !ok {
		return []any{}
	}
	return value
}
