package warden

// DefaultMaskToken is the token substituted for sensitive string values
const DefaultMaskToken = "**CONFIDENTIAL**"

// Sanitizer produces a depersonalized view of raw records for reporting.
// It never feeds the standardized store.
type Sanitizer struct {
	sensitive map[string]bool
	mask      string
}

// NewSanitizer creates a sanitizer masking the given field names.
// An empty mask falls back to DefaultMaskToken.
func NewSanitizer(sensitiveFields []string, mask string) *Sanitizer {
	if mask == "" {
		mask = DefaultMaskToken
	}
	sensitive := make(map[string]bool, len(sensitiveFields))
	for _, field := range sensitiveFields {
		sensitive[field] = true
	}
	return &Sanitizer{sensitive: sensitive, mask: mask}
}

// SanitizeRecords returns copies of the records whose response payloads have
// every sensitive field masked, at any nesting depth. Input records are not
// modified.
func (s *Sanitizer) SanitizeRecords(records []RawLogRecord) []RawLogRecord {
	sanitized := make([]RawLogRecord, len(records))
	for i, record := range records {
		sanitized[i] = record
		if masked, ok := s.sanitizeValue(record.Response).(map[string]any); ok {
			sanitized[i].Response = masked
		}
	}
	return sanitized
}

// sanitizeValue recursively walks maps and slices, replacing the string value
// of any sensitive key with the mask token. A non-string value under a
// sensitive key passes through unmasked and unvisited; this matches the
// historical reporting behavior and report consumers rely on it for numeric
// fields.
func (s *Sanitizer) sanitizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		sanitized := make(map[string]any, len(typed))
		for key, val := range typed {
			if s.sensitive[key] {
				if _, isString := val.(string); isString {
					sanitized[key] = s.mask
				} else {
					sanitized[key] = val
				}
			} else {
				sanitized[key] = s.sanitizeValue(val)
			}
		}
		return sanitized
	case []any:
		sanitized := make([]any, len(typed))
		for i, item := range typed {
			sanitized[i] = s.sanitizeValue(item)
		}
		return sanitized
	default:
		return value
	}
}
