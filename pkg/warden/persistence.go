package warden

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// sortedKeys gives map iteration a stable order so assistants are always
// processed in the same sequence
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// CollectionName maps an assistant name to its storage collection by
// lower-casing it. Names whose lower-cased form ends in a pluralizing "s"
// are rejected: the store's own tables use plural names (audit_reports) and
// a pluralized assistant collection could collide with them.
func CollectionName(assistantName string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(assistantName))
	if name == "" {
		return "", &ConfigurationError{Msg: "assistant name is empty"}
	}
	if strings.HasSuffix(name, "s") {
		return "", &ConfigurationError{Msg: fmt.Sprintf(
			"assistant name %q maps to pluralized collection name %q", assistantName, name)}
	}
	return name, nil
}

// PersistenceEngine idempotently upserts standardized records into
// per-assistant storage in bounded batches with retry/backoff
type PersistenceEngine struct {
	store     LogStore
	logger    *slog.Logger
	metrics   *Metrics
	retry     RetryPolicy
	batchSize int
}

// PersistenceConfig holds persistence engine configuration
type PersistenceConfig struct {
	Store  LogStore
	Logger *slog.Logger
	// Metrics is optional
	Metrics *Metrics
	// BatchSize is the number of records submitted per bulk operation
	BatchSize int
	Retry     RetryPolicy
}

// NewPersistenceEngine creates a new persistence engine
func NewPersistenceEngine(cfg PersistenceConfig) *PersistenceEngine {
	return &PersistenceEngine{
		store:     cfg.Store,
		batchSize: cfg.BatchSize,
		retry:     cfg.Retry,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// SaveMany upserts one assistant's records into its collection. Records are
// split into fixed-size batches submitted strictly in order; a batch is
// retried on transient errors and a non-retryable error or retry exhaustion
// fails the whole call. On success, Count + Duplicates equals len(records).
func (pe *PersistenceEngine) SaveMany(ctx context.Context, assistantName string,
	records []StandardizedLogRecord) (SaveResult, error) {
	collection, err := CollectionName(assistantName)
	if err != nil {
		return SaveResult{Err: err.Error()}, err
	}

	logger := pe.logger.With("assistant", assistantName, "collection", collection)
	logger.Info("saving standardized records", "nRecords", len(records))

	result := SaveResult{Success: true}

	for start := 0; start < len(records); start += pe.batchSize {
		end := start + pe.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		batchNumber := start/pe.batchSize + 1

		var inserted []StandardizedLogRecord
		err := pe.retry.retryWithBackoff(ctx, func() error {
			var opErr error
			inserted, opErr = pe.store.BulkUpsert(ctx, collection, batch)
			return opErr
		}, func(err error) bool {
			return !IsPermanentStoreError(err)
		}, "bulk upsert", logger.With("batch", batchNumber))

		if err != nil {
			dbErr := &DatabaseError{Op: "bulk upsert", Collection: collection, Err: err}
			logger.Error("batch failed after retries",
				"batch", batchNumber,
				"batchSize", len(batch),
				"error", dbErr)
			return SaveResult{Err: dbErr.Error()}, dbErr
		}

		result.Count += len(inserted)
		result.Duplicates += len(batch) - len(inserted)
		result.SavedLogs = append(result.SavedLogs, inserted...)

		logger.Debug("batch saved",
			"batch", batchNumber,
			"saved", len(inserted),
			"duplicates", len(batch)-len(inserted))
	}

	logger.Info("save completed",
		"saved", result.Count,
		"duplicates", result.Duplicates)

	if pe.metrics != nil {
		pe.metrics.Collection.LogsSaved.Add(float64(result.Count))
		pe.metrics.Collection.LogsDuplicate.Add(float64(result.Duplicates))
	}

	return result, nil
}

// SaveProcessedLogs fans the per-assistant map of standardized records out to
// SaveMany and aggregates the results keyed by assistant name. A failure for
// one assistant is recorded in its SaveResult and does not stop the others;
// empty inputs yield a zero-valued success result without a store round-trip.
func (pe *PersistenceEngine) SaveProcessedLogs(ctx context.Context,
	byAssistant map[string][]StandardizedLogRecord) map[string]SaveResult {
	results := make(map[string]SaveResult, len(byAssistant))

	for _, assistantName := range sortedKeys(byAssistant) {
		records := byAssistant[assistantName]
		if len(records) == 0 {
			pe.logger.Info("no records to persist for assistant", "assistant", assistantName)
			results[assistantName] = SaveResult{Success: true}
			continue
		}

		result, err := pe.SaveMany(ctx, assistantName, records)
		if err != nil {
			pe.logger.Error("failed to save records for assistant",
				"assistant", assistantName,
				"error", err)
			results[assistantName] = SaveResult{Err: err.Error()}
			continue
		}
		results[assistantName] = result
	}

	return results
}
