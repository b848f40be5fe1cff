package warden

import (
	"fmt"

	"github.com/scality/log-warden/pkg/util"
)

const (
	// MaxBatchSize is the hard limit on a single bulk upsert to prevent OOM
	MaxBatchSize = 100_000
)

// ValidateConfig performs additional validation beyond required field checks
func ValidateConfig() error {
	logLevel := ConfigSpec.GetString("log-level")
	validLevels := map[string]bool{"error": true, "warn": true, "info": true, "debug": true}
	if !validLevels[logLevel] {
		return fmt.Errorf("invalid log-level: %s (must be error|warn|info|debug)", logLevel)
	}

	if ConfigSpec.GetString("source.url") == "" {
		return fmt.Errorf("source.url must be set")
	}
	if ConfigSpec.GetString("source.api-key") == "" {
		return fmt.Errorf("source.api-key must be set")
	}

	pageLimit := ConfigSpec.GetInt("source.page-limit")
	if pageLimit <= 0 {
		return fmt.Errorf("source.page-limit must be positive, got %d", pageLimit)
	}

	batchSize := ConfigSpec.GetInt("store.batch-size")
	if batchSize <= 0 {
		return fmt.Errorf("store.batch-size must be positive, got %d", batchSize)
	}
	if batchSize > MaxBatchSize {
		return fmt.Errorf("store.batch-size (%d) exceeds maximum allowed (%d)", batchSize, MaxBatchSize)
	}

	maxRetries := ConfigSpec.GetInt("retry.max-retries")
	if maxRetries < 0 {
		return fmt.Errorf("retry.max-retries must not be negative, got %d", maxRetries)
	}

	initialBackoff := ConfigSpec.GetInt("retry.initial-backoff-seconds")
	if initialBackoff <= 0 {
		return fmt.Errorf("retry.initial-backoff-seconds must be positive, got %d", initialBackoff)
	}

	collectionInterval := ConfigSpec.GetInt("collector.interval-minutes")
	if collectionInterval <= 0 {
		return fmt.Errorf("collector.interval-minutes must be positive, got %d", collectionInterval)
	}

	auditInterval := ConfigSpec.GetInt("audit.interval-hours")
	if auditInterval <= 0 {
		return fmt.Errorf("audit.interval-hours must be positive, got %d", auditInterval)
	}

	if ConfigSpec.GetString("notify.email-url") != "" &&
		len(util.ParseCommaSeparatedList(ConfigSpec.GetString("notify.stakeholders"))) == 0 {
		return fmt.Errorf("notify.stakeholders must be set when notify.email-url is configured")
	}

	return nil
}
