package warden

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scality/log-warden/pkg/clickhouse"
)

// ClickHouseLogStore implements LogStore on ClickHouse, one table per
// assistant collection.
//
// ClickHouse has no native upsert, so idempotency is implemented as
// check-then-insert: each bulk operation first queries which log_ids already
// exist and inserts only the absent ones. With a single active collector
// (the system's operating assumption) this is race-free, and resubmitting a
// record is always a no-op.
type ClickHouseLogStore struct {
	client   *clickhouse.Client
	logger   *slog.Logger
	database string

	mu      sync.Mutex
	ensured map[string]bool
}

// NewClickHouseLogStore creates a new log store
func NewClickHouseLogStore(client *clickhouse.Client, database string, logger *slog.Logger) *ClickHouseLogStore {
	if database == "" {
		database = clickhouse.DatabaseName
	}
	return &ClickHouseLogStore{
		client:   client,
		database: database,
		logger:   logger,
		ensured:  make(map[string]bool),
	}
}

// ensureTable lazily creates the collection table
func (s *ClickHouseLogStore) ensureTable(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ensured[collection] {
		return nil
	}

	query := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.%s (
            log_id String,
            conversation_id String,
            session_id String,
            chapa String,
            emplid String,
            input String,
            context String,
            intents String,
            entities String,
            output String,
            timestamp DateTime64(3, 'UTC'),
            timestamp_unreliable UInt8,
            inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
        )
        ENGINE = MergeTree
        ORDER BY log_id
    `, s.database, collection)

	if err := s.client.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure table %s: %w", collection, err)
	}

	s.ensured[collection] = true
	return nil
}

// BulkUpsert inserts the records whose log_id is not yet present in the
// collection and returns them. Existing log_ids are left untouched.
func (s *ClickHouseLogStore) BulkUpsert(ctx context.Context, collection string,
	records []StandardizedLogRecord) ([]StandardizedLogRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.LogID
	}

	existingIDs, err := s.FindIDsIn(ctx, collection, ids)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = true
	}

	var missing []StandardizedLogRecord
	for _, record := range records {
		if !existing[record.LogID] {
			missing = append(missing, record)
		}
	}

	if len(missing) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
        INSERT INTO %s.%s (
            log_id, conversation_id, session_id, chapa, emplid,
            input, context, intents, entities, output,
            timestamp, timestamp_unreliable
        )
    `, s.database, collection)

	batch, err := s.client.PrepareBatch(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert into %s: %w", collection, err)
	}

	for _, record := range missing {
		err := batch.Append(
			record.LogID,
			record.ConversationID,
			record.User.SessionID,
			record.User.Chapa,
			record.User.Emplid,
			record.Input,
			marshalJSONField(record.Context),
			marshalJSONField(record.Intents),
			marshalJSONField(record.Entities),
			marshalJSONField(record.Output),
			record.Timestamp,
			boolToUInt8(record.TimestampUnreliable),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to append record %s: %w", record.LogID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return nil, fmt.Errorf("failed to insert %d records into %s: %w",
			len(missing), collection, err)
	}

	return missing, nil
}

// FindIDsIn returns the subset of ids already present in the collection
func (s *ClickHouseLogStore) FindIDsIn(ctx context.Context, collection string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	if err := s.ensureTable(ctx, collection); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
        SELECT DISTINCT log_id
        FROM %s.%s
        WHERE log_id IN (?)
    `, s.database, collection)

	rows, err := s.client.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing ids in %s: %w", collection, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var found []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan log_id: %w", err)
		}
		found = append(found, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log_ids: %w", err)
	}

	return found, nil
}

// marshalJSONField serializes a schema-flexible field for storage.
// Marshal failures degrade to "null" rather than failing the batch;
// by this point the record has already passed validation.
func marshalJSONField(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return "null"
	}
	return string(data)
}

func boolToUInt8(value bool) uint8 {
	if value {
		return 1
	}
	return 0
}
