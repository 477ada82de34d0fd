package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

// LedgerRepository keeps the processing ledger in the processing_ledger table.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Get(ctx context.Context, key string) (*domain.ProcessingEntry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT key, status, extracted_fields, artifact_ref, error_message, recorded_at
FROM processing_ledger
WHERE key = $1
`, key)

	var entry domain.ProcessingEntry
	var status string
	var fieldsRaw []byte
	var artifactRef, errMessage sql.NullString
	err := row.Scan(&entry.Key, &status, &fieldsRaw, &artifactRef, &errMessage, &entry.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	if len(fieldsRaw) > 0 {
		if err := json.Unmarshal(fieldsRaw, &entry.ExtractedFields); err != nil {
			return nil, fmt.Errorf("unmarshal extracted fields: %w", err)
		}
	}
	entry.Status = domain.EntryStatus(status)
	entry.ArtifactRef = artifactRef.String
	entry.Error = errMessage.String
	return &entry, nil
}

// Put overwrites the entry for key. Entries are never deleted.
func (r *LedgerRepository) Put(ctx context.Context, key string, entry domain.ProcessingEntry) error {
	fieldsJSON, err := json.Marshal(entry.ExtractedFields)
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO processing_ledger (key, status, extracted_fields, artifact_ref, error_message, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (key) DO UPDATE SET
	status = EXCLUDED.status,
	extracted_fields = EXCLUDED.extracted_fields,
	artifact_ref = EXCLUDED.artifact_ref,
	error_message = EXCLUDED.error_message,
	recorded_at = EXCLUDED.recorded_at
`, key, string(entry.Status), fieldsJSON, nullString(entry.ArtifactRef), nullString(entry.Error), entry.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("put ledger entry: %w", err)
	}
	return nil
}
