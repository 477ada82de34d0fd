package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

// ResultRepository appends result records to harvest_results.
type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) Append(ctx context.Context, rec domain.ResultRecord) error {
	var artifactCreatedAt sql.NullTime
	if rec.ArtifactCreatedAt != nil {
		artifactCreatedAt = sql.NullTime{Time: rec.ArtifactCreatedAt.UTC(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO harvest_results (
	run_id, address, normalized_key, status,
	fh_number, approved_at, expiration_date, building_address, program, designation,
	error_message, failed_step, artifact_ref, artifact_size_bytes, artifact_pages, upload_link,
	processed_at, artifact_created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`,
		rec.RunID, rec.Address, rec.NormalizedKey, string(rec.Status),
		rec.FHNumber, rec.ApprovedAt, rec.ExpirationDate, rec.BuildingAddress, rec.Program, rec.Designation,
		nullString(rec.Error), nullString(rec.FailedStep), nullString(rec.ArtifactRef), rec.ArtifactSize, rec.ArtifactPages,
		nullString(rec.UploadLink), rec.ProcessedAt.UTC(), artifactCreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert harvest result: %w", err)
	}
	return nil
}
