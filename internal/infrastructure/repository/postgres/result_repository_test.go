package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

func TestResultAppendInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	fh := "FH25016154"
	rec := domain.ResultRecord{
		CertificateRecord: domain.CertificateRecord{FHNumber: &fh},
		RunID:             "run-1",
		Address:           "513 MALAGA DRIVE",
		NormalizedKey:     "513 malaga drive",
		Status:            domain.ResultDownloaded,
		ArtifactRef:       "artifacts/a.pdf",
		ArtifactSize:      2048,
		ArtifactPages:     1,
		ProcessedAt:       time.Now(),
	}

	mock.ExpectExec("INSERT INTO harvest_results").
		WithArgs("run-1", "513 MALAGA DRIVE", "513 malaga drive", "downloaded",
			"FH25016154", nil, nil, nil, nil, nil,
			nil, nil, "artifacts/a.pdf", 2048, 1, nil,
			sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := NewResultRepository(db).Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResultAppendWrapsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO harvest_results").WillReturnError(errors.New("disk full"))

	err = NewResultRepository(db).Append(context.Background(), domain.ResultRecord{RunID: "r", ProcessedAt: time.Now()})
	if err == nil {
		t.Fatalf("expected error")
	}
}
