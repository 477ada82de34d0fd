package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

func newLedgerWithMock(t *testing.T) (*LedgerRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewLedgerRepository(db), mock, func() { _ = db.Close() }
}

func TestLedgerGetReturnsNilForUnknownKey(t *testing.T) {
	repo, mock, done := newLedgerWithMock(t)
	defer done()

	mock.ExpectQuery("FROM processing_ledger").
		WithArgs("520 novatan rd s mobile al 36608").
		WillReturnError(sql.ErrNoRows)

	entry, err := repo.Get(context.Background(), "520 novatan rd s mobile al 36608")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry, got %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLedgerGetDecodesEntry(t *testing.T) {
	repo, mock, done := newLedgerWithMock(t)
	defer done()

	recordedAt := time.Date(2025, 7, 9, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"key", "status", "extracted_fields", "artifact_ref", "error_message", "recorded_at"}).
		AddRow("513 malaga drive", "success", []byte(`{"fh_number":"FH25016154","approved_at":"07/08/2025"}`), "artifacts/513-malaga-drive.pdf", nil, recordedAt)
	mock.ExpectQuery("FROM processing_ledger").WithArgs("513 malaga drive").WillReturnRows(rows)

	entry, err := repo.Get(context.Background(), "513 malaga drive")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !entry.Succeeded() || entry.ArtifactRef != "artifacts/513-malaga-drive.pdf" || entry.Error != "" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if domain.StringValue(entry.ExtractedFields.FHNumber) != "FH25016154" || entry.ExtractedFields.Program != nil {
		t.Fatalf("unexpected fields %+v", entry.ExtractedFields)
	}
	if !entry.Timestamp.Equal(recordedAt) {
		t.Fatalf("unexpected timestamp %v", entry.Timestamp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLedgerGetWrapsDriverErrors(t *testing.T) {
	repo, mock, done := newLedgerWithMock(t)
	defer done()

	mock.ExpectQuery("FROM processing_ledger").WithArgs("k").WillReturnError(errors.New("connection reset"))

	if _, err := repo.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLedgerPutUpserts(t *testing.T) {
	repo, mock, done := newLedgerWithMock(t)
	defer done()

	mock.ExpectExec("ON CONFLICT \\(key\\) DO UPDATE").
		WithArgs("invalid address", "no_results", sqlmock.AnyArg(), nil, "search results: record not found", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Put(context.Background(), "invalid address", domain.ProcessingEntry{
		Key:       "invalid address",
		Status:    domain.EntryNoResults,
		Timestamp: time.Now(),
		Error:     "search results: record not found",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(schemaLockID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS processing_ledger").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
