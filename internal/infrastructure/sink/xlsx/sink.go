package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

const sheet = "Results"

var header = []any{
	"Address", "Status", "FORTIFIED ID", "Approved", "Expiration", "Building Address",
	"Program", "Designation", "Artifact", "Pages", "Upload Link", "Failed Step", "Error", "Processed At",
}

// Sink keeps the workbook in memory and writes it to disk every flushEvery
// rows and on Close.
type Sink struct {
	path       string
	flushEvery int

	mu   sync.Mutex
	file *excelize.File
	row  int
}

func New(path string, flushEvery int) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	if flushEvery <= 0 {
		flushEvery = 25
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("freeze header: %w", err)
	}
	return &Sink{path: path, flushEvery: flushEvery, file: f, row: 1}, nil
}

func (s *Sink) Append(_ context.Context, rec domain.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return fmt.Errorf("result cell: %w", err)
	}
	values := rowValues(rec)
	if err := s.file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write result row: %w", err)
	}
	if (s.row-1)%s.flushEvery == 0 {
		return s.save()
	}
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.save()
	if closeErr := s.file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close workbook: %w", closeErr)
	}
	return err
}

func (s *Sink) save() error {
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func rowValues(rec domain.ResultRecord) []any {
	pages := any("")
	if rec.ArtifactPages > 0 {
		pages = rec.ArtifactPages
	}
	return []any{
		rec.Address,
		string(rec.Status),
		domain.StringValue(rec.FHNumber),
		domain.StringValue(rec.ApprovedAt),
		domain.StringValue(rec.ExpirationDate),
		domain.StringValue(rec.BuildingAddress),
		domain.StringValue(rec.Program),
		domain.StringValue(rec.Designation),
		rec.ArtifactRef,
		pages,
		rec.UploadLink,
		rec.FailedStep,
		rec.Error,
		rec.ProcessedAt.UTC().Format(time.RFC3339),
	}
}
