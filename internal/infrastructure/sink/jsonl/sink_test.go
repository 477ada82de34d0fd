package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

func TestAppendWritesOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.jsonl")
	sink, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	fh := "FH25016154"
	records := []domain.ResultRecord{
		{Address: "513 MALAGA DRIVE", Status: domain.ResultDownloaded, CertificateRecord: domain.CertificateRecord{FHNumber: &fh}, ProcessedAt: time.Now()},
		{Address: "INVALID ADDRESS", Status: domain.ResultNoResults, ProcessedAt: time.Now()},
	}
	for _, rec := range records {
		if err := sink.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open results: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["fh_number"] != fh || lines[0]["status"] != "downloaded" {
		t.Fatalf("unexpected first line %v", lines[0])
	}
	if v, ok := lines[1]["fh_number"]; !ok || v != nil {
		t.Fatalf("absent fields must be null, got %v", lines[1])
	}
}

func TestOpenAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	for i := 0; i < 2; i++ {
		sink, err := Open(path)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		_ = sink.Append(context.Background(), domain.ResultRecord{Address: "a"})
		_ = sink.Close()
	}
	raw, _ := os.ReadFile(path)
	if n := bytes.Count(raw, []byte("\n")); n != 2 {
		t.Fatalf("expected 2 lines after reopen, got %d", n)
	}
}
