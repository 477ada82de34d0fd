package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kirillkom/certificate-harvester/internal/config"
	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLedgerBackendJSONFile(t *testing.T) {
	res := &resources{}
	defer res.close()
	cfg := config.Config{LedgerBackend: "jsonfile", LedgerPath: filepath.Join(t.TempDir(), "ledger.json")}

	ledger, err := res.ledger(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	entry := domain.ProcessingEntry{Key: "1 main st", Status: domain.EntrySuccess, Timestamp: time.Now().UTC()}
	if err := ledger.Put(context.Background(), entry.Key, entry); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(cfg.LedgerPath); err != nil {
		t.Fatalf("expected ledger file: %v", err)
	}
}

func TestLedgerBackendRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	res := &resources{}
	cfg := config.Config{LedgerBackend: "redis", RedisAddr: mr.Addr(), RedisPrefix: "t:"}

	ledger, err := res.ledger(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	entry := domain.ProcessingEntry{Key: "1 main st", Status: domain.EntryNoResults, Timestamp: time.Now().UTC()}
	if err := ledger.Put(context.Background(), entry.Key, entry); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("t:1 main st") {
		t.Fatalf("expected key in redis, got %v", mr.Keys())
	}
	if len(res.closers) != 1 {
		t.Fatalf("expected redis client to be registered for close")
	}
	res.close()
}

func TestLedgerBackendUnknown(t *testing.T) {
	res := &resources{}
	_, err := res.ledger(context.Background(), config.Config{LedgerBackend: "sqlite"}, discardLogger())
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSinksWriteJSONLinesAndSpreadsheet(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		ResultsPath: filepath.Join(dir, "results.jsonl"),
		XLSXPath:    filepath.Join(dir, "results.xlsx"),
	}
	res := &resources{}

	sink, err := res.sinks(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("open sinks: %v", err)
	}
	rec := domain.ResultRecord{Address: "513 MALAGA DRIVE", NormalizedKey: "513 malaga drive", Status: domain.ResultNoResults}
	if err := sink.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	res.close()

	raw, err := os.ReadFile(cfg.ResultsPath)
	if err != nil || !strings.Contains(string(raw), "513 MALAGA DRIVE") {
		t.Fatalf("expected jsonl record, got %q (%v)", raw, err)
	}
	if _, err := os.Stat(cfg.XLSXPath); err != nil {
		t.Fatalf("expected xlsx export on close: %v", err)
	}
}

func TestResourcesCloseInReverseOrder(t *testing.T) {
	var order []int
	res := &resources{}
	res.onClose(func() { order = append(order, 1) })
	res.onClose(func() { order = append(order, 2) })
	res.close()
	res.close()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("unexpected close order %v", order)
	}
}
