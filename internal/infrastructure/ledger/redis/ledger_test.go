package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

func newTestLedger(t *testing.T) (*Ledger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test:"), mr
}

func TestLedgerRoundTrip(t *testing.T) {
	l, mr := newTestLedger(t)
	ctx := context.Background()

	entry := domain.ProcessingEntry{
		Key:       "520 novatan rd s mobile al 36608",
		Status:    domain.EntryNoCertificate,
		Timestamp: time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC),
	}
	if err := l.Put(ctx, entry.Key, entry); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("test:" + entry.Key) {
		t.Fatalf("expected prefixed key in redis, keys=%v", mr.Keys())
	}
	if ttl := mr.TTL("test:" + entry.Key); ttl != 0 {
		t.Fatalf("ledger entries must not expire, ttl=%v", ttl)
	}

	got, err := l.Get(ctx, entry.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.EntryNoCertificate || !got.Timestamp.Equal(entry.Timestamp) {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestLedgerGetMissingReturnsNil(t *testing.T) {
	l, _ := newTestLedger(t)
	got, err := l.Get(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", got, err)
	}
}

func TestLedgerGetRejectsCorruptValue(t *testing.T) {
	l, mr := newTestLedger(t)
	if err := mr.Set("test:k", "{oops"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := l.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLedgerReportsConnectionErrors(t *testing.T) {
	l, mr := newTestLedger(t)
	mr.Close()
	if err := l.Put(context.Background(), "k", domain.ProcessingEntry{Key: "k"}); err == nil {
		t.Fatalf("expected error after server shutdown")
	}
}
