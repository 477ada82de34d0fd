package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

func TestLookupNormalizesAddress(t *testing.T) {
	ledger := newLedgerFake()
	ledger.entries["513 malaga drive"] = domain.ProcessingEntry{Key: "513 malaga drive", Status: domain.EntrySuccess}

	entry, err := NewLedgerQueryUseCase(ledger).Lookup(context.Background(), "  513 Malaga Drive ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !entry.Succeeded() {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestLookupErrors(t *testing.T) {
	uc := NewLedgerQueryUseCase(newLedgerFake())
	if _, err := uc.Lookup(context.Background(), " , "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := uc.Lookup(context.Background(), "1 Nowhere Rd"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type queueFake struct {
	published []string
	failAt    int
}

func (f *queueFake) PublishAddressRequested(_ context.Context, address string) error {
	if f.failAt > 0 && len(f.published)+1 == f.failAt {
		return errors.New("nats down")
	}
	f.published = append(f.published, address)
	return nil
}

func (f *queueFake) SubscribeAddressRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

func TestEnqueuePublishesValidAddresses(t *testing.T) {
	queue := &queueFake{}
	n, err := NewEnqueueUseCase(queue, 0).Enqueue(context.Background(), []string{" 513 MALAGA DRIVE ", "", "---", "1 Main St"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n != 2 || queue.published[0] != "513 MALAGA DRIVE" {
		t.Fatalf("unexpected publish %d %v", n, queue.published)
	}
}

func TestEnqueueRejectsEmptyAndOversizedBatches(t *testing.T) {
	uc := NewEnqueueUseCase(&queueFake{}, 1)
	if _, err := uc.Enqueue(context.Background(), []string{" "}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := uc.Enqueue(context.Background(), []string{"1 A St", "2 B St"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected batch limit error, got %v", err)
	}
}

func TestEnqueueReportsPartialProgress(t *testing.T) {
	queue := &queueFake{failAt: 2}
	n, err := NewEnqueueUseCase(queue, 0).Enqueue(context.Background(), []string{"1 A St", "2 B St", "3 C St"})
	if err == nil || n != 1 {
		t.Fatalf("expected failure after 1 publish, got %d, %v", n, err)
	}
}
