package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
)

type EnqueueUseCase struct {
	queue    ports.AddressQueue
	maxBatch int
}

func NewEnqueueUseCase(queue ports.AddressQueue, maxBatch int) *EnqueueUseCase {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	return &EnqueueUseCase{queue: queue, maxBatch: maxBatch}
}

// Enqueue publishes every address with a non-empty ledger key and returns how
// many were published. Blank entries are dropped; a publish failure stops
// the batch.
func (uc *EnqueueUseCase) Enqueue(ctx context.Context, addresses []string) (int, error) {
	valid := make([]string, 0, len(addresses))
	for _, raw := range addresses {
		if q := domain.NewAddressQuery(raw); q.NormalizedKey != "" {
			valid = append(valid, q.Raw)
		}
	}
	if len(valid) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "enqueue addresses", errors.New("no addresses given"))
	}
	if len(valid) > uc.maxBatch {
		return 0, domain.WrapError(domain.ErrInvalidInput, "enqueue addresses",
			fmt.Errorf("batch of %d exceeds limit %d", len(valid), uc.maxBatch))
	}

	for i, address := range valid {
		if err := uc.queue.PublishAddressRequested(ctx, address); err != nil {
			return i, fmt.Errorf("enqueue %q: %w", address, err)
		}
	}
	return len(valid), nil
}
