package ports

import (
	"context"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

// Harvester is the inbound contract for one harvesting run over a batch of addresses.
type Harvester interface {
	Run(ctx context.Context, addresses []string) (domain.RunSummary, error)
}

// LedgerReader is the inbound read model for per-address outcomes.
type LedgerReader interface {
	Lookup(ctx context.Context, address string) (*domain.ProcessingEntry, error)
}

// AddressEnqueuer is the inbound contract for scheduling addresses for the worker.
type AddressEnqueuer interface {
	Enqueue(ctx context.Context, addresses []string) (int, error)
}
