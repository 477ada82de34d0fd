package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
)

type LedgerQueryUseCase struct {
	ledger ports.ProcessingLedger
}

func NewLedgerQueryUseCase(ledger ports.ProcessingLedger) *LedgerQueryUseCase {
	return &LedgerQueryUseCase{ledger: ledger}
}

// Lookup normalizes address and returns its last recorded outcome, or
// domain.ErrNotFound when none exists.
func (uc *LedgerQueryUseCase) Lookup(ctx context.Context, address string) (*domain.ProcessingEntry, error) {
	key := domain.NormalizeAddress(address)
	if key == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "lookup ledger", errors.New("address is required"))
	}
	entry, err := uc.ledger.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup ledger: %w", err)
	}
	if entry == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "lookup ledger", fmt.Errorf("no outcome recorded for %q", key))
	}
	return entry, nil
}
