package ports

import (
	"context"

	"github.com/btcvault/por/internal/core/domain"
)

// LedgerReader reads vault records and the attestor group key from the
// ledger contract. Any failure is wrapped with domain.ErrLedgerRead.
type LedgerReader interface {
	GetAttestorGroupKey(ctx context.Context) (string, error)
	// GetFundedVaults returns only well-formed records in FUNDED status.
	GetFundedVaults(ctx context.Context) ([]domain.VaultRecord, error)
	GetAllVaults(ctx context.Context) ([]domain.VaultRecord, error)
	Close()
}
