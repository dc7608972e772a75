package application

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcvault/por/internal/core/domain"
	"github.com/shopspring/decimal"
)

// MinConfirmations is the depth a funding transaction must reach before its
// vault counts towards the reserves.
const MinConfirmations = 6

type Service interface {
	Start() error
	Stop()
	// Audit reads the ledger, verifies every funded vault against chain
	// data and returns the resulting report.
	Audit(ctx context.Context) (*domain.ReserveReport, error)
	// ComputeProofOfReserve is the total of Audit, in BTC.
	ComputeProofOfReserve(ctx context.Context) (decimal.Decimal, error)
	LatestReport() (*domain.ReserveReport, error)
	ListVaults(ctx context.Context, all bool) ([]domain.VaultRecord, error)
}

type Config struct {
	Network *chaincfg.Params
	// MaxConcurrency bounds the number of vaults verified at once, <= 0
	// means unbounded.
	MaxConcurrency int
	FetchTimeout   time.Duration
	// AuditInterval is the number of seconds between scheduled audits.
	AuditInterval int64
}
