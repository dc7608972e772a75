package domain

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

const (
	OutcomeVerified VaultOutcome = "verified"
	OutcomeRejected VaultOutcome = "rejected"
	OutcomeExcluded VaultOutcome = "excluded"
)

type VaultOutcome string

const (
	StageStart VerificationStage = iota
	StageFetchedTx
	StageHeightChecked
	StageScriptMatched
)

// VerificationStage is the last state a vault reached in the verifier.
type VerificationStage int

func (s VerificationStage) String() string {
	switch s {
	case StageFetchedTx:
		return "FETCHED_TX"
	case StageHeightChecked:
		return "HEIGHT_CHECKED"
	case StageScriptMatched:
		return "SCRIPT_MATCHED"
	default:
		return "START"
	}
}

func (s VerificationStage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type VaultResult struct {
	UUID            string            `json:"uuid"`
	ValueLocked     btcutil.Amount    `json:"value_locked_sats"`
	FundingTxID     string            `json:"funding_txid"`
	Outcome         VaultOutcome      `json:"outcome"`
	Stage           VerificationStage `json:"stage"`
	Reason          string            `json:"reason,omitempty"`
	Confirmations   int64             `json:"confirmations,omitempty"`
	ExpectedScript  string            `json:"expected_script,omitempty"`
	ExpectedAddress string            `json:"expected_address,omitempty"`
}

func (r VaultResult) IsVerified() bool {
	return r.Outcome == OutcomeVerified
}

type ReserveReport struct {
	Total        decimal.Decimal `json:"total_btc"`
	TotalSats    btcutil.Amount  `json:"total_sats"`
	FundedVaults int             `json:"funded_vaults"`
	Verified     int             `json:"verified"`
	Rejected     int             `json:"rejected"`
	Excluded     int             `json:"excluded"`
	AttestorKey  string          `json:"attestor_key"`
	StartedAt    time.Time       `json:"started_at"`
	Duration     time.Duration   `json:"duration_ns"`
	Vaults       []VaultResult   `json:"vaults,omitempty"`
}

// SatsToBTC rescales an amount of satoshis to BTC without loss of
// precision.
func SatsToBTC(amount btcutil.Amount) decimal.Decimal {
	return decimal.New(int64(amount), -8)
}

// NewReserveReport counts outcomes of the given results. Total and TotalSats
// are left to the caller.
func NewReserveReport(
	attestorKey string, startedAt time.Time, results []VaultResult,
) *ReserveReport {
	report := &ReserveReport{
		FundedVaults: len(results),
		AttestorKey:  attestorKey,
		StartedAt:    startedAt,
		Vaults:       results,
	}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeVerified:
			report.Verified++
		case OutcomeRejected:
			report.Rejected++
		default:
			report.Excluded++
		}
	}
	return report
}

// FormattedTotal renders the total with exactly 8 fractional digits.
func (r *ReserveReport) FormattedTotal() string {
	return r.Total.StringFixed(8)
}
