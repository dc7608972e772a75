package explorer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcvault/por/internal/core/domain"
	"github.com/btcvault/por/internal/core/ports"
)

// NormalizeTxid validates the txid and returns it in lower case, the form
// explorers use in paths and payloads.
func NormalizeTxid(txid string) (string, error) {
	if err := ValidateTxid(txid); err != nil {
		return "", err
	}
	return strings.ToLower(txid), nil
}

// ValidateTxid rejects anything that is not a 64 char hex txid before it
// ends up in a request path.
func ValidateTxid(txid string) error {
	if len(txid) != chainhash.MaxHashStringSize {
		return fmt.Errorf("%w: invalid txid %q", domain.ErrChainFetch, txid)
	}
	if _, err := chainhash.NewHashFromStr(txid); err != nil {
		return fmt.Errorf("%w: invalid txid %q: %s", domain.ErrChainFetch, txid, err)
	}
	return nil
}

// TxFetchErr maps a fetcher error for the given txid to the domain errors.
func TxFetchErr(err error, txid string) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w: %s", domain.ErrChainFetch, domain.ErrTxNotFound, txid)
	}
	return FetchErr(err)
}

func FetchErr(err error) error {
	if errors.Is(err, domain.ErrChainFetch) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrChainFetch, err)
}

func ParseOutput(value int64, scriptHex string) (ports.TxOutput, error) {
	if value < 0 {
		return ports.TxOutput{}, fmt.Errorf("negative output value %d", value)
	}
	script, err := hex.DecodeString(scriptHex)
	if err != nil {
		return ports.TxOutput{}, fmt.Errorf("invalid output script: %s", err)
	}
	return ports.TxOutput{Value: btcutil.Amount(value), Script: script}, nil
}
