package domain

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	VaultReady VaultStatus = iota
	VaultFunded
	VaultClosing
	VaultClosed
)

type VaultStatus uint8

func (s VaultStatus) String() string {
	switch s {
	case VaultReady:
		return "READY"
	case VaultFunded:
		return "FUNDED"
	case VaultClosing:
		return "CLOSING"
	case VaultClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("AUX_STATE_%d", s-VaultClosed)
	}
}

// VaultRecord is a custody entry as stored in the ledger contract.
type VaultRecord struct {
	UUID          [32]byte
	ValueLocked   btcutil.Amount
	FundingTxID   string
	TaprootPubKey []byte
	Status        VaultStatus

	ProtocolContract        string
	Creator                 string
	Timestamp               int64
	ClosingTxID             string
	BTCFeeRecipient         string
	BTCMintFeeBasisPoints   uint64
	BTCRedeemFeeBasisPoints uint64
}

func (v VaultRecord) UUIDHex() string {
	return hex.EncodeToString(v.UUID[:])
}

func (v VaultRecord) IsFunded() bool {
	return v.Status == VaultFunded
}

// Validate checks the record carries everything needed to verify it on
// chain.
func (v VaultRecord) Validate() error {
	if v.UUID == ([32]byte{}) {
		return fmt.Errorf("%w: missing uuid", ErrValidation)
	}
	if len(v.FundingTxID) <= 0 {
		return fmt.Errorf("%w: missing funding txid", ErrValidation)
	}
	if _, err := chainhash.NewHashFromStr(v.FundingTxID); err != nil ||
		len(v.FundingTxID) != chainhash.MaxHashStringSize {
		return fmt.Errorf("%w: invalid funding txid %s", ErrValidation, v.FundingTxID)
	}
	if len(v.TaprootPubKey) <= 0 || bytes.Equal(v.TaprootPubKey, make([]byte, len(v.TaprootPubKey))) {
		return fmt.Errorf("%w: missing taproot public key", ErrValidation)
	}
	if v.ValueLocked <= 0 {
		return fmt.Errorf("%w: missing value locked", ErrValidation)
	}
	return nil
}
