package domain

import (
	"errors"

	"github.com/btcvault/por/pkg/custody"
)

var (
	ErrDerivation         = custody.ErrDerivation
	ErrScriptConstruction = custody.ErrScriptConstruction

	ErrChainFetch = errors.New("chain data fetch error")
	ErrTxNotFound = errors.New("transaction not found")
	ErrLedgerRead = errors.New("ledger read error")
	ErrValidation = errors.New("invalid vault record")
	ErrNoReport   = errors.New("no audit report available yet")
)
