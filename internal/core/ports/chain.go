package ports

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn/v2"
)

type TxOutput struct {
	Value  btcutil.Amount
	Script []byte
}

type Transaction struct {
	Txid    string
	Outputs []TxOutput
	// BlockHeight is None while the transaction is unconfirmed.
	BlockHeight fn.Option[int64]
}

// ChainDataProvider gives read access to Bitcoin chain data. Failures are
// wrapped with domain.ErrChainFetch, unknown transactions with
// domain.ErrTxNotFound as well.
type ChainDataProvider interface {
	GetTransaction(ctx context.Context, txid string) (*Transaction, error)
	GetTipHeight(ctx context.Context) (int64, error)
}
