package blockchaininfoexplorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcvault/por/internal/core/ports"
	"github.com/btcvault/por/internal/infrastructure/explorer"
	"github.com/lightningnetwork/lnd/fn/v2"
)

type rawTx struct {
	Hash        string `json:"hash"`
	BlockHeight *int64 `json:"block_height"`
	Out         []struct {
		Value  int64  `json:"value"`
		Script string `json:"script"`
	} `json:"out"`
}

type latestBlock struct {
	Height int64 `json:"height"`
}

type service struct {
	fetcher *explorer.Fetcher
}

// NewService returns a chain data provider backed by the blockchain.info
// data API. It only serves mainnet.
func NewService(cfg explorer.Config) (ports.ChainDataProvider, error) {
	fetcher, err := explorer.NewFetcher(cfg)
	if err != nil {
		return nil, err
	}
	return &service{fetcher}, nil
}

func (s *service) GetTransaction(ctx context.Context, txid string) (*ports.Transaction, error) {
	txid, err := explorer.NormalizeTxid(txid)
	if err != nil {
		return nil, err
	}

	body, err := s.fetcher.Get(ctx, "rawtx", txid)
	if err != nil {
		return nil, explorer.TxFetchErr(err, txid)
	}

	var tx rawTx
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, explorer.FetchErr(fmt.Errorf("failed to decode tx %s: %s", txid, err))
	}
	if len(tx.Hash) > 0 && !strings.EqualFold(tx.Hash, txid) {
		return nil, explorer.FetchErr(fmt.Errorf("got tx %s, expected %s", tx.Hash, txid))
	}

	outputs := make([]ports.TxOutput, 0, len(tx.Out))
	for i, out := range tx.Out {
		output, err := explorer.ParseOutput(out.Value, out.Script)
		if err != nil {
			return nil, explorer.FetchErr(fmt.Errorf("tx %s output %d: %s", txid, i, err))
		}
		outputs = append(outputs, output)
	}

	return &ports.Transaction{
		Txid:        txid,
		Outputs:     outputs,
		BlockHeight: fn.OptionFromPtr(tx.BlockHeight),
	}, nil
}

func (s *service) GetTipHeight(ctx context.Context) (int64, error) {
	body, err := s.fetcher.Get(ctx, "latestblock")
	if err != nil {
		return 0, explorer.FetchErr(err)
	}

	var block latestBlock
	if err := json.Unmarshal(body, &block); err != nil {
		return 0, explorer.FetchErr(fmt.Errorf("failed to decode latest block: %s", err))
	}
	if block.Height <= 0 {
		return 0, explorer.FetchErr(fmt.Errorf("invalid latest block height %d", block.Height))
	}
	return block.Height, nil
}
