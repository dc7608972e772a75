package esploraexplorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcvault/por/internal/core/ports"
	"github.com/btcvault/por/internal/infrastructure/explorer"
	"github.com/lightningnetwork/lnd/fn/v2"
)

type esploraTx struct {
	Txid string `json:"txid"`
	Vout []struct {
		Value        int64  `json:"value"`
		ScriptPubKey string `json:"scriptpubkey"`
	} `json:"vout"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
	} `json:"status"`
}

type service struct {
	fetcher *explorer.Fetcher
}

// NewService returns a chain data provider backed by an Esplora REST API
// (blockstream.info, mempool.space or a self hosted electrs).
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

	body, err := s.fetcher.Get(ctx, "tx", txid)
	if err != nil {
		return nil, explorer.TxFetchErr(err, txid)
	}

	var tx esploraTx
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, explorer.FetchErr(fmt.Errorf("failed to decode tx %s: %s", txid, err))
	}
	if len(tx.Txid) > 0 && !strings.EqualFold(tx.Txid, txid) {
		return nil, explorer.FetchErr(fmt.Errorf("got tx %s, expected %s", tx.Txid, txid))
	}

	outputs := make([]ports.TxOutput, 0, len(tx.Vout))
	for i, out := range tx.Vout {
		output, err := explorer.ParseOutput(out.Value, out.ScriptPubKey)
		if err != nil {
			return nil, explorer.FetchErr(fmt.Errorf("tx %s output %d: %s", txid, i, err))
		}
		outputs = append(outputs, output)
	}

	blockHeight := fn.None[int64]()
	if tx.Status.Confirmed {
		blockHeight = fn.Some(tx.Status.BlockHeight)
	}

	return &ports.Transaction{
		Txid:        txid,
		Outputs:     outputs,
		BlockHeight: blockHeight,
	}, nil
}

func (s *service) GetTipHeight(ctx context.Context) (int64, error) {
	body, err := s.fetcher.Get(ctx, "blocks", "tip", "height")
	if err != nil {
		return 0, explorer.FetchErr(err)
	}

	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, explorer.FetchErr(fmt.Errorf("invalid tip height: %s", err))
	}
	return height, nil
}
