package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/btcvault/por/internal/core/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type scriptInfo struct {
	InternalKey  string
	AttestorKey  string
	Leaf         string
	Script       string
	Address      string
	LeafVerified bool
}

type vaultJSON struct {
	UUID          string `json:"uuid"`
	Status        string `json:"status"`
	ValueLocked   string `json:"value_locked_btc"`
	FundingTxID   string `json:"funding_txid,omitempty"`
	ClosingTxID   string `json:"closing_txid,omitempty"`
	TaprootPubKey string `json:"taproot_pubkey,omitempty"`
	Creator       string `json:"creator"`
	CreatedAt     string `json:"created_at"`
}

func printJSON(w io.Writer, v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(buf))
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func printReport(w io.Writer, report *domain.ReserveReport) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Vault", "Value (BTC)", "Outcome", "Stage", "Confs", "Reason"})
	for _, v := range report.Vaults {
		t.AppendRow(table.Row{
			v.UUID,
			domain.SatsToBTC(v.ValueLocked).StringFixed(8),
			v.Outcome,
			v.Stage,
			v.Confirmations,
			v.Reason,
		})
	}
	t.AppendFooter(table.Row{
		"Total", report.FormattedTotal(),
		fmt.Sprintf("%d/%d verified", report.Verified, report.FundedVaults),
		"", "", fmt.Sprintf("%d rejected, %d excluded", report.Rejected, report.Excluded),
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	t.Render()
}

func printVaults(w io.Writer, vaults []domain.VaultRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Vault", "Status", "Value (BTC)", "Funding tx", "Created"})
	for _, v := range vaults {
		t.AppendRow(table.Row{
			v.UUIDHex(),
			v.Status,
			domain.SatsToBTC(v.ValueLocked).StringFixed(8),
			v.FundingTxID,
			formatTimestamp(v.Timestamp),
		})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d vaults", len(vaults))})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.Render()
}

func printScript(w io.Writer, info scriptInfo) {
	t := newTable(w)
	t.AppendRows([]table.Row{
		{"Internal key", info.InternalKey},
		{"Attestor key", info.AttestorKey},
		{"Leaf", info.Leaf},
		{"Script", info.Script},
		{"Address", info.Address},
	})
	if info.LeafVerified {
		t.AppendRow(table.Row{"Revealed leaf", "matches owner and attestor keys"})
	}
	t.Render()
}

func toVaultsJSON(vaults []domain.VaultRecord) []vaultJSON {
	res := make([]vaultJSON, 0, len(vaults))
	for _, v := range vaults {
		res = append(res, vaultJSON{
			UUID:          v.UUIDHex(),
			Status:        v.Status.String(),
			ValueLocked:   domain.SatsToBTC(v.ValueLocked).StringFixed(8),
			FundingTxID:   v.FundingTxID,
			ClosingTxID:   v.ClosingTxID,
			TaprootPubKey: hex.EncodeToString(v.TaprootPubKey),
			Creator:       v.Creator,
			CreatedAt:     formatTimestamp(v.Timestamp),
		})
	}
	return res
}

func formatTimestamp(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
