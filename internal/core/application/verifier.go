package application

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcvault/por/internal/core/domain"
	"github.com/btcvault/por/internal/core/ports"
	"github.com/btcvault/por/pkg/custody"
	"github.com/lightningnetwork/lnd/fn/v2"
)

type verifier struct {
	chain        ports.ChainDataProvider
	network      *chaincfg.Params
	fetchTimeout time.Duration
}

func newVerifier(
	chain ports.ChainDataProvider, network *chaincfg.Params, fetchTimeout time.Duration,
) *verifier {
	return &verifier{chain, network, fetchTimeout}
}

// verify walks a single vault through START -> FETCHED_TX -> HEIGHT_CHECKED
// -> SCRIPT_MATCHED. The returned error is set only for excluded vaults.
func (v *verifier) verify(
	ctx context.Context, vault domain.VaultRecord, attestorKey []byte,
) (domain.VaultResult, error) {
	result := domain.VaultResult{
		UUID:        vault.UUIDHex(),
		ValueLocked: vault.ValueLocked,
		FundingTxID: vault.FundingTxID,
		Stage:       domain.StageStart,
	}

	if err := vault.Validate(); err != nil {
		return exclude(result, err), err
	}

	tx, err := v.getTransaction(ctx, vault.FundingTxID)
	if err != nil {
		return exclude(result, err), err
	}
	result.Stage = domain.StageFetchedTx

	if tx.BlockHeight.IsNone() {
		return reject(result, "unconfirmed"), nil
	}
	blockHeight := tx.BlockHeight.UnwrapOr(0)

	tipHeight, err := v.getTipHeight(ctx)
	if err != nil {
		return exclude(result, err), err
	}

	confirmations := tipHeight - blockHeight
	result.Confirmations = confirmations
	if confirmations < MinConfirmations {
		return reject(result, fmt.Sprintf(
			"not enough confirmations: got %d, need %d",
			confirmations, MinConfirmations,
		)), nil
	}
	result.Stage = domain.StageHeightChecked

	candidates := fn.Filter(tx.Outputs, func(out ports.TxOutput) bool {
		return out.Value == vault.ValueLocked
	})
	if len(candidates) <= 0 {
		return reject(result, fmt.Sprintf(
			"no output locking %d sats", int64(vault.ValueLocked),
		)), nil
	}

	expectedScript, err := v.expectedScript(vault, attestorKey)
	if err != nil {
		return exclude(result, err), err
	}
	result.ExpectedScript = hex.EncodeToString(expectedScript)
	if addr, err := custody.CustodyAddress(expectedScript, v.network); err == nil {
		result.ExpectedAddress = addr
	}

	for _, out := range candidates {
		if custody.ScriptsMatch([][]byte{expectedScript}, out.Script) {
			result.Stage = domain.StageScriptMatched
			result.Outcome = domain.OutcomeVerified
			return result, nil
		}
	}

	return reject(result, "script mismatch"), nil
}

func (v *verifier) expectedScript(
	vault domain.VaultRecord, attestorKey []byte,
) ([]byte, error) {
	internalKey, err := custody.VaultInternalKey(vault.UUID[:], v.network)
	if err != nil {
		return nil, err
	}
	return custody.BuildCustodyScript(internalKey, vault.TaprootPubKey, attestorKey)
}

func (v *verifier) getTransaction(
	ctx context.Context, txid string,
) (*ports.Transaction, error) {
	ctx, cancel := withTimeout(ctx, v.fetchTimeout)
	defer cancel()

	tx, err := v.chain.GetTransaction(ctx, txid)
	if err != nil {
		return nil, asChainFetchErr(err)
	}
	if tx == nil {
		return nil, fmt.Errorf("%w: %w: %s", domain.ErrChainFetch, domain.ErrTxNotFound, txid)
	}
	return tx, nil
}

func (v *verifier) getTipHeight(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, v.fetchTimeout)
	defer cancel()

	height, err := v.chain.GetTipHeight(ctx)
	if err != nil {
		return 0, asChainFetchErr(err)
	}
	return height, nil
}

// withTimeout bounds a single network call, timeout <= 0 means unbounded.
func withTimeout(
	ctx context.Context, timeout time.Duration,
) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func asChainFetchErr(err error) error {
	if errors.Is(err, domain.ErrChainFetch) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrChainFetch, err)
}

func exclude(result domain.VaultResult, err error) domain.VaultResult {
	result.Outcome = domain.OutcomeExcluded
	result.Reason = err.Error()
	return result
}

func reject(result domain.VaultResult, reason string) domain.VaultResult {
	result.Outcome = domain.OutcomeRejected
	result.Reason = reason
	return result
}

// verifiedAmount is the contribution of a vault to the reserves.
func verifiedAmount(result domain.VaultResult) fn.Option[btcutil.Amount] {
	if !result.IsVerified() {
		return fn.None[btcutil.Amount]()
	}
	return fn.Some(result.ValueLocked)
}
