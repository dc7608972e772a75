package evmledger

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcvault/por/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

const vaultTupleSize = 12

// Positions of the vault tuple fields as returned by getAllDLCs.
const (
	fieldUUID = iota
	fieldProtocolContract
	fieldTimestamp
	fieldValueLocked
	fieldCreator
	fieldStatus
	fieldFundingTxID
	fieldClosingTxID
	fieldBTCFeeRecipient
	fieldBTCMintFeeBasisPoints
	fieldBTCRedeemFeeBasisPoints
	fieldTaprootPubKey
)

// decodeVaults reads the tuples of a getAllDLCs page positionally. Tuples
// that cannot be mapped to a vault record are returned as errors, one per
// tuple index, and left out of the result.
func decodeVaults(page interface{}) ([]domain.VaultRecord, map[int]error, error) {
	tuples := reflect.ValueOf(page)
	if tuples.Kind() != reflect.Slice {
		return nil, nil, fmt.Errorf("expected a list of tuples, got %T", page)
	}

	vaults := make([]domain.VaultRecord, 0, tuples.Len())
	malformed := make(map[int]error)
	for i := 0; i < tuples.Len(); i++ {
		vault, err := decodeVault(tuples.Index(i))
		if err != nil {
			malformed[i] = err
			continue
		}
		vaults = append(vaults, *vault)
	}
	return vaults, malformed, nil
}

func decodeVault(tuple reflect.Value) (*domain.VaultRecord, error) {
	if tuple.Kind() == reflect.Pointer {
		tuple = tuple.Elem()
	}
	if tuple.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected a tuple, got %s", tuple.Kind())
	}
	if tuple.NumField() != vaultTupleSize {
		return nil, fmt.Errorf(
			"expected %d fields, got %d", vaultTupleSize, tuple.NumField(),
		)
	}

	field := func(i int) interface{} {
		return tuple.Field(i).Interface()
	}

	// Only the fields needed to verify a vault can reject a tuple, the
	// others fall back to their zero value.
	uuid, ok := field(fieldUUID).([32]byte)
	if !ok {
		return nil, fmt.Errorf("invalid uuid field type %T", field(fieldUUID))
	}
	valueLocked, err := asInt64(field(fieldValueLocked))
	if err != nil {
		return nil, fmt.Errorf("value locked: %s", err)
	}
	status, ok := field(fieldStatus).(uint8)
	if !ok {
		return nil, fmt.Errorf("invalid status field type %T", field(fieldStatus))
	}
	fundingTxID, ok := field(fieldFundingTxID).(string)
	if !ok {
		return nil, fmt.Errorf("invalid funding txid field type %T", field(fieldFundingTxID))
	}
	taprootPubKey, ok := field(fieldTaprootPubKey).(string)
	if !ok {
		return nil, fmt.Errorf("invalid taproot key field type %T", field(fieldTaprootPubKey))
	}

	timestamp, _ := asInt64(field(fieldTimestamp))

	return &domain.VaultRecord{
		UUID:                    uuid,
		ValueLocked:             btcutil.Amount(valueLocked),
		FundingTxID:             normalizeTxid(fundingTxID),
		TaprootPubKey:           decodeKey(taprootPubKey),
		Status:                  domain.VaultStatus(status),
		ProtocolContract:        asAddressHex(field(fieldProtocolContract)),
		Creator:                 asAddressHex(field(fieldCreator)),
		Timestamp:               timestamp,
		ClosingTxID:             normalizeTxid(asString(field(fieldClosingTxID))),
		BTCFeeRecipient:         strings.TrimSpace(asString(field(fieldBTCFeeRecipient))),
		BTCMintFeeBasisPoints:   asUint64(field(fieldBTCMintFeeBasisPoints)),
		BTCRedeemFeeBasisPoints: asUint64(field(fieldBTCRedeemFeeBasisPoints)),
	}, nil
}

// normalizeTxid lower cases txids, explorers only know them that way.
func normalizeTxid(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// decodeKey leaves malformed keys empty so that the record fails validation
// downstream instead of being silently dropped here.
func decodeKey(s string) []byte {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return key
}

func asAddressHex(v interface{}) string {
	addr, ok := v.(common.Address)
	if !ok {
		return ""
	}
	return addr.Hex()
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asUint64(v interface{}) uint64 {
	n, ok := v.(*big.Int)
	if !ok || n == nil || !n.IsUint64() {
		return 0
	}
	return n.Uint64()
}

func asInt64(v interface{}) (int64, error) {
	n, ok := v.(*big.Int)
	if !ok || n == nil {
		return 0, fmt.Errorf("invalid integer type %T", v)
	}
	if n.Sign() < 0 || !n.IsInt64() {
		return 0, fmt.Errorf("integer %s out of range", n)
	}
	return n.Int64(), nil
}
