package custody

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// UUIDSize is the size in bytes of a vault identifier. It doubles as the
// chain code of the vault's unspendable internal key.
const UUIDSize = 32

var (
	ErrDerivation         = errors.New("key derivation error")
	ErrScriptConstruction = errors.New("script construction error")
	ErrLeafMismatch       = errors.New("custody leaf mismatch")
)

// UnspendablePoint is the BIP-341 NUMS point H in compressed form. Nobody
// knows its discrete logarithm, so any key derived from it has no spending
// key either. It is part of the custody protocol and must never change.
var UnspendablePoint = []byte{
	0x02, 0x50, 0x92, 0x9b, 0x74, 0xc1, 0xa0, 0x49, 0x54, 0xb7, 0x8b, 0x4b, 0x60, 0x35, 0xe9, 0x7a,
	0x5e, 0x07, 0x8a, 0x5a, 0x0f, 0x28, 0xec, 0x96, 0xd5, 0x47, 0xbf, 0xee, 0x9a, 0xce, 0x80, 0x3a, 0xc0,
}

// OperationalKeyPath is the non-hardened path (external chain, index 0)
// applied to every extended key before its public key is used in a script.
var OperationalKeyPath = []uint32{0, 0}

// DeriveOperationalKey parses a base58 extended public key, checks it belongs
// to the given network and returns the compressed public key found at
// OperationalKeyPath.
func DeriveOperationalKey(
	extendedKey string, net *chaincfg.Params,
) ([]byte, error) {
	key, err := hdkeychain.NewKeyFromString(strings.TrimSpace(extendedKey))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid extended key: %s", ErrDerivation, err)
	}
	if key.IsPrivate() {
		return nil, fmt.Errorf("%w: expected an extended public key", ErrDerivation)
	}
	if net != nil && !key.IsForNet(net) {
		return nil, fmt.Errorf(
			"%w: extended key is not for network %s", ErrDerivation, net.Name,
		)
	}

	return deriveOperationalKey(key)
}

// UnspendableKeyForVault returns the extended public key whose public key is
// UnspendablePoint and whose chain code is the vault uuid. Anyone knowing the
// uuid can rebuild it, nobody can spend from it.
func UnspendableKeyForVault(uuid []byte, net *chaincfg.Params) (string, error) {
	if len(uuid) != UUIDSize {
		return "", fmt.Errorf(
			"%w: vault uuid must be %d bytes, got %d",
			ErrDerivation, UUIDSize, len(uuid),
		)
	}
	if net == nil {
		net = &chaincfg.MainNetParams
	}

	chainCode := make([]byte, UUIDSize)
	copy(chainCode, uuid)
	pubkey := make([]byte, len(UnspendablePoint))
	copy(pubkey, UnspendablePoint)

	key := hdkeychain.NewExtendedKey(
		net.HDPublicKeyID[:], pubkey, chainCode, []byte{0, 0, 0, 0}, 0, 0, false,
	)
	return key.String(), nil
}

// VaultInternalKey is the taproot internal key of a vault: the operational
// key of the vault's unspendable extended key.
func VaultInternalKey(uuid []byte, net *chaincfg.Params) ([]byte, error) {
	key, err := UnspendableKeyForVault(uuid, net)
	if err != nil {
		return nil, err
	}
	return DeriveOperationalKey(key, net)
}

// ToXOnly drops the parity byte of a compressed key. 32-byte keys are
// returned as they are.
func ToXOnly(key []byte) ([]byte, error) {
	switch len(key) {
	case 32:
		return key, nil
	case 33:
		return key[1:], nil
	default:
		return nil, fmt.Errorf(
			"%w: invalid public key length %d", ErrScriptConstruction, len(key),
		)
	}
}

// ParseVaultUUID decodes a 32-byte vault uuid, with or without 0x prefix.
func ParseVaultUUID(s string) ([UUIDSize]byte, error) {
	var uuid [UUIDSize]byte

	buf, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return uuid, fmt.Errorf("%w: invalid vault uuid: %s", ErrDerivation, err)
	}
	if len(buf) != UUIDSize {
		return uuid, fmt.Errorf(
			"%w: vault uuid must be %d bytes, got %d",
			ErrDerivation, UUIDSize, len(buf),
		)
	}

	copy(uuid[:], buf)
	return uuid, nil
}

// ParsePublicKey decodes hex public key material, either x-only or
// compressed, and checks it is a point on the curve.
func ParsePublicKey(s string) ([]byte, error) {
	buf, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid public key: %s", ErrScriptConstruction, err)
	}

	xonly, err := ToXOnly(buf)
	if err != nil {
		return nil, err
	}
	if _, err := parseXOnly(xonly); err != nil {
		return nil, err
	}

	return buf, nil
}

func deriveOperationalKey(key *hdkeychain.ExtendedKey) ([]byte, error) {
	var err error
	for _, index := range OperationalKeyPath {
		key, err = key.Derive(index)
		if err != nil {
			return nil, fmt.Errorf(
				"%w: failed to derive child %d: %s", ErrDerivation, index, err,
			)
		}
	}

	pubkey, err := key.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDerivation, err)
	}

	return pubkey.SerializeCompressed(), nil
}

func trimHexPrefix(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}
