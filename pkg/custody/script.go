package custody

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// taprootScriptSize is the size of a segwit v1 output script: OP_1 followed
// by a 32-byte push.
const taprootScriptSize = 34

// MultisigClosure is the 2-of-2 tapscript leaf guarding a vault:
// <KeyA> OP_CHECKSIGVERIFY <KeyB> OP_CHECKSIG.
type MultisigClosure struct {
	KeyA *btcec.PublicKey
	KeyB *btcec.PublicKey
}

// NewMultisigClosure normalizes both keys to x-only form and orders them
// lexicographically so that the leaf does not depend on argument order.
func NewMultisigClosure(keyA, keyB []byte) (*MultisigClosure, error) {
	xonlyA, err := ToXOnly(keyA)
	if err != nil {
		return nil, err
	}
	xonlyB, err := ToXOnly(keyB)
	if err != nil {
		return nil, err
	}

	keys := [][]byte{xonlyA, xonlyB}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i], keys[j]) < 0
	})
	if bytes.Equal(keys[0], keys[1]) {
		return nil, fmt.Errorf("%w: multisig keys must be distinct", ErrScriptConstruction)
	}

	first, err := parseXOnly(keys[0])
	if err != nil {
		return nil, err
	}
	second, err := parseXOnly(keys[1])
	if err != nil {
		return nil, err
	}

	return &MultisigClosure{first, second}, nil
}

func (c *MultisigClosure) Leaf() (*txscript.TapLeaf, error) {
	keyA := schnorr.SerializePubKey(c.KeyA)
	keyB := schnorr.SerializePubKey(c.KeyB)

	script, err := txscript.NewScriptBuilder().AddData(keyA).
		AddOp(txscript.OP_CHECKSIGVERIFY).AddData(keyB).
		AddOp(txscript.OP_CHECKSIG).Script()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrScriptConstruction, err)
	}

	tapLeaf := txscript.NewBaseTapLeaf(script)
	return &tapLeaf, nil
}

// Decode fills the closure from a raw leaf script and reports whether the
// script is exactly a multisig closure leaf.
func (c *MultisigClosure) Decode(script []byte) (bool, error) {
	// 0x20 <32 bytes> OP_CHECKSIGVERIFY 0x20 <32 bytes> OP_CHECKSIG
	if len(script) != 2*(1+32)+2 {
		return false, nil
	}
	if script[0] != txscript.OP_DATA_32 || script[33] != txscript.OP_CHECKSIGVERIFY ||
		script[34] != txscript.OP_DATA_32 || script[67] != txscript.OP_CHECKSIG {
		return false, nil
	}

	keyA, err := parseXOnly(script[1:33])
	if err != nil {
		return false, err
	}
	keyB, err := parseXOnly(script[35:67])
	if err != nil {
		return false, err
	}

	c.KeyA = keyA
	c.KeyB = keyB

	rebuilt, err := c.Leaf()
	if err != nil {
		return false, err
	}

	return bytes.Equal(rebuilt.Script, script), nil
}

// BuildCustodyScript returns the taproot output script committing to the
// internal key and to a single 2-of-2 leaf between owner and attestor keys.
func BuildCustodyScript(internalKey, ownerKey, attestorKey []byte) ([]byte, error) {
	xonlyInternal, err := ToXOnly(internalKey)
	if err != nil {
		return nil, err
	}
	internal, err := parseXOnly(xonlyInternal)
	if err != nil {
		return nil, err
	}

	closure, err := NewMultisigClosure(ownerKey, attestorKey)
	if err != nil {
		return nil, err
	}

	leaf, err := closure.Leaf()
	if err != nil {
		return nil, err
	}

	tapTree := txscript.AssembleTaprootScriptTree(*leaf)
	root := tapTree.RootNode.TapHash()
	taprootKey := txscript.ComputeTaprootOutputKey(internal, root[:])

	script, err := txscript.PayToTaprootScript(taprootKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrScriptConstruction, err)
	}

	return script, nil
}

// VerifyCustodyLeaf checks that a revealed tapscript leaf is the 2-of-2
// closure between the owner and attestor keys, in either key order.
func VerifyCustodyLeaf(leafScript, ownerKey, attestorKey []byte) error {
	expected, err := NewMultisigClosure(ownerKey, attestorKey)
	if err != nil {
		return err
	}

	decoded := &MultisigClosure{}
	ok, err := decoded.Decode(leafScript)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrLeafMismatch, err)
	}
	if !ok {
		return fmt.Errorf("%w: not a multisig closure", ErrLeafMismatch)
	}

	if !decoded.KeyA.IsEqual(expected.KeyA) || !decoded.KeyB.IsEqual(expected.KeyB) {
		return fmt.Errorf("%w: keys differ from owner and attestor keys", ErrLeafMismatch)
	}
	return nil
}

// ScriptsMatch reports whether the observed script is byte-for-byte equal to
// one of the candidates.
func ScriptsMatch(candidates [][]byte, observed []byte) bool {
	for _, candidate := range candidates {
		if len(candidate) == len(observed) && bytes.Equal(candidate, observed) {
			return true
		}
	}
	return false
}

// CustodyAddress renders a custody output script as a bech32m address.
func CustodyAddress(script []byte, net *chaincfg.Params) (string, error) {
	if len(script) != taprootScriptSize || script[0] != txscript.OP_1 ||
		script[1] != txscript.OP_DATA_32 {
		return "", fmt.Errorf("%w: not a taproot output script", ErrScriptConstruction)
	}
	if net == nil {
		net = &chaincfg.MainNetParams
	}

	addr, err := btcutil.NewAddressTaproot(script[2:], net)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrScriptConstruction, err)
	}

	return addr.EncodeAddress(), nil
}

func parseXOnly(key []byte) (*btcec.PublicKey, error) {
	pubkey, err := schnorr.ParsePubKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid curve point: %s", ErrScriptConstruction, err)
	}
	return pubkey, nil
}
