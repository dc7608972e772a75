package custody_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcvault/por/pkg/custody"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	ownerKey       = "f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9"
	custodyLeaf    = "207b6a7dd645507d775215a9035be06700e1ed8c541da9351b4bd14bd50ab61428ad20f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9ac"
	custodyScript  = "51209b1d6fe5c54a8029a354caeb069cafd184db6de2912ff34d1053dbbb4a9b8dcd"
	mainnetAddress = "bc1pnvwklew9f2qzng65et4sd8906xzdkm0zjyhlxngs20dmkj5m3hxswfljrz"
	testnetAddress = "tb1pnvwklew9f2qzng65et4sd8906xzdkm0zjyhlxngs20dmkj5m3hxsepfaed"
)

func mustDecodeHex(t require.TestingT, s string) []byte {
	buf, err := hex.DecodeString(s)
	require.NoError(t, err)
	return buf
}

func TestBuildCustodyScript(t *testing.T) {
	internal := mustDecodeHex(t, vaultInternalKey)
	owner := mustDecodeHex(t, ownerKey)
	attestor := mustDecodeHex(t, attestorKey)

	t.Run("valid", func(t *testing.T) {
		fixtures := []struct {
			description string
			internal    []byte
			owner       []byte
			attestor    []byte
		}{
			{"x-only owner", internal, owner, attestor},
			{"swapped participants", internal, attestor, owner},
			{"even compressed owner", internal, append([]byte{0x02}, owner...), attestor},
			{"odd compressed owner", internal, append([]byte{0x03}, owner...), attestor},
			{"x-only internal key", internal[1:], owner, attestor[1:]},
		}

		for _, f := range fixtures {
			t.Run(f.description, func(t *testing.T) {
				script, err := custody.BuildCustodyScript(f.internal, f.owner, f.attestor)
				require.NoError(t, err)
				require.Equal(t, custodyScript, hex.EncodeToString(script))
			})
		}
	})

	t.Run("invalid", func(t *testing.T) {
		notOnCurve := bytes.Repeat([]byte{0xff}, 32)

		fixtures := []struct {
			description string
			internal    []byte
			owner       []byte
			attestor    []byte
		}{
			{"duplicate participants", internal, owner, append([]byte{0x03}, owner...)},
			{"short owner key", internal, owner[:31], attestor},
			{"empty attestor key", internal, owner, nil},
			{"owner not on curve", internal, notOnCurve, attestor},
			{"internal key not on curve", notOnCurve, owner, attestor},
			{"uncompressed internal key", make([]byte, 65), owner, attestor},
		}

		for _, f := range fixtures {
			t.Run(f.description, func(t *testing.T) {
				script, err := custody.BuildCustodyScript(f.internal, f.owner, f.attestor)
				require.ErrorIs(t, err, custody.ErrScriptConstruction)
				require.Nil(t, script)
			})
		}
	})
}

func TestMultisigClosure(t *testing.T) {
	owner := mustDecodeHex(t, ownerKey)
	attestor := mustDecodeHex(t, attestorKey)

	closure, err := custody.NewMultisigClosure(owner, attestor)
	require.NoError(t, err)

	leaf, err := closure.Leaf()
	require.NoError(t, err)
	require.Equal(t, custodyLeaf, hex.EncodeToString(leaf.Script))

	decoded := &custody.MultisigClosure{}
	ok, err := decoded.Decode(leaf.Script)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, decoded.KeyA.IsEqual(closure.KeyA))
	require.True(t, decoded.KeyB.IsEqual(closure.KeyB))

	t.Run("not a multisig leaf", func(t *testing.T) {
		fixtures := []struct {
			description string
			script      []byte
		}{
			{"empty", nil},
			{"truncated", leaf.Script[:len(leaf.Script)-1]},
			{"checksig instead of checksigverify", func() []byte {
				script := append([]byte{}, leaf.Script...)
				script[33] = 0xac
				return script
			}()},
			{"custody output script", mustDecodeHex(t, custodyScript)},
		}

		for _, f := range fixtures {
			t.Run(f.description, func(t *testing.T) {
				ok, err := (&custody.MultisigClosure{}).Decode(f.script)
				require.NoError(t, err)
				require.False(t, ok)
			})
		}
	})
}

func TestVerifyCustodyLeaf(t *testing.T) {
	owner := mustDecodeHex(t, ownerKey)
	attestor := mustDecodeHex(t, attestorKey)
	leaf := mustDecodeHex(t, custodyLeaf)

	require.NoError(t, custody.VerifyCustodyLeaf(leaf, owner, attestor))
	require.NoError(t, custody.VerifyCustodyLeaf(leaf, attestor, owner))

	other, err := custody.VaultInternalKey(mustDecodeHex(t, vaultUUID), nil)
	require.NoError(t, err)

	fixtures := []struct {
		description string
		leaf        []byte
		owner       []byte
		expectedErr error
	}{
		{"other owner", leaf, other, custody.ErrLeafMismatch},
		{"custody output script", mustDecodeHex(t, custodyScript), owner, custody.ErrLeafMismatch},
		{"empty leaf", nil, owner, custody.ErrLeafMismatch},
		{"same keys", leaf, attestor, custody.ErrScriptConstruction},
	}

	for _, f := range fixtures {
		t.Run(f.description, func(t *testing.T) {
			err := custody.VerifyCustodyLeaf(f.leaf, f.owner, attestor)
			require.ErrorIs(t, err, f.expectedErr)
		})
	}
}

func TestScriptsMatch(t *testing.T) {
	expected := mustDecodeHex(t, custodyScript)

	flipped := append([]byte{}, expected...)
	flipped[len(flipped)-1] ^= 0x01

	fixtures := []struct {
		description string
		candidates  [][]byte
		observed    []byte
		expected    bool
	}{
		{"exact match", [][]byte{expected}, expected, true},
		{"match among candidates", [][]byte{flipped, expected}, expected, true},
		{"last byte differs", [][]byte{expected}, flipped, false},
		{"observed is a prefix", [][]byte{expected}, expected[:33], false},
		{"observed has trailing byte", [][]byte{expected}, append(append([]byte{}, expected...), 0x00), false},
		{"no candidates", nil, expected, false},
		{"empty observed", [][]byte{expected}, nil, false},
	}

	for _, f := range fixtures {
		t.Run(f.description, func(t *testing.T) {
			require.Equal(t, f.expected, custody.ScriptsMatch(f.candidates, f.observed))
		})
	}
}

func TestCustodyAddress(t *testing.T) {
	script := mustDecodeHex(t, custodyScript)

	addr, err := custody.CustodyAddress(script, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, mainnetAddress, addr)

	addr, err = custody.CustodyAddress(script, &chaincfg.TestNet3Params)
	require.NoError(t, err)
	require.Equal(t, testnetAddress, addr)

	_, err = custody.CustodyAddress(script[:33], &chaincfg.MainNetParams)
	require.ErrorIs(t, err, custody.ErrScriptConstruction)

	_, err = custody.CustodyAddress(mustDecodeHex(t, custodyLeaf), nil)
	require.ErrorIs(t, err, custody.ErrScriptConstruction)
}

func drawPubKey(t *rapid.T, label string) []byte {
	scalar := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, label)
	// Keep the scalar below the group order and away from zero.
	scalar[0] &= 0x7f
	scalar[31] |= 0x01
	_, pubkey := btcec.PrivKeyFromBytes(scalar)
	return pubkey.SerializeCompressed()
}

func drawVault(t *rapid.T) (uuid, owner, attestor []byte) {
	uuid = rapid.SliceOfN(rapid.Byte(), custody.UUIDSize, custody.UUIDSize).Draw(t, "uuid")
	owner = drawPubKey(t, "owner")
	attestor = drawPubKey(t, "attestor")
	if bytes.Equal(owner[1:], attestor[1:]) {
		t.Skip("owner and attestor keys coincide")
	}
	return uuid, owner, attestor
}

func buildForVault(t require.TestingT, uuid, owner, attestor []byte) []byte {
	internal, err := custody.VaultInternalKey(uuid, &chaincfg.MainNetParams)
	require.NoError(t, err)
	script, err := custody.BuildCustodyScript(internal, owner, attestor)
	require.NoError(t, err)
	return script
}

func TestCustodyScriptProperties(t *testing.T) {
	t.Run("deterministic and order independent", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			uuid, owner, attestor := drawVault(t)

			script := buildForVault(t, uuid, owner, attestor)
			require.Len(t, script, 34)
			require.Equal(t, script, buildForVault(t, uuid, owner, attestor))
			require.Equal(t, script, buildForVault(t, uuid, attestor, owner))
			require.Equal(t, script, buildForVault(t, uuid, owner[1:], attestor))
		})
	})

	t.Run("any uuid change yields another script", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			uuid, owner, attestor := drawVault(t)
			idx := rapid.IntRange(0, custody.UUIDSize-1).Draw(t, "idx")
			mask := rapid.ByteRange(1, 0xff).Draw(t, "mask")

			tampered := append([]byte{}, uuid...)
			tampered[idx] ^= mask

			script := buildForVault(t, uuid, owner, attestor)
			require.False(t, custody.ScriptsMatch(
				[][]byte{buildForVault(t, tampered, owner, attestor)}, script,
			))
		})
	})

	t.Run("any participant key change yields another script", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			uuid, owner, attestor := drawVault(t)
			internal, err := custody.VaultInternalKey(uuid, &chaincfg.MainNetParams)
			require.NoError(t, err)
			script, err := custody.BuildCustodyScript(internal, owner, attestor)
			require.NoError(t, err)

			idx := rapid.IntRange(1, 32).Draw(t, "idx")
			mask := rapid.ByteRange(1, 0xff).Draw(t, "mask")
			tamperAttestor := rapid.Bool().Draw(t, "tamperAttestor")

			tamperedOwner := append([]byte{}, owner...)
			tamperedAttestor := append([]byte{}, attestor...)
			if tamperAttestor {
				tamperedAttestor[idx] ^= mask
			} else {
				tamperedOwner[idx] ^= mask
			}

			// A flipped x coordinate is either off the curve or another key.
			tampered, err := custody.BuildCustodyScript(
				internal, tamperedOwner, tamperedAttestor,
			)
			if err != nil {
				require.ErrorIs(t, err, custody.ErrScriptConstruction)
				return
			}
			require.NotEqual(t, script, tampered)
		})
	})
}
