package evmledger

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	attestorGroupPubKeyMethod = "attestorGroupPubKey"
	getAllDLCsMethod          = "getAllDLCs"
)

//go:embed abi.json
var defaultABI []byte

// LoadABI parses the ledger contract ABI at path, either a plain ABI array or
// a deployment artifact of the form {"contract": {"abi": [...]}}. An empty
// path selects the embedded ABI.
func LoadABI(path string) (abi.ABI, error) {
	if len(path) <= 0 {
		return parseABI(defaultABI)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read ABI file: %s", err)
	}
	return parseABI(buf)
}

func parseABI(buf []byte) (abi.ABI, error) {
	var artifact struct {
		Contract struct {
			ABI json.RawMessage `json:"abi"`
		} `json:"contract"`
	}
	if err := json.Unmarshal(buf, &artifact); err == nil && len(artifact.Contract.ABI) > 0 {
		buf = artifact.Contract.ABI
	}

	contractABI, err := abi.JSON(bytes.NewReader(buf))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("invalid ABI: %s", err)
	}

	for _, name := range []string{attestorGroupPubKeyMethod, getAllDLCsMethod} {
		if _, ok := contractABI.Methods[name]; !ok {
			return abi.ABI{}, fmt.Errorf("ABI is missing method %s", name)
		}
	}
	return contractABI, nil
}
