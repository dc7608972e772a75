package evmledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/btcvault/por/internal/core/domain"
	"github.com/btcvault/por/internal/core/ports"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/lightningnetwork/lnd/fn/v2"
	log "github.com/sirupsen/logrus"
)

// PageSize is the number of vaults requested per getAllDLCs call.
const PageSize = 50

type service struct {
	caller  ethereum.ContractCaller
	close   func()
	address common.Address
	abi     abi.ABI
}

// NewService dials the EVM JSON-RPC endpoint and returns a reader for the
// ledger contract deployed at address.
func NewService(
	ctx context.Context, rpcURL, address, abiPath string,
) (ports.LedgerReader, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid ledger contract address %s", address)
	}
	contractABI, err := LoadABI(abiPath)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to evm node: %s", err)
	}

	return &service{
		caller:  client,
		close:   client.Close,
		address: common.HexToAddress(address),
		abi:     contractABI,
	}, nil
}

// NewServiceWithCaller returns a ledger reader on top of an existing
// contract caller, like a simulated backend or an already dialed client.
func NewServiceWithCaller(
	caller ethereum.ContractCaller, address string, contractABI abi.ABI,
) (ports.LedgerReader, error) {
	if caller == nil {
		return nil, fmt.Errorf("missing contract caller")
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid ledger contract address %s", address)
	}
	return &service{
		caller:  caller,
		close:   func() {},
		address: common.HexToAddress(address),
		abi:     contractABI,
	}, nil
}

func (s *service) GetAttestorGroupKey(ctx context.Context) (string, error) {
	out, err := s.call(ctx, attestorGroupPubKeyMethod)
	if err != nil {
		return "", err
	}

	if len(out) != 1 {
		return "", fmt.Errorf("%w: unexpected %s result size %d", domain.ErrLedgerRead, attestorGroupPubKeyMethod, len(out))
	}
	key, ok := out[0].(string)
	if !ok || len(key) <= 0 {
		return "", fmt.Errorf("%w: invalid attestor group key", domain.ErrLedgerRead)
	}
	return key, nil
}

func (s *service) GetFundedVaults(ctx context.Context) ([]domain.VaultRecord, error) {
	vaults, err := s.GetAllVaults(ctx)
	if err != nil {
		return nil, err
	}

	funded := fn.Filter(vaults, func(v domain.VaultRecord) bool {
		return v.IsFunded()
	})
	log.Debugf("found %d funded vaults out of %d", len(funded), len(vaults))
	return funded, nil
}

func (s *service) GetAllVaults(ctx context.Context) ([]domain.VaultRecord, error) {
	vaults := make([]domain.VaultRecord, 0)
	for start := int64(0); ; start += PageSize {
		page, size, err := s.getPage(ctx, start)
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, page...)

		if size < PageSize {
			break
		}
	}
	return vaults, nil
}

func (s *service) Close() {
	s.close()
}

// getPage returns the well-formed vaults of the page starting at start and
// the number of tuples the contract returned.
func (s *service) getPage(
	ctx context.Context, start int64,
) ([]domain.VaultRecord, int, error) {
	out, err := s.call(
		ctx, getAllDLCsMethod, big.NewInt(start), big.NewInt(start+PageSize),
	)
	if err != nil {
		return nil, 0, err
	}
	if len(out) != 1 {
		return nil, 0, fmt.Errorf("%w: unexpected %s result size %d", domain.ErrLedgerRead, getAllDLCsMethod, len(out))
	}

	vaults, malformed, err := decodeVaults(out[0])
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s", domain.ErrLedgerRead, err)
	}
	for i, err := range malformed {
		log.WithError(err).Debugf("skipping malformed vault at index %d", start+int64(i))
	}

	return vaults, len(vaults) + len(malformed), nil
}

func (s *service) call(
	ctx context.Context, method string, args ...interface{},
) ([]interface{}, error) {
	data, err := s.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode %s call: %s", domain.ErrLedgerRead, method, err)
	}

	result, err := s.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &s.address,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s call failed: %s", domain.ErrLedgerRead, method, err)
	}

	out, err := s.abi.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s result: %s", domain.ErrLedgerRead, method, err)
	}
	return out, nil
}
