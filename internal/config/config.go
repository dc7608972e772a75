package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcvault/por/internal/core/application"
	"github.com/btcvault/por/internal/core/ports"
	"github.com/btcvault/por/internal/infrastructure/explorer"
	blockchaininfoexplorer "github.com/btcvault/por/internal/infrastructure/explorer/blockchaininfo"
	esploraexplorer "github.com/btcvault/por/internal/infrastructure/explorer/esplora"
	evmledger "github.com/btcvault/por/internal/infrastructure/ledger/evm"
	"github.com/btcvault/por/internal/infrastructure/metrics"
	scheduler "github.com/btcvault/por/internal/infrastructure/scheduler/gocron"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const (
	networkBitcoin = "bitcoin"
	networkTestnet = "testnet"
	networkRegtest = "regtest"
	networkSignet  = "signet"
)

var (
	supportedNetworks = supportedType{
		networkBitcoin: {},
		networkTestnet: {},
		networkRegtest: {},
		networkSignet:  {},
	}
	supportedExplorers = supportedType{
		"esplora":        {},
		"blockchaininfo": {},
	}
)

type Config struct {
	Network            string
	EvmRpcURL          string
	LedgerAddress      string
	LedgerABIPath      string
	ExplorerType       string
	ExplorerURL        string
	ExplorerRateLimit  float64
	ExplorerMaxRetries uint64
	FetchTimeout       time.Duration
	MaxConcurrency     int
	AuditInterval      int64
	Port               uint32
	LogLevel           int
	LogJSON            bool

	network  *chaincfg.Params
	ledger   ports.LedgerReader
	chain    ports.ChainDataProvider
	sched    ports.SchedulerService
	observer *metrics.Observer
	svc      application.Service
}

// String renders the config for logs, with credentials stripped from the
// endpoint urls.
func (c *Config) String() string {
	redacted := *c
	redacted.EvmRpcURL = redactURL(c.EvmRpcURL)
	redacted.ExplorerURL = redactURL(c.ExplorerURL)

	json, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Network            = "NETWORK"
	EvmRpcURL          = "EVM_RPC_URL"
	LedgerAddress      = "LEDGER_ADDRESS"
	LedgerABIPath      = "LEDGER_ABI_PATH"
	ExplorerType       = "EXPLORER_TYPE"
	ExplorerURL        = "EXPLORER_URL"
	ExplorerRateLimit  = "EXPLORER_RATE_LIMIT"
	ExplorerMaxRetries = "EXPLORER_MAX_RETRIES"
	FetchTimeout       = "FETCH_TIMEOUT"
	MaxConcurrency     = "MAX_CONCURRENCY"
	AuditInterval      = "AUDIT_INTERVAL"
	Port               = "PORT"
	LogLevel           = "LOG_LEVEL"
	LogJSON            = "LOG_JSON"

	defaultNetwork            = networkBitcoin
	defaultLedgerAddress      = "0x20157DBAbb84e3BBFE68C349d0d44E48AE7B5AD2"
	defaultExplorerType       = "esplora"
	defaultExplorerRateLimit  = 5.0
	defaultExplorerMaxRetries = 3
	defaultFetchTimeout       = 15 * time.Second
	defaultMaxConcurrency     = 16
	defaultAuditInterval      = 600
	DefaultPort               = 7080
	defaultLogLevel           = 4
	defaultLogJSON            = false

	defaultExplorerURLs = map[string]map[string]string{
		"esplora": {
			networkBitcoin: "https://blockstream.info/api",
			networkTestnet: "https://blockstream.info/testnet/api",
			networkSignet:  "https://mempool.space/signet/api",
			networkRegtest: "http://localhost:3000",
		},
		"blockchaininfo": {
			networkBitcoin: "https://blockchain.info",
		},
	}
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("POR")
	viper.AutomaticEnv()

	viper.SetDefault(Network, defaultNetwork)
	viper.SetDefault(LedgerAddress, defaultLedgerAddress)
	viper.SetDefault(ExplorerType, defaultExplorerType)
	viper.SetDefault(ExplorerRateLimit, defaultExplorerRateLimit)
	viper.SetDefault(ExplorerMaxRetries, defaultExplorerMaxRetries)
	viper.SetDefault(FetchTimeout, defaultFetchTimeout)
	viper.SetDefault(MaxConcurrency, defaultMaxConcurrency)
	viper.SetDefault(AuditInterval, defaultAuditInterval)
	viper.SetDefault(Port, DefaultPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(LogJSON, defaultLogJSON)

	return &Config{
		Network:            viper.GetString(Network),
		EvmRpcURL:          viper.GetString(EvmRpcURL),
		LedgerAddress:      viper.GetString(LedgerAddress),
		LedgerABIPath:      viper.GetString(LedgerABIPath),
		ExplorerType:       viper.GetString(ExplorerType),
		ExplorerURL:        viper.GetString(ExplorerURL),
		ExplorerRateLimit:  viper.GetFloat64(ExplorerRateLimit),
		ExplorerMaxRetries: viper.GetUint64(ExplorerMaxRetries),
		FetchTimeout:       viper.GetDuration(FetchTimeout),
		MaxConcurrency:     viper.GetInt(MaxConcurrency),
		AuditInterval:      viper.GetInt64(AuditInterval),
		Port:               viper.GetUint32(Port),
		LogLevel:           viper.GetInt(LogLevel),
		LogJSON:            viper.GetBool(LogJSON),
	}, nil
}

func (c *Config) Validate() error {
	if !supportedNetworks.supports(c.Network) {
		return fmt.Errorf("network not supported, please select one of: %s", supportedNetworks)
	}
	if !supportedExplorers.supports(c.ExplorerType) {
		return fmt.Errorf("explorer type not supported, please select one of: %s", supportedExplorers)
	}
	if len(c.ExplorerURL) <= 0 {
		url, ok := defaultExplorerURLs[c.ExplorerType][c.Network]
		if !ok {
			return fmt.Errorf(
				"missing explorer url, %s has no default for network %s", c.ExplorerType, c.Network,
			)
		}
		c.ExplorerURL = url
	}
	if len(c.EvmRpcURL) <= 0 {
		return fmt.Errorf("missing evm rpc url")
	}
	if !common.IsHexAddress(c.LedgerAddress) {
		return fmt.Errorf("invalid ledger address %s", c.LedgerAddress)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("invalid fetch timeout, must be positive")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("invalid max concurrency, must be at least 1")
	}
	if c.AuditInterval < 10 {
		return fmt.Errorf("invalid audit interval, must be at least 10 seconds")
	}
	if c.ExplorerRateLimit < 0 {
		return fmt.Errorf("invalid explorer rate limit, must not be negative")
	}

	c.network = networkFromName(c.Network)

	if err := c.chainService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	c.observer = metrics.NewObserver()
	return nil
}

func (c *Config) NetworkParams() *chaincfg.Params {
	return c.network
}

func (c *Config) Observer() *metrics.Observer {
	return c.observer
}

// LedgerReader dials the EVM node on first use.
func (c *Config) LedgerReader() (ports.LedgerReader, error) {
	if c.ledger == nil {
		if err := c.ledgerService(); err != nil {
			return nil, err
		}
	}
	return c.ledger, nil
}

func (c *Config) ChainProvider() ports.ChainDataProvider {
	return c.chain
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) ledgerService() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.FetchTimeout)
	defer cancel()

	svc, err := evmledger.NewService(ctx, c.EvmRpcURL, c.LedgerAddress, c.LedgerABIPath)
	if err != nil {
		return err
	}

	c.ledger = svc
	return nil
}

func (c *Config) chainService() error {
	cfg := explorer.Config{
		BaseURL:    c.ExplorerURL,
		Timeout:    c.FetchTimeout,
		RateLimit:  c.ExplorerRateLimit,
		MaxRetries: c.ExplorerMaxRetries,
	}

	var svc ports.ChainDataProvider
	var err error
	switch c.ExplorerType {
	case "esplora":
		svc, err = esploraexplorer.NewService(cfg)
	case "blockchaininfo":
		if c.Network != networkBitcoin {
			return fmt.Errorf("blockchaininfo explorer only supports %s", networkBitcoin)
		}
		svc, err = blockchaininfoexplorer.NewService(cfg)
	default:
		err = fmt.Errorf("unknown explorer type")
	}
	if err != nil {
		return err
	}

	c.chain = svc
	return nil
}

func (c *Config) schedulerService() error {
	c.sched = scheduler.NewScheduler()
	return nil
}

func (c *Config) appService() error {
	if c.chain == nil {
		return fmt.Errorf("chain provider not set, config must be validated first")
	}
	ledger, err := c.LedgerReader()
	if err != nil {
		return err
	}

	svc, err := application.NewService(
		application.Config{
			Network:        c.network,
			MaxConcurrency: c.MaxConcurrency,
			FetchTimeout:   c.FetchTimeout,
			AuditInterval:  c.AuditInterval,
		},
		ledger, c.chain, c.sched, c.observer,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

// NetworkByName returns the chain params of one of the supported network
// names.
func NetworkByName(name string) (*chaincfg.Params, error) {
	if !supportedNetworks.supports(name) {
		return nil, fmt.Errorf("network not supported, please select one of: %s", supportedNetworks)
	}
	return networkFromName(name), nil
}

func networkFromName(name string) *chaincfg.Params {
	switch name {
	case networkTestnet:
		return &chaincfg.TestNet3Params
	case networkRegtest:
		return &chaincfg.RegressionNetParams
	case networkSignet:
		return &chaincfg.SigNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// redactURL keeps only scheme and host of an endpoint, API keys usually
// travel in its path, query or user info.
func redactURL(rawURL string) string {
	if len(rawURL) <= 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || len(u.Host) <= 0 {
		return "[redacted]"
	}

	redacted := &url.URL{Scheme: u.Scheme, Host: u.Host}
	if u.User != nil || strings.Trim(u.Path, "/") != "" || u.RawQuery != "" || u.Fragment != "" {
		return redacted.String() + "/[redacted]"
	}
	return redacted.String()
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
