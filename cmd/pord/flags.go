package main

import (
	"github.com/btcvault/por/internal/config"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

// global flags, each overriding the config key it is bound to
var (
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "bitcoin network: bitcoin, testnet, regtest or signet",
	}
	evmRpcURLFlag = &cli.StringFlag{
		Name:  "evm-rpc-url",
		Usage: "url of the evm node serving the ledger contract",
	}
	ledgerAddressFlag = &cli.StringFlag{
		Name:  "ledger-address",
		Usage: "address of the ledger contract",
	}
	ledgerABIPathFlag = &cli.StringFlag{
		Name:  "ledger-abi",
		Usage: "path to a json abi or contract artifact of the ledger",
	}
	explorerTypeFlag = &cli.StringFlag{
		Name:  "explorer",
		Usage: "bitcoin data provider: esplora or blockchaininfo",
	}
	explorerURLFlag = &cli.StringFlag{
		Name:  "explorer-url",
		Usage: "base url of the bitcoin data provider",
	}
	rateLimitFlag = &cli.Float64Flag{
		Name:  "rate-limit",
		Usage: "max requests per second to the bitcoin data provider, 0 to disable",
	}
	maxRetriesFlag = &cli.Uint64Flag{
		Name:  "max-retries",
		Usage: "max retries of a failed request to the bitcoin data provider",
	}
	fetchTimeoutFlag = &cli.DurationFlag{
		Name:  "fetch-timeout",
		Usage: "timeout of a single chain data request",
	}
	maxConcurrencyFlag = &cli.IntFlag{
		Name:  "max-concurrency",
		Usage: "max number of vaults verified at once",
	}
	auditIntervalFlag = &cli.Int64Flag{
		Name:  "audit-interval",
		Usage: "seconds between two audits in daemon mode",
	}
	portFlag = &cli.UintFlag{
		Name:  "port",
		Usage: "port of the http api in daemon mode",
	}
	logLevelFlag = &cli.IntFlag{
		Name:  "log-level",
		Usage: "log level, from 0 (panic) to 6 (trace)",
	}
	logJSONFlag = &cli.BoolFlag{
		Name:  "log-json",
		Usage: "log in json format",
	}

	globalFlags = []cli.Flag{
		networkFlag,
		evmRpcURLFlag,
		ledgerAddressFlag,
		ledgerABIPathFlag,
		explorerTypeFlag,
		explorerURLFlag,
		rateLimitFlag,
		maxRetriesFlag,
		fetchTimeoutFlag,
		maxConcurrencyFlag,
		auditIntervalFlag,
		portFlag,
		logLevelFlag,
		logJSONFlag,
	}

	flagKeys = map[string]string{
		networkFlag.Name:        config.Network,
		evmRpcURLFlag.Name:      config.EvmRpcURL,
		ledgerAddressFlag.Name:  config.LedgerAddress,
		ledgerABIPathFlag.Name:  config.LedgerABIPath,
		explorerTypeFlag.Name:   config.ExplorerType,
		explorerURLFlag.Name:    config.ExplorerURL,
		rateLimitFlag.Name:      config.ExplorerRateLimit,
		maxRetriesFlag.Name:     config.ExplorerMaxRetries,
		fetchTimeoutFlag.Name:   config.FetchTimeout,
		maxConcurrencyFlag.Name: config.MaxConcurrency,
		auditIntervalFlag.Name:  config.AuditInterval,
		portFlag.Name:           config.Port,
		logLevelFlag.Name:       config.LogLevel,
		logJSONFlag.Name:        config.LogJSON,
	}
)

// command flags
var (
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "print the result as json",
	}
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "print the outcome of every vault",
	}
	allFlag = &cli.BoolFlag{
		Name:  "all",
		Usage: "list vaults in any status, not only funded ones",
	}
	uuidFlag = &cli.StringFlag{
		Name:     "uuid",
		Usage:    "hex encoded 32-byte vault uuid",
		Required: true,
	}
	ownerKeyFlag = &cli.StringFlag{
		Name:     "owner-key",
		Usage:    "hex encoded taproot public key of the vault owner",
		Required: true,
	}
	attestorXpubFlag = &cli.StringFlag{
		Name:     "attestor-xpub",
		Usage:    "extended public key of the attestor group",
		Required: true,
	}
	leafFlag = &cli.StringFlag{
		Name:  "leaf",
		Usage: "hex encoded tapscript leaf revealed by a spend, checked against the vault keys",
	}
)

// bindFlags moves every flag set on the command line into viper so that it
// takes precedence over env values.
func bindFlags(ctx *cli.Context) error {
	for name, key := range flagKeys {
		if ctx.IsSet(name) {
			viper.Set(key, ctx.Value(name))
		}
	}
	return nil
}
