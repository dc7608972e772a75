package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcvault/por/internal/config"
	httpservice "github.com/btcvault/por/internal/interface/http"
	"github.com/btcvault/por/pkg/custody"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	auditCmd = &cli.Command{
		Name:   "audit",
		Usage:  "Run a single audit and print the verified reserves in BTC",
		Action: auditAction,
		Flags:  []cli.Flag{jsonFlag, verboseFlag},
	}
	serveCmd = &cli.Command{
		Name:   "serve",
		Usage:  "Run audits periodically and serve the latest report over http",
		Action: serveAction,
	}
	vaultsCmd = &cli.Command{
		Name:   "vaults",
		Usage:  "List the vaults recorded in the ledger",
		Action: vaultsAction,
		Flags:  []cli.Flag{allFlag, jsonFlag},
	}
	scriptCmd = &cli.Command{
		Name:   "script",
		Usage:  "Print the custody script and address expected for a vault",
		Action: scriptAction,
		Flags:  []cli.Flag{uuidFlag, ownerKeyFlag, attestorXpubFlag, leafFlag},
	}
)

func auditAction(ctx *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	appSvc, err := cfg.AppService()
	if err != nil {
		return err
	}
	defer appSvc.Stop()

	report, err := appSvc.Audit(ctx.Context)
	if err != nil {
		return err
	}

	if ctx.Bool(jsonFlag.Name) {
		return printJSON(ctx.App.Writer, report)
	}
	if ctx.Bool(verboseFlag.Name) {
		printReport(ctx.App.Writer, report)
		return nil
	}
	fmt.Fprintln(ctx.App.Writer, report.FormattedTotal())
	return nil
}

func serveAction(_ *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	appSvc, err := cfg.AppService()
	if err != nil {
		return err
	}

	svc, err := httpservice.NewService(
		httpservice.Config{Port: cfg.Port}, appSvc, cfg.Observer().Handler(),
	)
	if err != nil {
		return err
	}

	log.RegisterExitHandler(svc.Stop)

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}

func vaultsAction(ctx *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	appSvc, err := cfg.AppService()
	if err != nil {
		return err
	}
	defer appSvc.Stop()

	vaults, err := appSvc.ListVaults(ctx.Context, ctx.Bool(allFlag.Name))
	if err != nil {
		return err
	}

	if ctx.Bool(jsonFlag.Name) {
		return printJSON(ctx.App.Writer, toVaultsJSON(vaults))
	}
	printVaults(ctx.App.Writer, vaults)
	return nil
}

// scriptAction works offline, only the network is read from config.
func scriptAction(ctx *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	net, err := config.NetworkByName(cfg.Network)
	if err != nil {
		return err
	}

	uuid, err := custody.ParseVaultUUID(ctx.String(uuidFlag.Name))
	if err != nil {
		return err
	}
	ownerKey, err := custody.ParsePublicKey(ctx.String(ownerKeyFlag.Name))
	if err != nil {
		return err
	}
	attestorKey, err := custody.DeriveOperationalKey(ctx.String(attestorXpubFlag.Name), net)
	if err != nil {
		return err
	}
	internalKey, err := custody.VaultInternalKey(uuid[:], net)
	if err != nil {
		return err
	}
	script, err := custody.BuildCustodyScript(internalKey, ownerKey, attestorKey)
	if err != nil {
		return err
	}
	addr, err := custody.CustodyAddress(script, net)
	if err != nil {
		return err
	}
	closure, err := custody.NewMultisigClosure(ownerKey, attestorKey)
	if err != nil {
		return err
	}
	leaf, err := closure.Leaf()
	if err != nil {
		return err
	}

	info := scriptInfo{
		InternalKey: hex.EncodeToString(internalKey),
		AttestorKey: hex.EncodeToString(attestorKey),
		Leaf:        hex.EncodeToString(leaf.Script),
		Script:      hex.EncodeToString(script),
		Address:     addr,
	}

	if revealed := ctx.String(leafFlag.Name); len(revealed) > 0 {
		leafScript, err := hex.DecodeString(revealed)
		if err != nil {
			return fmt.Errorf("invalid leaf: %s", err)
		}
		if err := custody.VerifyCustodyLeaf(leafScript, ownerKey, attestorKey); err != nil {
			return err
		}
		info.LeafVerified = true
	}

	printScript(ctx.App.Writer, info)
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	log.Debugf("loaded config: %s", cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	log.SetLevel(log.Level(cfg.LogLevel))
	if cfg.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
