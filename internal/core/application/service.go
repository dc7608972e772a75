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
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type service struct {
	network        *chaincfg.Params
	maxConcurrency int
	auditInterval  int64
	fetchTimeout   time.Duration

	ledger    ports.LedgerReader
	chain     ports.ChainDataProvider
	scheduler ports.SchedulerService
	observers []ports.AuditObserver
	verifier  *verifier
	reports   *reportStore
}

func NewService(
	cfg Config,
	ledger ports.LedgerReader, chain ports.ChainDataProvider,
	scheduler ports.SchedulerService, observers ...ports.AuditObserver,
) (Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("missing ledger reader")
	}
	if chain == nil {
		return nil, fmt.Errorf("missing chain data provider")
	}
	network := cfg.Network
	if network == nil {
		network = &chaincfg.MainNetParams
	}

	return &service{
		network:        network,
		maxConcurrency: cfg.MaxConcurrency,
		auditInterval:  cfg.AuditInterval,
		fetchTimeout:   cfg.FetchTimeout,
		ledger:         ledger,
		chain:          chain,
		scheduler:      scheduler,
		observers:      observers,
		verifier:       newVerifier(chain, network, cfg.FetchTimeout),
		reports:        newReportStore(),
	}, nil
}

func (s *service) Start() error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not set")
	}
	if s.auditInterval <= 0 {
		return fmt.Errorf("invalid audit interval %d", s.auditInterval)
	}

	startImmediately := true
	if err := s.scheduler.ScheduleTask(
		s.auditInterval, startImmediately, s.runScheduledAudit,
	); err != nil {
		return err
	}
	s.scheduler.Start()

	log.Debugf("scheduled audits every %d seconds", s.auditInterval)
	return nil
}

func (s *service) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.ledger.Close()
}

func (s *service) ComputeProofOfReserve(ctx context.Context) (decimal.Decimal, error) {
	report, err := s.Audit(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return report.Total, nil
}

func (s *service) Audit(ctx context.Context) (*domain.ReserveReport, error) {
	report, err := s.audit(ctx)
	if err != nil {
		for _, o := range s.observers {
			o.AuditFailed(err)
		}
		return nil, err
	}

	s.reports.set(report)
	for _, o := range s.observers {
		o.AuditCompleted(report)
	}
	return report, nil
}

func (s *service) LatestReport() (*domain.ReserveReport, error) {
	return s.reports.get()
}

func (s *service) ListVaults(ctx context.Context, all bool) ([]domain.VaultRecord, error) {
	ctx, cancel := withTimeout(ctx, s.fetchTimeout)
	defer cancel()

	var vaults []domain.VaultRecord
	var err error
	if all {
		vaults, err = s.ledger.GetAllVaults(ctx)
	} else {
		vaults, err = s.ledger.GetFundedVaults(ctx)
	}
	if err != nil {
		return nil, asLedgerReadErr(err)
	}
	return vaults, nil
}

func (s *service) audit(ctx context.Context) (*domain.ReserveReport, error) {
	startedAt := time.Now()

	groupKey, err := s.getAttestorGroupKey(ctx)
	if err != nil {
		return nil, err
	}
	attestorKey, err := custody.DeriveOperationalKey(groupKey, s.network)
	if err != nil {
		return nil, fmt.Errorf("failed to derive attestor key: %w", err)
	}

	vaults, err := s.getFundedVaults(ctx)
	if err != nil {
		return nil, err
	}

	log.Debugf("verifying %d funded vaults", len(vaults))

	results := make([]domain.VaultResult, len(vaults))
	amounts := make([]fn.Option[btcutil.Amount], len(vaults))

	// Tasks never fail: per-vault errors end up in the vault's result.
	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}
	for i, vault := range vaults {
		i, vault := i, vault
		g.Go(func() error {
			result, err := s.verifier.verify(ctx, vault, attestorKey)
			logResult(result, err)

			results[i] = result
			amounts[i] = verifiedAmount(result)
			return nil
		})
	}
	//nolint:errcheck
	g.Wait()

	total := fn.Sum(fn.Map(amounts, func(o fn.Option[btcutil.Amount]) btcutil.Amount {
		return o.UnwrapOr(0)
	}))

	report := domain.NewReserveReport(hex.EncodeToString(attestorKey), startedAt, results)
	report.TotalSats = total
	report.Total = domain.SatsToBTC(total)
	report.Duration = time.Since(startedAt)

	log.Infof(
		"audit completed: %s BTC locked in %d/%d verified vaults (%d rejected, %d excluded)",
		report.FormattedTotal(), report.Verified, report.FundedVaults,
		report.Rejected, report.Excluded,
	)

	return report, nil
}

func (s *service) getAttestorGroupKey(ctx context.Context) (string, error) {
	ctx, cancel := withTimeout(ctx, s.fetchTimeout)
	defer cancel()

	key, err := s.ledger.GetAttestorGroupKey(ctx)
	if err != nil {
		return "", asLedgerReadErr(err)
	}
	return key, nil
}

// getFundedVaults bounds the whole paginated read by a single fetch timeout.
func (s *service) getFundedVaults(ctx context.Context) ([]domain.VaultRecord, error) {
	ctx, cancel := withTimeout(ctx, s.fetchTimeout)
	defer cancel()

	vaults, err := s.ledger.GetFundedVaults(ctx)
	if err != nil {
		return nil, asLedgerReadErr(err)
	}
	return vaults, nil
}

func (s *service) runScheduledAudit() {
	if _, err := s.Audit(context.Background()); err != nil {
		log.WithError(err).Warn("scheduled audit failed")
	}
}

func logResult(result domain.VaultResult, err error) {
	logger := log.WithField("vault", result.UUID)
	switch result.Outcome {
	case domain.OutcomeVerified:
		logger.Debugf("verified with %d confirmations", result.Confirmations)
	case domain.OutcomeRejected:
		logger.Infof("rejected at stage %s: %s", result.Stage, result.Reason)
	default:
		logger.WithError(err).Warn("excluded from reserves")
	}
}

func asLedgerReadErr(err error) error {
	if errors.Is(err, domain.ErrLedgerRead) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrLedgerRead, err)
}
