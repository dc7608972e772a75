package httpservice

import (
	"errors"
	"net/http"
	"time"

	"github.com/btcvault/por/internal/core/application"
	"github.com/btcvault/por/internal/core/domain"
	"github.com/gin-gonic/gin"
	"github.com/lightningnetwork/lnd/fn/v2"
	log "github.com/sirupsen/logrus"
)

type reservesResponse struct {
	TotalBTC     string    `json:"total_btc"`
	TotalSats    int64     `json:"total_sats"`
	FundedVaults int       `json:"funded_vaults"`
	Verified     int       `json:"verified"`
	Rejected     int       `json:"rejected"`
	Excluded     int       `json:"excluded"`
	AttestorKey  string    `json:"attestor_key"`
	StartedAt    time.Time `json:"started_at"`
	Duration     string    `json:"duration"`
}

type vaultsResponse struct {
	StartedAt time.Time            `json:"started_at"`
	Vaults    []domain.VaultResult `json:"vaults"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	appSvc application.Service
}

func (h *handler) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if report, err := h.appSvc.LatestReport(); err == nil {
		resp["last_audit"] = report.StartedAt
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) getReserves(c *gin.Context) {
	report, ok := h.latestReport(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, reservesResponse{
		TotalBTC:     report.FormattedTotal(),
		TotalSats:    int64(report.TotalSats),
		FundedVaults: report.FundedVaults,
		Verified:     report.Verified,
		Rejected:     report.Rejected,
		Excluded:     report.Excluded,
		AttestorKey:  report.AttestorKey,
		StartedAt:    report.StartedAt,
		Duration:     report.Duration.String(),
	})
}

// getVaults returns the per-vault results of the last audit, optionally
// filtered by ?outcome=verified|rejected|excluded.
func (h *handler) getVaults(c *gin.Context) {
	outcome := domain.VaultOutcome(c.Query("outcome"))
	switch outcome {
	case "", domain.OutcomeVerified, domain.OutcomeRejected, domain.OutcomeExcluded:
	default:
		c.JSON(http.StatusBadRequest, errorResponse{"invalid outcome " + string(outcome)})
		return
	}

	report, ok := h.latestReport(c)
	if !ok {
		return
	}

	vaults := report.Vaults
	if outcome != "" {
		vaults = fn.Filter(vaults, func(v domain.VaultResult) bool {
			return v.Outcome == outcome
		})
	}
	if vaults == nil {
		vaults = []domain.VaultResult{}
	}

	c.JSON(http.StatusOK, vaultsResponse{report.StartedAt, vaults})
}

func (h *handler) latestReport(c *gin.Context) (*domain.ReserveReport, bool) {
	report, err := h.appSvc.LatestReport()
	if err != nil {
		if errors.Is(err, domain.ErrNoReport) {
			c.JSON(http.StatusServiceUnavailable, errorResponse{"no audit completed yet"})
			return nil, false
		}
		log.WithError(err).Error("failed to get latest report")
		c.JSON(http.StatusInternalServerError, errorResponse{"internal error"})
		return nil, false
	}
	return report, true
}
