package ports

import "github.com/btcvault/por/internal/core/domain"

type AuditObserver interface {
	AuditCompleted(report *domain.ReserveReport)
	AuditFailed(err error)
}
