package application

import (
	"sync"

	"github.com/btcvault/por/internal/core/domain"
)

type reportStore struct {
	lock   *sync.RWMutex
	report *domain.ReserveReport
}

func newReportStore() *reportStore {
	return &reportStore{&sync.RWMutex{}, nil}
}

func (s *reportStore) get() (*domain.ReserveReport, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.report == nil {
		return nil, domain.ErrNoReport
	}
	return s.report, nil
}

func (s *reportStore) set(report *domain.ReserveReport) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.report = report
}
