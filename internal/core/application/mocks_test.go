package application_test

import (
	"context"

	"github.com/btcvault/por/internal/core/domain"
	"github.com/btcvault/por/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

type mockedLedger struct {
	mock.Mock
}

func (m *mockedLedger) GetAttestorGroupKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

func (m *mockedLedger) GetFundedVaults(ctx context.Context) ([]domain.VaultRecord, error) {
	args := m.Called(ctx)

	var res []domain.VaultRecord
	if a := args.Get(0); a != nil {
		res = a.([]domain.VaultRecord)
	}
	return res, args.Error(1)
}

func (m *mockedLedger) GetAllVaults(ctx context.Context) ([]domain.VaultRecord, error) {
	args := m.Called(ctx)

	var res []domain.VaultRecord
	if a := args.Get(0); a != nil {
		res = a.([]domain.VaultRecord)
	}
	return res, args.Error(1)
}

func (m *mockedLedger) Close() {
	m.Called()
}

type mockedChain struct {
	mock.Mock
}

func (m *mockedChain) GetTransaction(ctx context.Context, txid string) (*ports.Transaction, error) {
	args := m.Called(ctx, txid)

	var res *ports.Transaction
	if a := args.Get(0); a != nil {
		res = a.(*ports.Transaction)
	}
	return res, args.Error(1)
}

func (m *mockedChain) GetTipHeight(ctx context.Context) (int64, error) {
	args := m.Called(ctx)

	var res int64
	if a := args.Get(0); a != nil {
		res = a.(int64)
	}
	return res, args.Error(1)
}

type mockedScheduler struct {
	mock.Mock
}

func (m *mockedScheduler) Start() {
	m.Called()
}

func (m *mockedScheduler) Stop() {
	m.Called()
}

func (m *mockedScheduler) ScheduleTask(interval int64, immediate bool, task func()) error {
	args := m.Called(interval, immediate, task)
	return args.Error(0)
}

type mockedObserver struct {
	mock.Mock
}

func (m *mockedObserver) AuditCompleted(report *domain.ReserveReport) {
	m.Called(report)
}

func (m *mockedObserver) AuditFailed(err error) {
	m.Called(err)
}
