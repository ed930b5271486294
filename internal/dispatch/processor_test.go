package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/fsdevblog/groph-balance/internal/dispatch/mocks"
	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type ProcessorTestSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	mockService *mocks.MockServicer
	processor   *Processor
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorTestSuite))
}

func (s *ProcessorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockServicer(s.ctrl)

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	s.processor = New(s.mockService, logger)
}

func (s *ProcessorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func testOperations() []domain.Operation {
	return []domain.Operation{
		{ID: 1, UserID: 100, Type: domain.TransactionTypeCredit, Amount: decimal.NewFromInt(10)},
		{ID: 2, UserID: 100, Type: domain.TransactionTypeDebit, Amount: decimal.NewFromInt(5)},
		{ID: 3, UserID: 101, Type: domain.TransactionTypeCredit, Amount: decimal.NewFromInt(7)},
	}
}

// TestProcess_NoOperations Тест на случай, когда очередь пуста.
func (s *ProcessorTestSuite) TestProcess_NoOperations() {
	s.mockService.EXPECT().
		ClaimPending(gomock.Any(), s.processor.limitPerIteration).
		Return([]domain.Operation{}, nil)

	err := s.processor.process(s.T().Context())

	s.ErrorIs(err, ErrNoOperations)
}

// TestProcess_ExecutesAll Тест на случай, когда все операции из пачки выполняются.
func (s *ProcessorTestSuite) TestProcess_ExecutesAll() {
	ops := testOperations()

	s.mockService.EXPECT().
		ClaimPending(gomock.Any(), s.processor.limitPerIteration).
		Return(ops, nil)

	for _, op := range ops {
		s.mockService.EXPECT().Execute(gomock.Any(), op).Return(nil)
	}

	err := s.processor.process(s.T().Context())
	s.NoError(err)
}

// TestProcess_FailureDoesNotStopBatch Отказ одной операции не прерывает пачку:
// статусы и ретраи раскладывает сервисный слой, процессор лишь логирует.
func (s *ProcessorTestSuite) TestProcess_FailureDoesNotStopBatch() {
	ops := testOperations()

	s.mockService.EXPECT().
		ClaimPending(gomock.Any(), s.processor.limitPerIteration).
		Return(ops, nil)

	s.mockService.EXPECT().Execute(gomock.Any(), ops[0]).Return(domain.ErrInsufficientFunds)
	s.mockService.EXPECT().Execute(gomock.Any(), ops[1]).Return(errors.New("db down"))
	s.mockService.EXPECT().Execute(gomock.Any(), ops[2]).Return(nil)

	err := s.processor.process(s.T().Context())
	s.NoError(err)
}

func (s *ProcessorTestSuite) TestProcess_ClaimError() {
	s.mockService.EXPECT().
		ClaimPending(gomock.Any(), s.processor.limitPerIteration).
		Return(nil, errors.New("db down"))

	err := s.processor.process(s.T().Context())
	s.Error(err)
	s.NotErrorIs(err, ErrNoOperations)
}

// TestRun_StopsOnCancel Тест на остановку цикла по отмене контекста.
func (s *ProcessorTestSuite) TestRun_StopsOnCancel() {
	ctx, cancel := context.WithCancel(s.T().Context())

	s.mockService.EXPECT().
		ClaimPending(gomock.Any(), s.processor.limitPerIteration).
		Return([]domain.Operation{}, nil).
		AnyTimes()

	done := make(chan struct{})
	go func() {
		s.processor.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		s.Fail("processor did not stop after context cancellation")
	}
}

func (s *ProcessorTestSuite) TestBuilders() {
	s.processor.SetLimitPerIteration(5).SetOperationWorkers(2)

	s.Equal(uint(5), s.processor.limitPerIteration)
	s.Equal(uint(2), s.processor.operationWorkers)
}
