package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/internal/repository/repoargs"
	. "github.com/fsdevblog/groph-balance/internal/service"
	"github.com/fsdevblog/groph-balance/internal/service/mocks"
	"github.com/fsdevblog/groph-balance/pkg/uow"
	uowmocks "github.com/fsdevblog/groph-balance/pkg/uow/mocks"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type OperationServiceTestSuite struct {
	suite.Suite
	mockCtrl   *gomock.Controller
	mockUOW    *uowmocks.MockUOW
	mockTX     *uowmocks.MockTX
	mockOpRepo *mocks.MockOperationRepository
	mockEngine *mocks.MockBalanceEngine
	service    *OperationService
}

func TestOperationServiceSuite(t *testing.T) {
	suite.Run(t, new(OperationServiceTestSuite))
}

func (s *OperationServiceTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockUOW = uowmocks.NewMockUOW(s.mockCtrl)
	s.mockTX = uowmocks.NewMockTX(s.mockCtrl)
	s.mockOpRepo = mocks.NewMockOperationRepository(s.mockCtrl)
	s.mockEngine = mocks.NewMockBalanceEngine(s.mockCtrl)

	s.mockUOW.EXPECT().
		GetRepository(uow.RepositoryName(repoargs.OperationRepoName)).
		Return(s.mockOpRepo, nil).AnyTimes()

	var err error
	s.service, err = NewOperationService(s.mockUOW, s.mockEngine, logrus.New())
	s.Require().NoError(err)
}

func (s *OperationServiceTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func (s *OperationServiceTestSuite) expectDo() {
	s.mockUOW.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context, uow.TX) error) error {
			return fn(ctx, s.mockTX)
		})
}

func (s *OperationServiceTestSuite) pendingOperation(attempts uint) domain.Operation {
	return domain.Operation{
		ID:          7,
		UserID:      123,
		Type:        domain.TransactionTypeDebit,
		Amount:      decimal.NewFromInt(50),
		Description: "purchase",
		Status:      domain.OperationStatusProcessing,
		Attempts:    attempts,
	}
}

func (s *OperationServiceTestSuite) TestEnqueue() {
	args := ApplyOperationArgs{
		UserID:      123,
		Type:        domain.TransactionTypeCredit,
		Amount:      decimal.NewFromInt(100),
		Description: "deposit",
	}

	s.mockOpRepo.EXPECT().
		Create(gomock.Any(), repoargs.OperationCreate{
			UserID:      args.UserID,
			Type:        args.Type,
			Amount:      args.Amount,
			Description: args.Description,
		}).
		Return(&domain.Operation{ID: 1, Status: domain.OperationStatusNew}, nil)

	op, err := s.service.Enqueue(s.T().Context(), args)
	s.Require().NoError(err)
	s.Equal(domain.OperationStatusNew, op.Status)
}

// Некорректная операция отклоняется до записи в очередь.
func (s *OperationServiceTestSuite) TestEnqueue_Validation() {
	s.mockOpRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	_, err := s.service.Enqueue(s.T().Context(), ApplyOperationArgs{
		UserID:      123,
		Type:        domain.TransactionTypeCredit,
		Amount:      decimal.Zero,
		Description: "deposit",
	})
	s.Require().ErrorIs(err, domain.ErrValidation)
}

func (s *OperationServiceTestSuite) TestCancel() {
	s.mockOpRepo.EXPECT().DeletePending(gomock.Any(), int64(7), int64(123)).Return(nil)

	s.Require().NoError(s.service.Cancel(s.T().Context(), 7, 123))
}

func (s *OperationServiceTestSuite) TestCancel_AlreadyClaimed() {
	s.mockOpRepo.EXPECT().
		DeletePending(gomock.Any(), int64(7), int64(123)).
		Return(domain.ErrRecordNotFound)

	err := s.service.Cancel(s.T().Context(), 7, 123)
	s.Require().ErrorIs(err, domain.ErrRecordNotFound)
}

// Статус DONE коммитится вместе с мутацией баланса, кэш сбрасывается после коммита.
func (s *OperationServiceTestSuite) TestExecute_Success() {
	op := s.pendingOperation(0)

	s.expectDo()
	s.mockEngine.EXPECT().
		ApplyOperationTx(gomock.Any(), s.mockTX, gomock.Any()).
		Return(&domain.Transaction{ID: 1}, nil)
	s.mockTX.EXPECT().
		Get(uow.RepositoryName(repoargs.OperationRepoName)).
		Return(s.mockOpRepo, nil)
	s.mockOpRepo.EXPECT().MarkDone(gomock.Any(), op.ID).Return(nil)
	s.mockEngine.EXPECT().InvalidateBalance(gomock.Any(), op.UserID)

	s.Require().NoError(s.service.Execute(s.T().Context(), op))
}

// Бизнес-отказ терминален: операция уходит в FAILED без ретраев.
func (s *OperationServiceTestSuite) TestExecute_TerminalFailure() {
	op := s.pendingOperation(0)

	s.expectDo()
	s.mockEngine.EXPECT().
		ApplyOperationTx(gomock.Any(), s.mockTX, gomock.Any()).
		Return(nil, errors.Wrap(domain.ErrInsufficientFunds, "balance 30, debit 50"))

	s.mockOpRepo.EXPECT().
		MarkFailed(gomock.Any(), op.ID, gomock.Any()).
		Return(nil)
	s.mockOpRepo.EXPECT().MarkRetry(gomock.Any(), gomock.Any()).Times(0)
	s.mockEngine.EXPECT().InvalidateBalance(gomock.Any(), gomock.Any()).Times(0)

	err := s.service.Execute(s.T().Context(), op)
	s.Require().ErrorIs(err, domain.ErrInsufficientFunds)
}

// Сбой хранилища - ретрай с отложенным запуском.
func (s *OperationServiceTestSuite) TestExecute_TransientRetry() {
	op := s.pendingOperation(0)

	s.expectDo()
	s.mockEngine.EXPECT().
		ApplyOperationTx(gomock.Any(), s.mockTX, gomock.Any()).
		Return(nil, domain.ErrUnknown)

	s.mockOpRepo.EXPECT().
		MarkRetry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args repoargs.OperationRetry) error {
			s.Equal(op.ID, args.ID)
			s.NotEmpty(args.LastError)
			s.True(args.NextRetryAt.After(time.Now()))
			return nil
		})
	s.mockOpRepo.EXPECT().MarkFailed(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := s.service.Execute(s.T().Context(), op)
	s.Require().Error(err)
	s.False(domain.TerminalError(err))
}

// Исчерпанный бюджет попыток - dead-letter.
func (s *OperationServiceTestSuite) TestExecute_DeadLetter() {
	op := s.pendingOperation(MaxOperationAttempts - 1)

	s.expectDo()
	s.mockEngine.EXPECT().
		ApplyOperationTx(gomock.Any(), s.mockTX, gomock.Any()).
		Return(nil, domain.ErrUnknown)

	s.mockOpRepo.EXPECT().MarkDead(gomock.Any(), op.ID, gomock.Any()).Return(nil)
	s.mockOpRepo.EXPECT().MarkRetry(gomock.Any(), gomock.Any()).Times(0)

	err := s.service.Execute(s.T().Context(), op)
	s.Require().Error(err)
}

// Некорректная операция из очереди уходит в FAILED без обращения к движку.
func (s *OperationServiceTestSuite) TestExecute_InvalidOperation() {
	op := s.pendingOperation(0)
	op.Amount = decimal.Zero

	s.mockUOW.EXPECT().Do(gomock.Any(), gomock.Any()).Times(0)
	s.mockOpRepo.EXPECT().MarkFailed(gomock.Any(), op.ID, gomock.Any()).Return(nil)

	err := s.service.Execute(s.T().Context(), op)
	s.Require().ErrorIs(err, domain.ErrValidation)
}

func (s *OperationServiceTestSuite) TestClaimPending() {
	ops := []domain.Operation{s.pendingOperation(0)}

	s.mockOpRepo.EXPECT().ClaimPending(gomock.Any(), uint(10)).Return(ops, nil)

	got, err := s.service.ClaimPending(s.T().Context(), 10)
	s.Require().NoError(err)
	s.Len(got, 1)
}

func TestBackoffDelay(t *testing.T) {
	for attempt := range MaxOperationAttempts {
		delay := BackoffDelay(attempt)
		if delay <= 0 {
			t.Fatalf("attempt %d: non-positive delay %s", attempt, delay)
		}
		maxDelay := time.Duration(float64(RetryBackoffMax) * 1.15)
		if delay > maxDelay {
			t.Fatalf("attempt %d: delay %s above cap %s", attempt, delay, maxDelay)
		}
	}
}
