package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fsdevblog/groph-balance/internal/cache"
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

type BalanceServiceTestSuite struct {
	suite.Suite
	mockCtrl            *gomock.Controller
	mockUOW             *uowmocks.MockUOW
	mockTX              *uowmocks.MockTX
	mockBalanceRepo     *mocks.MockBalanceRepository
	mockTransactionRepo *mocks.MockTransactionRepository
	mockCache           *mocks.MockBalanceCache
	service             *BalanceService
}

func TestBalanceServiceSuite(t *testing.T) {
	suite.Run(t, new(BalanceServiceTestSuite))
}

func (s *BalanceServiceTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockUOW = uowmocks.NewMockUOW(s.mockCtrl)
	s.mockTX = uowmocks.NewMockTX(s.mockCtrl)
	s.mockBalanceRepo = mocks.NewMockBalanceRepository(s.mockCtrl)
	s.mockTransactionRepo = mocks.NewMockTransactionRepository(s.mockCtrl)
	s.mockCache = mocks.NewMockBalanceCache(s.mockCtrl)

	s.mockUOW.EXPECT().
		GetRepository(uow.RepositoryName(repoargs.BalanceRepoName)).
		Return(s.mockBalanceRepo, nil).AnyTimes()
	s.mockUOW.EXPECT().
		GetRepository(uow.RepositoryName(repoargs.TransactionRepoName)).
		Return(s.mockTransactionRepo, nil).AnyTimes()

	var err error
	s.service, err = NewBalanceService(s.mockUOW, s.mockCache, logrus.New())
	s.Require().NoError(err)
}

func (s *BalanceServiceTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

// expectDo прогоняет замыкание атомарной единицы через мок-транзакцию.
func (s *BalanceServiceTestSuite) expectDo() {
	s.mockUOW.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context, uow.TX) error) error {
			return fn(ctx, s.mockTX)
		})
}

func (s *BalanceServiceTestSuite) expectTxRepos() {
	s.mockTX.EXPECT().
		Get(uow.RepositoryName(repoargs.BalanceRepoName)).
		Return(s.mockBalanceRepo, nil)
	s.mockTX.EXPECT().
		Get(uow.RepositoryName(repoargs.TransactionRepoName)).
		Return(s.mockTransactionRepo, nil)
}

func (s *BalanceServiceTestSuite) TestApplyOperation_Credit() {
	var userID int64 = 123
	balance := domain.Balance{UserID: userID, Amount: decimal.NewFromInt(100)}
	wantAmount := decimal.NewFromInt(150)

	s.expectDo()
	s.expectTxRepos()

	s.mockBalanceRepo.EXPECT().GetForUpdate(gomock.Any(), userID).Return(&balance, nil)
	s.mockBalanceRepo.EXPECT().
		UpdateAmount(gomock.Any(), userID, wantAmount).
		Return(&domain.Balance{UserID: userID, Amount: wantAmount}, nil)

	s.mockTransactionRepo.EXPECT().
		Create(gomock.Any(), repoargs.TransactionCreate{
			UserID:       userID,
			Type:         domain.TransactionTypeCredit,
			Amount:       decimal.NewFromInt(50),
			BalanceAfter: wantAmount,
			Description:  "deposit",
		}).
		Return(&domain.Transaction{ID: 1, UserID: userID, BalanceAfter: wantAmount}, nil)

	// кэш сбрасывается после коммита.
	s.mockCache.EXPECT().Invalidate(gomock.Any(), userID).Return(nil)

	transaction, err := s.service.ApplyOperation(s.T().Context(), ApplyOperationArgs{
		UserID:      userID,
		Type:        domain.TransactionTypeCredit,
		Amount:      decimal.NewFromInt(50),
		Description: "  deposit  ", // описание нормализуется до записи
	})
	s.Require().NoError(err)
	s.True(transaction.BalanceAfter.Equal(wantAmount))
}

func (s *BalanceServiceTestSuite) TestApplyOperation_Debit() {
	var userID int64 = 123
	balance := domain.Balance{UserID: userID, Amount: decimal.NewFromInt(100)}
	wantAmount := decimal.NewFromInt(60)

	s.expectDo()
	s.expectTxRepos()

	s.mockBalanceRepo.EXPECT().GetForUpdate(gomock.Any(), userID).Return(&balance, nil)
	s.mockBalanceRepo.EXPECT().
		UpdateAmount(gomock.Any(), userID, wantAmount).
		Return(&domain.Balance{UserID: userID, Amount: wantAmount}, nil)
	s.mockTransactionRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return(&domain.Transaction{ID: 2, UserID: userID, BalanceAfter: wantAmount}, nil)
	s.mockCache.EXPECT().Invalidate(gomock.Any(), userID).Return(nil)

	transaction, err := s.service.ApplyOperation(s.T().Context(), ApplyOperationArgs{
		UserID:      userID,
		Type:        domain.TransactionTypeDebit,
		Amount:      decimal.NewFromInt(40),
		Description: "purchase",
	})
	s.Require().NoError(err)
	s.True(transaction.BalanceAfter.Equal(wantAmount))
}

// Последовательные операции образуют цепочку balance_after: каждая запись журнала
// фиксирует остаток сразу после себя.
func (s *BalanceServiceTestSuite) TestApplyOperation_Sequential() {
	var userID int64 = 123

	steps := []struct {
		opType       domain.TransactionType
		amount       decimal.Decimal
		description  string
		startBalance decimal.Decimal
		wantAfter    decimal.Decimal
	}{
		{
			opType:       domain.TransactionTypeDebit,
			amount:       decimal.NewFromInt(40),
			description:  "coffee",
			startBalance: decimal.NewFromInt(100),
			wantAfter:    decimal.NewFromInt(60),
		},
		{
			opType:       domain.TransactionTypeCredit,
			amount:       decimal.NewFromInt(10),
			description:  "refund",
			startBalance: decimal.NewFromInt(60),
			wantAfter:    decimal.NewFromInt(70),
		},
	}

	for i, step := range steps {
		s.expectDo()
		s.expectTxRepos()

		s.mockBalanceRepo.EXPECT().
			GetForUpdate(gomock.Any(), userID).
			Return(&domain.Balance{UserID: userID, Amount: step.startBalance}, nil)
		s.mockBalanceRepo.EXPECT().
			UpdateAmount(gomock.Any(), userID, step.wantAfter).
			Return(&domain.Balance{UserID: userID, Amount: step.wantAfter}, nil)
		s.mockTransactionRepo.EXPECT().
			Create(gomock.Any(), repoargs.TransactionCreate{
				UserID:       userID,
				Type:         step.opType,
				Amount:       step.amount,
				BalanceAfter: step.wantAfter,
				Description:  step.description,
			}).
			Return(&domain.Transaction{
				ID:           int64(i + 1),
				UserID:       userID,
				Type:         step.opType,
				BalanceAfter: step.wantAfter,
			}, nil)
		s.mockCache.EXPECT().Invalidate(gomock.Any(), userID).Return(nil)

		transaction, err := s.service.ApplyOperation(s.T().Context(), ApplyOperationArgs{
			UserID:      userID,
			Type:        step.opType,
			Amount:      step.amount,
			Description: step.description,
		})
		s.Require().NoError(err)
		s.True(transaction.BalanceAfter.Equal(step.wantAfter))
	}
}

// Дебет сверх остатка отклоняется целиком: ни изменения баланса, ни записи журнала,
// ни сброса кэша.
func (s *BalanceServiceTestSuite) TestApplyOperation_InsufficientFunds() {
	var userID int64 = 123
	balance := domain.Balance{UserID: userID, Amount: decimal.NewFromInt(30)}

	s.expectDo()
	s.expectTxRepos()

	s.mockBalanceRepo.EXPECT().GetForUpdate(gomock.Any(), userID).Return(&balance, nil)
	s.mockBalanceRepo.EXPECT().UpdateAmount(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	s.mockTransactionRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
	s.mockCache.EXPECT().Invalidate(gomock.Any(), gomock.Any()).Times(0)

	_, err := s.service.ApplyOperation(s.T().Context(), ApplyOperationArgs{
		UserID:      userID,
		Type:        domain.TransactionTypeDebit,
		Amount:      decimal.NewFromInt(50),
		Description: "too expensive",
	})
	s.Require().ErrorIs(err, domain.ErrInsufficientFunds)
}

func (s *BalanceServiceTestSuite) TestApplyOperation_Validation() {
	cases := []struct {
		name string
		args ApplyOperationArgs
	}{
		{
			name: "zero amount",
			args: ApplyOperationArgs{UserID: 1, Type: domain.TransactionTypeCredit, Description: "x"},
		},
		{
			name: "negative amount",
			args: ApplyOperationArgs{
				UserID:      1,
				Type:        domain.TransactionTypeDebit,
				Amount:      decimal.NewFromInt(-1),
				Description: "x",
			},
		},
		{
			name: "unknown type",
			args: ApplyOperationArgs{
				UserID:      1,
				Type:        "transfer",
				Amount:      decimal.NewFromInt(1),
				Description: "x",
			},
		},
		{
			name: "blank description",
			args: ApplyOperationArgs{
				UserID:      1,
				Type:        domain.TransactionTypeCredit,
				Amount:      decimal.NewFromInt(1),
				Description: "   ",
			},
		},
		{
			name: "oversized description",
			args: ApplyOperationArgs{
				UserID:      1,
				Type:        domain.TransactionTypeCredit,
				Amount:      decimal.NewFromInt(1),
				Description: strings.Repeat("ю", MaxDescriptionLength+1),
			},
		},
	}

	// до хранилища дело дойти не должно.
	s.mockUOW.EXPECT().Do(gomock.Any(), gomock.Any()).Times(0)

	for _, c := range cases {
		s.Run(c.name, func() {
			_, err := s.service.ApplyOperation(s.T().Context(), c.args)
			s.Require().ErrorIs(err, domain.ErrValidation)
		})
	}
}

// Лимит описания считается в символах, не в байтах: ровно MaxDescriptionLength
// многобайтных рун проходит до хранилища без обрезки.
func (s *BalanceServiceTestSuite) TestApplyOperation_DescriptionAtLimit() {
	var userID int64 = 123
	description := strings.Repeat("ю", MaxDescriptionLength)
	balance := domain.Balance{UserID: userID, Amount: decimal.NewFromInt(10)}
	wantAmount := decimal.NewFromInt(11)

	s.expectDo()
	s.expectTxRepos()

	s.mockBalanceRepo.EXPECT().GetForUpdate(gomock.Any(), userID).Return(&balance, nil)
	s.mockBalanceRepo.EXPECT().
		UpdateAmount(gomock.Any(), userID, wantAmount).
		Return(&domain.Balance{UserID: userID, Amount: wantAmount}, nil)
	s.mockTransactionRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, args repoargs.TransactionCreate) (*domain.Transaction, error) {
			s.Equal(description, args.Description)
			return &domain.Transaction{ID: 1, UserID: userID, BalanceAfter: args.BalanceAfter}, nil
		})
	s.mockCache.EXPECT().Invalidate(gomock.Any(), userID).Return(nil)

	_, err := s.service.ApplyOperation(s.T().Context(), ApplyOperationArgs{
		UserID:      userID,
		Type:        domain.TransactionTypeCredit,
		Amount:      decimal.NewFromInt(1),
		Description: description,
	})
	s.Require().NoError(err)
}

func (s *BalanceServiceTestSuite) TestGetBalanceWithHistory_CacheHit() {
	var userID int64 = 42
	cached := &domain.BalanceWithHistory{
		Balance: decimal.NewFromInt(500),
		Transactions: []domain.Transaction{
			{ID: 10, UserID: userID, BalanceAfter: decimal.NewFromInt(500), CreatedAt: time.Now()},
		},
	}

	s.mockCache.EXPECT().Get(gomock.Any(), userID).Return(cached, nil)
	// до хранилища дело дойти не должно.
	s.mockBalanceRepo.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)

	value, err := s.service.GetBalanceWithHistory(s.T().Context(), userID)
	s.Require().NoError(err)
	s.Equal(cached, value)
}

func (s *BalanceServiceTestSuite) TestGetBalanceWithHistory_CacheMiss() {
	var userID int64 = 42
	balance := domain.Balance{UserID: userID, Amount: decimal.NewFromInt(500)}
	transactions := []domain.Transaction{
		{ID: 11, UserID: userID, BalanceAfter: decimal.NewFromInt(500)},
		{ID: 10, UserID: userID, BalanceAfter: decimal.NewFromInt(400)},
	}

	s.mockCache.EXPECT().Get(gomock.Any(), userID).Return(nil, cache.ErrCacheMiss)
	s.mockBalanceRepo.EXPECT().Get(gomock.Any(), userID).Return(&balance, nil)
	s.mockTransactionRepo.EXPECT().
		GetLastByUserID(gomock.Any(), userID, HistoryLimit).
		Return(transactions, nil)
	s.mockCache.EXPECT().
		Set(gomock.Any(), userID, &domain.BalanceWithHistory{
			Balance:      balance.Amount,
			Transactions: transactions,
		}).
		Return(nil)

	value, err := s.service.GetBalanceWithHistory(s.T().Context(), userID)
	s.Require().NoError(err)
	s.True(value.Balance.Equal(balance.Amount))
	s.Len(value.Transactions, 2)
}

// Недоступный кэш не роняет чтение: ответ собирается из хранилища.
func (s *BalanceServiceTestSuite) TestGetBalanceWithHistory_CacheDown() {
	var userID int64 = 42
	balance := domain.Balance{UserID: userID, Amount: decimal.NewFromInt(500)}

	s.mockCache.EXPECT().Get(gomock.Any(), userID).Return(nil, errors.New("connection refused"))
	s.mockBalanceRepo.EXPECT().Get(gomock.Any(), userID).Return(&balance, nil)
	s.mockTransactionRepo.EXPECT().
		GetLastByUserID(gomock.Any(), userID, HistoryLimit).
		Return([]domain.Transaction{}, nil)
	s.mockCache.EXPECT().Set(gomock.Any(), userID, gomock.Any()).Return(errors.New("connection refused"))

	value, err := s.service.GetBalanceWithHistory(s.T().Context(), userID)
	s.Require().NoError(err)
	s.True(value.Balance.Equal(balance.Amount))
}

func (s *BalanceServiceTestSuite) TestGetBalanceWithHistory_NotFound() {
	var userID int64 = 999

	s.mockCache.EXPECT().Get(gomock.Any(), userID).Return(nil, cache.ErrCacheMiss)
	s.mockBalanceRepo.EXPECT().Get(gomock.Any(), userID).Return(nil, domain.ErrRecordNotFound)

	_, err := s.service.GetBalanceWithHistory(s.T().Context(), userID)
	s.Require().ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *BalanceServiceTestSuite) TestSearchTransactions_Defaults() {
	var userID int64 = 42

	s.mockTransactionRepo.EXPECT().
		Search(gomock.Any(), repoargs.TransactionSearch{
			UserID:  userID,
			Page:    1,
			PerPage: DefaultSearchPerPage,
		}).
		Return([]domain.Transaction{{ID: 1}}, int64(1), nil)

	transactions, total, err := s.service.SearchTransactions(s.T().Context(), repoargs.TransactionSearch{
		UserID: userID,
	})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Len(transactions, 1)
}
