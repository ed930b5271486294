package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fsdevblog/groph-balance/internal/cache"
	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/internal/repository/repoargs"
	"github.com/fsdevblog/groph-balance/pkg/uow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	// HistoryLimit - сколько последних операций входит в проекцию баланса.
	HistoryLimit uint = 5

	// MaxDescriptionLength - предел длины описания операции в символах,
	// синхронизирован с VARCHAR(255) в миграции.
	MaxDescriptionLength = 255

	defaultSearchPerPage uint = 5
)

// BalanceService - движок баланса: единственный писатель таблиц balances и transactions.
type BalanceService struct {
	uow             uow.UOW
	balanceRepo     BalanceRepository
	transactionRepo TransactionRepository
	cache           BalanceCache
	l               *logrus.Entry
}

func NewBalanceService(u uow.UOW, c BalanceCache, l *logrus.Logger) (*BalanceService, error) {
	balanceRepo, bErr := uow.GetRepositoryAs[BalanceRepository](u, uow.RepositoryName(repoargs.BalanceRepoName))
	if bErr != nil {
		return nil, bErr
	}
	transactionRepo, tErr :=
		uow.GetRepositoryAs[TransactionRepository](u, uow.RepositoryName(repoargs.TransactionRepoName))
	if tErr != nil {
		return nil, tErr
	}
	return &BalanceService{
		uow:             u,
		balanceRepo:     balanceRepo,
		transactionRepo: transactionRepo,
		cache:           c,
		l:               l.WithField("component", "balance_service"),
	}, nil
}

type ApplyOperationArgs struct {
	UserID      int64
	Type        domain.TransactionType
	Amount      decimal.Decimal
	Description string
}

// normalizeOperation валидирует аргументы операции до любого обращения к хранилищу.
// Описание обрезается по краям; пустое после обрезки - ошибка. Все отказы заворачивают
// domain.ErrValidation.
func normalizeOperation(args ApplyOperationArgs) (ApplyOperationArgs, error) {
	if !args.Amount.IsPositive() {
		return args, fmt.Errorf("%w: amount must be positive, got %s", domain.ErrValidation, args.Amount)
	}
	if !domain.ValidTransactionType(args.Type) {
		return args, fmt.Errorf("%w: unknown operation type %q", domain.ErrValidation, args.Type)
	}
	args.Description = strings.TrimSpace(args.Description)
	if args.Description == "" {
		return args, fmt.Errorf("%w: description must not be blank", domain.ErrValidation)
	}
	if utf8.RuneCountInString(args.Description) > MaxDescriptionLength {
		return args, fmt.Errorf("%w: description longer than %d characters", domain.ErrValidation, MaxDescriptionLength)
	}
	return args, nil
}

// ApplyOperation атомарно применяет операцию к балансу пользователя:
//
//  1. Берет строку баланса под эксклюзивной блокировкой (конкуренты по этому userID ждут).
//  2. Считает новый остаток; дебет ниже нуля отклоняется с domain.ErrInsufficientFunds,
//     единица целиком откатывается, журнал не трогается.
//  3. Записывает новый остаток и добавляет запись журнала с balance_after.
//  4. После коммита инвалидирует кэш проекции (best-effort, сбой не фатален - TTL добьет).
//
// Снаружи изменения видны только после коммита.
func (s *BalanceService) ApplyOperation(
	ctx context.Context,
	args ApplyOperationArgs,
) (*domain.Transaction, error) {
	args, vErr := normalizeOperation(args)
	if vErr != nil {
		return nil, vErr
	}

	var transaction *domain.Transaction
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var applyErr error
		transaction, applyErr = s.ApplyOperationTx(c, tx, args)
		return applyErr
	})
	if txErr != nil {
		if domain.TerminalError(txErr) {
			return nil, txErr
		}
		return nil, fmt.Errorf("applying balance operation: %w", txErr)
	}

	s.InvalidateBalance(ctx, args.UserID)
	return transaction, nil
}

// ApplyOperationTx - ядро движка, работает внутри переданной атомарной единицы.
// Вызывающий обязан передавать уже нормализованные аргументы (normalizeOperation)
// и инвалидировать кэш после коммита своей единицы.
func (s *BalanceService) ApplyOperationTx(
	ctx context.Context,
	tx uow.TX,
	args ApplyOperationArgs,
) (*domain.Transaction, error) {
	balanceRepo, bErr := uow.GetAs[BalanceRepository](tx, uow.RepositoryName(repoargs.BalanceRepoName))
	if bErr != nil {
		return nil, bErr //nolint:wrapcheck
	}
	transactionRepo, tErr :=
		uow.GetAs[TransactionRepository](tx, uow.RepositoryName(repoargs.TransactionRepoName))
	if tErr != nil {
		return nil, tErr //nolint:wrapcheck
	}

	balance, lockErr := balanceRepo.GetForUpdate(ctx, args.UserID)
	if lockErr != nil {
		return nil, lockErr //nolint:wrapcheck
	}

	var newAmount decimal.Decimal
	switch args.Type {
	case domain.TransactionTypeCredit:
		newAmount = balance.Amount.Add(args.Amount)
	case domain.TransactionTypeDebit:
		newAmount = balance.Amount.Sub(args.Amount)
	default:
		return nil, fmt.Errorf("%w: unknown operation type %q", domain.ErrValidation, args.Type)
	}

	if newAmount.IsNegative() {
		return nil, fmt.Errorf(
			"%w: balance %s, debit %s", domain.ErrInsufficientFunds, balance.Amount, args.Amount)
	}

	if _, updErr := balanceRepo.UpdateAmount(ctx, args.UserID, newAmount); updErr != nil {
		return nil, updErr //nolint:wrapcheck
	}

	transaction, createErr := transactionRepo.Create(ctx, repoargs.TransactionCreate{
		UserID:       args.UserID,
		Type:         args.Type,
		Amount:       args.Amount,
		BalanceAfter: newAmount,
		Description:  args.Description,
	})
	if createErr != nil {
		return nil, createErr //nolint:wrapcheck
	}
	return transaction, nil
}

// GetBalanceWithHistory возвращает текущий баланс и последние HistoryLimit операций,
// новые первыми. Повторные чтения в пределах TTL отдаются из кэша.
func (s *BalanceService) GetBalanceWithHistory(
	ctx context.Context,
	userID int64,
) (*domain.BalanceWithHistory, error) {
	cached, cacheErr := s.cache.Get(ctx, userID)
	if cacheErr == nil {
		return cached, nil
	}
	if !errors.Is(cacheErr, cache.ErrCacheMiss) {
		// Недоступный кэш не должен ронять читающий запрос, идем в хранилище.
		s.l.WithError(cacheErr).Warn("balance cache read failed")
	}

	balance, balanceErr := s.balanceRepo.Get(ctx, userID)
	if balanceErr != nil {
		return nil, balanceErr //nolint:wrapcheck
	}
	transactions, transErr := s.transactionRepo.GetLastByUserID(ctx, userID, HistoryLimit)
	if transErr != nil {
		return nil, transErr //nolint:wrapcheck
	}

	value := &domain.BalanceWithHistory{
		Balance:      balance.Amount,
		Transactions: transactions,
	}
	if setErr := s.cache.Set(ctx, userID, value); setErr != nil {
		s.l.WithError(setErr).Warn("balance cache write failed")
	}
	return value, nil
}

// SearchTransactions - постраничная выборка журнала с поиском по описанию.
func (s *BalanceService) SearchTransactions(
	ctx context.Context,
	args repoargs.TransactionSearch,
) ([]domain.Transaction, int64, error) {
	if args.Page == 0 {
		args.Page = 1
	}
	if args.PerPage == 0 {
		args.PerPage = defaultSearchPerPage
	}
	transactions, total, err := s.transactionRepo.Search(ctx, args)
	if err != nil {
		return nil, 0, err //nolint:wrapcheck
	}
	return transactions, total, nil
}

// InvalidateBalance сбрасывает кэш проекции после коммита мутации. Fire-and-forget:
// сбой лишь логируется, устаревшая запись сама истечет по TTL.
func (s *BalanceService) InvalidateBalance(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.l.WithError(err).WithField("userID", userID).Warn("balance cache invalidation failed")
	}
}
