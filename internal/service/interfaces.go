package service

import (
	"context"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/internal/repository/repoargs"
	"github.com/fsdevblog/groph-balance/pkg/uow"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type UserRepository interface {
	Create(ctx context.Context, args repoargs.CreateUser) (*domain.User, error)
	FindByLogin(ctx context.Context, login string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

type BalanceRepository interface {
	Get(ctx context.Context, userID int64) (*domain.Balance, error)
	GetForUpdate(ctx context.Context, userID int64) (*domain.Balance, error)
	Create(ctx context.Context, userID int64) (*domain.Balance, error)
	UpdateAmount(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.Balance, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, args repoargs.TransactionCreate) (*domain.Transaction, error)
	GetLastByUserID(ctx context.Context, userID int64, limit uint) ([]domain.Transaction, error)
	Search(ctx context.Context, args repoargs.TransactionSearch) ([]domain.Transaction, int64, error)
}

type OperationRepository interface {
	Create(ctx context.Context, args repoargs.OperationCreate) (*domain.Operation, error)
	ClaimPending(ctx context.Context, limit uint) ([]domain.Operation, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, lastError string) error
	MarkDead(ctx context.Context, id int64, lastError string) error
	MarkRetry(ctx context.Context, args repoargs.OperationRetry) error
	DeletePending(ctx context.Context, id int64, userID int64) error
}

// BalanceCache - интерфейс read-through кэша проекции баланса. Промах обозначается
// ошибкой cache.ErrCacheMiss.
type BalanceCache interface {
	Get(ctx context.Context, userID int64) (*domain.BalanceWithHistory, error)
	Set(ctx context.Context, userID int64, value *domain.BalanceWithHistory) error
	Invalidate(ctx context.Context, userID int64) error
}

// BalanceEngine - та часть движка баланса, которая нужна сервису очереди: применение
// операции внутри чужой транзакции и инвалидация кэша после коммита.
type BalanceEngine interface {
	ApplyOperationTx(ctx context.Context, tx uow.TX, args ApplyOperationArgs) (*domain.Transaction, error)
	InvalidateBalance(ctx context.Context, userID int64)
}
