package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/internal/repository/repoargs"
	"github.com/fsdevblog/groph-balance/internal/service"
)

// UserServicer интерфейс исключительно для моков.
type UserServicer interface {
	Register(ctx context.Context, args service.RegisterUserArgs) (*domain.User, string, error)
	Login(ctx context.Context, args service.LoginUserArgs) (*domain.User, string, error)
}

type BalanceServicer interface {
	GetBalanceWithHistory(ctx context.Context, userID int64) (*domain.BalanceWithHistory, error)
	SearchTransactions(
		ctx context.Context,
		args repoargs.TransactionSearch,
	) ([]domain.Transaction, int64, error)
}

type OperationServicer interface {
	Enqueue(ctx context.Context, args service.ApplyOperationArgs) (*domain.Operation, error)
	Cancel(ctx context.Context, id int64, userID int64) error
}
