package dispatch

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/groph-balance/internal/domain"
)

// Servicer - сервисный слой очереди операций, нужный процессору.
type Servicer interface {
	ClaimPending(ctx context.Context, limit uint) ([]domain.Operation, error)
	Execute(ctx context.Context, op domain.Operation) error
}
