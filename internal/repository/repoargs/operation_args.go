package repoargs

import (
	"time"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/shopspring/decimal"
)

type OperationCreate struct {
	UserID      int64
	Type        domain.TransactionType
	Amount      decimal.Decimal
	Description string
}

// OperationRetry - перевод операции в статус RETRY с отметкой времени, раньше которой
// воркеры не должны забирать ее повторно.
type OperationRetry struct {
	ID          int64
	LastError   string
	NextRetryAt time.Time
}
