package domain

import (
	"github.com/shopspring/decimal"

	"time"
)

type User struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Login     string
	Password  string
}

// Balance хранит текущий остаток средств пользователя. Ровно одна запись на пользователя,
// создается вместе с пользователем. Инвариант: Amount >= 0 после каждого коммита.
type Balance struct {
	UserID    int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Amount    decimal.Decimal
}

// Transaction - запись журнала операций по балансу. Журнал append-only: записи создаются
// движком баланса в той же атомарной единице, что и обновление баланса, и никогда не меняются.
// BalanceAfter фиксирует остаток сразу после операции и служит для аудита независимо от
// текущего значения Balance.Amount.
type Transaction struct {
	ID           int64
	CreatedAt    time.Time
	UserID       int64
	Type         TransactionType
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Description  string
}

// Operation - отложенная операция по балансу в очереди balance_operations.
// Attempts считает только попытки, завершившиеся сбоем хранилища. LastError хранит
// текст последней ошибки для инспекции оператором.
type Operation struct {
	ID          int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      int64
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	Status      OperationStatus
	Attempts    uint
	LastError   string
	NextRetryAt time.Time
}

// BalanceWithHistory - проекция "баланс + последние операции" для читающих запросов.
// Кэшируется с коротким TTL, источником истины не является.
type BalanceWithHistory struct {
	Balance      decimal.Decimal `json:"balance"`
	Transactions []Transaction   `json:"transactions"`
}
