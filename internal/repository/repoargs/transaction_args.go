package repoargs

import (
	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/shopspring/decimal"
)

type TransactionCreate struct {
	UserID       int64
	Type         domain.TransactionType
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Description  string
}

type TransactionSortField string

const (
	TransactionSortCreatedAt TransactionSortField = "created_at"
	TransactionSortAmount    TransactionSortField = "amount"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// TransactionSearch - параметры выборки истории операций: поиск по подстроке описания,
// сортировка и постраничный вывод. Страницы нумеруются с единицы.
type TransactionSearch struct {
	UserID    int64
	Search    string
	Sort      TransactionSortField
	Direction SortDirection
	Page      uint
	PerPage   uint
}
