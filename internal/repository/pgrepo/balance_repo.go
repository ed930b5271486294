package pgrepo

import (
	"context"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/pkg/uow"
	"github.com/shopspring/decimal"
)

const balanceColumns = "user_id, amount, created_at, updated_at"

// BalanceRepository - единственная точка доступа к строке баланса пользователя.
// Блокировку строки берет GetForUpdate; пара GetForUpdate/UpdateAmount обязана выполняться
// внутри одной атомарной единицы (uow.Do), иначе теряется защита от lost update.
type BalanceRepository struct {
	db uow.DBTX
}

func NewBalanceRepository(db uow.DBTX) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get возвращает баланс пользователя без блокировки. Для читающих запросов.
func (r *BalanceRepository) Get(ctx context.Context, userID int64) (*domain.Balance, error) {
	row := r.db.QueryRow(ctx, "SELECT "+balanceColumns+" FROM balances WHERE user_id = $1", userID)
	balance, err := scanBalance(row)
	if err != nil {
		return nil, convertErr(err, "getting balance for user %d", userID)
	}
	return balance, nil
}

// GetForUpdate читает строку баланса под эксклюзивной блокировкой (SELECT ... FOR UPDATE).
// Конкурентные вызовы для одного userID выстраиваются в очередь до конца транзакции;
// балансы разных пользователей друг друга не блокируют. Отсутствие строки - нарушение
// инварианта провижининга, возвращается domain.ErrRecordNotFound.
func (r *BalanceRepository) GetForUpdate(ctx context.Context, userID int64) (*domain.Balance, error) {
	row := r.db.QueryRow(ctx, "SELECT "+balanceColumns+" FROM balances WHERE user_id = $1 FOR UPDATE", userID)
	balance, err := scanBalance(row)
	if err != nil {
		return nil, convertErr(err, "locking balance for user %d", userID)
	}
	return balance, nil
}

// Create создает строку баланса с нулевой суммой. Вызывается ровно один раз при создании
// пользователя, в той же транзакции.
func (r *BalanceRepository) Create(ctx context.Context, userID int64) (*domain.Balance, error) {
	row := r.db.QueryRow(ctx,
		"INSERT INTO balances (user_id, amount) VALUES ($1, 0) RETURNING "+balanceColumns, userID)
	balance, err := scanBalance(row)
	if err != nil {
		return nil, convertErr(err, "creating balance for user %d", userID)
	}
	return balance, nil
}

// UpdateAmount записывает новую сумму баланса. Вызывать только держа блокировку,
// полученную через GetForUpdate в той же транзакции.
func (r *BalanceRepository) UpdateAmount(
	ctx context.Context,
	userID int64,
	amount decimal.Decimal,
) (*domain.Balance, error) {
	row := r.db.QueryRow(ctx,
		"UPDATE balances SET amount = $2, updated_at = now() WHERE user_id = $1 RETURNING "+balanceColumns,
		userID, amount)
	balance, err := scanBalance(row)
	if err != nil {
		return nil, convertErr(err, "updating balance for user %d", userID)
	}
	return balance, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner) (*domain.Balance, error) {
	var b domain.Balance
	if err := row.Scan(&b.UserID, &b.Amount, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &b, nil
}
