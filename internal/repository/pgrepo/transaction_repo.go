package pgrepo

import (
	"context"
	"fmt"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/internal/repository/repoargs"
	"github.com/fsdevblog/groph-balance/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = "id, user_id, type, amount, balance_after, description, created_at"

// TransactionRepository пишет и читает журнал операций. Журнал append-only: UPDATE/DELETE
// запросов здесь нет и быть не должно.
type TransactionRepository struct {
	db uow.DBTX
}

func NewTransactionRepository(db uow.DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create добавляет запись журнала. Вызывается движком баланса в той же транзакции,
// что и обновление строки баланса.
func (r *TransactionRepository) Create(
	ctx context.Context,
	args repoargs.TransactionCreate,
) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO transactions (user_id, type, amount, balance_after, description)
		 VALUES ($1, $2, $3, $4, $5) RETURNING `+transactionColumns,
		args.UserID, args.Type, args.Amount, args.BalanceAfter, args.Description)

	transaction, err := scanTransaction(row)
	if err != nil {
		return nil, convertErr(err, "creating transaction for user %d", args.UserID)
	}
	return transaction, nil
}

// GetLastByUserID возвращает последние limit записей журнала, новые первыми.
func (r *TransactionRepository) GetLastByUserID(
	ctx context.Context,
	userID int64,
	limit uint,
) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 ORDER BY id DESC LIMIT $2",
		userID, limit)
	if err != nil {
		return nil, convertErr(err, "getting last transactions for user %d", userID)
	}
	defer rows.Close()

	transactions, collectErr := collectTransactions(rows)
	if collectErr != nil {
		return nil, convertErr(collectErr, "getting last transactions for user %d", userID)
	}
	return transactions, nil
}

// Search выполняет постраничную выборку журнала с поиском по подстроке описания.
// Поля сортировки заданы закрытым перечислением в repoargs, в запрос они попадают
// только через whitelist - конкатенация тут безопасна.
func (r *TransactionRepository) Search(
	ctx context.Context,
	args repoargs.TransactionSearch,
) ([]domain.Transaction, int64, error) {
	where := "WHERE user_id = $1"
	queryArgs := []any{args.UserID}

	if args.Search != "" {
		where += fmt.Sprintf(" AND description ILIKE '%%' || $%d || '%%'", len(queryArgs)+1)
		queryArgs = append(queryArgs, args.Search)
	}

	var total int64
	countRow := r.db.QueryRow(ctx, "SELECT count(*) FROM transactions "+where, queryArgs...)
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, convertErr(err, "counting transactions for user %d", args.UserID)
	}

	orderBy := fmt.Sprintf(" ORDER BY %s %s", sortFieldColumn(args.Sort), sortDirectionSQL(args.Direction))

	offset := (args.Page - 1) * args.PerPage
	pagination := fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(queryArgs)+1, len(queryArgs)+2)
	queryArgs = append(queryArgs, args.PerPage, offset)

	rows, err := r.db.Query(ctx,
		"SELECT "+transactionColumns+" FROM transactions "+where+orderBy+pagination, queryArgs...)
	if err != nil {
		return nil, 0, convertErr(err, "searching transactions for user %d", args.UserID)
	}
	defer rows.Close()

	transactions, collectErr := collectTransactions(rows)
	if collectErr != nil {
		return nil, 0, convertErr(collectErr, "searching transactions for user %d", args.UserID)
	}
	return transactions, total, nil
}

func sortFieldColumn(f repoargs.TransactionSortField) string {
	if f == repoargs.TransactionSortAmount {
		return "amount"
	}
	return "created_at"
}

func sortDirectionSQL(d repoargs.SortDirection) string {
	if d == repoargs.SortAsc {
		return "ASC"
	}
	return "DESC"
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Description, &t.CreatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &t, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *transaction)
	}
	return transactions, rows.Err() //nolint:wrapcheck
}
