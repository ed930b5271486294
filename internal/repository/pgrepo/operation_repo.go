package pgrepo

import (
	"context"
	"time"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/internal/repository/repoargs"
	"github.com/fsdevblog/groph-balance/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const operationColumns = "id, user_id, type, amount, description, status, attempts, last_error, next_retry_at, created_at, updated_at"

// staleProcessingAfter - порог, после которого операция в статусе PROCESSING считается
// брошенной упавшим воркером и выдается заново. Повторная выдача безопасна: переход в DONE
// коммитится в одной транзакции с изменением баланса, двойного применения не будет.
const staleProcessingAfter = 5 * time.Minute

// OperationRepository - надежная очередь операций поверх таблицы balance_operations.
// Постановка в очередь - обычный INSERT, выдача воркерам - FOR UPDATE SKIP LOCKED.
type OperationRepository struct {
	db uow.DBTX
}

func NewOperationRepository(db uow.DBTX) *OperationRepository {
	return &OperationRepository{db: db}
}

// Create ставит операцию в очередь со статусом NEW.
func (r *OperationRepository) Create(
	ctx context.Context,
	args repoargs.OperationCreate,
) (*domain.Operation, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO balance_operations (user_id, type, amount, description)
		 VALUES ($1, $2, $3, $4) RETURNING `+operationColumns,
		args.UserID, args.Type, args.Amount, args.Description)

	op, err := scanOperation(row)
	if err != nil {
		return nil, convertErr(err, "enqueueing operation for user %d", args.UserID)
	}
	return op, nil
}

// ClaimPending забирает из очереди до limit операций, готовых к выполнению, и переводит
// их в статус PROCESSING. SKIP LOCKED позволяет нескольким воркер-пулам разбирать очередь
// параллельно без взаимной блокировки.
func (r *OperationRepository) ClaimPending(ctx context.Context, limit uint) ([]domain.Operation, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE balance_operations SET status = $1, updated_at = now()
		 WHERE id IN (
			SELECT id FROM balance_operations
			WHERE (status = $2 OR (status = $3 AND next_retry_at <= now())
				OR (status = $1 AND updated_at < now() - $4::interval))
			ORDER BY id
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+operationColumns,
		domain.OperationStatusProcessing,
		domain.OperationStatusNew,
		domain.OperationStatusRetry,
		staleProcessingAfter.String(),
		limit)
	if err != nil {
		return nil, convertErr(err, "claiming pending operations")
	}
	defer rows.Close()

	ops, collectErr := collectOperations(rows)
	if collectErr != nil {
		return nil, convertErr(collectErr, "claiming pending operations")
	}
	return ops, nil
}

// MarkDone помечает операцию выполненной. Вызывается в той же транзакции, что и
// изменение баланса.
func (r *OperationRepository) MarkDone(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, domain.OperationStatusDone, "")
}

// MarkFailed - терминальный отказ (валидация, нехватка средств, отсутствие записи).
// Операция остается в таблице с текстом ошибки и повторно не выдается.
func (r *OperationRepository) MarkFailed(ctx context.Context, id int64, lastError string) error {
	return r.setStatus(ctx, id, domain.OperationStatusFailed, lastError)
}

// MarkDead переводит операцию в dead-letter статус после исчерпания бюджета ретраев.
func (r *OperationRepository) MarkDead(ctx context.Context, id int64, lastError string) error {
	return r.setStatus(ctx, id, domain.OperationStatusDead, lastError)
}

// MarkRetry возвращает операцию в очередь после сбоя хранилища, увеличивая счетчик
// попыток. Раньше NextRetryAt воркеры ее не заберут.
func (r *OperationRepository) MarkRetry(ctx context.Context, args repoargs.OperationRetry) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE balance_operations
		 SET status = $2, attempts = attempts + 1, last_error = $3, next_retry_at = $4, updated_at = now()
		 WHERE id = $1`,
		args.ID, domain.OperationStatusRetry, args.LastError, args.NextRetryAt)
	if err != nil {
		return convertErr(err, "marking operation %d for retry", args.ID)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "marking operation %d for retry", args.ID)
	}
	return nil
}

// DeletePending отменяет еще не взятую в работу операцию пользователя. Операцию,
// уже попавшую к воркеру, отменить нельзя - она дойдет до коммита или отката.
func (r *OperationRepository) DeletePending(ctx context.Context, id int64, userID int64) error {
	tag, err := r.db.Exec(ctx,
		"DELETE FROM balance_operations WHERE id = $1 AND user_id = $2 AND status IN ($3, $4)",
		id, userID, domain.OperationStatusNew, domain.OperationStatusRetry)
	if err != nil {
		return convertErr(err, "cancelling operation %d", id)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "cancelling operation %d", id)
	}
	return nil
}

func (r *OperationRepository) setStatus(
	ctx context.Context,
	id int64,
	status domain.OperationStatus,
	lastError string,
) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE balance_operations SET status = $2, last_error = $3, updated_at = now() WHERE id = $1",
		id, status, lastError)
	if err != nil {
		return convertErr(err, "setting operation %d status %s", id, status)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "setting operation %d status %s", id, status)
	}
	return nil
}

func scanOperation(row rowScanner) (*domain.Operation, error) {
	var op domain.Operation
	if err := row.Scan(
		&op.ID, &op.UserID, &op.Type, &op.Amount, &op.Description,
		&op.Status, &op.Attempts, &op.LastError, &op.NextRetryAt,
		&op.CreatedAt, &op.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &op, nil
}

func collectOperations(rows pgx.Rows) ([]domain.Operation, error) {
	var ops []domain.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err() //nolint:wrapcheck
}
