package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/internal/repository/repoargs"
	"github.com/fsdevblog/groph-balance/pkg/uow"
	"github.com/sirupsen/logrus"
)

const (
	// MaxOperationAttempts - бюджет ретраев при сбоях хранилища, после исчерпания
	// операция уходит в dead-letter статус.
	MaxOperationAttempts uint = 5

	retryBackoffBase = 30 * time.Second
	retryBackoffMax  = 10 * time.Minute
)

// OperationService управляет очередью отложенных операций: постановка, выдача воркерам,
// выполнение через движок баланса и терминальные статусы.
type OperationService struct {
	uow    uow.UOW
	opRepo OperationRepository
	engine BalanceEngine
	l      *logrus.Entry
}

func NewOperationService(u uow.UOW, engine BalanceEngine, l *logrus.Logger) (*OperationService, error) {
	opRepo, err := uow.GetRepositoryAs[OperationRepository](u, uow.RepositoryName(repoargs.OperationRepoName))
	if err != nil {
		return nil, err
	}
	return &OperationService{
		uow:    u,
		opRepo: opRepo,
		engine: engine,
		l:      l.WithField("component", "operation_service"),
	}, nil
}

// Enqueue ставит операцию в очередь и сразу возвращает управление, не применяя мутацию.
// Некорректные аргументы отклоняются здесь же, до записи в очередь.
func (s *OperationService) Enqueue(ctx context.Context, args ApplyOperationArgs) (*domain.Operation, error) {
	args, vErr := normalizeOperation(args)
	if vErr != nil {
		return nil, vErr
	}
	op, err := s.opRepo.Create(ctx, repoargs.OperationCreate{
		UserID:      args.UserID,
		Type:        args.Type,
		Amount:      args.Amount,
		Description: args.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueueing operation: %w", err)
	}
	return op, nil
}

// Cancel снимает с очереди операцию, которую еще не забрал воркер. Для уже выполняющейся
// операции вернется domain.ErrRecordNotFound - отмена на лету не поддерживается.
func (s *OperationService) Cancel(ctx context.Context, id int64, userID int64) error {
	return s.opRepo.DeletePending(ctx, id, userID) //nolint:wrapcheck
}

// ClaimPending выдает воркерам очередную пачку операций, переводя их в PROCESSING.
func (s *OperationService) ClaimPending(ctx context.Context, limit uint) ([]domain.Operation, error) {
	ops, err := s.opRepo.ClaimPending(ctx, limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return ops, nil
}

// Execute применяет взятую из очереди операцию. Переход в DONE коммитится в одной
// атомарной единице с изменением баланса и записью журнала, поэтому повторная выдача
// операции после падения воркера не приведет к двойному применению.
//
// Ошибки раскладываются по таксономии:
//   - бизнес-отказ (валидация, нехватка средств, отсутствие записи) - терминальный
//     FAILED, без ретраев: повтор отклоненной операции исход не изменит;
//   - сбой хранилища - RETRY с экспоненциальной задержкой, после MaxOperationAttempts
//     попыток - DEAD для инспекции оператором.
func (s *OperationService) Execute(ctx context.Context, op domain.Operation) error {
	args, vErr := normalizeOperation(ApplyOperationArgs{
		UserID:      op.UserID,
		Type:        op.Type,
		Amount:      op.Amount,
		Description: op.Description,
	})
	if vErr != nil {
		s.markFailed(ctx, op.ID, vErr)
		return vErr
	}

	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		if _, applyErr := s.engine.ApplyOperationTx(c, tx, args); applyErr != nil {
			return applyErr
		}
		opRepo, repoErr := uow.GetAs[OperationRepository](tx, uow.RepositoryName(repoargs.OperationRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		return opRepo.MarkDone(c, op.ID) //nolint:wrapcheck
	})

	if txErr == nil {
		s.engine.InvalidateBalance(ctx, op.UserID)
		return nil
	}

	if domain.TerminalError(txErr) {
		s.markFailed(ctx, op.ID, txErr)
		return txErr
	}

	s.scheduleRetry(ctx, op, txErr)
	return fmt.Errorf("executing operation %d: %w", op.ID, txErr)
}

func (s *OperationService) markFailed(ctx context.Context, id int64, cause error) {
	if err := s.opRepo.MarkFailed(ctx, id, cause.Error()); err != nil {
		s.l.WithError(err).WithField("operationID", id).Error("marking operation failed")
	}
}

// scheduleRetry возвращает операцию в очередь или хоронит ее в DEAD, если бюджет
// попыток исчерпан.
func (s *OperationService) scheduleRetry(ctx context.Context, op domain.Operation, cause error) {
	if op.Attempts+1 >= MaxOperationAttempts {
		if err := s.opRepo.MarkDead(ctx, op.ID, cause.Error()); err != nil {
			s.l.WithError(err).WithField("operationID", op.ID).Error("marking operation dead")
		}
		return
	}

	retryErr := s.opRepo.MarkRetry(ctx, repoargs.OperationRetry{
		ID:          op.ID,
		LastError:   cause.Error(),
		NextRetryAt: time.Now().Add(backoffDelay(op.Attempts)),
	})
	if retryErr != nil {
		// Операция останется в PROCESSING и вернется в очередь по stale-порогу.
		s.l.WithError(retryErr).WithField("operationID", op.ID).Error("marking operation for retry")
	}
}
