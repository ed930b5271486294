// Package dispatch разбирает очередь отложенных операций по балансу пулом воркеров.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"time"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/sirupsen/logrus"
)

const (
	defaultServiceTimeout         = 3 * time.Second
	defaultOperationTimeout       = 10 * time.Second
	defaultLimitPerIteration uint = 100
	defaultOperationWorkers  uint = 10
	idleSleep                     = time.Second
)

// Processor - диспетчер очереди: в цикле забирает готовые к выполнению операции и раздает
// их воркерам. Порядок применения операций одного пользователя определяется порядком
// коммитов (его сериализует блокировка строки баланса), а не порядком постановки в
// очередь - несколько воркеров могут нести операции одного пользователя одновременно.
type Processor struct {
	svs               Servicer
	l                 *logrus.Entry
	limitPerIteration uint
	operationWorkers  uint
}

// New создает новый экземпляр процессора очереди операций.
func New(svs Servicer, l *logrus.Logger) *Processor {
	loggerEntry := l.WithFields(logrus.Fields{
		"component": "dispatch",
		"module":    "processor",
	})

	return &Processor{
		svs:               svs,
		l:                 loggerEntry,
		limitPerIteration: defaultLimitPerIteration,
		operationWorkers:  defaultOperationWorkers,
	}
}

// SetLimitPerIteration устанавливает кол-во операций, забираемых из очереди за итерацию.
func (p *Processor) SetLimitPerIteration(limit uint) *Processor {
	p.limitPerIteration = limit
	return p
}

// SetOperationWorkers устанавливает кол-во воркеров, выполняющих операции.
func (p *Processor) SetOperationWorkers(workers uint) *Processor {
	p.operationWorkers = workers
	return p
}

// Run запускает обработку очереди в бесконечном цикле до отмены контекста.
//
// Алгоритм работы:
//  1. В каждой итерации через сервисный слой забирается пачка операций (лимит
//     настраивается через SetLimitPerIteration); забранные операции переходят
//     в статус PROCESSING.
//  2. Пачка раздается N воркерам (SetOperationWorkers), каждый воркер выполняет
//     операцию через сервисный слой: мутация баланса и статус DONE коммитятся одной
//     атомарной единицей, отказы и ретраи сервис раскладывает сам.
//  3. Пустая очередь - пауза idleSleep, чтобы не заддосить БД поллингом.
func (p *Processor) Run(ctx context.Context) {
	p.l.WithFields(logrus.Fields{
		"limitPerIteration": p.limitPerIteration,
		"operationWorkers":  p.operationWorkers,
	}).Info("Starting")

	for {
		select {
		case <-ctx.Done():
			p.l.Info("Got stop signal, exiting...")
			return
		default:
			if err := p.process(ctx); err != nil {
				if !errors.Is(err, ErrNoOperations) {
					p.l.WithError(err).Error("process error")
				}
				select {
				case <-ctx.Done():
				case <-time.After(idleSleep):
				}
			}
		}
	}
}

// process выполняет одну итерацию: выборка пачки и раздача воркерам.
// Возвращает ErrNoOperations если очередь пуста.
func (p *Processor) process(ctx context.Context) error {
	ops, opsErr := p.produce(ctx)
	if opsErr != nil {
		return fmt.Errorf("process: %w", opsErr)
	}

	p.runWorkers(ctx, ops)
	return nil
}

// runWorkers раздает операции воркерам по паттерну fan-out и ждет конца их работы.
func (p *Processor) runWorkers(ctx context.Context, ops []domain.Operation) {
	var taskCh = make(chan domain.Operation, len(ops))
	for _, op := range ops {
		taskCh <- op
	}
	close(taskCh)

	wg := new(sync.WaitGroup)
	wg.Add(int(p.operationWorkers)) // nolint:gosec

	for i := range p.operationWorkers {
		go p.worker(ctx, wg, i+1, taskCh)
	}
	wg.Wait()
}

// worker выполняет операции из канала до его закрытия или отмены контекста.
// Взятая в работу операция доводится до коммита или отката, на середине она
// не бросается.
func (p *Processor) worker(ctx context.Context, wg *sync.WaitGroup, workerID uint, taskCh <-chan domain.Operation) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case op, ok := <-taskCh:
			if !ok {
				return
			}
			p.executeTask(ctx, workerID, op)
		}
	}
}

func (p *Processor) executeTask(ctx context.Context, workerID uint, op domain.Operation) {
	opCtx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	l := p.l.WithFields(logrus.Fields{
		"worker":      workerID,
		"operationID": op.ID,
		"userID":      op.UserID,
		"attempt":     op.Attempts + 1,
	})

	if err := p.svs.Execute(opCtx, op); err != nil {
		if domain.TerminalError(err) {
			l.WithError(err).Warn("operation rejected")
		} else {
			l.WithError(err).Error("operation failed")
		}
		return
	}
	l.Info("Success")
}

// produce забирает пачку операций для выполнения. Возвращает ErrNoOperations,
// если готовых операций нет.
func (p *Processor) produce(ctx context.Context) ([]domain.Operation, error) {
	produceCtx, cancel := context.WithTimeout(ctx, defaultServiceTimeout)
	defer cancel()

	ops, opsErr := p.svs.ClaimPending(produceCtx, p.limitPerIteration)
	if opsErr != nil {
		return nil, fmt.Errorf("produce: %w", opsErr)
	}

	if len(ops) == 0 {
		return nil, ErrNoOperations
	}
	return ops, nil
}
