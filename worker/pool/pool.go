package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tryonWorker/worker/models"
	"tryonWorker/worker/service"
)

// taskTimeout bounds one full handler invocation, generation call included.
const taskTimeout = 300 * time.Second

// Handler runs one task to a resolved outcome.
type Handler interface {
	Process(ctx context.Context, task *models.GenerationTask, retriesLeft int) service.Result
}

// WorkerPool executes tasks with bounded concurrency. A single shared rate
// limiter spaces out generation attempts across all workers; the external
// API quota belongs to the account, not to any one worker. A retry asked
// for by the handler is re-submitted after its delay without holding a
// worker slot in the meantime.
//
// Tasks deliberately do not run under the consumer's shutdown context:
// an in-flight generation is allowed to finish, and anything cut off by
// process exit is resolved by the startup reconciler.
type WorkerPool struct {
	sem        chan struct{}
	wg         sync.WaitGroup
	limiter    *rate.Limiter
	handler    Handler
	maxRetries int
	logger     *zap.Logger
}

func NewWorkerPool(maxWorkers, maxRetries, ratePerMin int, handler Handler, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		sem:        make(chan struct{}, maxWorkers),
		limiter:    rate.NewLimiter(rate.Limit(ratePerMin)/60, maxWorkers),
		handler:    handler,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Submit queues the task for asynchronous execution and returns immediately.
func (p *WorkerPool) Submit(task *models.GenerationTask) {
	p.dispatch(task, 0)
}

func (p *WorkerPool) dispatch(task *models.GenerationTask, attempt int) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.sem <- struct{}{}
		result := p.run(task, attempt)
		<-p.sem

		if result.RetryAfter <= 0 {
			return
		}
		if attempt >= p.maxRetries {
			p.logger.Warn("retry requested with no budget left",
				zap.String("session_id", task.SessionID),
			)
			return
		}

		p.logger.Info("re-queueing task",
			zap.String("session_id", task.SessionID),
			zap.Duration("delay", result.RetryAfter),
			zap.Int("attempt", attempt+1),
		)
		time.Sleep(result.RetryAfter)
		p.dispatch(task, attempt+1)
	}()
}

func (p *WorkerPool) run(task *models.GenerationTask, attempt int) service.Result {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.Error("rate limiter wait failed",
			zap.String("session_id", task.SessionID),
			zap.Error(err),
		)
		return service.Result{}
	}

	return p.handler.Process(ctx, task, p.maxRetries-attempt)
}

// Wait blocks until all submitted tasks, including pending retries, finish.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
