package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tryonWorker/worker/imageprep"
	"tryonWorker/worker/models"
	"tryonWorker/worker/openai"
	"tryonWorker/worker/repository"
	"tryonWorker/worker/storage"
)

const (
	signedURLTTL = 6 * time.Hour
	retryDelay   = 10 * time.Second

	rateLimitedMessage  = "Rate limited, retrying..."
	internalErrorReason = "Internal error during generation"
)

// Result is the explicit outcome of one handler invocation. A zero Result
// means the task's lifecycle ended (completed or failed); RetryAfter > 0
// asks the dispatcher to re-submit the task after the delay.
type Result struct {
	RetryAfter time.Duration
}

// Processor runs the generation pipeline for one task:
// mark processing, prepare images, call the generation API, upload the
// result, mark completed. On terminal failure it refunds one credit and
// marks the session failed. It never returns an error to the dispatcher;
// every failure is resolved into a session state here.
type Processor struct {
	sessions  repository.SessionStore
	store     storage.ObjectStore
	generator openai.Generator
	images    imageprep.Preparer
	logger    *zap.Logger
}

func NewProcessor(
	sessions repository.SessionStore,
	store storage.ObjectStore,
	generator openai.Generator,
	images imageprep.Preparer,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		sessions:  sessions,
		store:     store,
		generator: generator,
		images:    images,
		logger:    logger,
	}
}

// Process executes the pipeline for task. retriesLeft is the remaining
// re-queue budget; only the rate-limit path consumes it.
func (p *Processor) Process(ctx context.Context, task *models.GenerationTask, retriesLeft int) Result {
	log := p.logger.With(
		zap.String("request_id", task.RequestID),
		zap.String("session_id", task.SessionID),
		zap.String("channel", string(task.Channel)),
	)

	// Idempotence guard: a duplicate delivery, or a session the startup
	// sweep already resolved, must not be reprocessed or refunded twice.
	session, err := p.sessions.GetSession(ctx, task.Channel, task.SessionID)
	if err != nil {
		log.Warn("session lookup failed, proceeding", zap.Error(err))
	} else if session.Status == models.StatusFailed {
		log.Info("session already failed, skipping")
		return Result{}
	}

	if err := p.updateStatus(ctx, task, models.SessionUpdate{Status: models.StatusProcessing}); err != nil {
		log.Error("mark processing failed", zap.Error(err))
		p.fail(ctx, task, internalErrorReason, log)
		return Result{}
	}
	log.Info("generation processing")

	images, err := p.images.Prepare(ctx, task.ImageURLs)
	if err != nil {
		log.Error("image preparation failed", zap.Error(err))
		p.fail(ctx, task, internalErrorReason, log)
		return Result{}
	}

	resultBytes, err := p.generator.Generate(ctx, images, task.Prompt, task.RequestID)
	if err != nil {
		return p.resolveGenerateError(ctx, task, err, retriesLeft, log)
	}

	path := task.StoragePath()
	if err := p.store.Upload(ctx, path, resultBytes, "image/jpeg"); err != nil {
		log.Error("result upload failed", zap.Error(err))
		p.fail(ctx, task, internalErrorReason, log)
		return Result{}
	}

	signedURL, err := p.store.SignedURL(ctx, path, signedURLTTL)
	if err != nil {
		log.Error("signed url failed", zap.Error(err))
		p.fail(ctx, task, internalErrorReason, log)
		return Result{}
	}

	if err := p.updateStatus(ctx, task, models.SessionUpdate{
		Status:         models.StatusCompleted,
		ResultImageURL: signedURL,
	}); err != nil {
		log.Error("mark completed failed", zap.Error(err))
		p.fail(ctx, task, internalErrorReason, log)
		return Result{}
	}

	log.Info("generation completed")
	return Result{}
}

func (p *Processor) resolveGenerateError(ctx context.Context, task *models.GenerationTask, err error, retriesLeft int, log *zap.Logger) Result {
	log.Warn("generation failed",
		zap.Error(err),
		zap.Bool("moderation", openai.IsModeration(err)),
	)

	// Re-queue on rate limit while budget remains. The credit is kept:
	// refunding here would race the re-delivery into a double spend.
	if openai.IsRateLimited(err) && retriesLeft > 0 {
		if updErr := p.updateStatus(ctx, task, models.SessionUpdate{
			Status:       models.StatusQueued,
			ErrorMessage: rateLimitedMessage,
		}); updErr != nil {
			log.Error("mark queued failed", zap.Error(updErr))
		}
		return Result{RetryAfter: retryDelay}
	}

	reason := internalErrorReason
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		reason = apiErr.Message
	}

	p.fail(ctx, task, reason, log)
	return Result{}
}

// fail is the terminal path: refund one credit, then mark the session
// failed. Refund runs first so that a crash in between can only ever
// double-refund, never double-charge. Nothing here propagates; an
// unhandled error out of the terminal path would strand the session.
func (p *Processor) fail(ctx context.Context, task *models.GenerationTask, reason string, log *zap.Logger) {
	p.refund(ctx, task, log)

	if err := p.updateStatus(ctx, task, models.SessionUpdate{
		Status:       models.StatusFailed,
		ErrorMessage: reason,
	}); err != nil {
		log.Error("mark failed failed", zap.Error(err))
	}
}

func (p *Processor) refund(ctx context.Context, task *models.GenerationTask, log *zap.Logger) {
	ownerID := task.OwnerID()
	if ownerID == "" {
		return
	}

	if err := p.sessions.RefundCredit(ctx, task.Channel, ownerID, 1); err != nil {
		log.Error("credit refund failed", zap.Error(err))
		return
	}
	log.Info("credit refunded", zap.String("owner_id", ownerID))
}

func (p *Processor) updateStatus(ctx context.Context, task *models.GenerationTask, update models.SessionUpdate) error {
	return p.sessions.UpdateSession(ctx, task.Channel, task.SessionID, update)
}
