package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tryonWorker/worker/models"
)

// popTimeout bounds each blocking pop so the loop can notice shutdown.
const popTimeout = 5 * time.Second

// Dispatcher hands a validated task to the worker pool without blocking on
// its completion.
type Dispatcher interface {
	Submit(task *models.GenerationTask)
}

// Consumer pulls generation tasks off the shared Redis list the API side
// pushes to with LPUSH. Undecodable or invalid payloads are logged and
// dropped; they must never stall the messages behind them.
type Consumer struct {
	client     *redis.Client
	queueKey   string
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewConsumer(client *redis.Client, queueKey string, dispatcher Dispatcher, logger *zap.Logger) *Consumer {
	return &Consumer{
		client:     client,
		queueKey:   queueKey,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run blocks popping tasks until ctx is cancelled. It only ever exits on
// shutdown; any single bad iteration is logged and survived.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("consumer started", zap.String("queue", c.queueKey))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer shutdown")
			return
		default:
		}

		result, err := c.client.BRPop(ctx, popTimeout, c.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				c.logger.Info("consumer shutdown")
				return
			}
			c.logger.Error("queue pop failed", zap.Error(err))
			time.Sleep(popTimeout)
			continue
		}

		// BRPop returns [key, value].
		if len(result) < 2 {
			continue
		}
		c.handle(result[1])
	}
}

func (c *Consumer) handle(raw string) {
	var task models.GenerationTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		c.logger.Error("invalid json payload", zap.String("payload", truncate(raw, 200)))
		return
	}

	if err := task.Validate(); err != nil {
		requestID := task.RequestID
		if requestID == "" {
			requestID = "unknown"
		}
		c.logger.Error("invalid task payload",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return
	}

	c.logger.Info("task received",
		zap.String("request_id", task.RequestID),
		zap.String("session_id", task.SessionID),
		zap.String("channel", string(task.Channel)),
	)

	c.dispatcher.Submit(&task)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
