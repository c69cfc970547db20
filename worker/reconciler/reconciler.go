package reconciler

import (
	"context"

	"go.uber.org/zap"

	"tryonWorker/worker/models"
	"tryonWorker/worker/repository"
)

const restartMessage = "Worker restarted before the job completed"

// Reconciler resolves sessions a previous process instance left in a
// non-terminal state. It runs once, before the consumer accepts new work,
// and assumes no other worker instance holds these sessions.
type Reconciler struct {
	sessions repository.SessionStore
	logger   *zap.Logger
}

func New(sessions repository.SessionStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{sessions: sessions, logger: logger}
}

// Run sweeps every channel's session table for queued/processing rows,
// marks each failed with the restart message and refunds one credit to its
// owner. A failure on one channel is logged and does not stop the other.
func (r *Reconciler) Run(ctx context.Context) {
	for _, channel := range []models.Channel{models.ChannelB2C, models.ChannelB2B} {
		if err := r.sweepChannel(ctx, channel); err != nil {
			r.logger.Error("cleanup failed",
				zap.String("channel", string(channel)),
				zap.Error(err),
			)
		}
	}
}

func (r *Reconciler) sweepChannel(ctx context.Context, channel models.Channel) error {
	stuck, err := r.sessions.ListStuckSessions(ctx, channel)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	r.logger.Info("cleaning up stuck sessions",
		zap.String("channel", string(channel)),
		zap.Int("count", len(stuck)),
	)

	for _, session := range stuck {
		if err := r.sessions.UpdateSession(ctx, channel, session.ID, models.SessionUpdate{
			Status:       models.StatusFailed,
			ErrorMessage: restartMessage,
		}); err != nil {
			r.logger.Error("mark failed failed",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
			continue
		}

		if session.OwnerID != "" {
			if err := r.sessions.RefundCredit(ctx, channel, session.OwnerID, 1); err != nil {
				r.logger.Error("credit refund failed",
					zap.String("session_id", session.ID),
					zap.Error(err),
				)
			}
		}

		r.logger.Info("session cleaned",
			zap.String("session_id", session.ID),
			zap.String("channel", string(channel)),
		)
	}

	return nil
}
