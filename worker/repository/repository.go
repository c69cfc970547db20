package repository

import (
	"context"
	"errors"

	"tryonWorker/worker/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore is the persisted-state interface the worker mutates sessions
// through. Implementations map the channel to the table and owner column that
// back it.
type SessionStore interface {
	GetSession(ctx context.Context, channel models.Channel, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, channel models.Channel, id string, update models.SessionUpdate) error
	ListStuckSessions(ctx context.Context, channel models.Channel) ([]models.Session, error)
	RefundCredit(ctx context.Context, channel models.Channel, ownerID string, amount int) error
}
