package reconciler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"tryonWorker/worker/models"
)

type fakeStore struct {
	stuck   map[models.Channel][]models.Session
	listErr map[models.Channel]error

	updates map[string]models.SessionUpdate
	refunds map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stuck:   make(map[models.Channel][]models.Session),
		listErr: make(map[models.Channel]error),
		updates: make(map[string]models.SessionUpdate),
		refunds: make(map[string]int),
	}
}

func (f *fakeStore) GetSession(context.Context, models.Channel, string) (*models.Session, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) UpdateSession(_ context.Context, _ models.Channel, id string, update models.SessionUpdate) error {
	f.updates[id] = update
	return nil
}

func (f *fakeStore) ListStuckSessions(_ context.Context, channel models.Channel) ([]models.Session, error) {
	if err := f.listErr[channel]; err != nil {
		return nil, err
	}
	return f.stuck[channel], nil
}

func (f *fakeStore) RefundCredit(_ context.Context, _ models.Channel, ownerID string, amount int) error {
	f.refunds[ownerID] += amount
	return nil
}

func TestReconciler_ResolvesStuckSessionsAcrossChannels(t *testing.T) {
	store := newFakeStore()
	store.stuck[models.ChannelB2C] = []models.Session{
		{ID: "sess-1", OwnerID: "user-1", Status: models.StatusProcessing},
	}
	store.stuck[models.ChannelB2B] = []models.Session{
		{ID: "sess-2", OwnerID: "store-1", Status: models.StatusProcessing},
	}

	New(store, zaptest.NewLogger(t)).Run(context.Background())

	assert.Equal(t, models.StatusFailed, store.updates["sess-1"].Status)
	assert.Equal(t, models.StatusFailed, store.updates["sess-2"].Status)
	assert.Equal(t, restartMessage, store.updates["sess-1"].ErrorMessage)
	assert.Equal(t, restartMessage, store.updates["sess-2"].ErrorMessage)
	assert.Equal(t, 1, store.refunds["user-1"])
	assert.Equal(t, 1, store.refunds["store-1"])
}

func TestReconciler_SweepsQueuedSessionsToo(t *testing.T) {
	store := newFakeStore()
	store.stuck[models.ChannelB2C] = []models.Session{
		{ID: "sess-1", OwnerID: "user-1", Status: models.StatusQueued},
	}

	New(store, zaptest.NewLogger(t)).Run(context.Background())

	assert.Equal(t, models.StatusFailed, store.updates["sess-1"].Status)
	assert.Equal(t, 1, store.refunds["user-1"])
}

func TestReconciler_ChannelFailureDoesNotAbortOthers(t *testing.T) {
	store := newFakeStore()
	store.listErr[models.ChannelB2C] = errors.New("table scan failed")
	store.stuck[models.ChannelB2B] = []models.Session{
		{ID: "sess-2", OwnerID: "store-1", Status: models.StatusProcessing},
	}

	New(store, zaptest.NewLogger(t)).Run(context.Background())

	assert.Equal(t, models.StatusFailed, store.updates["sess-2"].Status)
	assert.Equal(t, 1, store.refunds["store-1"])
}

func TestReconciler_NoRefundWithoutOwner(t *testing.T) {
	store := newFakeStore()
	store.stuck[models.ChannelB2C] = []models.Session{
		{ID: "sess-1", Status: models.StatusProcessing},
	}

	New(store, zaptest.NewLogger(t)).Run(context.Background())

	assert.Equal(t, models.StatusFailed, store.updates["sess-1"].Status)
	assert.Empty(t, store.refunds)
}
