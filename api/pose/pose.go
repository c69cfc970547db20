package pose

import (
	"context"
	"errors"
	"sync"

	"tryonWorker/api/models"
)

// landmarkCount is the full-body landmark set size the calculator expects.
const landmarkCount = 33

var (
	ErrNoPose         = errors.New("no pose landmarks detected")
	ErrModelNotLoaded = errors.New("pose model is not loaded")
)

// Estimator extracts full-body pose landmarks from a prepared RGB image.
// The actual model runs behind this interface; the API only consumes it.
type Estimator interface {
	ExtractLandmarks(ctx context.Context, imageJPEG []byte) ([]models.Landmark, error)
	Ready(ctx context.Context) bool
}

// Holder lazily initializes an Estimator on first use and shares it safely
// across requests. It replaces a package-level singleton: construct one
// Holder at startup and pass it to whatever needs the model.
type Holder struct {
	build func() (Estimator, error)

	once      sync.Once
	estimator Estimator
	err       error
}

func NewHolder(build func() (Estimator, error)) *Holder {
	return &Holder{build: build}
}

func (h *Holder) get() (Estimator, error) {
	h.once.Do(func() {
		h.estimator, h.err = h.build()
	})
	if h.err != nil {
		return nil, ErrModelNotLoaded
	}
	return h.estimator, nil
}

func (h *Holder) ExtractLandmarks(ctx context.Context, imageJPEG []byte) ([]models.Landmark, error) {
	estimator, err := h.get()
	if err != nil {
		return nil, err
	}
	return estimator.ExtractLandmarks(ctx, imageJPEG)
}

func (h *Holder) Ready(ctx context.Context) bool {
	estimator, err := h.get()
	if err != nil {
		return false
	}
	return estimator.Ready(ctx)
}
