package pose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tryonWorker/api/models"
)

const inferenceTimeout = 10 * time.Second

// HTTPEstimator talks to the pose-inference sidecar that wraps the actual
// model. The sidecar answers POST /landmarks with the 33-point landmark
// array, or 422 when no full body is visible.
type HTTPEstimator struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPEstimator(baseURL string) *HTTPEstimator {
	return &HTTPEstimator{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: inferenceTimeout},
	}
}

func (e *HTTPEstimator) ExtractLandmarks(ctx context.Context, imageJPEG []byte) ([]models.Landmark, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/landmarks", bytes.NewReader(imageJPEG))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pose inference: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity:
		return nil, ErrNoPose
	case http.StatusServiceUnavailable:
		return nil, ErrModelNotLoaded
	default:
		return nil, fmt.Errorf("pose inference: status %d", resp.StatusCode)
	}

	var landmarks []models.Landmark
	if err := json.NewDecoder(resp.Body).Decode(&landmarks); err != nil {
		return nil, fmt.Errorf("pose inference: decode: %w", err)
	}

	if len(landmarks) != landmarkCount {
		return nil, fmt.Errorf("%w: expected %d landmarks, got %d", ErrNoPose, landmarkCount, len(landmarks))
	}

	return landmarks, nil
}

func (e *HTTPEstimator) Ready(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
