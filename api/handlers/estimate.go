package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tryonWorker/api/imageproc"
	"tryonWorker/api/middleware"
	"tryonWorker/api/models"
	"tryonWorker/api/pose"
	"tryonWorker/api/sizerec"
)

// RedisPinger is the slice of the redis client the health check needs.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

type EstimateHandler struct {
	estimator pose.Estimator
	redis     RedisPinger
	download  func(ctx context.Context, imageURL string) ([]byte, error)
	logger    *zap.Logger
}

func NewEstimateHandler(estimator pose.Estimator, redisClient RedisPinger, logger *zap.Logger) *EstimateHandler {
	return &EstimateHandler{
		estimator: estimator,
		redis:     redisClient,
		download:  imageproc.DownloadAndPrepare,
		logger:    logger,
	}
}

func (h *EstimateHandler) EstimateBody(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	log := h.logger.With(zap.String("request_id", requestID))

	var req models.EstimateBodyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", requestID)
		return
	}

	if req.ImageURL == "" {
		h.respondError(w, http.StatusBadRequest, "image_url is required", requestID)
		return
	}
	if req.HeightCm < 100 || req.HeightCm > 250 {
		h.respondError(w, http.StatusBadRequest, "height_cm must be between 100 and 250", requestID)
		return
	}

	// The URL may be signed; log a digest, never the URL itself.
	urlHash := sha256.Sum256([]byte(req.ImageURL))
	log.Info("estimate request started",
		zap.String("image_url_hash", hex.EncodeToString(urlHash[:])[:12]),
		zap.Float64("height_cm", req.HeightCm),
	)

	imageJPEG, err := h.download(r.Context(), req.ImageURL)
	if err != nil {
		log.Warn("image download failed", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "Invalid or inaccessible image URL", requestID)
		return
	}

	landmarks, err := h.estimator.ExtractLandmarks(r.Context(), imageJPEG)
	if err != nil {
		if errors.Is(err, pose.ErrNoPose) || errors.Is(err, pose.ErrModelNotLoaded) {
			log.Warn("pose estimation failed", zap.Error(err))
			h.respondError(w, http.StatusUnprocessableEntity, "Could not detect full body pose from image", requestID)
			return
		}
		log.Error("pose estimation error", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to estimate body measurements", requestID)
		return
	}

	response := sizerec.Calculate(landmarks, req.HeightCm)
	log.Info("estimate request succeeded",
		zap.String("recommended_size", response.RecommendedSize),
		zap.Float64("confidence", response.Confidence),
	)

	h.respondJSON(w, http.StatusOK, response)
}

func (h *EstimateHandler) Health(w http.ResponseWriter, r *http.Request) {
	modelLoaded := h.estimator.Ready(r.Context())
	redisConnected := h.redis.Ping(r.Context()).Err() == nil

	status := "ok"
	if !modelLoaded || !redisConnected {
		status = "degraded"
	}

	h.respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:         status,
		ModelLoaded:    modelLoaded,
		RedisConnected: redisConnected,
	})
}

func (h *EstimateHandler) respondError(w http.ResponseWriter, status int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:     message,
		RequestID: requestID,
	})
}

func (h *EstimateHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
