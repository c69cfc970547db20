package models

// Landmark is one pose keypoint in normalized body coordinates, as produced
// by the pose-estimation model. Exactly 33 landmarks describe a full body.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

type EstimateBodyRequest struct {
	ImageURL string  `json:"image_url"`
	HeightCm float64 `json:"height_cm"`
}

type Measurements struct {
	ChestCm    float64 `json:"chest_cm"`
	WaistCm    float64 `json:"waist_cm"`
	HipCm      float64 `json:"hip_cm"`
	ShoulderCm float64 `json:"shoulder_cm"`
}

type SizeRange struct {
	Lower string `json:"lower"`
	Upper string `json:"upper"`
}

type EstimateBodyResponse struct {
	RecommendedSize string       `json:"recommended_size"`
	Measurements    Measurements `json:"measurements"`
	Confidence      float64      `json:"confidence"`
	BodyType        string       `json:"body_type"`
	SizeRange       SizeRange    `json:"size_range"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	ModelLoaded    bool   `json:"model_loaded"`
	RedisConnected bool   `json:"redis_connected"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
