package sizerec

import (
	"math"

	"tryonWorker/api/models"
)

var sizeOrder = []string{"XS", "S", "M", "L", "XL", "XXL"}

// Upper garment-circumference bound per size; anything above the last
// threshold is XXL.
var sizeThresholds = []struct {
	size      string
	threshold float64
}{
	{"XS", 84.0},
	{"S", 92.0},
	{"M", 100.0},
	{"L", 108.0},
	{"XL", 116.0},
}

// Pose-landmark indices of the points the measurements derive from.
const (
	leftShoulder  = 11
	rightShoulder = 12
	leftHip       = 23
	rightHip      = 24
)

func distance(landmarks []models.Landmark, first, second int) float64 {
	a := landmarks[first]
	b := landmarks[second]
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func clamp(value, minValue, maxValue float64) float64 {
	return math.Max(minValue, math.Min(maxValue, value))
}

func chooseSize(chestCm, waistCm, hipCm float64) string {
	reference := math.Max(chestCm, math.Max(waistCm, hipCm))
	for _, entry := range sizeThresholds {
		if reference <= entry.threshold {
			return entry.size
		}
	}
	return "XXL"
}

func bodyType(shoulderCm, hipCm float64) string {
	ratio := shoulderCm / math.Max(hipCm, 1.0)
	switch {
	case ratio > 1.12:
		return "broad"
	case ratio > 1.03:
		return "athletic"
	case ratio < 0.93:
		return "slim"
	default:
		return "average"
	}
}

func sizeRange(size string, confidence float64) models.SizeRange {
	index := 0
	for i, s := range sizeOrder {
		if s == size {
			index = i
			break
		}
	}

	if confidence >= 0.8 {
		return models.SizeRange{Lower: size, Upper: size}
	}

	lower := sizeOrder[maxInt(0, index-1)]
	upper := sizeOrder[minInt(len(sizeOrder)-1, index+1)]
	return models.SizeRange{Lower: lower, Upper: upper}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Calculate derives clothing-size guidance from full-body pose landmarks and
// the person's height. Landmark distances are normalized by the body height
// in landmark units, then scaled to centimeters.
func Calculate(landmarks []models.Landmark, heightCm float64) models.EstimateBodyResponse {
	minY := landmarks[0].Y
	maxY := landmarks[0].Y
	for _, landmark := range landmarks {
		minY = math.Min(minY, landmark.Y)
		maxY = math.Max(maxY, landmark.Y)
	}
	bodyHeightUnits := math.Max(maxY-minY, 0.25)

	cmPerUnit := heightCm / bodyHeightUnits

	shoulderWidthCm := distance(landmarks, leftShoulder, rightShoulder) * cmPerUnit
	hipWidthCm := distance(landmarks, leftHip, rightHip) * cmPerUnit

	shoulderCm := clamp(shoulderWidthCm, 30.0, 65.0)
	chestCm := clamp(shoulderWidthCm*2.15, 70.0, 150.0)
	waistCm := clamp(hipWidthCm*1.55, 58.0, 140.0)
	hipCm := clamp(hipWidthCm*1.95, 70.0, 160.0)

	visibilitySum := 0.0
	for _, landmark := range landmarks {
		visibilitySum += landmark.Visibility
	}
	visibilityAvg := visibilitySum / float64(len(landmarks))
	confidence := clamp(0.55+0.35*visibilityAvg, 0.4, 0.98)

	recommendedSize := chooseSize(chestCm, waistCm, hipCm)

	return models.EstimateBodyResponse{
		RecommendedSize: recommendedSize,
		Measurements: models.Measurements{
			ChestCm:    round1(chestCm),
			WaistCm:    round1(waistCm),
			HipCm:      round1(hipCm),
			ShoulderCm: round1(shoulderCm),
		},
		Confidence: math.Round(confidence*1000) / 1000,
		BodyType:   bodyType(shoulderCm, hipCm),
		SizeRange:  sizeRange(recommendedSize, confidence),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
