package models

type SessionStatus string

const (
	StatusQueued     SessionStatus = "queued"
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
)

// Terminal reports whether the status ends the session lifecycle.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Session is a generation session row. Sessions are created by the producer
// in the queued state; this worker only ever moves them forward.
type Session struct {
	ID             string
	OwnerID        string
	Status         SessionStatus
	ResultImageURL string
	ErrorMessage   string
}

// SessionUpdate carries the fields a status transition writes.
type SessionUpdate struct {
	Status         SessionStatus
	ResultImageURL string
	ErrorMessage   string
}
