package models

import (
	"errors"
	"fmt"
)

type Channel string

const (
	ChannelB2B Channel = "b2b"
	ChannelB2C Channel = "b2c"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrMissingOwner   = errors.New("missing owner identity for channel")
	ErrNoImageURLs    = errors.New("image_urls must not be empty")
)

// GenerationTask is the unit of work pushed onto the generation queue by the
// API side. Field names match the snake_case JSON contract of the queue;
// unknown extra fields are ignored on decode.
type GenerationTask struct {
	TaskID    string   `json:"task_id"`
	RequestID string   `json:"request_id"`
	Channel   Channel  `json:"channel"`
	StoreID   string   `json:"store_id,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
	SessionID string   `json:"session_id"`
	ImageURLs []string `json:"image_urls"`
	Prompt    string   `json:"prompt"`
	Version   int      `json:"version"`
	CreatedAt string   `json:"created_at"`
}

// Validate enforces the envelope invariants. A task that fails validation is
// never dispatched.
func (t *GenerationTask) Validate() error {
	switch t.Channel {
	case ChannelB2B:
		if t.StoreID == "" {
			return fmt.Errorf("%w: b2b requires store_id", ErrMissingOwner)
		}
	case ChannelB2C:
		if t.UserID == "" {
			return fmt.Errorf("%w: b2c requires user_id", ErrMissingOwner)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChannel, t.Channel)
	}

	if len(t.ImageURLs) == 0 {
		return ErrNoImageURLs
	}

	return nil
}

// OwnerID returns the authoritative owner identity for the task's channel.
func (t *GenerationTask) OwnerID() string {
	if t.Channel == ChannelB2B {
		return t.StoreID
	}
	return t.UserID
}

// StoragePath is the object-store location of the generated result,
// namespaced by channel.
func (t *GenerationTask) StoragePath() string {
	if t.Channel == ChannelB2B {
		return fmt.Sprintf("stores/%s/generated/%s.jpg", t.StoreID, t.SessionID)
	}
	return fmt.Sprintf("generated/%s/%s.jpg", t.UserID, t.SessionID)
}
