package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTask() GenerationTask {
	return GenerationTask{
		TaskID:    "test-1",
		RequestID: "req_test",
		Channel:   ChannelB2C,
		UserID:    "user-1",
		SessionID: "sess-1",
		ImageURLs: []string{"https://example.com/img.jpg"},
		Prompt:    "Try on this outfit",
		Version:   1,
		CreatedAt: "2026-02-09T14:30:00Z",
	}
}

func TestGenerationTask_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GenerationTask)
		wantErr error
	}{
		{
			name:   "valid b2c",
			mutate: func(*GenerationTask) {},
		},
		{
			name: "valid b2b",
			mutate: func(task *GenerationTask) {
				task.Channel = ChannelB2B
				task.UserID = ""
				task.StoreID = "store-1"
			},
		},
		{
			name: "b2b without store_id",
			mutate: func(task *GenerationTask) {
				task.Channel = ChannelB2B
				task.StoreID = ""
			},
			wantErr: ErrMissingOwner,
		},
		{
			name: "b2c without user_id",
			mutate: func(task *GenerationTask) {
				task.UserID = ""
			},
			wantErr: ErrMissingOwner,
		},
		{
			name: "unknown channel",
			mutate: func(task *GenerationTask) {
				task.Channel = "b2x"
			},
			wantErr: ErrUnknownChannel,
		},
		{
			name: "empty image_urls",
			mutate: func(task *GenerationTask) {
				task.ImageURLs = nil
			},
			wantErr: ErrNoImageURLs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := sampleTask()
			tt.mutate(&task)

			err := task.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerationTask_JSONRoundtrip(t *testing.T) {
	task := sampleTask()

	data, err := json.Marshal(&task)
	require.NoError(t, err)

	var restored GenerationTask
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, task, restored)
}

func TestGenerationTask_DecodeIgnoresUnknownFields(t *testing.T) {
	raw := `{
		"task_id": "test-1",
		"request_id": "req_test",
		"channel": "b2c",
		"user_id": "user-1",
		"session_id": "sess-1",
		"image_urls": ["https://example.com/img.jpg"],
		"prompt": "Try on",
		"version": 1,
		"created_at": "2026-02-09T14:30:00Z",
		"some_future_field": true
	}`

	var task GenerationTask
	require.NoError(t, json.Unmarshal([]byte(raw), &task))
	require.NoError(t, task.Validate())
	assert.Equal(t, "sess-1", task.SessionID)
}

func TestGenerationTask_OwnerID(t *testing.T) {
	task := sampleTask()
	assert.Equal(t, "user-1", task.OwnerID())

	task.Channel = ChannelB2B
	task.StoreID = "store-7"
	assert.Equal(t, "store-7", task.OwnerID())
}

func TestGenerationTask_StoragePath(t *testing.T) {
	task := sampleTask()
	assert.Equal(t, "generated/user-1/sess-1.jpg", task.StoragePath())

	task.Channel = ChannelB2B
	task.StoreID = "store-7"
	assert.Equal(t, "stores/store-7/generated/sess-1.jpg", task.StoragePath())
}
