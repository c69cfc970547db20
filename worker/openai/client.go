package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tryonWorker/worker/imageprep"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	model          = "gpt-image-1.5"
	quality        = "medium"
	size           = "1024x1536"

	generateTimeout = 180 * time.Second
	fetchTimeout    = 30 * time.Second
)

// ModerationMessage is the fixed user-facing message for safety-filter blocks.
const ModerationMessage = "Your image was flagged by the safety filter. " +
	"Please use different images that comply with content guidelines."

// defaultPrompt is used when the task carries an empty prompt.
const defaultPrompt = "Make the person in the first image wear the clothing items " +
	"shown in the other images. Keep the person's pose, face and background unchanged."

// Error is the typed failure of a generation call. The handler routes on
// RateLimited and Moderation; everything else is terminal.
type Error struct {
	Message     string
	StatusCode  int
	RateLimited bool
	Moderation  bool
}

func (e *Error) Error() string {
	return e.Message
}

// IsRateLimited reports whether err is a 429 from the generation API.
func IsRateLimited(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.RateLimited
}

// IsModeration reports whether err is a content-policy rejection.
func IsModeration(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Moderation
}

// Generator is the image-generation gateway the handler calls.
type Generator interface {
	Generate(ctx context.Context, images []imageprep.Image, prompt, requestID string) ([]byte, error)
}

type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
	backoff    func(attempt int) time.Duration
	logger     *zap.Logger
}

func NewClient(apiKey string, maxRetries int, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: generateTimeout},
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
		logger: logger,
	}
}

type apiResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Usage *Usage `json:"usage"`
}

type Usage struct {
	TotalTokens  int `json:"total_tokens"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate calls the images/edits endpoint with all prepared images and the
// prompt. Server errors and transport failures are retried with exponential
// backoff; 429 and moderation blocks are raised immediately as typed errors
// so the caller decides what to do.
func (c *Client) Generate(ctx context.Context, images []imageprep.Image, prompt, requestID string) ([]byte, error) {
	log := c.logger.With(zap.String("request_id", requestID))

	if prompt == "" {
		prompt = defaultPrompt
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		log.Info("generation attempt",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", c.maxRetries),
		)

		data, err := c.doRequest(ctx, images, prompt, log)
		if err == nil {
			return data, nil
		}

		var apiErr *Error
		if errors.As(err, &apiErr) {
			return nil, err
		}

		lastErr = err
		if attempt < c.maxRetries {
			delay := c.backoff(attempt)
			log.Warn("generation attempt failed",
				zap.Error(err),
				zap.Duration("retry_delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, &Error{Message: fmt.Sprintf("generation failed after %d attempts: %v", c.maxRetries, lastErr)}
}

func (c *Client) doRequest(ctx context.Context, images []imageprep.Image, prompt string, log *zap.Logger) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, img := range images {
		part, err := writer.CreateFormFile("image[]", img.Filename())
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, err
		}
	}

	fields := map[string]string{
		"model":   model,
		"prompt":  prompt,
		"quality": quality,
		"size":    size,
		"n":       "1",
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Message: "rate limit exceeded", StatusCode: resp.StatusCode, RateLimited: true}

	case resp.StatusCode == http.StatusBadRequest:
		var errBody apiErrorBody
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Error.Code == "moderation_blocked" {
			log.Warn("generation blocked by moderation")
			return nil, &Error{Message: ModerationMessage, StatusCode: resp.StatusCode, Moderation: true}
		}
		return nil, &Error{
			Message:    fmt.Sprintf("API error: %d %s", resp.StatusCode, errBody.Error.Message),
			StatusCode: resp.StatusCode,
		}

	case resp.StatusCode >= 500:
		// Retryable by the attempt loop.
		return nil, fmt.Errorf("server error: %d", resp.StatusCode)

	case resp.StatusCode != http.StatusOK:
		return nil, &Error{Message: fmt.Sprintf("API error: %d", resp.StatusCode), StatusCode: resp.StatusCode}
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if parsed.Usage != nil {
		log.Info("generation token usage",
			zap.Int("total_tokens", parsed.Usage.TotalTokens),
			zap.Int("input_tokens", parsed.Usage.InputTokens),
			zap.Int("output_tokens", parsed.Usage.OutputTokens),
		)
	}

	if len(parsed.Data) == 0 {
		return nil, &Error{Message: "no image data in response"}
	}

	if parsed.Data[0].B64JSON != "" {
		decoded, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image data: %w", err)
		}
		log.Info("generation succeeded", zap.String("format", "base64"))
		return decoded, nil
	}

	if parsed.Data[0].URL != "" {
		log.Info("generation succeeded", zap.String("format", "url"))
		return c.fetchResult(ctx, parsed.Data[0].URL)
	}

	return nil, &Error{Message: "no image data in response"}
}

func (c *Client) fetchResult(ctx context.Context, url string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch result image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch result image: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
