package imageprep

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const (
	maxImageDimension = 1024
	jpegQuality       = 85
	maxDownloadBytes  = 10 * 1024 * 1024
	downloadTimeout   = 30 * time.Second
)

// Image is a downloaded, normalized input image ready for the generation
// call. The first image of a task is named "model", the rest "image_N".
type Image struct {
	Name string
	Data []byte
}

// Filename is the multipart filename for the image part.
func (i Image) Filename() string {
	return i.Name + ".jpg"
}

// Preparer fetches and normalizes the input images of a task.
type Preparer interface {
	Prepare(ctx context.Context, urls []string) ([]Image, error)
}

type HTTPPreparer struct {
	client *http.Client
	logger *zap.Logger
}

func NewHTTPPreparer(logger *zap.Logger) *HTTPPreparer {
	return &HTTPPreparer{
		client: &http.Client{
			Timeout: downloadTimeout,
			// Input URLs are signed; a redirect means something is off.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

func (p *HTTPPreparer) Prepare(ctx context.Context, urls []string) ([]Image, error) {
	images := make([]Image, 0, len(urls))

	for i, url := range urls {
		name := "model"
		if i > 0 {
			name = fmt.Sprintf("image_%d", i)
		}

		raw, err := p.download(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", name, err)
		}

		normalized, err := p.normalize(raw, name)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}

		images = append(images, Image{Name: name, Data: normalized})
	}

	return images, nil
}

func (p *HTTPPreparer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("non-image content-type: %s", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("image exceeds %dMB limit", maxDownloadBytes/(1024*1024))
	}

	return data, nil
}

// normalize shrinks the image to at most 1024px on the longest side and
// re-encodes it as JPEG, keeping the generation call's input cost bounded.
func (p *HTTPPreparer) normalize(raw []byte, name string) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	if bounds.Dx() > maxImageDimension || bounds.Dy() > maxImageDimension {
		resized := imaging.Fit(src, maxImageDimension, maxImageDimension, imaging.Lanczos)
		p.logger.Info("image resized",
			zap.String("name", name),
			zap.String("original", fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy())),
			zap.String("resized", fmt.Sprintf("%dx%d", resized.Bounds().Dx(), resized.Bounds().Dy())),
		)
		src = resized
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
