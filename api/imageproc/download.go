package imageproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const (
	downloadTimeout  = 5 * time.Second
	maxDimension     = 512
	maxDownloadBytes = 10 * 1024 * 1024
	jpegQuality      = 85
)

// ErrDownload marks failures of the fetch itself, as opposed to pose or
// calculation errors further down; the handler maps it to a 400.
var ErrDownload = errors.New("image download failed")

// DownloadAndPrepare fetches the photo and shrinks it for low-latency
// inference. Redirects are refused to keep signed URLs from bouncing the
// request elsewhere.
func DownloadAndPrepare(ctx context.Context, imageURL string) ([]byte, error) {
	client := &http.Client{
		Timeout: downloadTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrDownload, resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: non-image content-type %s", ErrDownload, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("%w: image exceeds %dMB limit", ErrDownload, maxDownloadBytes/(1024*1024))
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid image", ErrDownload)
	}

	bounds := src.Bounds()
	if bounds.Dx() > maxDimension || bounds.Dy() > maxDimension {
		src = imaging.Fit(src, maxDimension, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}

	return buf.Bytes(), nil
}
