package imageprep

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func encodeTestImage(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func serveImage(t *testing.T, data []byte, contentType string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPrepare_NamesAndOrder(t *testing.T) {
	server := serveImage(t, encodeTestImage(t, 200, 100), "image/jpeg")
	preparer := NewHTTPPreparer(zaptest.NewLogger(t))

	images, err := preparer.Prepare(context.Background(), []string{
		server.URL + "/person.jpg",
		server.URL + "/garment1.jpg",
		server.URL + "/garment2.jpg",
	})

	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, "model", images[0].Name)
	assert.Equal(t, "image_1", images[1].Name)
	assert.Equal(t, "image_2", images[2].Name)
	assert.Equal(t, "model.jpg", images[0].Filename())
}

func TestPrepare_ResizesOversizedImage(t *testing.T) {
	server := serveImage(t, encodeTestImage(t, 2048, 1024), "image/jpeg")
	preparer := NewHTTPPreparer(zaptest.NewLogger(t))

	images, err := preparer.Prepare(context.Background(), []string{server.URL + "/big.jpg"})
	require.NoError(t, err)
	require.Len(t, images, 1)

	decoded, err := jpeg.Decode(bytes.NewReader(images[0].Data))
	require.NoError(t, err)

	bounds := decoded.Bounds()
	assert.Equal(t, 1024, bounds.Dx())
	assert.Equal(t, 512, bounds.Dy())
}

func TestPrepare_KeepsSmallImageDimensions(t *testing.T) {
	server := serveImage(t, encodeTestImage(t, 400, 300), "image/jpeg")
	preparer := NewHTTPPreparer(zaptest.NewLogger(t))

	images, err := preparer.Prepare(context.Background(), []string{server.URL + "/small.jpg"})
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(images[0].Data))
	require.NoError(t, err)

	bounds := decoded.Bounds()
	assert.Equal(t, 400, bounds.Dx())
	assert.Equal(t, 300, bounds.Dy())
}

func TestPrepare_RejectsNonImageContentType(t *testing.T) {
	server := serveImage(t, []byte("<html>not an image</html>"), "text/html")
	preparer := NewHTTPPreparer(zaptest.NewLogger(t))

	_, err := preparer.Prepare(context.Background(), []string{server.URL + "/page.html"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-image content-type")
}

func TestPrepare_RejectsUndecodableImage(t *testing.T) {
	server := serveImage(t, []byte("corrupt bytes"), "image/jpeg")
	preparer := NewHTTPPreparer(zaptest.NewLogger(t))

	_, err := preparer.Prepare(context.Background(), []string{server.URL + "/broken.jpg"})
	require.Error(t, err)
}

func TestPrepare_RejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	preparer := NewHTTPPreparer(zaptest.NewLogger(t))
	_, err := preparer.Prepare(context.Background(), []string{server.URL + "/expired.jpg"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}
