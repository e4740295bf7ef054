package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// onePixelWebP is a 1x1 lossless WebP image.
const onePixelWebP = "UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA=="

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func createTestJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, solid(w, h, color.RGBA{0, 0, 255, 255}))
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestProcessJPEG(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestJPEG(100, 100)), ItemMaxDimension)
	if err != nil {
		t.Fatalf("Process JPEG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", result.MIME)
	}
	if len(result.Data) == 0 {
		t.Error("expected non-empty data")
	}
}

func TestProcessPNG(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestPNG(100, 100)), ItemMaxDimension)
	if err != nil {
		t.Fatalf("Process PNG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg (always outputs JPEG), got %s", result.MIME)
	}
}

func TestProcessWebP(t *testing.T) {
	data, err := base64.StdEncoding.DecodeString(onePixelWebP)
	if err != nil {
		t.Fatal(err)
	}
	result, err := Process(bytes.NewReader(data), ItemMaxDimension)
	if err != nil {
		t.Fatalf("Process WebP: %v", err)
	}
	if result.Width != 1 || result.Height != 1 {
		t.Errorf("expected 1x1, got %dx%d", result.Width, result.Height)
	}
}

func TestProcessDownscale(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestJPEG(2048, 1024)), ItemMaxDimension)
	if err != nil {
		t.Fatalf("Process large image: %v", err)
	}

	w, h := decodedSize(t, result.Data)
	if w != ItemMaxDimension || h != ItemMaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", ItemMaxDimension, ItemMaxDimension/2, w, h)
	}
}

func TestProcessAvatarDimension(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestPNG(300, 600)), AvatarMaxDimension)
	if err != nil {
		t.Fatalf("Process avatar: %v", err)
	}
	w, h := decodedSize(t, result.Data)
	if w != 128 || h != AvatarMaxDimension {
		t.Errorf("expected 128x%d, got %dx%d", AvatarMaxDimension, w, h)
	}
}

func TestProcessSmallImageNotUpscaled(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestJPEG(50, 50)), ItemMaxDimension)
	if err != nil {
		t.Fatalf("Process small image: %v", err)
	}

	w, h := decodedSize(t, result.Data)
	if w != 50 || h != 50 {
		t.Errorf("small image should not be resized: got %dx%d", w, h)
	}
}

func TestProcessRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"text", []byte("not an image"), ErrUnsupported},
		{"gif", []byte("GIF89a..."), ErrUnsupported},
		{"oversized", append(createTestJPEG(10, 10), make([]byte, MaxUploadBytes)...), ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Process(bytes.NewReader(tt.data), ItemMaxDimension)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
