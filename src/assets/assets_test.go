package assets

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/arsyadal/fastblog/src/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.Nil(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestValidateImage(t *testing.T) {
	content := testPNG(t, 32, 16)

	info, err := ValidateImage("me.PNG", content, 5*1024*1024)
	require.Nil(t, err)
	assert.Equal(t, ImageInfo{Extension: "png", ContentType: "image/png", Width: 32, Height: 16}, info)

	tests := []struct {
		name     string
		filename string
		content  []byte
		maxSize  int64
	}{
		{"empty", "me.png", nil, 1024 * 1024},
		{"too large", "me.png", content, 10},
		{"bad extension", "me.bmp", content, 1024 * 1024},
		{"no extension", "me", content, 1024 * 1024},
		{"not an image", "me.png", []byte("definitely not a png"), 1024 * 1024},
		{"mismatched extension", "me.jpg", content, 1024 * 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateImage(tt.filename, tt.content, tt.maxSize)
			var invalid *InvalidUploadError
			assert.True(t, errors.As(err, &invalid), "expected an InvalidUploadError, got %v", err)
		})
	}
}

func TestUrls(t *testing.T) {
	id := uuid.MustParse("6f1c2a4e-8d3b-4b7a-9c1e-2f5d8a7b6c3d")
	key := ObjectKey(KindAvatar, id, "png")
	assert.Equal(t, "avatars/6f1c2a4e-8d3b-4b7a-9c1e-2f5d8a7b6c3d.png", key)

	cdn := config.UploadsConfig{S3Bucket: "fastblog", S3PublicUrl: "https://cdn.example.com"}
	assert.Equal(t, "https://cdn.example.com/"+key, PublicUrl(cdn, key))

	bare := config.UploadsConfig{S3Bucket: "fastblog", S3Endpoint: "https://s3.example.com/"}
	assert.Equal(t, "https://s3.example.com/fastblog/"+key, PublicUrl(bare, key))

	got, ok := KeyFromUrl(cdn, PublicUrl(cdn, key))
	assert.True(t, ok)
	assert.Equal(t, key, got)

	_, ok = KeyFromUrl(cdn, "https://gravatar.com/avatar/abc")
	assert.False(t, ok)
	_, ok = KeyFromUrl(cdn, "https://cdn.example.com/")
	assert.False(t, ok)
}
