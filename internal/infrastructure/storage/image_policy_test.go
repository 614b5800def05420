package storage

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"houseshower/internal/domain/entity"
	"houseshower/pkg/errors"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func imageFile(contentType string, data []byte) *entity.ImageFile {
	return &entity.ImageFile{
		Filename:    "Baby Crib.PNG",
		ContentType: contentType,
		Size:        int64(len(data)),
		Content:     bytes.NewReader(data),
	}
}

func TestImagePolicy_AcceptsPNGAndKeepsPayload(t *testing.T) {
	payload := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0x01}, 5000)...)
	file := imageFile("image/png", payload)

	require.NoError(t, NewImagePolicy(0).Validate(file))
	assert.Equal(t, "image/png", file.ContentType)

	got, err := io.ReadAll(file.Content)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestImagePolicy_NormalizesJPGAlias(t *testing.T) {
	file := imageFile("image/jpg", []byte("\xFF\xD8\xFF\xE0\x00\x10JFIF\x00"))

	require.NoError(t, NewImagePolicy(0).Validate(file))
	assert.Equal(t, "image/jpeg", file.ContentType)
}

func TestImagePolicy_RejectsOversizedBeforeReading(t *testing.T) {
	file := imageFile("image/png", pngHeader)
	file.Size = DefaultMaxImageSize + 1

	err := NewImagePolicy(0).Validate(file)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
	assert.Contains(t, errors.Message(err, ""), "5MB")
}

func TestImagePolicy_RejectsNonImageDeclaredType(t *testing.T) {
	err := NewImagePolicy(0).Validate(imageFile("application/pdf", []byte("%PDF-1.4")))
	require.Error(t, err)
	assert.Contains(t, errors.Message(err, ""), "Invalid file type")
}

func TestImagePolicy_RejectsSpoofedContent(t *testing.T) {
	err := NewImagePolicy(0).Validate(imageFile("image/png", []byte("<html><body>not an image</body></html>")))
	require.Error(t, err)
	assert.Contains(t, errors.Message(err, ""), "Invalid file type")
}

func TestImagePolicy_RejectsMissingOrEmpty(t *testing.T) {
	policy := NewImagePolicy(0)
	assert.Error(t, policy.Validate(nil))
	assert.Error(t, policy.Validate(&entity.ImageFile{Filename: "x.png"}))
	assert.Error(t, policy.Validate(imageFile("image/png", nil)))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "baby-crib", sanitizeFilename("Baby Crib.PNG"))
	assert.Equal(t, "photo", sanitizeFilename(`C:\Users\me\photo.jpeg`))
	assert.Equal(t, "image", sanitizeFilename("???.gif"))
	assert.LessOrEqual(t, len(sanitizeFilename(strings.Repeat("a", 200)+".png")), 60)
}

func TestObjectName(t *testing.T) {
	c := &CloudStorageClient{publicBaseURL: "https://storage.googleapis.com/gifts"}

	name, ok := c.objectName("https://storage.googleapis.com/gifts/uploads/1-abc-crib.png")
	assert.True(t, ok)
	assert.Equal(t, "uploads/1-abc-crib.png", name)

	_, ok = c.objectName("https://images.unsplash.com/photo-1")
	assert.False(t, ok)
}
