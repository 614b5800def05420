package storage

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"houseshower/internal/domain/entity"
	"houseshower/pkg/errors"
)

// sniffLen matches the amount of data mimetype inspects by default.
const sniffLen = 3072

const DefaultMaxImageSize int64 = 5 * 1024 * 1024

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImagePolicy decides which uploads are acceptable product images.
type ImagePolicy struct {
	MaxSize int64
}

func NewImagePolicy(maxSize int64) ImagePolicy {
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	return ImagePolicy{MaxSize: maxSize}
}

// Validate checks the declared size and type and sniffs the leading bytes.
// On success file.ContentType holds the detected type and file.Content still
// yields the complete payload.
func (p ImagePolicy) Validate(file *entity.ImageFile) error {
	if file == nil || file.Content == nil {
		return errors.BadRequest("No file provided", nil)
	}
	if file.Size > p.MaxSize {
		return errors.BadRequest(fmt.Sprintf("File is too large. Maximum size: %dMB", p.MaxSize/(1024*1024)), nil)
	}

	declared := normalizeContentType(file.ContentType)
	if declared != "" {
		if _, ok := allowedImageTypes[declared]; !ok {
			return invalidType()
		}
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file.Content, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return errors.BadRequest("Unable to read file", err)
	}
	head = head[:n]
	if n == 0 {
		return errors.BadRequest("File is empty", nil)
	}

	detected := normalizeContentType(mimetype.Detect(head).String())
	if _, ok := allowedImageTypes[detected]; !ok {
		return invalidType()
	}

	file.ContentType = detected
	file.Content = io.MultiReader(bytes.NewReader(head), file.Content)
	return nil
}

// Extension returns the file extension used for stored objects.
func (p ImagePolicy) Extension(contentType string) string {
	if ext, ok := allowedImageTypes[normalizeContentType(contentType)]; ok {
		return ext
	}
	return ".bin"
}

func invalidType() error {
	return errors.BadRequest("Invalid file type. Only images are allowed (JPG, PNG, WebP, GIF)", nil)
}

func normalizeContentType(ct string) string {
	ct = strings.TrimSpace(strings.ToLower(ct))
	if ct == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		ct = parsed
	}
	if ct == "image/jpg" {
		return "image/jpeg"
	}
	return ct
}

// sanitizeFilename keeps object names readable and URL safe.
func sanitizeFilename(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if dot := strings.LastIndex(name, "."); dot > 0 {
		name = name[:dot]
	}

	var b strings.Builder
	lastDash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > 60 {
		out = strings.TrimRight(out[:60], "-")
	}
	if out == "" {
		out = "image"
	}
	return out
}
