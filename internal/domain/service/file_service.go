package service

import (
	"context"

	"houseshower/internal/domain/entity"
)

// ImageUploadService stores product images and hands back public URLs.
type ImageUploadService interface {
	// Validate rejects files that must never reach storage. It performs no I/O
	// beyond inspecting the payload.
	Validate(file *entity.ImageFile) error
	Upload(ctx context.Context, file *entity.ImageFile) (*entity.UploadResult, error)
	Delete(ctx context.Context, fileURL string) error
}

// EventPublisher fans confirmed product changes out to listeners.
type EventPublisher interface {
	Publish(event entity.ProductEvent)
}
