package repository

import (
	"context"

	"houseshower/internal/domain/entity"
)

// ProductPayload is the body sent on create and full update.
type ProductPayload struct {
	Title string  `json:"title"`
	Image string  `json:"image"`
	URL   string  `json:"url"`
	Email *string `json:"email,omitempty"`
	Type  string  `json:"type"`
}

// ProductRepository is the remote product API, scoped to one registry.
type ProductRepository interface {
	List(ctx context.Context) ([]*entity.Product, error)
	GetByID(ctx context.Context, id int64) (*entity.Product, error)
	Create(ctx context.Context, payload ProductPayload) (*entity.Product, error)
	Update(ctx context.Context, id int64, payload ProductPayload) (*entity.Product, error)
	Patch(ctx context.Context, id int64, fields map[string]interface{}) (*entity.Product, error)
	Delete(ctx context.Context, id int64) error
	// SetEmail reserves the product for email, or clears the reservation
	// when email is nil.
	SetEmail(ctx context.Context, id int64, email *string) (*entity.Product, error)
}
