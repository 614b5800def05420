package entity

import (
	"io"
	"strings"
	"time"
)

// Product is a gift registry entry as returned by the remote product API.
// IsReserved mirrors the API and is true exactly when Email is set.
type Product struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Image      string    `json:"image"`
	URL        string    `json:"url"`
	IsReserved bool      `json:"isReserved"`
	Email      *string   `json:"email"`
	Type       string    `json:"type,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// ReservedBy reports whether the product is reserved by the given email,
// compared case-insensitively.
func (p *Product) ReservedBy(email string) bool {
	return p.IsReserved && p.Email != nil && strings.EqualFold(*p.Email, strings.TrimSpace(email))
}

// ImageFile is a binary image payload waiting to be uploaded.
type ImageFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// ProductInput carries the admin form. Exactly one of ImageURL and
// ImageFile describes the image.
type ProductInput struct {
	Title     string     `json:"title" validate:"required,min=3,max=100"`
	URL       string     `json:"url" validate:"required,url"`
	ImageURL  string     `json:"image" validate:"omitempty,url"`
	ImageFile *ImageFile `json:"-"`
}

// ProductStats are the counters shown above the registry.
type ProductStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
}
