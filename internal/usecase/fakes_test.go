package usecase

import (
	"context"
	"sync"

	"houseshower/internal/domain/entity"
	"houseshower/internal/domain/repository"
	"houseshower/internal/infrastructure/storage"
	apperrors "houseshower/pkg/errors"
)

type fakeProductRepository struct {
	mu       sync.Mutex
	products map[int64]*entity.Product
	nextID   int64
	calls    map[string]int
	fail     map[string]error

	lastPayload repository.ProductPayload
	// block, when set, holds SetEmail and Delete until it is closed.
	block   chan struct{}
	entered chan struct{}
}

func newFakeProductRepository(products ...*entity.Product) *fakeProductRepository {
	r := &fakeProductRepository{
		products: make(map[int64]*entity.Product),
		nextID:   100,
		calls:    make(map[string]int),
		fail:     make(map[string]error),
	}
	for _, p := range products {
		r.products[p.ID] = cloneProduct(p)
	}
	return r
}

func (r *fakeProductRepository) record(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[op]++
	return r.fail[op]
}

func (r *fakeProductRepository) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *fakeProductRepository) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.calls {
		total += n
	}
	return total
}

func (r *fakeProductRepository) List(ctx context.Context) ([]*entity.Product, error) {
	if err := r.record("list"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Product, 0, len(r.products))
	for id := int64(0); id <= r.nextID; id++ {
		if p, ok := r.products[id]; ok {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (r *fakeProductRepository) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	if err := r.record("get"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("Product", nil)
	}
	return cloneProduct(p), nil
}

func (r *fakeProductRepository) Create(ctx context.Context, payload repository.ProductPayload) (*entity.Product, error) {
	if err := r.record("create"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastPayload = payload
	r.nextID++
	p := &entity.Product{ID: r.nextID, Title: payload.Title, Image: payload.Image, URL: payload.URL}
	r.products[p.ID] = p
	return cloneProduct(p), nil
}

func (r *fakeProductRepository) Update(ctx context.Context, id int64, payload repository.ProductPayload) (*entity.Product, error) {
	if err := r.record("update"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastPayload = payload
	if _, ok := r.products[id]; !ok {
		return nil, apperrors.NotFound("Product", nil)
	}
	p := &entity.Product{ID: id, Title: payload.Title, Image: payload.Image, URL: payload.URL}
	setEmail(p, payload.Email)
	r.products[id] = p
	return cloneProduct(p), nil
}

func (r *fakeProductRepository) Patch(ctx context.Context, id int64, fields map[string]interface{}) (*entity.Product, error) {
	if err := r.record("patch"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("Product", nil)
	}
	if title, ok := fields["title"].(string); ok {
		p.Title = title
	}
	return cloneProduct(p), nil
}

func (r *fakeProductRepository) Delete(ctx context.Context, id int64) error {
	if err := r.record("delete"); err != nil {
		return err
	}
	if err := r.wait(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return apperrors.NotFound("Product", nil)
	}
	delete(r.products, id)
	return nil
}

func (r *fakeProductRepository) SetEmail(ctx context.Context, id int64, email *string) (*entity.Product, error) {
	if err := r.record("set_email"); err != nil {
		return nil, err
	}
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("Product", nil)
	}
	setEmail(p, email)
	return cloneProduct(p), nil
}

// wait parks the call on block and then reports whether its context
// survived.
func (r *fakeProductRepository) wait(ctx context.Context) error {
	if r.block == nil {
		return nil
	}
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	<-r.block
	return ctx.Err()
}

// setEmail mirrors the API rule isReserved == (email != null).
func setEmail(p *entity.Product, email *string) {
	if email == nil || *email == "" {
		p.Email = nil
		p.IsReserved = false
		return
	}
	e := *email
	p.Email = &e
	p.IsReserved = true
}

type fakeUploader struct {
	mu       sync.Mutex
	policy   storage.ImagePolicy
	uploads  int
	deleted  []string
	failWith error
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{policy: storage.NewImagePolicy(0)}
}

func (u *fakeUploader) Validate(file *entity.ImageFile) error {
	return u.policy.Validate(file)
}

func (u *fakeUploader) Upload(ctx context.Context, file *entity.ImageFile) (*entity.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads++
	if u.failWith != nil {
		return nil, u.failWith
	}
	return &entity.UploadResult{
		URL:         "https://storage.googleapis.com/gifts/uploads/" + file.Filename,
		Filename:    "uploads/" + file.Filename,
		Size:        file.Size,
		ContentType: file.ContentType,
	}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, fileURL string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, fileURL)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []entity.ProductEvent
}

func (p *fakePublisher) Publish(event entity.ProductEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
