package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"houseshower/internal/domain/entity"
	"houseshower/internal/domain/repository"
	"houseshower/internal/domain/service"
	apperrors "houseshower/pkg/errors"
	"houseshower/pkg/logger"
	"houseshower/pkg/validation"
)

const (
	cleanupTimeout = 10 * time.Second
	// sharedCallTimeout bounds a deduplicated gateway call, which outlives
	// the request that started it.
	sharedCallTimeout = 30 * time.Second
)

// ProductUseCase holds the registry's product list and mediates every change
// through the remote product API. Local state only changes after the API
// confirmed the change; the last response to arrive wins.
type ProductUseCase struct {
	productRepo repository.ProductRepository
	uploader    service.ImageUploadService
	publisher   service.EventPublisher
	validate    *validator.Validate

	mu       sync.RWMutex
	products []*entity.Product
	version  uint64
	view     *filterCache

	inflight singleflight.Group
}

func NewProductUseCase(
	productRepo repository.ProductRepository,
	uploader service.ImageUploadService,
	publisher service.EventPublisher,
	validate *validator.Validate,
) *ProductUseCase {
	if validate == nil {
		validate = validation.New()
	}
	return &ProductUseCase{
		productRepo: productRepo,
		uploader:    uploader,
		publisher:   publisher,
		validate:    validate,
	}
}

// Seed replaces the list with an already loaded snapshot.
func (uc *ProductUseCase) Seed(products []*entity.Product) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.products = cloneProducts(products)
	uc.version++
}

// LoadAll fetches the first page of products from the API and replaces the
// local list wholesale.
func (uc *ProductUseCase) LoadAll(ctx context.Context) ([]*entity.Product, error) {
	products, err := uc.productRepo.List(ctx)
	if err != nil {
		logger.Error("Failed to load products: %v", err)
		return nil, asAppError(err, "Failed to load products")
	}

	uc.Seed(products)
	logger.Info("Loaded %d products", len(products))
	return cloneProducts(products), nil
}

// Products returns a copy of the list in store order.
func (uc *ProductUseCase) Products() []*entity.Product {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return cloneProducts(uc.products)
}

func (uc *ProductUseCase) Get(id int64) (*entity.Product, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if i := uc.indexOf(id); i >= 0 {
		return cloneProduct(uc.products[i]), nil
	}
	return nil, apperrors.NotFound("Product", nil)
}

func (uc *ProductUseCase) Stats() entity.ProductStats {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	stats := entity.ProductStats{Total: len(uc.products)}
	for _, p := range uc.products {
		if p.IsReserved {
			stats.Reserved++
		} else {
			stats.Available++
		}
	}
	return stats
}

func (uc *ProductUseCase) Create(ctx context.Context, input entity.ProductInput) (*entity.Product, error) {
	if err := uc.validateInput(&input); err != nil {
		return nil, err
	}

	imageURL, uploaded, err := uc.resolveImage(ctx, input)
	if err != nil {
		return nil, err
	}

	created, err := uc.productRepo.Create(ctx, repository.ProductPayload{
		Title: input.Title,
		Image: imageURL,
		URL:   input.URL,
	})
	if err != nil {
		logger.Error("Failed to create product %q: %v", input.Title, err)
		uc.discardUpload(ctx, uploaded)
		return nil, asAppError(err, "Failed to create product")
	}

	uc.mu.Lock()
	uc.products = append(uc.products, cloneProduct(created))
	uc.version++
	uc.mu.Unlock()

	logger.Info("Product %d created: %s", created.ID, created.Title)
	uc.publish(entity.EventProductCreated, created)
	return cloneProduct(created), nil
}

// Update replaces title, image and URL. The current reservation is sent
// along so the full replace keeps it.
func (uc *ProductUseCase) Update(ctx context.Context, id int64, input entity.ProductInput) (*entity.Product, error) {
	if err := uc.validateInput(&input); err != nil {
		return nil, err
	}

	current, err := uc.Get(id)
	if err != nil {
		current, err = uc.productRepo.GetByID(ctx, id)
		if err != nil {
			return nil, asAppError(err, "Failed to update product")
		}
	}

	imageURL, uploaded, err := uc.resolveImage(ctx, input)
	if err != nil {
		return nil, err
	}

	updated, err := uc.productRepo.Update(ctx, id, repository.ProductPayload{
		Title: input.Title,
		Image: imageURL,
		URL:   input.URL,
		Email: current.Email,
	})
	if err != nil {
		logger.Error("Failed to update product %d: %v", id, err)
		uc.discardUpload(ctx, uploaded)
		return nil, asAppError(err, "Failed to update product")
	}

	uc.replace(id, updated, true)
	logger.Info("Product %d updated", id)
	uc.publish(entity.EventProductUpdated, updated)
	return cloneProduct(updated), nil
}

func (uc *ProductUseCase) Delete(ctx context.Context, id int64) error {
	_, err, _ := uc.inflight.Do("delete:"+strconv.FormatInt(id, 10), func() (interface{}, error) {
		callCtx, cancel := sharedContext(ctx)
		defer cancel()

		if err := uc.productRepo.Delete(callCtx, id); err != nil {
			return nil, err
		}

		uc.mu.Lock()
		if i := uc.indexOf(id); i >= 0 {
			uc.products = append(uc.products[:i], uc.products[i+1:]...)
			uc.version++
		}
		uc.mu.Unlock()
		uc.publishDeleted(id)
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to delete product %d: %v", id, err)
		return asAppError(err, "Failed to delete product")
	}

	logger.Info("Product %d deleted", id)
	return nil
}

type reserveInput struct {
	Email string `json:"email" validate:"required,email"`
}

// Reserve claims the product for email. A product already reserved by the
// same email is returned as is; one reserved by somebody else is a conflict.
func (uc *ProductUseCase) Reserve(ctx context.Context, id int64, email string) (*entity.Product, error) {
	email = strings.TrimSpace(email)
	if err := uc.validate.Struct(reserveInput{Email: email}); err != nil {
		return nil, validationError(err)
	}

	if current, err := uc.Get(id); err == nil && current.IsReserved {
		if current.ReservedBy(email) {
			return current, nil
		}
		return nil, apperrors.Conflict("This gift has already been reserved")
	}

	key := fmt.Sprintf("reserve:%d:%s", id, strings.ToLower(email))
	v, err, shared := uc.inflight.Do(key, func() (interface{}, error) {
		callCtx, cancel := sharedContext(ctx)
		defer cancel()

		reserved, err := uc.productRepo.SetEmail(callCtx, id, &email)
		if err != nil {
			return nil, err
		}
		uc.replace(id, reserved, false)
		uc.publish(entity.EventProductReserved, reserved)
		return reserved, nil
	})
	if err != nil {
		logger.Error("Failed to reserve product %d: %v", id, err)
		return nil, asAppError(err, "Failed to reserve product")
	}
	if shared {
		logger.Debug("Reserve of product %d shared an in-flight request", id)
	}

	logger.Info("Product %d reserved", id)
	return cloneProduct(v.(*entity.Product)), nil
}

func (uc *ProductUseCase) Unreserve(ctx context.Context, id int64) (*entity.Product, error) {
	v, err, _ := uc.inflight.Do("unreserve:"+strconv.FormatInt(id, 10), func() (interface{}, error) {
		callCtx, cancel := sharedContext(ctx)
		defer cancel()

		unreserved, err := uc.productRepo.SetEmail(callCtx, id, nil)
		if err != nil {
			return nil, err
		}
		uc.replace(id, unreserved, false)
		uc.publish(entity.EventProductUnreserved, unreserved)
		return unreserved, nil
	})
	if err != nil {
		logger.Error("Failed to unreserve product %d: %v", id, err)
		return nil, asAppError(err, "Failed to cancel reservation")
	}

	logger.Info("Product %d unreserved", id)
	return cloneProduct(v.(*entity.Product)), nil
}

// sharedContext detaches a deduplicated call from the cancellation of the
// request that happened to start it; other callers may still be waiting.
func sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
}

// CanUnreserve reports whether user may cancel the reservation on product:
// the guest holding it or an admin.
func CanUnreserve(product *entity.Product, user *entity.User) bool {
	if product == nil || user == nil {
		return false
	}
	return user.IsAdmin || product.ReservedBy(user.Email)
}

func (uc *ProductUseCase) validateInput(input *entity.ProductInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.URL = strings.TrimSpace(input.URL)
	input.ImageURL = strings.TrimSpace(input.ImageURL)

	if err := uc.validate.Struct(input); err != nil {
		return validationError(err)
	}

	if input.ImageFile == nil {
		if input.ImageURL == "" {
			return apperrors.Validation("image is required", nil)
		}
		return nil
	}
	if uc.uploader == nil {
		return apperrors.Internal("Image uploads are not configured", nil)
	}
	return uc.uploader.Validate(input.ImageFile)
}

// resolveImage uploads a binary image if one was given. uploaded is the URL
// of a freshly stored object, empty when an existing URL was used.
func (uc *ProductUseCase) resolveImage(ctx context.Context, input entity.ProductInput) (imageURL, uploaded string, err error) {
	if input.ImageFile == nil {
		return input.ImageURL, "", nil
	}

	result, err := uc.uploader.Upload(ctx, input.ImageFile)
	if err != nil {
		logger.Error("Failed to upload image %s: %v", input.ImageFile.Filename, err)
		return "", "", asAppError(err, "Failed to upload image")
	}
	return result.URL, result.URL, nil
}

// discardUpload removes an image stored for a product change the API then
// rejected, so it does not linger unreferenced.
func (uc *ProductUseCase) discardUpload(ctx context.Context, fileURL string) {
	if fileURL == "" {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := uc.uploader.Delete(cleanupCtx, fileURL); err != nil {
		logger.Warn("Failed to delete orphaned image %s: %v", fileURL, err)
		return
	}
	logger.Info("Deleted orphaned image %s", fileURL)
}

// replace swaps the entry with the given id. When appendMissing is set a
// product absent from the local list is appended instead.
func (uc *ProductUseCase) replace(id int64, product *entity.Product, appendMissing bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if i := uc.indexOf(id); i >= 0 {
		uc.products[i] = cloneProduct(product)
	} else if appendMissing {
		uc.products = append(uc.products, cloneProduct(product))
	} else {
		return
	}
	uc.version++
}

// indexOf must be called with mu held.
func (uc *ProductUseCase) indexOf(id int64) int {
	for i, p := range uc.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (uc *ProductUseCase) publish(eventType string, product *entity.Product) {
	if uc.publisher == nil {
		return
	}
	uc.publisher.Publish(entity.ProductEvent{
		Type:      eventType,
		ProductID: product.ID,
		Product:   cloneProduct(product),
		Timestamp: time.Now(),
	})
}

func (uc *ProductUseCase) publishDeleted(id int64) {
	if uc.publisher == nil {
		return
	}
	uc.publisher.Publish(entity.ProductEvent{
		Type:      entity.EventProductDeleted,
		ProductID: id,
		Timestamp: time.Now(),
	})
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return apperrors.Validation(validation.Message(ve), err)
	}
	return apperrors.Validation("Invalid input data", err)
}

// asAppError keeps AppErrors as they are and wraps anything else so every
// error leaving the store carries a readable message.
func asAppError(err error, fallback string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Internal(fallback, err)
}

func cloneProduct(p *entity.Product) *entity.Product {
	if p == nil {
		return nil
	}
	dup := *p
	if p.Email != nil {
		email := *p.Email
		dup.Email = &email
	}
	return &dup
}

func cloneProducts(products []*entity.Product) []*entity.Product {
	dup := make([]*entity.Product, 0, len(products))
	for _, p := range products {
		dup = append(dup, cloneProduct(p))
	}
	return dup
}
