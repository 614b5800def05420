package usecase

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"houseshower/internal/domain/entity"
	"houseshower/pkg/logger"
	"houseshower/pkg/validation"
)

// AdminCredentials are the name and email that unlock product management.
type AdminCredentials struct {
	Name  string
	Email string
}

type AuthUseCase struct {
	validate *validator.Validate
	admin    AdminCredentials
}

func NewAuthUseCase(admin AdminCredentials, validate *validator.Validate) *AuthUseCase {
	if validate == nil {
		validate = validation.New()
	}
	return &AuthUseCase{
		validate: validate,
		admin:    admin,
	}
}

type LoginInput struct {
	Name  string `json:"name" form:"name" validate:"required,personname"`
	Email string `json:"email" form:"email" validate:"required,email"`
}

// Login validates the guest's name and email and returns the session user.
// Whether the user is an admin is decided here, once.
func (uc *AuthUseCase) Login(ctx context.Context, input LoginInput) (*entity.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	if err := uc.validate.StructCtx(ctx, input); err != nil {
		return nil, validationError(err)
	}

	user := &entity.User{
		Name:    input.Name,
		Email:   input.Email,
		IsAdmin: IsAdminCredentials(input.Name, input.Email, uc.admin),
	}
	if user.IsAdmin {
		logger.Info("Admin session started")
	} else {
		logger.Debug("Guest session started for %s", user.Email)
	}
	return user, nil
}

// IsAdminCredentials compares name and email with the admin credentials,
// ignoring case and surrounding spaces.
func IsAdminCredentials(name, email string, admin AdminCredentials) bool {
	if admin.Name == "" || admin.Email == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(admin.Name)) &&
		strings.EqualFold(strings.TrimSpace(email), strings.TrimSpace(admin.Email))
}
