package handler

import (
	"houseshower/internal/adapter/api/middleware"
	"houseshower/internal/usecase"
)

var (
	authHandler    *AuthHandler
	productHandler *ProductHandler
	pageHandler    *PageHandler
)

func Setup(
	authUseCase *usecase.AuthUseCase,
	productUseCase *usecase.ProductUseCase,
	sessions *middleware.SessionMiddleware,
) {
	authHandler = NewAuthHandler(authUseCase, sessions)
	productHandler = NewProductHandler(productUseCase)
	pageHandler = NewPageHandler(productUseCase)
}

func GetAuthHandler() *AuthHandler {
	return authHandler
}

func GetProductHandler() *ProductHandler {
	return productHandler
}

func GetPageHandler() *PageHandler {
	return pageHandler
}
