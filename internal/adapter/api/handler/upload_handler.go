package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"houseshower/internal/domain/entity"
	"houseshower/internal/domain/service"
	"houseshower/pkg/errors"
	"houseshower/pkg/logger"
)

// UploadHandler serves the image upload endpoint. Its responses keep the
// plain {url,...} / {error} shape the registry page expects.
type UploadHandler struct {
	uploader service.ImageUploadService
}

var uploadHandler *UploadHandler

func NewUploadHandler(uploader service.ImageUploadService) *UploadHandler {
	return &UploadHandler{
		uploader: uploader,
	}
}

func SetupUploadHandler(uploader service.ImageUploadService) {
	uploadHandler = NewUploadHandler(uploader)
}

func GetUploadHandler() *UploadHandler {
	return uploadHandler
}

func (h *UploadHandler) UploadImage(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		logger.Debug("Upload without file: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No file provided"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unable to read file"})
	}
	defer src.Close()

	logger.Debug("Received file: %s, size: %d bytes, type: %s", fileHeader.Filename, fileHeader.Size, fileHeader.Header.Get(echo.HeaderContentType))

	file := &entity.ImageFile{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(echo.HeaderContentType),
		Size:        fileHeader.Size,
		Content:     src,
	}

	if err := h.uploader.Validate(file); err != nil {
		logger.Warn("Rejected upload %s: %v", fileHeader.Filename, err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": errors.Message(err, "Invalid file")})
	}

	result, err := h.uploader.Upload(c.Request().Context(), file)
	if err != nil {
		if errors.Is(err, "BAD_REQUEST") {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": errors.Message(err, "Invalid file")})
		}
		logger.Error("Failed to upload %s: %v", fileHeader.Filename, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error":   "Error uploading file",
			"details": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, result)
}
