package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
	"github.com/quocanhngo/tradetalk/pkg/storage"
)

// Max upload size: 20MB
const maxUploadSize = 20 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var allowedFileTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/zip":    true,
	"text/plain":         true,
}

// UploadHandler stores message attachments
type UploadHandler struct {
	storage storage.Storage
}

// NewUploadHandler creates an upload handler; a nil storage disables uploads
func NewUploadHandler(storage storage.Storage) *UploadHandler {
	return &UploadHandler{storage: storage}
}

// UploadAttachment godoc
// @Summary Upload a message attachment
// @Description Stores an image or document and returns a descriptor to send with an image or file message.
// @Tags Messages
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File to upload"
// @Success 201 {object} model.UploadResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 413 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /attachments [post]
func (h *UploadHandler) UploadAttachment(c *gin.Context) {
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error:   http.StatusText(http.StatusServiceUnavailable),
			Message: "File upload is disabled",
		})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{
				Error:   http.StatusText(http.StatusRequestEntityTooLarge),
				Code:    string(apperror.CodeValidation),
				Message: "File too large (max 20MB)",
			})
			return
		}
		respondError(c, apperror.Validation("file is required"))
		return
	}
	defer file.Close()

	contentType := strings.ToLower(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.DetectContentType(header.Filename)
	}

	msgType, folder := classify(contentType)
	if folder == "" {
		respondError(c, apperror.Validation("unsupported file type; allowed: jpg, png, gif, webp, pdf, doc, zip, txt"))
		return
	}

	result, err := h.storage.Upload(c.Request.Context(), storage.Object{
		Reader:      file,
		Size:        header.Size,
		FileName:    header.Filename,
		ContentType: contentType,
		Folder:      folder,
	})
	if err != nil {
		respondError(c, apperror.Internal("failed to upload file", err))
		return
	}

	c.JSON(http.StatusCreated, model.UploadResponse{
		URL:      result.URL,
		FileName: result.FileName,
		FileSize: result.FileSize,
		MimeType: result.MimeType,
		Type:     msgType,
	})
}

// classify returns the message type and storage folder for a content type
func classify(contentType string) (model.MessageType, string) {
	switch {
	case allowedImageTypes[contentType]:
		return model.MessageTypeImage, "images"
	case allowedFileTypes[contentType]:
		return model.MessageTypeFile, "files"
	default:
		return "", ""
	}
}
