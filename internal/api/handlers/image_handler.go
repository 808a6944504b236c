package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/pkg/config"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

// Multipart fields accepted by the upload route
const (
	coverImageField = "coverImage"
	imagesField     = "images"
)

// multipartOverhead covers boundaries and part headers on top of the file bytes
const multipartOverhead = 1 << 20

// ImageService defines the media operations used by the handler
type ImageService interface {
	Upload(ctx context.Context, cover *services.ImageFile, images []services.ImageFile) (*services.UploadResult, error)
	Destroy(ctx context.Context, publicIDs []string) (*services.DestroyResult, error)
}

// ImageHandler handles listing image uploads
type ImageHandler struct {
	service ImageService
	limits  config.UploadConfig
}

// NewImageHandler creates a new image handler
func NewImageHandler(service ImageService, limits config.UploadConfig) *ImageHandler {
	return &ImageHandler{service: service, limits: limits}
}

type destroyImagesRequest struct {
	PublicIDs []string `json:"publicIds"`
}

// UploadImages handles POST /api/v1/pg/images (multipart: coverImage, images)
func (h *ImageHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	maxBody := int64(h.limits.MaxImages+1)*h.limits.MaxFileBytes + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(h.limits.MaxMemoryBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondWithAppError(w, r, apperrors.NewTooLargeError("Request body too large"))
			return
		}
		respondWithAppError(w, r, apperrors.NewBadRequestError("Invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	cover, images, err := h.readFiles(r.MultipartForm)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if cover == nil && len(images) == 0 {
		respondWithAppError(w, r, apperrors.NewBadRequestError("Please provide at least one image"))
		return
	}

	result, err := h.service.Upload(r.Context(), cover, images)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, result)
}

// DestroyImages handles DELETE /api/v1/pg/images
func (h *ImageHandler) DestroyImages(w http.ResponseWriter, r *http.Request) {
	var req destroyImagesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.service.Destroy(r.Context(), req.PublicIDs)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, result)
}

func (h *ImageHandler) readFiles(form *multipart.Form) (*services.ImageFile, []services.ImageFile, error) {
	for field := range form.File {
		if field != coverImageField && field != imagesField {
			return nil, nil, apperrors.NewBadRequestError("Unexpected field: " + field).WithFields(field)
		}
	}

	covers := form.File[coverImageField]
	if len(covers) > 1 {
		return nil, nil, apperrors.NewBadRequestError("Unexpected field: " + coverImageField).WithFields(coverImageField)
	}
	headers := form.File[imagesField]
	if len(headers) > h.limits.MaxImages {
		return nil, nil, apperrors.NewBadRequestError("You can upload maximum 50 pictures.")
	}

	var cover *services.ImageFile
	if len(covers) == 1 {
		file, err := h.readImage(covers[0])
		if err != nil {
			return nil, nil, err
		}
		cover = &file
	}

	images := make([]services.ImageFile, 0, len(headers))
	for _, fh := range headers {
		file, err := h.readImage(fh)
		if err != nil {
			return nil, nil, err
		}
		images = append(images, file)
	}
	return cover, images, nil
}

func (h *ImageHandler) readImage(fh *multipart.FileHeader) (services.ImageFile, error) {
	if fh.Size > h.limits.MaxFileBytes {
		return services.ImageFile{}, apperrors.NewBadRequestError("Image too large (max 5MB)")
	}

	f, err := fh.Open()
	if err != nil {
		return services.ImageFile{}, apperrors.NewBadRequestError("Invalid multipart form")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.limits.MaxFileBytes+1))
	if err != nil {
		return services.ImageFile{}, apperrors.NewBadRequestError("Invalid multipart form")
	}
	if int64(len(data)) > h.limits.MaxFileBytes {
		return services.ImageFile{}, apperrors.NewBadRequestError("Image too large (max 5MB)")
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return services.ImageFile{}, apperrors.NewBadRequestError("Only Images are allowed")
	}
	return services.ImageFile{Name: fh.Filename, Data: data}, nil
}
