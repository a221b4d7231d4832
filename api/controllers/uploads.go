package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/vendorcrm-backend/internal/media"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

const (
	imageFormField = "image"
	// multipartOverhead leaves room for boundaries and other form fields.
	multipartOverhead = 1 << 20
)

// ImageStore persists uploaded images and removes them again on failure.
type ImageStore interface {
	Save(ctx context.Context, folder media.Folder, fileName string, r io.Reader) (*media.Upload, error)
	Remove(ctx context.Context, publicPath string) error
	MaxBytes() int64
}

// receiveImage reads the multipart "image" field and stores it under folder.
func receiveImage(w http.ResponseWriter, r *http.Request, store ImageStore, folder media.Folder) (*media.Upload, error) {
	if store == nil {
		return nil, unavailable("upload store")
	}
	r.Body = http.MaxBytesReader(w, r.Body, store.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(store.MaxBytes()); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.Validation("image too large", pkgerrors.FieldError{Field: imageFormField, Message: "exceeds the upload size limit"})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form").
			WithDetails([]pkgerrors.FieldError{{Field: imageFormField, Message: "multipart form data required"}})
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		return nil, pkgerrors.Validation("image required", pkgerrors.FieldError{Field: imageFormField, Message: "is required"})
	}
	defer file.Close()

	return store.Save(r.Context(), folder, header.Filename, file)
}

// discardUpload removes a stored file after the owning write failed.
func discardUpload(ctx context.Context, store ImageStore, upload *media.Upload, logg *logger.Logger) {
	if store == nil || upload == nil {
		return
	}
	if err := store.Remove(ctx, upload.Path); err != nil && logg != nil {
		logg.Error(logg.WithField(ctx, "path", upload.Path), "upload.cleanup_failed", err)
	}
}
