package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/sdko-org/imgpress/internal/errdefs"
	"github.com/sdko-org/imgpress/internal/ingest"
	"github.com/sirupsen/logrus"
)

const (
	uploadField     = "image"
	multipartMemory = 8 << 20
)

// UploadImage ingests the first file of the "image" form field.
func (h *ImageHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "File too large", err)
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			writeFailure(w, http.StatusBadRequest, "Invalid upload", err)
			return
		}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	var upload *ingest.Upload
	file, header, err := r.FormFile(uploadField)
	if err == nil {
		defer file.Close()
		upload = &ingest.Upload{
			Filename: header.Filename,
			MimeType: mimeType(header),
			Content:  file,
		}
	}

	report, err := h.ingest.Ingest(r.Context(), upload)
	if err != nil {
		if errdefs.IsMissingFile(err) {
			writeFailure(w, http.StatusBadRequest, "No file uploaded", nil)
			return
		}
		h.log.WithError(err).Error("Error in upload")
		writeFailure(w, statusFor(err), "Error processing image", err)
		return
	}
	writeData(w, http.StatusCreated, report)
}

// ListImages returns every compressed artifact.
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	descs, err := h.scanner.Scan(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Error listing images")
		writeFailure(w, http.StatusInternalServerError, "Error fetching images", err)
		return
	}
	writeData(w, http.StatusOK, descs)
}

// GetAnalytics returns the usage summary.
func (h *ImageHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Error computing analytics")
		writeFailure(w, http.StatusInternalServerError, "Error fetching analytics", err)
		return
	}
	h.log.WithFields(logrus.Fields{
		"total_images": summary.Summary.TotalImages,
		"total_size":   summary.Summary.TotalSize,
	}).Debug("Analytics computed")
	writeData(w, http.StatusOK, summary)
}

func mimeType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
