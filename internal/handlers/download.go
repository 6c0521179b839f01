package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sdko-org/imgpress/internal/errdefs"
	"github.com/sdko-org/imgpress/internal/models"
	"github.com/sdko-org/imgpress/internal/storage"
	"github.com/sirupsen/logrus"
)

const compressedContentType = "image/jpeg"

// DownloadImage sends compressed-<id> as an attachment.
func (h *ImageHandler) DownloadImage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !storage.ValidName(id) {
		writeFailure(w, http.StatusNotFound, "Image not found", nil)
		return
	}
	name := models.CompressedName(id)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if h.serveArtifact(w, r, name, disposition) {
		h.log.WithField("id", id).Info("Image downloaded")
	}
}

// ServeUpload serves a compressed artifact at the URL listed for it.
// Originals are never served.
func (h *ImageHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	if !storage.ValidName(name) || !models.IsCompressed(name) {
		writeFailure(w, http.StatusNotFound, "Image not found", nil)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	h.serveArtifact(w, r, name, "inline")
}

func (h *ImageHandler) serveArtifact(w http.ResponseWriter, r *http.Request, name, disposition string) bool {
	ctx := r.Context()
	log := h.log.WithField("name", name)

	info, err := h.store.Stat(ctx, name)
	if err != nil {
		h.artifactError(w, log, err)
		return false
	}
	rc, err := h.store.Get(ctx, name)
	if err != nil {
		h.artifactError(w, log, err)
		return false
	}
	defer rc.Close()

	w.Header().Set("Content-Type", compressedContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Last-Modified", info.CreatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return true
	}
	if _, err := io.Copy(w, rc); err != nil {
		log.WithError(err).Warn("Artifact stream interrupted")
		return false
	}
	return true
}

func (h *ImageHandler) artifactError(w http.ResponseWriter, log *logrus.Entry, err error) {
	if errdefs.IsNotFound(err) {
		writeFailure(w, http.StatusNotFound, "Image not found", nil)
		return
	}
	log.WithError(err).Error("Error reading artifact")
	writeFailure(w, http.StatusInternalServerError, "Error downloading image", fmt.Errorf("read artifact: %w", err))
}
