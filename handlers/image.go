package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/tannerhart/imagerbackend/repository"
)

// ImageHandler serves stored analysis results.
type ImageHandler struct {
	Images repository.ImageRepositoryInterface
}

// GetImage returns one analyzed image by ID.
func (ih *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "image_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid image ID")
		return
	}

	image, err := ih.Images.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Image not found")
			return
		}
		log.Printf("Error fetching image %d: %v", id, err)
		WriteAPIError(w, http.StatusInternalServerError, "fetch_failed", "Failed to fetch image")
		return
	}
	writeJSON(w, http.StatusOK, image)
}

// DeleteImage removes a stored result (and its favorite). Deleting the row is
// also how a stale analysis gets refreshed on the next batch run.
func (ih *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "image_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid image ID")
		return
	}

	if err := ih.Images.Delete(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Image not found")
			return
		}
		log.Printf("Error deleting image %d: %v", id, err)
		WriteAPIError(w, http.StatusInternalServerError, "delete_failed", "Failed to delete image")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchImages finds images matching a case-insensitive substring query.
func (ih *ImageHandler) SearchImages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		WriteAPIError(w, http.StatusBadRequest, "missing_query", "Missing required query parameter: q")
		return
	}

	images, err := ih.Images.Search(query)
	if err != nil {
		log.Printf("Error searching images for %q: %v", query, err)
		WriteAPIError(w, http.StatusInternalServerError, "search_failed", "Failed to search images")
		return
	}
	writeJSON(w, http.StatusOK, images)
}
