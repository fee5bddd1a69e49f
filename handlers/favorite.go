package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/tannerhart/imagerbackend/repository"
)

// FavoriteHandler manages dashboard favorites.
type FavoriteHandler struct {
	Favorites repository.FavoriteRepositoryInterface
}

// CreateFavorite pins an image. Pinning an already-pinned image updates the
// existing favorite.
func (fh *FavoriteHandler) CreateFavorite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageID      uint    `json:"image_id"`
		CustomLabel  *string `json:"custom_label"`
		Note         *string `json:"note"`
		DisplayOrder int     `json:"display_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return
	}
	if req.ImageID == 0 {
		WriteAPIError(w, http.StatusBadRequest, "missing_field", "Missing required field: image_id")
		return
	}

	favorite, err := fh.Favorites.Add(req.ImageID, req.CustomLabel, req.Note, req.DisplayOrder)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Image not found")
			return
		}
		log.Printf("Error adding favorite for image %d: %v", req.ImageID, err)
		WriteAPIError(w, http.StatusInternalServerError, "create_failed", "Failed to add favorite")
		return
	}
	writeJSON(w, http.StatusCreated, favorite)
}

// ListFavorites returns all favorites ordered by display order.
func (fh *FavoriteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := fh.Favorites.ListAll()
	if err != nil {
		log.Printf("Error listing favorites: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "Failed to list favorites")
		return
	}
	writeJSON(w, http.StatusOK, favorites)
}

// UpdateFavorite changes a favorite's label, note, and/or display order.
// Omitted fields keep their stored values.
func (fh *FavoriteHandler) UpdateFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "favorite_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid favorite ID")
		return
	}

	var req struct {
		CustomLabel  *string `json:"custom_label"`
		Note         *string `json:"note"`
		DisplayOrder *int    `json:"display_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return
	}

	favorite, err := fh.Favorites.Update(id, req.CustomLabel, req.Note, req.DisplayOrder)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Favorite not found")
			return
		}
		log.Printf("Error updating favorite %d: %v", id, err)
		WriteAPIError(w, http.StatusInternalServerError, "update_failed", "Failed to update favorite")
		return
	}
	writeJSON(w, http.StatusOK, favorite)
}

// DeleteFavorite unpins an image. The image row itself is untouched.
func (fh *FavoriteHandler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "favorite_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid favorite ID")
		return
	}

	if err := fh.Favorites.Remove(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Favorite not found")
			return
		}
		log.Printf("Error removing favorite %d: %v", id, err)
		WriteAPIError(w, http.StatusInternalServerError, "delete_failed", "Failed to remove favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
