package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tannerhart/imagerbackend/config"
	"github.com/tannerhart/imagerbackend/pipeline"
	"github.com/tannerhart/imagerbackend/repository"
	"github.com/tannerhart/imagerbackend/workers"
)

// FolderHandler serves folder listing, folder contents, and batch submission.
type FolderHandler struct {
	Cfg       config.Config
	Folders   repository.FolderRepositoryInterface
	Images    repository.ImageRepositoryInterface
	Processor *workers.BatchProcessor
}

func parseIDParam(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// resolveFolderPath turns a user-supplied relative path into an absolute path
// under the configured root, rejecting traversal outside of it.
func (fh *FolderHandler) resolveFolderPath(requestPath string) (string, error) {
	cleanRelative := filepath.Clean(requestPath)
	// after Clean, escapes are exactly ".." or a "../" prefix; a plain
	// "..archive" directory name stays legal
	if filepath.IsAbs(cleanRelative) || cleanRelative == ".." ||
		strings.HasPrefix(cleanRelative, ".."+string(filepath.Separator)) {
		return "", errors.New("path must be relative and cannot use '..'")
	}
	fullPath := filepath.Join(fh.Cfg.RootDirectory, cleanRelative)

	stat, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		return "", errors.New("path does not exist: " + cleanRelative)
	}
	if err != nil {
		return "", errors.New("could not verify path")
	}
	if !stat.IsDir() {
		return "", errors.New("path is not a directory: " + cleanRelative)
	}
	return fullPath, nil
}

// ProcessFolder enqueues a batch run for a folder under the root directory.
func (fh *FolderHandler) ProcessFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path           string `json:"path"`
		Recursive      bool   `json:"recursive"`
		ForceReanalyze bool   `json:"force_reanalyze"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return
	}
	if req.Path == "" {
		WriteAPIError(w, http.StatusBadRequest, "missing_field", "Missing required field: path")
		return
	}

	fullPath, err := fh.resolveFolderPath(req.Path)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_path", err.Error())
		return
	}

	batchID, err := fh.Processor.Enqueue(fullPath, pipeline.Options{
		Recursive:          req.Recursive,
		ForceReanalyze:     req.ForceReanalyze,
		Concurrency:        fh.Cfg.BatchConcurrency,
		GenerateThumbnails: fh.Cfg.GenerateThumbnails,
	})
	if err != nil {
		switch {
		case errors.Is(err, workers.ErrFolderBusy):
			WriteAPIError(w, http.StatusConflict, "folder_busy", err.Error())
		case errors.Is(err, workers.ErrQueueFull):
			WriteAPIError(w, http.StatusServiceUnavailable, "queue_full", err.Error())
		default:
			log.Printf("Error enqueueing batch for %s: %v", fullPath, err)
			WriteAPIError(w, http.StatusInternalServerError, "enqueue_failed", "Failed to enqueue batch")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"batch_id": batchID})
}

// ListFolders returns all processed folders, most recent first.
func (fh *FolderHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := fh.Folders.ListAll()
	if err != nil {
		log.Printf("Error listing folders: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "Failed to list folders")
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

// GetFolder returns one folder plus its images, naturally sorted by file name.
func (fh *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "folder_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid folder ID")
		return
	}

	folder, err := fh.Folders.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Folder not found")
			return
		}
		log.Printf("Error fetching folder %d: %v", id, err)
		WriteAPIError(w, http.StatusInternalServerError, "fetch_failed", "Failed to fetch folder")
		return
	}

	images, err := fh.Images.ListByFolder(id)
	if err != nil {
		log.Printf("Error listing images for folder %d: %v", id, err)
		WriteAPIError(w, http.StatusInternalServerError, "fetch_failed", "Failed to fetch folder images")
		return
	}
	folder.Images = images
	writeJSON(w, http.StatusOK, folder)
}

// DeleteFolder removes a folder, its images, and their favorites.
func (fh *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "folder_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid folder ID")
		return
	}

	if err := fh.Folders.Delete(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Folder not found")
			return
		}
		log.Printf("Error deleting folder %d: %v", id, err)
		WriteAPIError(w, http.StatusInternalServerError, "delete_failed", "Failed to delete folder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
