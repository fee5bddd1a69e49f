package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tannerhart/imagerbackend/config"
	"github.com/tannerhart/imagerbackend/pipeline"
	"github.com/tannerhart/imagerbackend/workers"
)

const maxUploadMemory = 32 << 20 // 32 MB before multipart spills to disk

// UploadHandler accepts a batch of uploaded images, stores them in a
// UUID-named directory under the uploads path, and enqueues a batch run over
// that directory.
type UploadHandler struct {
	Cfg       config.Config
	Processor *workers.BatchProcessor
}

// UploadBatch handles multipart POSTs with one or more files under the
// "images" field.
func (uh *UploadHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid multipart form: "+err.Error())
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "missing_field", "No files uploaded under field 'images'")
		return
	}

	batchDir := filepath.Join(uh.Cfg.UploadsPath, uuid.NewString())
	if err := os.MkdirAll(batchDir, 0755); err != nil {
		log.Printf("Error creating upload directory %s: %v", batchDir, err)
		WriteAPIError(w, http.StatusInternalServerError, "upload_failed", "Failed to store uploaded files")
		return
	}

	saved := 0
	used := make(map[string]bool)
	for _, header := range files {
		name := filepath.Base(header.Filename)
		if name == "" || name == "." || strings.HasPrefix(name, ".") {
			continue
		}
		name = uniqueName(used, name)
		if err := saveUploadedFile(header, filepath.Join(batchDir, name)); err != nil {
			log.Printf("Warning: failed to save uploaded file %s: %v", name, err)
			continue
		}
		saved++
	}
	if saved == 0 {
		WriteAPIError(w, http.StatusBadRequest, "upload_failed", "None of the uploaded files could be stored")
		return
	}

	batchID, err := uh.Processor.Enqueue(batchDir, pipeline.Options{
		Concurrency:        uh.Cfg.BatchConcurrency,
		GenerateThumbnails: uh.Cfg.GenerateThumbnails,
	})
	if err != nil {
		if errors.Is(err, workers.ErrQueueFull) {
			WriteAPIError(w, http.StatusServiceUnavailable, "queue_full", err.Error())
			return
		}
		log.Printf("Error enqueueing upload batch for %s: %v", batchDir, err)
		WriteAPIError(w, http.StatusInternalServerError, "enqueue_failed", "Failed to enqueue batch")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"batch_id": batchID,
		"saved":    saved,
	})
}

// uniqueName suffixes repeated base names within one upload batch so a later
// file can never overwrite an earlier one.
func uniqueName(used map[string]bool, name string) string {
	if !used[name] {
		used[name] = true
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

func saveUploadedFile(header *multipart.FileHeader, destPath string) error {
	src, err := header.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
