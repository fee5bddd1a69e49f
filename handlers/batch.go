package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tannerhart/imagerbackend/workers"
)

// BatchHandler exposes batch run status and cancellation.
type BatchHandler struct {
	Processor *workers.BatchProcessor
}

// ListBatches returns every known batch, newest first.
func (bh *BatchHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, bh.Processor.List())
}

// GetBatch returns the status (and, once finished, the report) of one batch.
func (bh *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	status, err := bh.Processor.Status(chi.URLParam(r, "batch_id"))
	if err != nil {
		if errors.Is(err, workers.ErrBatchNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Batch not found")
			return
		}
		WriteAPIError(w, http.StatusInternalServerError, "fetch_failed", "Failed to fetch batch status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// CancelBatch aborts a queued or running batch. Already-persisted results are
// kept; re-running the folder resumes where the batch left off.
func (bh *BatchHandler) CancelBatch(w http.ResponseWriter, r *http.Request) {
	err := bh.Processor.Cancel(chi.URLParam(r, "batch_id"))
	if err != nil {
		if errors.Is(err, workers.ErrBatchNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Batch not found")
			return
		}
		WriteAPIError(w, http.StatusInternalServerError, "cancel_failed", "Failed to cancel batch")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
