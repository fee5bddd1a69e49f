package database

// analysis status values stored on images.status
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// batch run states reported by the batch worker
const (
	BatchQueued   = "queued"
	BatchRunning  = "running"
	BatchDone     = "done"
	BatchFailed   = "failed"
	BatchCanceled = "canceled"
)
