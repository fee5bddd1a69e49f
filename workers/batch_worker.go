package workers

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tannerhart/imagerbackend/database"
	"github.com/tannerhart/imagerbackend/pipeline"
)

var (
	// ErrQueueFull is returned when the batch queue cannot accept another job
	ErrQueueFull = errors.New("batch queue is full")
	// ErrFolderBusy is returned when a batch for the same folder is already queued or running
	ErrFolderBusy = errors.New("a batch for this folder is already queued or running")
	// ErrBatchNotFound is returned when no batch exists for the given ID
	ErrBatchNotFound = errors.New("batch not found")
)

// BatchJob is one queued batch run request.
type BatchJob struct {
	ID         string
	FolderPath string
	Options    pipeline.Options
}

// BatchStatus tracks a batch through its lifecycle. Report is set once the
// run finishes, including partially when it was canceled.
type BatchStatus struct {
	ID         string           `json:"id"`
	FolderPath string           `json:"folder_path"`
	Options    pipeline.Options `json:"options"`
	State      string           `json:"state"`
	EnqueuedAt int64            `json:"enqueued_at"`
	StartedAt  *int64           `json:"started_at,omitempty"`
	FinishedAt *int64           `json:"finished_at,omitempty"`
	Report     *pipeline.Report `json:"report,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// BatchProcessor runs queued batches on a small worker pool. One folder can
// hold at most one queued-or-running batch at a time; a second submission is
// rejected instead of silently doubling the work.
type BatchProcessor struct {
	Orchestrator *pipeline.Orchestrator

	jobQueue chan BatchJob
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	pending  map[string]bool // keyed by folder path
	statuses map[string]*BatchStatus
	cancels  map[string]context.CancelFunc
}

// NewBatchProcessor starts numWorkers workers consuming a queue of queueSize.
func NewBatchProcessor(orch *pipeline.Orchestrator, queueSize, numWorkers int) *BatchProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	bp := &BatchProcessor{
		Orchestrator: orch,
		jobQueue:     make(chan BatchJob, queueSize),
		stopChan:     make(chan struct{}),
		pending:      make(map[string]bool),
		statuses:     make(map[string]*BatchStatus),
		cancels:      make(map[string]context.CancelFunc),
	}
	bp.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go bp.worker(i)
	}
	log.Printf("Started %d batch worker(s) with queue size %d", numWorkers, queueSize)
	return bp
}

// Enqueue queues a batch run for folderPath and returns its batch ID.
func (bp *BatchProcessor) Enqueue(folderPath string, opts pipeline.Options) (string, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.pending[folderPath] {
		return "", ErrFolderBusy
	}

	job := BatchJob{
		ID:         uuid.NewString(),
		FolderPath: folderPath,
		Options:    opts,
	}

	select {
	case bp.jobQueue <- job:
	default:
		return "", ErrQueueFull
	}

	bp.pending[folderPath] = true
	bp.statuses[job.ID] = &BatchStatus{
		ID:         job.ID,
		FolderPath: folderPath,
		Options:    opts,
		State:      database.BatchQueued,
		EnqueuedAt: time.Now().Unix(),
	}
	log.Printf("Enqueued batch %s for folder %s", job.ID, folderPath)
	return job.ID, nil
}

// Status returns a copy of the batch's current status.
func (bp *BatchProcessor) Status(batchID string) (*BatchStatus, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	status, ok := bp.statuses[batchID]
	if !ok {
		return nil, ErrBatchNotFound
	}
	copied := *status
	return &copied, nil
}

// List returns copies of all known batch statuses, newest first.
func (bp *BatchProcessor) List() []*BatchStatus {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	out := make([]*BatchStatus, 0, len(bp.statuses))
	for _, status := range bp.statuses {
		copied := *status
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnqueuedAt > out[j].EnqueuedAt })
	return out
}

// Cancel aborts a batch. A running batch is canceled cooperatively between
// images; a queued batch is marked canceled and skipped when dequeued.
func (bp *BatchProcessor) Cancel(batchID string) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	status, ok := bp.statuses[batchID]
	if !ok {
		return ErrBatchNotFound
	}
	switch status.State {
	case database.BatchQueued:
		status.State = database.BatchCanceled
		delete(bp.pending, status.FolderPath)
	case database.BatchRunning:
		if cancel, ok := bp.cancels[batchID]; ok {
			cancel()
		}
	}
	return nil
}

// Stop signals all workers to exit, waits for in-flight batches to finish,
// and marks anything still sitting in the queue as canceled.
func (bp *BatchProcessor) Stop() {
	bp.stopOnce.Do(func() { close(bp.stopChan) })
	bp.wg.Wait()

	for {
		select {
		case job := <-bp.jobQueue:
			bp.mu.Lock()
			if status := bp.statuses[job.ID]; status != nil && status.State == database.BatchQueued {
				status.State = database.BatchCanceled
			}
			delete(bp.pending, job.FolderPath)
			bp.mu.Unlock()
			log.Printf("Canceled queued batch %s on shutdown", job.ID)
		default:
			return
		}
	}
}

func (bp *BatchProcessor) worker(id int) {
	defer bp.wg.Done()
	log.Printf("Batch worker %d started", id)
	for {
		// stop takes priority over queued work so Stop can reliably reclaim
		// whatever is still in the queue
		select {
		case <-bp.stopChan:
			log.Printf("Batch worker %d stopping: stop signal received", id)
			return
		default:
		}

		select {
		case job, ok := <-bp.jobQueue:
			if !ok {
				log.Printf("Batch worker %d stopping: job queue closed", id)
				return
			}
			bp.runJob(id, job)
		case <-bp.stopChan:
			log.Printf("Batch worker %d stopping: stop signal received", id)
			return
		}
	}
}

func (bp *BatchProcessor) runJob(workerID int, job BatchJob) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bp.mu.Lock()
	status := bp.statuses[job.ID]
	if status == nil || status.State == database.BatchCanceled {
		bp.mu.Unlock()
		log.Printf("Worker %d: skipping canceled batch %s", workerID, job.ID)
		return
	}
	now := time.Now().Unix()
	status.State = database.BatchRunning
	status.StartedAt = &now
	bp.cancels[job.ID] = cancel
	bp.mu.Unlock()

	log.Printf("Worker %d: running batch %s for folder %s", workerID, job.ID, job.FolderPath)
	report, runErr := bp.Orchestrator.Run(ctx, job.FolderPath, job.Options)

	bp.mu.Lock()
	finished := time.Now().Unix()
	status.FinishedAt = &finished
	status.Report = report
	switch {
	case runErr == nil:
		status.State = database.BatchDone
	case errors.Is(runErr, context.Canceled):
		status.State = database.BatchCanceled
	default:
		status.State = database.BatchFailed
		status.Error = runErr.Error()
	}
	delete(bp.cancels, job.ID)
	delete(bp.pending, job.FolderPath)
	bp.mu.Unlock()

	if runErr != nil {
		log.Printf("Worker %d: batch %s ended with %v", workerID, job.ID, runErr)
	}
}
