package workers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tannerhart/imagerbackend/database"
	"github.com/tannerhart/imagerbackend/models"
	"github.com/tannerhart/imagerbackend/pipeline"
	"github.com/tannerhart/imagerbackend/repository"
	"github.com/tannerhart/imagerbackend/vision"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath+"?_fk=1"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(&models.Folder{}, &models.Image{}, &models.FavoriteImage{})
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write test image %s: %v", path, err)
	}
}

// gateAnalyzer blocks every Analyze call until released, so tests can hold a
// batch in the running state.
type gateAnalyzer struct {
	mu       sync.Mutex
	calls    int
	started  chan struct{} // closed when the first call arrives
	release  chan struct{}
	startOne sync.Once
}

func newGateAnalyzer() *gateAnalyzer {
	return &gateAnalyzer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gateAnalyzer) Analyze(ctx context.Context, _ []byte, _ string) (*vision.Result, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.startOne.Do(func() { close(g.started) })

	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &vision.Result{ObjectName: "Gate Object", Description: "From gate.", Confidence: 0.8}, nil
}

func (g *gateAnalyzer) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newTestProcessor(t *testing.T, analyzer vision.Analyzer, queueSize, numWorkers int) (*BatchProcessor, string) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png"} {
		writeTestPNG(t, filepath.Join(dir, name))
	}
	db := setupTestDB(t)
	orch := pipeline.NewOrchestrator(repository.NewFolderRepository(db), repository.NewImageRepository(db), analyzer)
	bp := NewBatchProcessor(orch, queueSize, numWorkers)
	t.Cleanup(bp.Stop)
	return bp, dir
}

// waitForState polls until the batch reaches the wanted state or times out.
func waitForState(t *testing.T, bp *BatchProcessor, batchID, want string) *BatchStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := bp.Status(batchID)
		if err != nil {
			t.Fatalf("status lookup failed: %v", err)
		}
		if status.State == want {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	status, _ := bp.Status(batchID)
	t.Fatalf("batch %s never reached state %q, last seen %q", batchID, want, status.State)
	return nil
}

func TestBatchRunsToCompletion(t *testing.T) {
	analyzer := newGateAnalyzer()
	close(analyzer.release) // never block
	bp, dir := newTestProcessor(t, analyzer, 4, 1)

	batchID, err := bp.Enqueue(dir, pipeline.Options{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	status := waitForState(t, bp, batchID, database.BatchDone)
	if status.Report == nil {
		t.Fatal("expected a report on the finished batch")
	}
	if status.Report.Processed != 2 {
		t.Errorf("expected 2 processed images, got %d", status.Report.Processed)
	}
	if status.StartedAt == nil || status.FinishedAt == nil {
		t.Error("expected both start and finish timestamps to be set")
	}
}

func TestEnqueueRejectsBusyFolder(t *testing.T) {
	analyzer := newGateAnalyzer()
	bp, dir := newTestProcessor(t, analyzer, 4, 1)

	batchID, err := bp.Enqueue(dir, pipeline.Options{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	<-analyzer.started // batch is now running

	if _, err := bp.Enqueue(dir, pipeline.Options{}); !errors.Is(err, ErrFolderBusy) {
		t.Errorf("expected ErrFolderBusy for a running folder, got %v", err)
	}

	close(analyzer.release)
	waitForState(t, bp, batchID, database.BatchDone)

	// once the batch finished, the folder is free again
	if _, err := bp.Enqueue(dir, pipeline.Options{}); err != nil {
		t.Errorf("expected enqueue to succeed after completion, got %v", err)
	}
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	analyzer := newGateAnalyzer()
	bp, dirA := newTestProcessor(t, analyzer, 1, 1)

	if _, err := bp.Enqueue(dirA, pipeline.Options{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	<-analyzer.started // worker picked up the first batch

	dirB := t.TempDir()
	writeTestPNG(t, filepath.Join(dirB, "a.png"))
	dirC := t.TempDir()
	writeTestPNG(t, filepath.Join(dirC, "a.png"))

	// one slot in the queue: the second enqueue fills it, the third must fail
	if _, err := bp.Enqueue(dirB, pipeline.Options{}); err != nil {
		t.Fatalf("expected second enqueue to fill the queue, got %v", err)
	}
	if _, err := bp.Enqueue(dirC, pipeline.Options{}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	close(analyzer.release)
}

func TestCancelQueuedBatchIsSkipped(t *testing.T) {
	analyzer := newGateAnalyzer()
	bp, dirA := newTestProcessor(t, analyzer, 4, 1)

	firstID, err := bp.Enqueue(dirA, pipeline.Options{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	<-analyzer.started // first batch holds the only worker

	dirB := t.TempDir()
	writeTestPNG(t, filepath.Join(dirB, "a.png"))
	queuedID, err := bp.Enqueue(dirB, pipeline.Options{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := bp.Cancel(queuedID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	status, err := bp.Status(queuedID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != database.BatchCanceled {
		t.Errorf("expected state %q, got %q", database.BatchCanceled, status.State)
	}

	close(analyzer.release)
	waitForState(t, bp, firstID, database.BatchDone)
	time.Sleep(50 * time.Millisecond) // give the worker time to dequeue the canceled job

	// the canceled batch never ran: only the first batch's images were analyzed
	if got := analyzer.callCount(); got != 2 {
		t.Errorf("expected 2 analyses from the first batch only, got %d", got)
	}
}

func TestCancelRunningBatchStopsBetweenImages(t *testing.T) {
	analyzer := newGateAnalyzer()
	bp, dir := newTestProcessor(t, analyzer, 4, 1)

	batchID, err := bp.Enqueue(dir, pipeline.Options{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	<-analyzer.started

	if err := bp.Cancel(batchID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	status := waitForState(t, bp, batchID, database.BatchCanceled)
	if status.Report == nil {
		t.Error("expected a partial report on the canceled batch")
	}
	if status.FinishedAt == nil {
		t.Error("expected a finish timestamp on the canceled batch")
	}
}

func TestCancelUnknownBatch(t *testing.T) {
	analyzer := newGateAnalyzer()
	close(analyzer.release)
	bp, _ := newTestProcessor(t, analyzer, 4, 1)

	if err := bp.Cancel("no-such-batch"); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("expected ErrBatchNotFound, got %v", err)
	}
	if _, err := bp.Status("no-such-batch"); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestStopCancelsStillQueuedBatches(t *testing.T) {
	analyzer := newGateAnalyzer()
	bp, dirA := newTestProcessor(t, analyzer, 4, 1)

	runningID, err := bp.Enqueue(dirA, pipeline.Options{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	<-analyzer.started // the only worker is now held inside the first batch

	dirB := t.TempDir()
	writeTestPNG(t, filepath.Join(dirB, "a.png"))
	queuedID, err := bp.Enqueue(dirB, pipeline.Options{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		bp.Stop()
		close(stopped)
	}()
	time.Sleep(50 * time.Millisecond) // let Stop signal before the worker frees up
	close(analyzer.release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	running, err := bp.Status(runningID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if running.State != database.BatchDone {
		t.Errorf("expected the in-flight batch to finish, got %q", running.State)
	}

	queued, err := bp.Status(queuedID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if queued.State != database.BatchCanceled {
		t.Errorf("expected the still-queued batch canceled on shutdown, got %q", queued.State)
	}
	if got := analyzer.callCount(); got != 2 {
		t.Errorf("expected only the first batch analyzed, got %d calls", got)
	}
}

func TestListReturnsNewestFirst(t *testing.T) {
	analyzer := newGateAnalyzer()
	close(analyzer.release)
	bp, dirA := newTestProcessor(t, analyzer, 4, 1)

	firstID, err := bp.Enqueue(dirA, pipeline.Options{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitForState(t, bp, firstID, database.BatchDone)

	time.Sleep(1100 * time.Millisecond) // unix-second granularity on EnqueuedAt

	dirB := t.TempDir()
	writeTestPNG(t, filepath.Join(dirB, "a.png"))
	secondID, err := bp.Enqueue(dirB, pipeline.Options{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitForState(t, bp, secondID, database.BatchDone)

	list := bp.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(list))
	}
	if list[0].ID != secondID || list[1].ID != firstID {
		t.Errorf("expected newest first, got [%s %s]", list[0].ID, list[1].ID)
	}
}
