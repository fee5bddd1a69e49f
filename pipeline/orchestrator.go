// Package pipeline coordinates a batch run over one folder: discover image
// files, skip already-stored paths, analyze new ones against the vision
// service, extract metadata, and persist every outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tannerhart/imagerbackend/database"
	"github.com/tannerhart/imagerbackend/repository"
	"github.com/tannerhart/imagerbackend/utils"
	"github.com/tannerhart/imagerbackend/vision"
)

// per-entry outcome states in a batch report
const (
	EntryOK      = "ok"
	EntrySkipped = "skipped"
	EntryFailed  = "failed"
)

// Options configure a single batch run.
type Options struct {
	Recursive          bool `json:"recursive"`
	ForceReanalyze     bool `json:"force_reanalyze"`
	Concurrency        int  `json:"concurrency"`
	GenerateThumbnails bool `json:"generate_thumbnails"`
}

// Entry is one report line. Entries appear in discovery order and every
// discovered file gets exactly one, regardless of individual outcome.
type Entry struct {
	FilePath    string  `json:"file_path"`
	FileName    string  `json:"file_name"`
	ObjectName  string  `json:"object_name"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Status      string  `json:"status"`
	Error       string  `json:"error,omitempty"`
}

// Report is the sole hand-off to presentation and export collaborators.
type Report struct {
	FolderID   uint    `json:"folder_id"`
	FolderPath string  `json:"folder_path"`
	Entries    []Entry `json:"entries"`
	Processed  int     `json:"processed"`
	Skipped    int     `json:"skipped"`
	Failed     int     `json:"failed"`
	StartedAt  int64   `json:"started_at"`
	FinishedAt int64   `json:"finished_at"`
}

// Orchestrator runs batches. The vision call dominates latency, so images may
// be fanned out across a small bounded worker pool; the store's upsert-by-path
// keeps duplicate races harmless.
type Orchestrator struct {
	Folders  repository.FolderRepositoryInterface
	Images   repository.ImageRepositoryInterface
	Analyzer vision.Analyzer

	ThumbnailDir     string
	ThumbnailMaxSize int
}

// NewOrchestrator wires a pipeline over the given store and analyzer.
func NewOrchestrator(folders repository.FolderRepositoryInterface, images repository.ImageRepositoryInterface, analyzer vision.Analyzer) *Orchestrator {
	return &Orchestrator{Folders: folders, Images: images, Analyzer: analyzer}
}

// Run processes every valid image under folderPath and returns a report with
// one entry per discovered file, in discovery order. Individual failures
// never abort the run; only folder-level problems (unreadable directory,
// store unavailable) or context cancellation do. On cancellation the partial
// report is returned alongside the context's error, so an aborted batch is
// resumable by simply re-running it.
func (o *Orchestrator) Run(ctx context.Context, folderPath string, opts Options) (*Report, error) {
	startedAt := time.Now().Unix()

	folder, err := o.Folders.GetOrCreate(filepath.Base(folderPath), folderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to register folder %s: %w", folderPath, err)
	}

	files, err := utils.ListImages(folderPath, opts.Recursive)
	if err != nil {
		return nil, fmt.Errorf("failed to discover images in %s: %w", folderPath, err)
	}
	log.Printf("Batch: discovered %d image(s) in %s", len(files), folderPath)

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(files) && len(files) > 0 {
		concurrency = len(files)
	}

	entries := make([]Entry, len(files))
	done := make([]bool, len(files))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entry, ok := o.processOne(ctx, folder.ID, files[i], opts)
				if !ok {
					continue // canceled mid-image, no entry recorded
				}
				entries[i] = entry
				done[i] = true
			}
		}()
	}

	var runErr error
	for i := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if runErr == nil {
		runErr = ctx.Err()
	}

	report := &Report{
		FolderID:   folder.ID,
		FolderPath: folderPath,
		StartedAt:  startedAt,
		FinishedAt: time.Now().Unix(),
	}
	for i := range entries {
		if !done[i] {
			continue
		}
		report.Entries = append(report.Entries, entries[i])
		switch entries[i].Status {
		case EntryOK:
			report.Processed++
		case EntrySkipped:
			report.Skipped++
		case EntryFailed:
			report.Failed++
		}
	}

	if runErr != nil {
		log.Printf("Batch: canceled after %d of %d image(s) in %s", len(report.Entries), len(files), folderPath)
		return report, runErr
	}
	log.Printf("Batch: finished %s (processed=%d skipped=%d failed=%d)", folderPath, report.Processed, report.Skipped, report.Failed)
	return report, nil
}

// processOne runs a single image through filter → analyze → extract → persist.
// The second return value is false only when the run was canceled before a
// result could be recorded.
func (o *Orchestrator) processOne(ctx context.Context, folderID uint, filePath string, opts Options) (Entry, bool) {
	fileName := filepath.Base(filePath)

	if !opts.ForceReanalyze {
		existing, err := o.Images.GetByPath(filePath)
		if err == nil {
			// reuse the stored analysis: no re-billing of the vision service
			return Entry{
				FilePath:    filePath,
				FileName:    fileName,
				ObjectName:  existing.ObjectName,
				Description: existing.Description,
				Confidence:  existing.Confidence,
				Status:      EntrySkipped,
			}, true
		}
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("Warning: store lookup failed for %s, analyzing anyway: %v", filePath, err)
		}
	}

	result, err := o.analyzeFile(ctx, filePath)
	if err != nil {
		if ctx.Err() != nil {
			return Entry{}, false
		}
		return o.recordFailure(folderID, filePath, fileName, err), true
	}

	meta := utils.ExtractMetadata(filePath)

	var thumbPath *string
	if opts.GenerateThumbnails && o.ThumbnailDir != "" {
		if tp, thumbErr := utils.GenerateThumbnail(filePath, o.ThumbnailDir, o.ThumbnailMaxSize); thumbErr != nil {
			log.Printf("Warning: thumbnail generation failed for %s: %v", filePath, thumbErr)
		} else {
			thumbPath = &tp
		}
	}

	_, err = o.Images.UpsertResult(repository.ImageResult{
		FolderID:      folderID,
		FileName:      fileName,
		FilePath:      filePath,
		ObjectName:    result.ObjectName,
		Description:   result.Description,
		Confidence:    result.Confidence,
		Status:        database.StatusOK,
		Metadata:      meta,
		ThumbnailPath: thumbPath,
	})
	if err != nil {
		return o.recordFailure(folderID, filePath, fileName, err), true
	}

	return Entry{
		FilePath:    filePath,
		FileName:    fileName,
		ObjectName:  result.ObjectName,
		Description: result.Description,
		Confidence:  result.Confidence,
		Status:      EntryOK,
	}, true
}

func (o *Orchestrator) analyzeFile(ctx context.Context, filePath string) (*vision.Result, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return o.Analyzer.Analyze(ctx, data, utils.ImageMimeType(filePath))
}

// recordFailure persists a synthetic failure row so history and search stay
// complete, and returns the matching failed report entry.
func (o *Orchestrator) recordFailure(folderID uint, filePath, fileName string, cause error) Entry {
	description := fmt.Sprintf("Failed to process: %v", cause)
	log.Printf("Batch: ERROR processing %s: %v", filePath, cause)

	_, err := o.Images.UpsertResult(repository.ImageResult{
		FolderID:    folderID,
		FileName:    fileName,
		FilePath:    filePath,
		ObjectName:  "Error",
		Description: description,
		Confidence:  0,
		Status:      database.StatusError,
	})
	if err != nil {
		log.Printf("Batch: ERROR persisting failure record for %s: %v", filePath, err)
	}

	return Entry{
		FilePath:    filePath,
		FileName:    fileName,
		ObjectName:  "Error",
		Description: description,
		Confidence:  0,
		Status:      EntryFailed,
		Error:       cause.Error(),
	}
}
