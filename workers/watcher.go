package workers

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tannerhart/imagerbackend/pipeline"
)

// Watcher observes the root directory tree and enqueues a batch for a
// directory shortly after image files appear in it. Events are debounced per
// directory so a bulk copy produces one batch instead of one per file.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	processor *BatchProcessor
	options   pipeline.Options
	debounce  time.Duration
	stopChan  chan struct{}

	mu          sync.Mutex
	pendingDirs map[string]time.Time
}

// NewWatcher starts watching root and all of its subdirectories.
func NewWatcher(root string, processor *BatchProcessor, opts pipeline.Options, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher:   fsWatcher,
		processor:   processor,
		options:     opts,
		debounce:    debounce,
		stopChan:    make(chan struct{}),
		pendingDirs: make(map[string]time.Time),
	}

	if err := w.addRecursive(root); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.loop()
	go w.flushLoop()
	log.Printf("Watching %s for new images", root)
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(filepath.Base(path), ".") {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("Warning: watcher error: %v", err)
		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Op.Has(fsnotify.Create) {
			if err := w.fsWatcher.Add(event.Name); err != nil {
				log.Printf("Warning: failed to watch new directory %s: %v", event.Name, err)
			}
		}
		return
	}

	ext := strings.ToLower(filepath.Ext(event.Name))
	if !supportedWatchExtensions[ext] {
		return
	}

	w.mu.Lock()
	w.pendingDirs[filepath.Dir(event.Name)] = time.Now()
	w.mu.Unlock()
}

var supportedWatchExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".gif": true, ".webp": true, ".heic": true, ".heif": true,
}

// flushLoop enqueues a batch for each directory whose last event is older
// than the debounce window.
func (w *Watcher) flushLoop() {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.flush()
		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) flush() {
	now := time.Now()
	var ready []string

	w.mu.Lock()
	for dir, last := range w.pendingDirs {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, dir)
			delete(w.pendingDirs, dir)
		}
	}
	w.mu.Unlock()

	for _, dir := range ready {
		if _, err := w.processor.Enqueue(dir, w.options); err != nil {
			if errors.Is(err, ErrFolderBusy) || errors.Is(err, ErrQueueFull) {
				// retry on the next flush once the current batch drains
				w.mu.Lock()
				w.pendingDirs[dir] = now
				w.mu.Unlock()
				continue
			}
			log.Printf("Warning: failed to enqueue watched folder %s: %v", dir, err)
		}
	}
}

// Close stops watching. Queued batches are unaffected.
func (w *Watcher) Close() error {
	close(w.stopChan)
	return w.fsWatcher.Close()
}
