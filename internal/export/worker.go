// SPDX-License-Identifier: MIT
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tapeloop/internal/log"
)

var (
	// ErrBusy is returned by TryExport while a previous export is pending.
	ErrBusy = errors.New("export in progress")
	// ErrClosed is returned by TryExport after Close.
	ErrClosed = errors.New("exporter closed")
)

// timestampLayout names files so they sort chronologically.
const timestampLayout = "20060102-150405.000"

// Options configure a Worker.
type Options struct {
	Dir        string
	Name       string
	SampleRate int
	Channels   int

	// OnDone is called on the worker goroutine after each export.
	OnDone func(path string, err error)
}

// Worker writes exports one at a time on its own goroutine.
type Worker struct {
	opts Options
	jobs chan []float32
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
	now  func() time.Time
}

// NewWorker creates a worker. Call Start before TryExport.
func NewWorker(opts Options) *Worker {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Name == "" {
		opts.Name = "tapeloop"
	}
	return &Worker{
		opts: opts,
		jobs: make(chan []float32, 1),
		done: make(chan struct{}),
		now:  time.Now,
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// TryExport queues samples for writing. It never blocks: if an export is
// already queued it returns ErrBusy. The worker takes ownership of samples.
func (w *Worker) TryExport(samples []float32) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.jobs <- samples:
		return nil
	default:
		return ErrBusy
	}
}

// Close stops the worker after the export in progress, if any. Queued but
// unstarted exports are discarded.
func (w *Worker) Close() error {
	w.once.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
	return nil
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case samples := <-w.jobs:
			path, err := w.write(samples)
			if err != nil {
				log.Errorf("Export failed: %v", err)
			} else {
				log.Infof("Wrote %d samples to %s", len(samples), path)
			}
			if w.opts.OnDone != nil {
				w.opts.OnDone(path, err)
			}
		}
	}
}

// Path returns the file name an export started at t would get.
func (w *Worker) Path(t time.Time) string {
	name := fmt.Sprintf("%s-%s.wav", w.opts.Name, t.UTC().Format(timestampLayout))
	return filepath.Join(w.opts.Dir, name)
}

func (w *Worker) write(samples []float32) (string, error) {
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	path := w.Path(w.now())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteWAV(f, samples, w.opts.SampleRate, w.opts.Channels); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
