// Package upload sends a selected file to its destination and reports progress
// as a Task: zero or more progress events followed by exactly one terminal result.
package upload

import (
	"context"
	"io"
	"sync"

	"github.com/chmdznr/pdfup/pkg/models"
)

// Request describes a single upload.
type Request struct {
	ID    string // correlation id for logs
	File  models.SelectedFile
	Field string // multipart field name
	Path  string // endpoint path
}

// Progress is one progress notification.
type Progress struct {
	Loaded           int64
	Total            int64
	LengthComputable bool
}

// Result is the terminal outcome of a Task. Err is set only when no response was obtained.
type Result struct {
	StatusCode int
	Err        error
}

// Event is either a progress notification or the terminal result.
type Event struct {
	Progress *Progress
	Result   *Result
}

// Uploader starts uploads.
type Uploader interface {
	Start(ctx context.Context, req Request) *Task
}

// Task is a running upload. Its event channel is closed right after the terminal result.
type Task struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	result Result
}

// RunFunc performs an upload, calling report for each progress notification.
type RunFunc func(ctx context.Context, report func(Progress)) Result

// NewTask runs run in its own goroutine and exposes it as a Task.
func NewTask(ctx context.Context, run RunFunc) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		events: make(chan Event, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	// The transport may still read the request body after run returns, so
	// report turns into a no-op once the run is finished.
	var (
		mu       sync.Mutex
		finished bool
	)
	report := func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		if finished {
			return
		}
		select {
		case t.events <- Event{Progress: &p}:
		case <-ctx.Done():
		}
	}
	go func() {
		defer cancel()
		res := run(ctx, report)
		mu.Lock()
		finished = true
		mu.Unlock()
		t.result = res
		t.events <- Event{Result: &res}
		close(t.events)
		close(t.done)
	}()
	return t
}

// Events returns the task's event stream.
func (t *Task) Events() <-chan Event { return t.events }

// Cancel aborts the upload. The task still delivers a terminal result.
func (t *Task) Cancel() {
	t.once.Do(t.cancel)
}

// Wait drains remaining events and returns the terminal result.
func (t *Task) Wait() Result {
	for range t.events {
	}
	<-t.done
	return t.result
}

// progressReader counts bytes read from r and reports them.
type progressReader struct {
	r      io.Reader
	loaded int64
	total  int64
	report func(Progress)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.loaded += int64(n)
		pr.report(Progress{Loaded: pr.loaded, Total: pr.total, LengthComputable: pr.total > 0})
	}
	return n, err
}
