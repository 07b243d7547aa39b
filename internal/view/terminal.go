// Package view renders the upload form on a terminal.
package view

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"

	"github.com/chmdznr/pdfup/pkg/models"
	"github.com/chmdznr/pdfup/pkg/utils"
)

const progressScale = 10000 // bar units per 100%

const progressTemplate = `{{bar . "[" "=" ">" " " "]"}} {{string . "pct"}} {{etime . }}`

// Options configures a Terminal.
type Options struct {
	NoColor     bool
	NoBar       bool // print progress milestones instead of an animated bar
	RefreshRate time.Duration
}

// Terminal writes the file-info line, status line, progress bar and uploaded
// list to w. It is safe for use from multiple goroutines.
type Terminal struct {
	mu   sync.Mutex
	w    io.Writer
	opts Options

	tones map[models.Tone]*color.Color

	bar      *pb.ProgressBar
	visible  bool
	percent  float64
	lastTick int // last 10% milestone printed when NoBar is set
	listed   int
}

// NewTerminal creates a terminal view
func NewTerminal(w io.Writer, opts Options) *Terminal {
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = 100 * time.Millisecond
	}
	tones := map[models.Tone]*color.Color{
		models.ToneNeutral: color.New(color.Reset),
		models.ToneSuccess: color.New(color.FgGreen),
		models.ToneError:   color.New(color.FgRed),
	}
	for _, c := range tones {
		if opts.NoColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return &Terminal{w: &syncWriter{w: w}, opts: opts, tones: tones}
}

// syncWriter serializes writes from the view and the bar's refresh goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (t *Terminal) colorFor(tone models.Tone) *color.Color {
	if c, ok := t.tones[tone]; ok {
		return c
	}
	return t.tones[models.ToneNeutral]
}

// SetFileInfo shows the file-info line.
func (t *Terminal) SetFileInfo(msg models.UploadStatusMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.colorFor(msg.Tone).Fprintln(t.w, msg.Text)
}

// SetStatus shows the status line.
func (t *Terminal) SetStatus(msg models.UploadStatusMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.colorFor(msg.Tone).Fprintln(t.w, msg.Text)
}

// ShowProgress makes the progress indicator visible.
func (t *Terminal) ShowProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.visible {
		return
	}
	t.visible = true
	t.percent = 0
	t.lastTick = -1
	if t.opts.NoBar {
		return
	}
	t.bar = pb.New64(progressScale).
		SetWriter(t.w).
		SetTemplateString(progressTemplate).
		SetRefreshRate(t.opts.RefreshRate).
		Set("pct", "0.0%").
		Start()
}

// SetProgress moves the indicator to percent.
func (t *Terminal) SetProgress(percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.percent = percent
	if !t.visible {
		return
	}
	if t.bar != nil {
		t.bar.Set("pct", fmt.Sprintf("%.1f%%", percent))
		t.bar.SetCurrent(int64(percent / 100 * progressScale))
		return
	}
	if tick := int(percent) / 10; tick > t.lastTick {
		t.lastTick = tick
		fmt.Fprintf(t.w, "%.1f%%\n", percent)
	}
}

// HideProgress removes the progress indicator.
func (t *Terminal) HideProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.visible {
		return
	}
	t.visible = false
	if t.bar != nil {
		t.bar.Finish()
		t.bar = nil
	}
}

// AppendUploaded renders a new entry of the uploaded-file list.
func (t *Terminal) AppendUploaded(rec models.UploadedFileRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listed++
	fmt.Fprintf(t.w, "  [%d] %s (%s)\n", t.listed, rec.FileName, utils.FormatSize(rec.Size))
}

// Progress reports whether the indicator is visible and its last value.
func (t *Terminal) Progress() (visible bool, percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible, t.percent
}

// PrintList renders the whole uploaded-file list.
func PrintList(w io.Writer, files []models.UploadedFileRecord) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No files uploaded in this session.")
		return
	}
	fmt.Fprintf(w, "Uploaded files (%d):\n", len(files))
	for i, f := range files {
		fmt.Fprintf(w, "  [%d] %s (%s) at %s\n", i+1, f.FileName, utils.FormatSize(f.Size), f.UploadedAt.Local().Format("15:04:05"))
	}
}
