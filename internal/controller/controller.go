// Package controller drives the upload form: it feeds user and network events
// into the form state machine and carries out the effects it returns.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chmdznr/pdfup/internal/form"
	"github.com/chmdznr/pdfup/internal/upload"
	"github.com/chmdznr/pdfup/pkg/models"
)

// ErrUploadInProgress is returned by Submit while another submission is running.
var ErrUploadInProgress = errors.New("an upload is already in progress")

// View is the surface the form is rendered on.
type View interface {
	SetFileInfo(msg models.UploadStatusMessage)
	SetStatus(msg models.UploadStatusMessage)
	ShowProgress()
	SetProgress(percent float64)
	HideProgress()
	AppendUploaded(rec models.UploadedFileRecord)
}

// Store keeps the session's uploaded-file list.
type Store interface {
	AppendUploaded(fileName string, size int64) (*models.UploadedFileRecord, error)
	ListUploaded() ([]models.UploadedFileRecord, error)
	CountAttempt(outcome string) error
}

// Controller owns the form state and the collaborators it acts on.
type Controller struct {
	mu       sync.Mutex
	state    form.State
	view     View
	store    Store
	uploader upload.Uploader
	log      logrus.FieldLogger
}

// New creates a controller with an idle form
func New(view View, store Store, uploader upload.Uploader, log logrus.FieldLogger) *Controller {
	return &Controller{
		state:    form.NewState(),
		view:     view,
		store:    store,
		uploader: uploader,
		log:      log,
	}
}

// State returns a copy of the current form state.
func (c *Controller) State() form.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Uploaded returns the files uploaded so far in this session.
func (c *Controller) Uploaded() ([]models.UploadedFileRecord, error) {
	return c.store.ListUploaded()
}

// SelectFile inspects the file at path and selects it. An empty path behaves
// like an emptied file picker: the selection is cleared and nothing is shown.
// mimeOverride, when set,
// replaces content detection.
func (c *Controller) SelectFile(path, mimeOverride string) error {
	if path == "" {
		c.Select(nil)
		return nil
	}
	file, err := Inspect(path, mimeOverride)
	if err != nil {
		return err
	}
	c.Select(file)
	return nil
}

// Select feeds a file picker change into the form.
func (c *Controller) Select(file *models.SelectedFile) {
	if file != nil {
		c.log.WithFields(logrus.Fields{"file": file.Name, "mime": file.MimeType, "size": file.Size}).Debug("file selected")
	}
	c.dispatch(form.FileSelected{File: file})
}

// Submit validates the selection and, when it passes, uploads it and waits for
// the result. The returned error is nil only for a successful upload.
func (c *Controller) Submit(ctx context.Context) (form.Outcome, error) {
	st, start, ok := c.dispatch(form.Submitted{})
	if !ok {
		if st.Phase == form.PhaseUploading {
			return form.OutcomeNone, ErrUploadInProgress
		}
		c.countAttempt(st.LastOutcome)
		return st.LastOutcome, st.LastErr
	}

	req := upload.Request{
		ID:    uuid.NewString(),
		File:  start.File,
		Field: start.Field,
		Path:  start.Path,
	}
	log := c.log.WithFields(logrus.Fields{"upload_id": req.ID, "file": req.File.Name})
	log.Info("upload started")

	task := c.uploader.Start(ctx, req)
	for ev := range task.Events() {
		switch {
		case ev.Progress != nil:
			c.dispatch(form.ProgressReported{
				Loaded:           ev.Progress.Loaded,
				Total:            ev.Progress.Total,
				LengthComputable: ev.Progress.LengthComputable,
			})
		case ev.Result != nil && ev.Result.Err != nil:
			c.dispatch(form.TransportFailed{Err: ev.Result.Err})
		case ev.Result != nil:
			c.dispatch(form.ResponseReceived{StatusCode: ev.Result.StatusCode})
		}
	}

	st = c.State()
	c.countAttempt(st.LastOutcome)
	if st.LastErr != nil {
		log.WithError(st.LastErr).Warn("upload did not succeed")
	}
	return st.LastOutcome, st.LastErr
}

func (c *Controller) countAttempt(outcome form.Outcome) {
	if outcome == form.OutcomeNone {
		return
	}
	if err := c.store.CountAttempt(string(outcome)); err != nil {
		c.log.WithError(err).Warn("failed to count attempt")
	}
}

// dispatch runs one event through the form and applies the resulting effects.
// It returns the resulting state and the upload to start, if any.
func (c *Controller) dispatch(ev form.Event) (form.State, form.StartUpload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var effects []form.Effect
	c.state, effects = form.Reduce(c.state, ev)

	var start form.StartUpload
	var started bool
	for _, eff := range effects {
		switch e := eff.(type) {
		case form.SetFileInfo:
			c.view.SetFileInfo(e.Message)
		case form.SetStatus:
			c.view.SetStatus(e.Message)
		case form.ShowProgress:
			c.view.ShowProgress()
		case form.HideProgress:
			c.view.HideProgress()
		case form.SetProgress:
			c.view.SetProgress(e.Percent)
		case form.AppendUploaded:
			rec, err := c.store.AppendUploaded(e.FileName, e.Size)
			if err != nil {
				c.log.WithError(err).WithField("file", e.FileName).Error("failed to record uploaded file")
				continue
			}
			c.view.AppendUploaded(*rec)
		case form.StartUpload:
			start, started = e, true
		}
	}
	return c.state, start, started
}

// Inspect reads the file's name, size and detected MIME type.
func Inspect(path, mimeOverride string) (*models.SelectedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mimeType := mimeOverride
	if mimeType == "" {
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to detect type of %s: %w", path, err)
		}
		mimeType = mt.String()
		if mt.Is(models.PDFMimeType) {
			mimeType = models.PDFMimeType
		}
	}

	return &models.SelectedFile{
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Size:     info.Size(),
		Path:     path,
	}, nil
}
