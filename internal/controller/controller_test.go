package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmdznr/pdfup/internal/db"
	"github.com/chmdznr/pdfup/internal/form"
	"github.com/chmdznr/pdfup/internal/upload"
	"github.com/chmdznr/pdfup/pkg/models"
)

// recordingView remembers everything rendered on it.
type recordingView struct {
	mu       sync.Mutex
	fileInfo []models.UploadStatusMessage
	status   []models.UploadStatusMessage
	visible  bool
	progress []float64
	appended []string
	calls    []string
}

func (v *recordingView) SetFileInfo(msg models.UploadStatusMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fileInfo = append(v.fileInfo, msg)
	v.calls = append(v.calls, "fileinfo")
}

func (v *recordingView) SetStatus(msg models.UploadStatusMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = append(v.status, msg)
	v.calls = append(v.calls, "status:"+msg.Text)
}

func (v *recordingView) ShowProgress() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = true
	v.calls = append(v.calls, "show")
}

func (v *recordingView) SetProgress(percent float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.progress = append(v.progress, percent)
}

func (v *recordingView) HideProgress() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = false
	v.calls = append(v.calls, "hide")
}

func (v *recordingView) AppendUploaded(rec models.UploadedFileRecord) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.appended = append(v.appended, rec.FileName)
}

func (v *recordingView) isVisible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

func (v *recordingView) lastStatus() models.UploadStatusMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.status) == 0 {
		return models.UploadStatusMessage{}
	}
	return v.status[len(v.status)-1]
}

// scriptedUploader replays progress events, then waits on gate before the result.
type scriptedUploader struct {
	mu       sync.Mutex
	calls    int
	progress []upload.Progress
	result   upload.Result
	gate     chan struct{}
	started  chan struct{}
}

func (u *scriptedUploader) Start(ctx context.Context, req upload.Request) *upload.Task {
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()
	return upload.NewTask(ctx, func(ctx context.Context, report func(upload.Progress)) upload.Result {
		for _, p := range u.progress {
			report(p)
		}
		if u.started != nil {
			close(u.started)
		}
		if u.gate != nil {
			<-u.gate
		}
		return u.result
	})
}

func (u *scriptedUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newController(t *testing.T, up upload.Uploader) (*Controller, *recordingView, *db.DB) {
	t.Helper()
	store, err := db.New()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	view := &recordingView{}
	return New(view, store, up, quietLogger()), view, store
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const pdfContent = "%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n"

func TestSelectFile(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		content  string
		override string
		wantText string
		wantTone models.Tone
	}{
		{name: "pdf", fileName: "paper.pdf", content: pdfContent, wantText: "File Selected: paper.pdf", wantTone: models.ToneNeutral},
		{name: "text renamed to pdf", fileName: "notes.pdf", content: "just some notes\n", wantText: "Please select a valid PDF file.", wantTone: models.ToneError},
		{name: "png", fileName: "img.png", content: "\x89PNG\r\n\x1a\n0000", wantText: "Please select a valid PDF file.", wantTone: models.ToneError},
		{name: "override", fileName: "blob.bin", content: "data", override: models.PDFMimeType, wantText: "File Selected: blob.bin", wantTone: models.ToneNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &scriptedUploader{}
			c, view, store := newController(t, up)

			require.NoError(t, c.SelectFile(writeFile(t, tt.fileName, tt.content), tt.override))

			require.Len(t, view.fileInfo, 1)
			assert.Equal(t, tt.wantText, view.fileInfo[0].Text)
			assert.Equal(t, tt.wantTone, view.fileInfo[0].Tone)
			assert.Empty(t, view.appended)
			assert.Zero(t, up.callCount())

			files, err := store.ListUploaded()
			require.NoError(t, err)
			assert.Empty(t, files)
		})
	}
}

func TestSelectFile_EmptyPathAndErrors(t *testing.T) {
	c, view, _ := newController(t, &scriptedUploader{})

	require.NoError(t, c.SelectFile("", ""))
	assert.Empty(t, view.fileInfo)

	require.NoError(t, c.SelectFile(writeFile(t, "a.pdf", pdfContent), ""))
	require.NotNil(t, c.State().Selected)
	require.NoError(t, c.SelectFile("", ""))
	assert.Nil(t, c.State().Selected, "an empty pick clears the previous selection")

	err := c.SelectFile(filepath.Join(t.TempDir(), "missing.pdf"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = c.SelectFile(t.TempDir(), "")
	assert.Error(t, err)
	assert.Nil(t, c.State().Selected)
}

func TestSubmit_ValidationMakesNoNetworkCall(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		up := &scriptedUploader{}
		c, view, store := newController(t, up)

		outcome, err := c.Submit(context.Background())
		assert.Equal(t, form.OutcomeRejected, outcome)
		assert.ErrorIs(t, err, form.ErrNoFileSelected)
		assert.Equal(t, "Please select a file.", view.lastStatus().Text)
		assert.Equal(t, models.ToneError, view.lastStatus().Tone)
		assert.Zero(t, up.callCount())

		stats, err := store.GetStats()
		require.NoError(t, err)
		assert.EqualValues(t, 1, stats.RejectedFiles)
	})

	t.Run("not a pdf", func(t *testing.T) {
		up := &scriptedUploader{}
		c, view, _ := newController(t, up)
		require.NoError(t, c.SelectFile(writeFile(t, "a.txt", "hello"), ""))

		outcome, err := c.Submit(context.Background())
		assert.Equal(t, form.OutcomeRejected, outcome)
		assert.ErrorIs(t, err, form.ErrInvalidFileType)
		assert.Equal(t, "Please upload a PDF file.", view.lastStatus().Text)
		assert.Zero(t, up.callCount())
	})
}

func TestSubmit_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		result      upload.Result
		wantText    string
		wantTone    models.Tone
		wantOutcome form.Outcome
		wantErr     error
		wantAppend  bool
	}{
		{name: "ok", result: upload.Result{StatusCode: http.StatusOK}, wantText: "Upload successful!", wantTone: models.ToneSuccess, wantOutcome: form.OutcomeSucceeded, wantAppend: true},
		{name: "server error", result: upload.Result{StatusCode: http.StatusInternalServerError}, wantText: "Error uploading file.", wantTone: models.ToneError, wantOutcome: form.OutcomeServerRejected, wantErr: form.ErrServerRejected},
		{name: "bad request", result: upload.Result{StatusCode: http.StatusBadRequest}, wantText: "Error uploading file.", wantTone: models.ToneError, wantOutcome: form.OutcomeServerRejected, wantErr: form.ErrServerRejected},
		{name: "transport failure", result: upload.Result{Err: errors.New("connection reset")}, wantText: "Error uploading file.", wantTone: models.ToneError, wantOutcome: form.OutcomeTransportFailure, wantErr: form.ErrTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &scriptedUploader{
				result:  tt.result,
				gate:    make(chan struct{}),
				started: make(chan struct{}),
			}
			c, view, store := newController(t, up)
			require.NoError(t, c.SelectFile(writeFile(t, "doc.pdf", pdfContent), ""))

			type submitResult struct {
				outcome form.Outcome
				err     error
			}
			done := make(chan submitResult, 1)
			go func() {
				o, err := c.Submit(context.Background())
				done <- submitResult{o, err}
			}()

			<-up.started
			assert.True(t, view.isVisible(), "progress must be visible while the upload is pending")
			assert.Equal(t, "Uploading...", view.lastStatus().Text)
			close(up.gate)

			res := <-done
			assert.False(t, view.isVisible(), "progress must be hidden after the upload resolves")
			assert.Equal(t, tt.wantOutcome, res.outcome)
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.err, tt.wantErr)
			} else {
				assert.NoError(t, res.err)
			}
			assert.Equal(t, tt.wantText, view.lastStatus().Text)
			assert.Equal(t, tt.wantTone, view.lastStatus().Tone)

			files, err := store.ListUploaded()
			require.NoError(t, err)
			if tt.wantAppend {
				assert.Equal(t, []string{"doc.pdf"}, view.appended)
				require.Len(t, files, 1)
				assert.Equal(t, "doc.pdf", files[0].FileName)
			} else {
				assert.Empty(t, view.appended)
				assert.Empty(t, files)
			}
			assert.Equal(t, "hide", view.calls[len(view.calls)-1])
		})
	}
}

func TestSubmit_Progress(t *testing.T) {
	up := &scriptedUploader{
		progress: []upload.Progress{
			{Loaded: 10, Total: 40, LengthComputable: true},
			{Loaded: 20, Total: 0, LengthComputable: false},
			{Loaded: 30, Total: 40, LengthComputable: true},
			{Loaded: 40, Total: 40, LengthComputable: true},
		},
		result: upload.Result{StatusCode: http.StatusOK},
	}
	c, view, _ := newController(t, up)
	require.NoError(t, c.SelectFile(writeFile(t, "p.pdf", pdfContent), ""))

	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 25, 75, 100}, view.progress)
}

func TestSubmit_WhileUploadingIsRefused(t *testing.T) {
	up := &scriptedUploader{
		result:  upload.Result{StatusCode: http.StatusOK},
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	c, _, _ := newController(t, up)
	require.NoError(t, c.SelectFile(writeFile(t, "one.pdf", pdfContent), ""))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-up.started

	outcome, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrUploadInProgress)
	assert.Equal(t, form.OutcomeNone, outcome)

	close(up.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, up.callCount())
}

func TestSubmit_SessionListGrowsWithDuplicates(t *testing.T) {
	up := &scriptedUploader{result: upload.Result{StatusCode: http.StatusOK}}
	c, view, _ := newController(t, up)
	path := writeFile(t, "same.pdf", pdfContent)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.SelectFile(path, ""))
		_, err := c.Submit(context.Background())
		require.NoError(t, err)
	}

	files, err := c.Uploaded()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, []string{"same.pdf", "same.pdf", "same.pdf"}, view.appended)
}

func TestInspect(t *testing.T) {
	path := writeFile(t, "x.pdf", pdfContent)

	f, err := Inspect(path, "")
	require.NoError(t, err)
	assert.Equal(t, "x.pdf", f.Name)
	assert.Equal(t, models.PDFMimeType, f.MimeType)
	assert.EqualValues(t, len(pdfContent), f.Size)
	assert.True(t, f.IsPDF())
}
