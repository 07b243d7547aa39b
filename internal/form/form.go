// Package form implements the upload form as a pure state machine.
//
// Reduce takes the current State and one Event and returns the next State
// together with the Effects a View and a transport must carry out. Nothing in
// this package touches the network or the terminal.
package form

import (
	"errors"
	"net/http"

	"github.com/chmdznr/pdfup/pkg/models"
	"github.com/chmdznr/pdfup/pkg/utils"
)

// User-visible messages.
const (
	MsgFileSelectedPrefix = "File Selected: "
	MsgInvalidSelection   = "Please select a valid PDF file."
	MsgNoFile             = "Please select a file."
	MsgNotPDF             = "Please upload a PDF file."
	MsgUploading          = "Uploading..."
	MsgSuccess            = "Upload successful!"
	MsgUploadError        = "Error uploading file."
)

// FieldName is the multipart field carrying the file.
const FieldName = "file"

// UploadPath is the endpoint path files are posted to.
const UploadPath = "/upload"

var (
	ErrNoFileSelected   = errors.New("no file selected")
	ErrInvalidFileType  = errors.New("file is not application/pdf")
	ErrServerRejected   = errors.New("server rejected upload")
	ErrTransportFailure = errors.New("upload transport failure")
)

// Phase is the position of the form in a submission cycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseUploading Phase = "uploading"
)

// Outcome tells how the last submission ended.
type Outcome string

const (
	OutcomeNone             Outcome = ""
	OutcomeRejected         Outcome = "rejected"
	OutcomeSucceeded        Outcome = "succeeded"
	OutcomeServerRejected   Outcome = "server_rejected"
	OutcomeTransportFailure Outcome = "transport_failure"
)

// State is everything the form remembers between events.
type State struct {
	Phase       Phase
	Selected    *models.SelectedFile
	Uploading   *models.SelectedFile // file of the in-flight submission
	Progress    float64
	ShowingBar  bool
	FileInfo    models.UploadStatusMessage
	Status      models.UploadStatusMessage
	LastOutcome Outcome
	LastErr     error
}

// NewState returns an idle form with nothing selected.
func NewState() State {
	return State{Phase: PhaseIdle}
}

// Reduce applies ev to s.
func Reduce(s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case FileSelected:
		return onFileSelected(s, e)
	case Submitted:
		return onSubmit(s)
	case ProgressReported:
		return onProgress(s, e)
	case ResponseReceived:
		return onResponse(s, e)
	case TransportFailed:
		return onTransportFailed(s, e)
	}
	return s, nil
}

func onFileSelected(s State, e FileSelected) (State, []Effect) {
	if e.File == nil {
		// An emptied picker clears the selection without touching the display.
		s.Selected = nil
		return s, nil
	}
	s.Selected = e.File
	if e.File.IsPDF() {
		s.FileInfo = models.UploadStatusMessage{Text: MsgFileSelectedPrefix + e.File.Name, Tone: models.ToneNeutral}
	} else {
		s.FileInfo = models.UploadStatusMessage{Text: MsgInvalidSelection, Tone: models.ToneError}
	}
	return s, []Effect{SetFileInfo{Message: s.FileInfo}}
}

func onSubmit(s State) (State, []Effect) {
	// The submit trigger stays disabled until the running upload reaches a terminal state.
	if s.Phase == PhaseUploading {
		return s, nil
	}

	if s.Selected == nil {
		return reject(s, MsgNoFile, ErrNoFileSelected)
	}
	if !s.Selected.IsPDF() {
		return reject(s, MsgNotPDF, ErrInvalidFileType)
	}

	s.Phase = PhaseUploading
	s.Uploading = s.Selected
	s.Progress = 0
	s.ShowingBar = true
	s.Status = models.UploadStatusMessage{Text: MsgUploading, Tone: models.ToneNeutral}
	s.LastOutcome = OutcomeNone
	s.LastErr = nil

	return s, []Effect{
		ShowProgress{},
		SetProgress{Percent: 0},
		SetStatus{Message: s.Status},
		StartUpload{File: *s.Uploading, Field: FieldName, Path: UploadPath},
	}
}

func reject(s State, text string, err error) (State, []Effect) {
	s.Status = models.UploadStatusMessage{Text: text, Tone: models.ToneError}
	s.LastOutcome = OutcomeRejected
	s.LastErr = err
	return s, []Effect{SetStatus{Message: s.Status}}
}

func onProgress(s State, e ProgressReported) (State, []Effect) {
	if s.Phase != PhaseUploading || !e.LengthComputable {
		return s, nil
	}
	pct, ok := utils.Percent(e.Loaded, e.Total)
	if !ok {
		return s, nil
	}
	s.Progress = pct
	return s, []Effect{SetProgress{Percent: pct}}
}

func onResponse(s State, e ResponseReceived) (State, []Effect) {
	if s.Phase != PhaseUploading {
		return s, nil
	}
	file := s.Uploading
	var effects []Effect
	if e.StatusCode == http.StatusOK {
		s.Status = models.UploadStatusMessage{Text: MsgSuccess, Tone: models.ToneSuccess}
		s.LastOutcome = OutcomeSucceeded
		s.LastErr = nil
		effects = append(effects, SetStatus{Message: s.Status}, AppendUploaded{FileName: file.Name, Size: file.Size})
	} else {
		s.Status = models.UploadStatusMessage{Text: MsgUploadError, Tone: models.ToneError}
		s.LastOutcome = OutcomeServerRejected
		s.LastErr = &StatusError{Code: e.StatusCode}
		effects = append(effects, SetStatus{Message: s.Status})
	}
	return finish(s), append(effects, HideProgress{})
}

func onTransportFailed(s State, e TransportFailed) (State, []Effect) {
	if s.Phase != PhaseUploading {
		return s, nil
	}
	s.Status = models.UploadStatusMessage{Text: MsgUploadError, Tone: models.ToneError}
	s.LastOutcome = OutcomeTransportFailure
	s.LastErr = ErrTransportFailure
	if e.Err != nil {
		s.LastErr = &transportError{cause: e.Err}
	}
	return finish(s), []Effect{SetStatus{Message: s.Status}, HideProgress{}}
}

func finish(s State) State {
	s.Phase = PhaseIdle
	s.Uploading = nil
	s.ShowingBar = false
	return s
}
