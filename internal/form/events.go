package form

import (
	"fmt"

	"github.com/chmdznr/pdfup/pkg/models"
)

// Event is an input to Reduce.
type Event interface{ isEvent() }

// FileSelected is raised when the file picker changes. File is nil when the picker is empty.
type FileSelected struct{ File *models.SelectedFile }

// Submitted is raised when the user submits the form.
type Submitted struct{}

// ProgressReported carries an upload progress notification.
type ProgressReported struct {
	Loaded           int64
	Total            int64
	LengthComputable bool
}

// ResponseReceived is the terminal event for an upload that got an HTTP response.
type ResponseReceived struct{ StatusCode int }

// TransportFailed is the terminal event for an upload that got no response.
type TransportFailed struct{ Err error }

func (FileSelected) isEvent()     {}
func (Submitted) isEvent()        {}
func (ProgressReported) isEvent() {}
func (ResponseReceived) isEvent() {}
func (TransportFailed) isEvent()  {}

// Effect is a side effect requested by Reduce.
type Effect interface{ isEffect() }

type (
	SetFileInfo  struct{ Message models.UploadStatusMessage }
	SetStatus    struct{ Message models.UploadStatusMessage }
	ShowProgress struct{}
	HideProgress struct{}
	SetProgress  struct{ Percent float64 }

	// AppendUploaded adds a filename to the session's uploaded-file list.
	AppendUploaded struct {
		FileName string
		Size     int64
	}

	// StartUpload asks the driver to POST File as multipart field Field to Path.
	StartUpload struct {
		File  models.SelectedFile
		Field string
		Path  string
	}
)

func (SetFileInfo) isEffect()    {}
func (SetStatus) isEffect()      {}
func (ShowProgress) isEffect()   {}
func (HideProgress) isEffect()   {}
func (SetProgress) isEffect()    {}
func (AppendUploaded) isEffect() {}
func (StartUpload) isEffect()    {}

// StatusError is recorded when the server answered with something other than 200.
type StatusError struct{ Code int }

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d", ErrServerRejected, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrServerRejected }

type transportError struct{ cause error }

func (e *transportError) Error() string {
	return fmt.Sprintf("%v: %v", ErrTransportFailure, e.cause)
}

func (e *transportError) Is(target error) bool { return target == ErrTransportFailure }

func (e *transportError) Unwrap() error { return e.cause }
