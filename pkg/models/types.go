package models

import "time"

// PDFMimeType is the only MIME type the upload form accepts.
const PDFMimeType = "application/pdf"

// Tone is the semantic color of a message shown to the user.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneSuccess Tone = "success"
	ToneError   Tone = "error"
)

// UploadStatusMessage is a short line of text shown in the status or file-info area.
type UploadStatusMessage struct {
	Text string
	Tone Tone
}

// UploadedFileRecord is one entry of the session's uploaded-file list.
type UploadedFileRecord struct {
	Seq        int64
	FileName   string
	Size       int64
	UploadedAt time.Time
}
