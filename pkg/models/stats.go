package models

// Stats represents session statistics
type Stats struct {
	UploadedFiles int64
	UploadedSize  int64
	FailedFiles   int64
	RejectedFiles int64 // submissions stopped before any network call
}
