package models

// SelectedFile represents the file the user picked for upload
type SelectedFile struct {
	Name     string
	MimeType string
	Size     int64 // -1 when unknown
	Path     string
}

// IsPDF reports whether the file was detected as a PDF document.
func (f *SelectedFile) IsPDF() bool {
	return f != nil && f.MimeType == PDFMimeType
}
