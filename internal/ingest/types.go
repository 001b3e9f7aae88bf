package ingest

import "errors"

var (
	// ErrNoSupportedFiles is returned when nothing in the upload can be read as a chat export.
	ErrNoSupportedFiles = errors.New("no supported chat files (.txt, .html, .htm, .zip)")
	// ErrInvalidArchive marks a .zip that cannot be opened.
	ErrInvalidArchive = errors.New("invalid zip archive")
	// ErrArchiveTooLarge is returned when an archive exceeds entry count or size limits.
	ErrArchiveTooLarge = errors.New("archive exceeds size limits")
	// ErrUploadTooLarge is returned when the raw upload exceeds the configured limit.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
)

// File is one uploaded file.
type File struct {
	Name string
	Data []byte
}

// Rejection explains why an uploaded file or archive entry was skipped.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Upload is the combined, decoded text of every accepted file.
type Upload struct {
	Combined  string      `json:"-"`
	FileNames []string    `json:"file_names"`
	TotalSize int64       `json:"total_size"`
	Rejected  []Rejection `json:"rejected,omitempty"`
}
