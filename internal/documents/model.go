package documents

import "time"

const (
	StatusUploaded = "uploaded"
	StatusAnalyzed = "analyzed"
)

// Document represents an uploaded contract owned by a user.
type Document struct {
	ID              string
	UserID          string
	FileName        string
	MimeType        string
	SizeBytes       int64
	StorageProvider string
	StorageKey      string
	Status          string
	CreatedAt       time.Time
}
