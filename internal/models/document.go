package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DocumentSourceUpload  = "upload"
	DocumentSourceYouTube = "youtube"
)

type Document struct {
	ID            uuid.UUID  `json:"id"`
	UploaderID    uuid.UUID  `json:"uploader_id"`
	RoomID        *uuid.UUID `json:"room_id"`
	Title         string     `json:"title"`
	Subject       string     `json:"subject"`
	Filename      string     `json:"filename"`
	StorageKey    *string    `json:"-"`
	FileSize      int64      `json:"file_size"`
	MimeType      string     `json:"mime_type"`
	Source        string     `json:"source"`
	SourceURL     *string    `json:"source_url"`
	ExtractedText string     `json:"extracted_text,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type ImportYouTubeRequest struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Subject string `json:"subject"`
}
