package model

import "time"

// Asset is an ingested image stored in the content area.
type Asset struct {
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
