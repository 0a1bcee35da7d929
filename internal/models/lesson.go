package models

import (
	"time"

	"github.com/google/uuid"
)

type Lesson struct {
	ID       uuid.UUID `json:"id"`
	CourseID uuid.UUID `json:"course_id"`
	Title    string    `json:"title"`
	Position int       `json:"position"`

	// Ingestion sources: an externally hosted file or a local one awaiting
	// upload. At least one must be present before ingestion can start.
	SourceURL string `json:"source_url"`
	FilePath  string `json:"file_path"`

	IsFreePreview bool      `json:"is_free_preview"`
	CreatedAt     time.Time `json:"created_at"`

	Video VideoAsset `json:"video"`
}
