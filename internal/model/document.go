package model

import "time"

// DocumentStatus is the lifecycle state of a document's analysis.
type DocumentStatus string

const (
	StatusUploading        DocumentStatus = "uploading"
	StatusProcessing       DocumentStatus = "processing"
	StatusAnalyzing        DocumentStatus = "analyzing"
	StatusGeneratingReport DocumentStatus = "generating_report"
	StatusCompleted        DocumentStatus = "completed"
	StatusError            DocumentStatus = "error"
)

var statusTransitions = map[DocumentStatus][]DocumentStatus{
	StatusUploading:        {StatusProcessing, StatusError},
	StatusProcessing:       {StatusAnalyzing, StatusError},
	StatusAnalyzing:        {StatusGeneratingReport, StatusError},
	StatusGeneratingReport: {StatusCompleted, StatusError},
}

// Terminal reports whether no further transition is possible.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether a document may move from one status to another.
// Re-entering the current status is allowed so a retried stage stays idempotent.
func CanTransition(from, to DocumentStatus) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Document struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	Title           string         `gorm:"size:256;not null" json:"title"`
	Author          string         `gorm:"size:256" json:"author"`
	FileKey         string         `gorm:"size:512;not null" json:"file_key"`
	FileName        string         `gorm:"size:256;not null" json:"file_name"`
	FileType        string         `gorm:"size:16;not null" json:"file_type"`
	FileSize        int64          `gorm:"not null" json:"file_size"`
	TotalChunks     int            `gorm:"not null;default:0" json:"total_chunks"`
	ProcessedChunks int            `gorm:"not null;default:0" json:"processed_chunks"`
	WordCount       int            `gorm:"not null;default:0" json:"word_count"`
	Status          DocumentStatus `gorm:"size:32;not null;default:uploading;index" json:"status"`
	ErrorMessage    string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Progress returns the fraction of chunks attempted, in [0, 1].
func (d *Document) Progress() float64 {
	if d.TotalChunks <= 0 {
		return 0
	}
	p := float64(d.ProcessedChunks) / float64(d.TotalChunks)
	if p > 1 {
		return 1
	}
	return p
}
