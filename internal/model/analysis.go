package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChunkAnalysis is the provider's structured reading of one chunk.
// Rows are append-only.
type ChunkAnalysis struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	ChunkID        uint                        `gorm:"not null;index" json:"chunk_id"`
	DocumentID     uint                        `gorm:"not null;index" json:"document_id"`
	ChunkIndex     int                         `gorm:"not null" json:"chunk_index"`
	Summary        string                      `gorm:"type:text" json:"summary"`
	KeyEntities    datatypes.JSONSlice[string] `json:"key_entities"`
	CoreArguments  datatypes.JSONSlice[string] `json:"core_arguments"`
	Sentiment      string                      `gorm:"size:32" json:"sentiment"`
	SentimentScore *float64                    `json:"sentiment_score,omitempty"`
	Themes         datatypes.JSONSlice[string] `json:"themes"`
	Quotes         datatypes.JSONSlice[string] `json:"quotes"`
	RawAnalysis    string                      `gorm:"type:longtext" json:"-"`
	CreatedAt      time.Time                   `json:"created_at"`
}

type KeyElements struct {
	MainCharacters  []string `json:"mainCharacters"`
	KeyThemes       []string `json:"keyThemes"`
	CoreArguments   []string `json:"coreArguments"`
	ImportantQuotes []string `json:"importantQuotes"`
}

type StyleAnalysis struct {
	WritingStyle       string   `json:"writingStyle"`
	NarrativeStructure string   `json:"narrativeStructure"`
	LanguageFeatures   []string `json:"languageFeatures"`
}

type ValueAssessment struct {
	AcademicValue  string   `json:"academicValue"`
	PracticalValue string   `json:"practicalValue"`
	TargetAudience string   `json:"targetAudience"`
	OverallRating  *float64 `json:"overallRating,omitempty"`
}

// DocumentReport aggregates every chunk analysis of a document.
type DocumentReport struct {
	ID               uint                                `gorm:"primaryKey" json:"id"`
	DocumentID       uint                                `gorm:"not null;index" json:"document_id"`
	CoreSummary      string                              `gorm:"type:text" json:"core_summary"`
	KeyElements      datatypes.JSONType[KeyElements]     `json:"key_elements"`
	StyleAnalysis    datatypes.JSONType[StyleAnalysis]   `json:"style_analysis"`
	ValueAssessment  datatypes.JSONType[ValueAssessment] `json:"value_assessment"`
	OverallSentiment string                              `gorm:"size:32" json:"overall_sentiment"`
	WordCount        int                                 `json:"word_count"`
	ReadingTime      int                                 `json:"reading_time"`
	CreatedAt        time.Time                           `json:"created_at"`
	UpdatedAt        time.Time                           `json:"updated_at"`
}
