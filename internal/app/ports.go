package app

import (
	"context"

	"docinsight/internal/ai"
	"docinsight/internal/model"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint) (*model.User, error)
}

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id uint) (*model.Document, error)
	GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Document, error)
	ListByUserID(ctx context.Context, userID uint) ([]model.Document, error)
	UpdateStatus(ctx context.Context, id uint, status model.DocumentStatus, message string) error
	SetChunkStats(ctx context.Context, id uint, totalChunks, wordCount int) error
	IncrementProcessed(ctx context.Context, id uint) error
	DeleteCascade(ctx context.Context, id uint) error
}

type ChunkStore interface {
	CreateBatch(ctx context.Context, chunks []model.Chunk) error
	ListByDocumentID(ctx context.Context, documentID uint) ([]model.Chunk, error)
	UpdateEmbedding(ctx context.Context, id uint, vec []float32) error
	DeleteByDocumentID(ctx context.Context, documentID uint) error
}

type AnalysisStore interface {
	Create(ctx context.Context, analysis *model.ChunkAnalysis) error
	ListByDocumentID(ctx context.Context, documentID uint) ([]model.ChunkAnalysis, error)
	CountByDocumentID(ctx context.Context, documentID uint) (int64, error)
	DeleteByDocumentID(ctx context.Context, documentID uint) error
}

type ReportStore interface {
	Create(ctx context.Context, report *model.DocumentReport) error
	GetByDocumentID(ctx context.Context, documentID uint) (*model.DocumentReport, error)
}

type ConversationStore interface {
	Create(ctx context.Context, conversation *model.Conversation) error
	GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Conversation, error)
	ListByDocumentAndUser(ctx context.Context, documentID, userID uint) ([]model.Conversation, error)
}

type MessageStore interface {
	Create(ctx context.Context, message *model.Message) error
	ListByConversationID(ctx context.Context, conversationID uint, limit int) ([]model.Message, error)
	ListRecent(ctx context.Context, conversationID uint, limit int) ([]model.Message, error)
}

type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, conversationID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, conversationID uint) error
}

// BlobStore returns nil, nil from Get for a missing key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// RunGuard admits one analysis run per document at a time. Extend keeps a
// held guard alive and reports held=false once it has been lost.
type RunGuard interface {
	Acquire(ctx context.Context, documentID uint) (release func(), ok bool, err error)
	Extend(ctx context.Context, documentID uint) (held bool, err error)
}

type JobPublisher interface {
	PublishAnalysis(ctx context.Context, documentID uint) error
}

// Analyzer is the provider surface the analysis pipeline needs.
type Analyzer interface {
	AnalyzeChunk(ctx context.Context, text string) (ai.ChunkInsight, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	GenerateReport(ctx context.Context, title string, insights []ai.ChunkInsight) (ai.ReportResult, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Completer interface {
	Complete(ctx context.Context, system string, history []ai.ChatMessage, user string, opts ai.CompletionOptions) (string, error)
}
