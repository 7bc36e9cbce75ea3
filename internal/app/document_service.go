package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"docinsight/internal/model"
	"docinsight/internal/pkg/extract"
	"docinsight/internal/storage"
)

const (
	DefaultMaxUploadBytes = 50 << 20
	defaultAuthor         = "Unknown"
)

// DocumentService accepts uploads and hands them to the analysis queue.
type DocumentService struct {
	docs      DocumentStore
	reports   ReportStore
	blobs     BlobStore
	publisher JobPublisher
	maxBytes  int64
}

func NewDocumentService(docs DocumentStore, reports ReportStore, blobs BlobStore, publisher JobPublisher, maxBytes int64) *DocumentService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &DocumentService{
		docs:      docs,
		reports:   reports,
		blobs:     blobs,
		publisher: publisher,
		maxBytes:  maxBytes,
	}
}

type UploadInput struct {
	UserID      uint
	Title       string
	Author      string
	FileName    string
	ContentType string
	Data        []byte
}

// DocumentDetail is a document with its progress and, once completed, its report.
type DocumentDetail struct {
	Document model.Document        `json:"document"`
	Progress float64               `json:"progress"`
	Report   *model.DocumentReport `json:"report,omitempty"`
}

// Upload stores the file and queues the document for analysis. When storing
// or queueing fails the document is left in error.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*model.Document, error) {
	fileName := filepath.Base(strings.TrimSpace(input.FileName))
	if input.UserID == 0 || fileName == "." || fileName == "/" || len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}
	fileType := extract.FileType(fileName)
	if fileType == "" && filepath.Ext(fileName) == "" {
		fileType = extract.FileTypeFromMIME(input.ContentType)
	}
	if fileType == "" {
		return nil, ErrUnsupportedFileType
	}
	if int64(len(input.Data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}
	author := strings.TrimSpace(input.Author)
	if author == "" {
		author = defaultAuthor
	}

	doc := &model.Document{
		UserID:   input.UserID,
		Title:    title,
		Author:   author,
		FileKey:  storage.ObjectKey(input.UserID, fileName),
		FileName: fileName,
		FileType: fileType,
		FileSize: int64(len(input.Data)),
		Status:   model.StatusUploading,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.blobs.Put(ctx, doc.FileKey, input.Data); err != nil {
		return nil, s.abandon(ctx, doc, fmt.Errorf("store file failed: %w", err))
	}
	if err := s.docs.UpdateStatus(ctx, doc.ID, model.StatusProcessing, ""); err != nil {
		return nil, s.abandon(ctx, doc, err)
	}
	doc.Status = model.StatusProcessing

	if err := s.publisher.PublishAnalysis(ctx, doc.ID); err != nil {
		return nil, s.abandon(ctx, doc, err)
	}
	log.Info().Uint("document_id", doc.ID).Str("file_type", fileType).Int64("file_size", doc.FileSize).Msg("document queued for analysis")
	return doc, nil
}

// Reanalyze queues an unfinished document again, e.g. after a worker crash.
func (s *DocumentService) Reanalyze(ctx context.Context, userID, documentID uint) (*model.Document, error) {
	doc, err := s.owned(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status.Terminal() {
		return nil, ErrDocumentNotRunnable
	}
	if err := s.publisher.PublishAnalysis(ctx, doc.ID); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docs.ListByUserID(ctx, userID)
}

func (s *DocumentService) Get(ctx context.Context, userID, documentID uint) (*DocumentDetail, error) {
	doc, err := s.owned(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	detail := &DocumentDetail{Document: *doc, Progress: doc.Progress()}
	if doc.Status == model.StatusCompleted {
		report, err := s.reports.GetByDocumentID(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		detail.Report = report
	}
	return detail, nil
}

// Delete removes the document with everything derived from it, then its file.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID uint) error {
	doc, err := s.owned(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.docs.DeleteCascade(ctx, doc.ID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.FileKey); err != nil {
		log.Warn().Err(err).Uint("document_id", doc.ID).Str("file_key", doc.FileKey).Msg("delete document file failed")
	}
	return nil
}

func (s *DocumentService) owned(ctx context.Context, userID, documentID uint) (*model.Document, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docs.GetByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) abandon(ctx context.Context, doc *model.Document, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.docs.UpdateStatus(ctx, doc.ID, model.StatusError, cause.Error()); err != nil {
		log.Error().Err(err).Uint("document_id", doc.ID).Msg("mark upload failed")
	}
	doc.Status = model.StatusError
	doc.ErrorMessage = cause.Error()
	return cause
}
