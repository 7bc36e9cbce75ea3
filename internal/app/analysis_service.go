package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"docinsight/internal/ai"
	"docinsight/internal/chunker"
	"docinsight/internal/model"
	"docinsight/internal/pkg/extract"
)

// AnalysisService drives a document through
// processing -> analyzing -> generating_report -> completed.
// Any failure that escapes a stage moves the document to error.
type AnalysisService struct {
	docs     DocumentStore
	chunks   ChunkStore
	analyses AnalysisStore
	reports  ReportStore
	blobs    BlobStore
	provider Analyzer
	guard    RunGuard
}

func NewAnalysisService(
	docs DocumentStore,
	chunks ChunkStore,
	analyses AnalysisStore,
	reports ReportStore,
	blobs BlobStore,
	provider Analyzer,
	guard RunGuard,
) *AnalysisService {
	return &AnalysisService{
		docs:     docs,
		chunks:   chunks,
		analyses: analyses,
		reports:  reports,
		blobs:    blobs,
		provider: provider,
		guard:    guard,
	}
}

// Process runs the whole pipeline for a document. A document interrupted in
// analyzing or generating_report resumes from where its counters left off.
func (s *AnalysisService) Process(ctx context.Context, documentID uint) (err error) {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		if !errors.Is(err, ErrDocumentNotFound) {
			s.fail(ctx, documentID, err)
		}
		return err
	}
	if doc.Status.Terminal() {
		return ErrDocumentNotRunnable
	}

	if s.guard != nil {
		release, ok, err := s.guard.Acquire(ctx, documentID)
		if err != nil {
			return s.failed(ctx, documentID, fmt.Errorf("acquire run lock failed: %w", err))
		}
		if !ok {
			return ErrDocumentBusy
		}
		defer release()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panicked: %v", r)
		}
		if err != nil {
			s.fail(ctx, documentID, err)
		}
	}()

	logger := log.With().Uint("document_id", documentID).Logger()
	logger.Info().Str("status", string(doc.Status)).Msg("analysis run started")

	switch doc.Status {
	case model.StatusUploading, model.StatusProcessing:
		if err := s.prepareChunks(ctx, doc); err != nil {
			return err
		}
		fallthrough
	case model.StatusAnalyzing:
		if err := s.AnalyzeChunks(ctx, documentID); err != nil {
			return err
		}
	}
	if err := s.GenerateReport(ctx, documentID); err != nil {
		return err
	}

	logger.Info().Msg("analysis run completed")
	return nil
}

// prepareChunks extracts the document text and stores its segments,
// replacing any left behind by an earlier interrupted run.
func (s *AnalysisService) prepareChunks(ctx context.Context, doc *model.Document) error {
	if err := s.transition(ctx, doc, model.StatusProcessing); err != nil {
		return err
	}

	data, err := s.blobs.Get(ctx, doc.FileKey)
	if err != nil {
		return fmt.Errorf("load document file failed: %w", err)
	}
	if data == nil {
		return ErrFileMissing
	}

	extracted, err := extract.Extract(data, doc.FileType)
	if err != nil {
		return err
	}
	segments := chunker.Split(extracted.Text)
	if len(segments) == 0 {
		return ErrNoChunks
	}

	if err := s.analyses.DeleteByDocumentID(ctx, doc.ID); err != nil {
		return err
	}
	if err := s.chunks.DeleteByDocumentID(ctx, doc.ID); err != nil {
		return err
	}

	rows := make([]model.Chunk, len(segments))
	for i, seg := range segments {
		start, end := seg.StartPosition, seg.EndPosition
		rows[i] = model.Chunk{
			DocumentID:    doc.ID,
			ChunkIndex:    seg.Index,
			Content:       seg.Content,
			StartPosition: &start,
			EndPosition:   &end,
		}
		if page, ok := extracted.PageAt(start); ok {
			rows[i].PageNumber = &page
		}
	}
	if err := s.chunks.CreateBatch(ctx, rows); err != nil {
		return err
	}
	if err := s.docs.SetChunkStats(ctx, doc.ID, len(rows), countWords(extracted.Text)); err != nil {
		return err
	}

	log.Info().Uint("document_id", doc.ID).Int("chunks", len(rows)).Msg("document chunked")
	return nil
}

// AnalyzeChunks analyzes and embeds every chunk in order. A failing chunk is
// logged and skipped; the stage fails only when no analysis exists at the end.
func (s *AnalysisService) AnalyzeChunks(ctx context.Context, documentID uint) error {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.transition(ctx, doc, model.StatusAnalyzing); err != nil {
		return s.failed(ctx, documentID, err)
	}

	chunks, err := s.chunks.ListByDocumentID(ctx, documentID)
	if err != nil {
		return s.failed(ctx, documentID, err)
	}
	if len(chunks) == 0 {
		return s.failed(ctx, documentID, ErrNoChunks)
	}

	run := newAnalysisRun(documentID, chunks, doc.ProcessedChunks)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, ok := run.next()
		if !ok {
			break
		}
		if err := s.extendGuard(ctx, documentID); err != nil {
			return err
		}

		stored, stepErr := s.analyzeChunk(ctx, chunk)
		if !stored && ctx.Err() != nil {
			// interrupted before anything was saved; a resumed run retries this chunk
			return ctx.Err()
		}
		run.record(stepErr)
		if stepErr != nil {
			log.Warn().Err(stepErr).
				Uint("document_id", run.documentID).
				Int("chunk_index", chunk.ChunkIndex).
				Msg("chunk analysis failed, skipping")
		}
		// not cancellable, so a resumed run starts after this chunk
		if err := s.docs.IncrementProcessed(context.WithoutCancel(ctx), documentID); err != nil {
			log.Warn().Err(err).Uint("document_id", documentID).Msg("increment processed chunks failed")
		}
	}

	total, err := s.analyses.CountByDocumentID(ctx, documentID)
	if err != nil {
		return s.failed(ctx, documentID, err)
	}
	if total == 0 {
		return s.failed(ctx, documentID, ErrNoAnalyses)
	}

	log.Info().
		Uint("document_id", documentID).
		Int("analyzed", run.analyzed).
		Int("failed", run.failed).
		Msg("chunk analysis finished")
	return nil
}

// analyzeChunk reports stored=true once the chunk's analysis row exists, even
// if the embedding step afterwards fails.
func (s *AnalysisService) analyzeChunk(ctx context.Context, chunk model.Chunk) (stored bool, err error) {
	insight, err := s.provider.AnalyzeChunk(ctx, chunk.Content)
	if err != nil {
		return false, fmt.Errorf("analyze chunk failed: %w", err)
	}
	if err := s.analyses.Create(ctx, toChunkAnalysis(chunk, insight)); err != nil {
		return false, err
	}

	vec, err := s.provider.Embed(ctx, chunk.Content)
	if err != nil {
		return true, fmt.Errorf("embed chunk failed: %w", err)
	}
	if len(vec) > 0 {
		if err := s.chunks.UpdateEmbedding(ctx, chunk.ID, vec); err != nil {
			return true, err
		}
	}
	return true, nil
}

// extendGuard refreshes the run lock between chunks. A failed refresh is only
// logged; a lock that now belongs to someone else stops the run.
func (s *AnalysisService) extendGuard(ctx context.Context, documentID uint) error {
	if s.guard == nil {
		return nil
	}
	held, err := s.guard.Extend(ctx, documentID)
	if err != nil {
		log.Warn().Err(err).Uint("document_id", documentID).Msg("extend run lock failed")
		return nil
	}
	if !held {
		return ErrRunLockLost
	}
	return nil
}

// GenerateReport reduces every chunk analysis into the document report.
func (s *AnalysisService) GenerateReport(ctx context.Context, documentID uint) error {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.transition(ctx, doc, model.StatusGeneratingReport); err != nil {
		return s.failed(ctx, documentID, err)
	}

	analyses, err := s.analyses.ListByDocumentID(ctx, documentID)
	if err != nil {
		return s.failed(ctx, documentID, err)
	}
	if len(analyses) == 0 {
		return s.failed(ctx, documentID, ErrNoAnalyses)
	}

	insights := make([]ai.ChunkInsight, len(analyses))
	sentiments := make([]string, len(analyses))
	for i, a := range analyses {
		insights[i] = toInsight(a)
		sentiments[i] = a.Sentiment
	}

	result, err := s.provider.GenerateReport(ctx, doc.Title, insights)
	if err != nil {
		return s.failed(ctx, documentID, err)
	}

	overall := majoritySentiment(sentiments)
	if strings.TrimSpace(result.OverallSentiment) != "" {
		overall = ai.NormalizeSentiment(result.OverallSentiment)
	}
	report := &model.DocumentReport{
		DocumentID:       documentID,
		CoreSummary:      result.CoreSummary,
		KeyElements:      datatypes.NewJSONType(result.KeyElements),
		StyleAnalysis:    datatypes.NewJSONType(result.StyleAnalysis),
		ValueAssessment:  datatypes.NewJSONType(result.ValueAssessment),
		OverallSentiment: overall,
		WordCount:        doc.WordCount,
		ReadingTime:      readingMinutes(doc.WordCount),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return s.failed(ctx, documentID, err)
	}
	if err := s.transition(ctx, doc, model.StatusCompleted); err != nil {
		return s.failed(ctx, documentID, err)
	}
	return nil
}

func (s *AnalysisService) loadDocument(ctx context.Context, documentID uint) (*model.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *AnalysisService) transition(ctx context.Context, doc *model.Document, to model.DocumentStatus) error {
	if !model.CanTransition(doc.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, doc.Status, to)
	}
	if err := s.docs.UpdateStatus(ctx, doc.ID, to, ""); err != nil {
		return err
	}
	doc.Status = to
	return nil
}

func (s *AnalysisService) failed(ctx context.Context, documentID uint, cause error) error {
	s.fail(ctx, documentID, cause)
	return cause
}

// fail records cause on the document unless it already reached a terminal
// status. A cancelled run leaves the status untouched so it can be resumed,
// and a run that lost its lock leaves it to the run that took over.
func (s *AnalysisService) fail(ctx context.Context, documentID uint, cause error) {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, ErrRunLockLost) {
		return
	}
	ctx = context.WithoutCancel(ctx)

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil || doc == nil {
		log.Error().Err(err).Uint("document_id", documentID).Msg("load document for failure failed")
		return
	}
	if !model.CanTransition(doc.Status, model.StatusError) {
		return
	}
	if err := s.docs.UpdateStatus(ctx, documentID, model.StatusError, cause.Error()); err != nil {
		log.Error().Err(err).Uint("document_id", documentID).Msg("record document failure failed")
		return
	}
	log.Error().Err(cause).Uint("document_id", documentID).Msg("document analysis failed")
}

func toChunkAnalysis(chunk model.Chunk, in ai.ChunkInsight) *model.ChunkAnalysis {
	return &model.ChunkAnalysis{
		ChunkID:        chunk.ID,
		DocumentID:     chunk.DocumentID,
		ChunkIndex:     chunk.ChunkIndex,
		Summary:        in.Summary,
		KeyEntities:    datatypes.NewJSONSlice(in.KeyEntities),
		CoreArguments:  datatypes.NewJSONSlice(in.CoreArguments),
		Sentiment:      in.Sentiment,
		SentimentScore: in.SentimentScore,
		Themes:         datatypes.NewJSONSlice(in.Themes),
		Quotes:         datatypes.NewJSONSlice(in.Quotes),
		RawAnalysis:    in.Raw,
	}
}

func toInsight(a model.ChunkAnalysis) ai.ChunkInsight {
	return ai.ChunkInsight{
		Summary:        a.Summary,
		KeyEntities:    []string(a.KeyEntities),
		CoreArguments:  []string(a.CoreArguments),
		Sentiment:      a.Sentiment,
		SentimentScore: a.SentimentScore,
		Themes:         []string(a.Themes),
		Quotes:         []string(a.Quotes),
	}
}
