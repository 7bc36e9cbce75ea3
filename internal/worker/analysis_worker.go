package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"docinsight/internal/app"
	"docinsight/internal/platform/rabbitmq"
)

const defaultConcurrency = 4

// Processor runs the analysis pipeline for one document.
type Processor interface {
	Process(ctx context.Context, documentID uint) error
}

// AnalysisWorker consumes analysis jobs and runs up to concurrency documents
// at once.
type AnalysisWorker struct {
	conn        *amqp.Connection
	processor   Processor
	queueName   string
	concurrency int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAnalysisWorker(conn *amqp.Connection, processor Processor, queueName string, concurrency int) *AnalysisWorker {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &AnalysisWorker{
		conn:        conn,
		processor:   processor,
		queueName:   queueName,
		concurrency: concurrency,
	}
}

func (w *AnalysisWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(w.concurrency, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()
		w.consume(workerCtx, deliveries)
	}()

	log.Info().Str("queue", w.queueName).Int("concurrency", w.concurrency).Msg("analysis worker started")
	return nil
}

func (w *AnalysisWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	g := new(errgroup.Group)
	g.SetLimit(w.concurrency)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			g.Go(func() error {
				w.handle(ctx, d)
				return nil
			})
		}
	}
}

// handle runs one job. A job is requeued only when the run was interrupted by
// shutdown; every other failure is already recorded on the document.
func (w *AnalysisWorker) handle(ctx context.Context, d amqp.Delivery) {
	job, err := rabbitmq.DecodeAnalysisJob(d.Body)
	if err != nil {
		log.Error().Err(err).Msg("worker decode analysis job failed")
		_ = d.Nack(false, false)
		return
	}

	logger := log.With().Uint("document_id", job.DocumentID).Logger()
	err = w.processor.Process(ctx, job.DocumentID)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, context.Canceled):
		logger.Warn().Msg("analysis interrupted, requeueing")
		_ = d.Nack(false, true)
	case errors.Is(err, app.ErrDocumentBusy), errors.Is(err, app.ErrDocumentNotRunnable),
		errors.Is(err, app.ErrDocumentNotFound), errors.Is(err, app.ErrRunLockLost):
		logger.Info().Err(err).Msg("analysis job skipped")
		_ = d.Ack(false)
	default:
		logger.Error().Err(err).Msg("analysis job failed")
		_ = d.Ack(false)
	}
}

func (w *AnalysisWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
