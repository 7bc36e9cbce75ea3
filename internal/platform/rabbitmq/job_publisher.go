package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrInvalidJob = errors.New("invalid analysis job")

// AnalysisJob asks a worker to run the analysis pipeline for one document.
type AnalysisJob struct {
	DocumentID uint `json:"document_id"`
}

func DecodeAnalysisJob(body []byte) (AnalysisJob, error) {
	var job AnalysisJob
	if err := json.Unmarshal(body, &job); err != nil {
		return AnalysisJob{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if job.DocumentID == 0 {
		return AnalysisJob{}, fmt.Errorf("%w: missing document_id", ErrInvalidJob)
	}
	return job, nil
}

// DeclareQueue declares the durable queue shared by publisher and worker.
func DeclareQueue(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}
	return nil
}

type JobPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewJobPublisher(conn *amqp.Connection, queueName string) *JobPublisher {
	return &JobPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *JobPublisher) PublishAnalysis(ctx context.Context, documentID uint) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(AnalysisJob{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("marshal analysis job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish analysis job failed: %w", err)
	}
	return nil
}
