package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/pkg/logger"
)

// KafkaConfig holds broker settings for batch jobs
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaDispatcher publishes batch jobs to a topic for remote workers
type KafkaDispatcher struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaDispatcher creates a dispatcher writing to cfg.Topic
func NewKafkaDispatcher(cfg KafkaConfig, log *logger.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
		},
		log: log.WithComponent("kafka-dispatcher"),
	}
}

// Dispatch publishes job keyed by its ID
func (d *KafkaDispatcher) Dispatch(ctx context.Context, job models.BatchJob) error {
	msg, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish batch %s: %w", job.ID, err)
	}
	d.log.Debug().Str("batch_id", job.ID).Int("feeds", len(job.FeedIDs)).Msg("Batch published")
	return nil
}

// Close flushes and closes the writer
func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

// Consumer reads batch jobs from Kafka and processes them. Offsets are
// committed only after a batch has been processed.
type Consumer struct {
	reader    *kafka.Reader
	processor BatchProcessor
	log       *logger.Logger
}

// NewConsumer creates a consumer in cfg.GroupID
func NewConsumer(cfg KafkaConfig, processor BatchProcessor, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	return &Consumer{
		reader:    reader,
		processor: processor,
		log:       log.WithComponent("kafka-consumer"),
	}
}

// Run consumes jobs until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Str("topic", c.reader.Config().Topic).Str("group", c.reader.Config().GroupID).Msg("Consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.log.Info().Msg("Consumer stopping")
				return nil
			}
			c.log.Error().Err(err).Msg("Failed to fetch message")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		if err := handleMessage(ctx, c.processor, msg, c.log); err != nil {
			c.log.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Dropping undecodable batch message")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit message")
		}
	}
}

// Close closes the reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func handleMessage(ctx context.Context, processor BatchProcessor, msg kafka.Message, log *logger.Logger) error {
	job, err := decodeJob(msg)
	if err != nil {
		return err
	}

	results := processor.ProcessBatch(ctx, job.FeedIDs)

	failed := 0
	for _, r := range results {
		if r != nil && r.Failed() {
			failed++
		}
	}
	log.WithBatch(job.ID).Info().
		Int("feeds", len(job.FeedIDs)).
		Int("failed", failed).
		Msg("Batch consumed")
	return nil
}

func encodeJob(job models.BatchJob) (kafka.Message, error) {
	value, err := json.Marshal(job)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode batch %s: %w", job.ID, err)
	}
	return kafka.Message{
		Key:   []byte(job.ID),
		Value: value,
		Time:  job.CreatedAt,
	}, nil
}

func decodeJob(msg kafka.Message) (models.BatchJob, error) {
	var job models.BatchJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return job, fmt.Errorf("decode batch message: %w", err)
	}
	if len(job.FeedIDs) == 0 {
		return job, errors.New("batch message has no feed ids")
	}
	return job, nil
}
