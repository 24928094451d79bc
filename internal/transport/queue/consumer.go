package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/avetikov/GalleryWorker/internal/config"
	"github.com/avetikov/GalleryWorker/internal/domain"
)

// Processor handles one dequeued task.
type Processor interface {
	Process(ctx context.Context, task *domain.ProcessingTask) error
}

// Reconciler repairs gallery-level derived state after a processed batch.
type Reconciler interface {
	Reconcile(ctx context.Context, categoryID, galleryID string) error
}

// Consumer pulls task batches from the work queue with a pool of workers.
// Delivery is at-least-once: a message is deleted only after its item
// processed successfully, otherwise the visibility timeout re-exposes it.
type Consumer interface {
	Start(ctx context.Context, processor Processor, reconciler Reconciler) error
}

type consumer struct {
	client   *sqs.Client
	queueURL string
	cfg      config.QueueConfig
	logger   *slog.Logger
}

func NewConsumer(client *sqs.Client, queueURL string, cfg config.QueueConfig, logger *slog.Logger) Consumer {
	return &consumer{
		client:   client,
		queueURL: queueURL,
		cfg:      cfg,
		logger:   logger,
	}
}

// ResolveQueueURL looks the queue up by name. A missing queue is a process
// misconfiguration and callers are expected to exit on it.
func ResolveQueueURL(ctx context.Context, client *sqs.Client, name string) (string, error) {
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve queue %q: %w", name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

func (c *consumer) Start(ctx context.Context, processor Processor, reconciler Reconciler) error {
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c.run(ctx, worker, processor, reconciler)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

func (c *consumer) run(ctx context.Context, worker int, processor Processor, reconciler Reconciler) {
	logger := c.logger.With("worker", worker)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: int32(c.cfg.BatchSize),
			VisibilityTimeout:   int32(c.cfg.VisibilityTimeout.Seconds()),
			WaitTimeSeconds:     int32(c.cfg.WaitTime.Seconds()),
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to receive messages", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.WaitTime):
			}
			continue
		}
		if len(out.Messages) == 0 {
			continue
		}

		c.processBatch(ctx, logger, out.Messages, processor, reconciler)
	}
}

// processBatch processes each message independently and then runs one
// reconciliation per distinct gallery, not per image, so a burst of uploads
// into the same gallery does not trigger redundant repairs.
func (c *consumer) processBatch(ctx context.Context, logger *slog.Logger, messages []types.Message, processor Processor, reconciler Reconciler) {
	// gallery id -> category id (the gallery partition key)
	galleries := make(map[string]string)

	for _, msg := range messages {
		var task domain.ProcessingTask
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &task); err != nil {
			logger.Warn("dropping malformed message", "message_id", aws.ToString(msg.MessageId), "error", err)
			c.delete(ctx, logger, msg)
			continue
		}
		if err := task.Validate(); err != nil {
			logger.Warn("dropping invalid task", "message_id", aws.ToString(msg.MessageId), "error", err)
			c.delete(ctx, logger, msg)
			continue
		}

		if err := processor.Process(ctx, &task); err != nil {
			// Leave the message; the visibility timeout redelivers it.
			logger.Error("failed to process task",
				"task_id", task.TaskID, "image_id", task.ImageID, "gallery_id", task.GalleryID, "error", err)
			continue
		}

		c.delete(ctx, logger, msg)
		galleries[task.GalleryID] = task.CategoryID
	}

	for galleryID, categoryID := range galleries {
		if err := reconciler.Reconcile(ctx, categoryID, galleryID); err != nil {
			// Repair is idempotent; a later batch picks this up again.
			logger.Warn("gallery reconciliation failed", "gallery_id", galleryID, "error", err)
		}
	}
}

func (c *consumer) delete(ctx context.Context, logger *slog.Logger, msg types.Message) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		logger.Warn("failed to delete message", "message_id", aws.ToString(msg.MessageId), "error", err)
	}
}
