package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"github.com/avetikov/GalleryWorker/internal/domain"
)

// Producer enqueues processing tasks; used by the ops reprocess endpoint.
type Producer interface {
	SendTask(ctx context.Context, task *domain.ProcessingTask) error
}

// sqsSender is the slice of the queue client the producer needs.
type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type producer struct {
	client   sqsSender
	queueURL string
}

func NewProducer(client sqsSender, queueURL string) Producer {
	return &producer{client: client, queueURL: queueURL}
}

func (p *producer) SendTask(ctx context.Context, task *domain.ProcessingTask) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	if task.TaskID == "" {
		task.TaskID = uuid.New().String()
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(data)),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
