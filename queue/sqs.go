// Package queue publishes and consumes JSON jobs on SQS.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// ErrPoison marks a message that can never succeed. It is deleted instead of retried.
var ErrPoison = errors.New("queue: unprocessable message")

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Publisher struct {
	client   SQSAPI
	queueURL string
}

func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

// Publish sends job as a JSON message body.
func (p *Publisher) Publish(ctx context.Context, job any) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// Consumer long-polls a queue and hands each message to a Handler.
type Consumer struct {
	client     SQSAPI
	queueURL   string
	handle     Handler
	jobTimeout time.Duration
	idleSleep  time.Duration
	errSleep   time.Duration
}

func NewConsumer(client SQSAPI, queueURL string, handle Handler) *Consumer {
	return &Consumer{
		client:     client,
		queueURL:   queueURL,
		handle:     handle,
		jobTimeout: 2 * time.Minute,
		idleSleep:  2 * time.Second,
		errSleep:   5 * time.Second,
	}
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("worker started", "queue", c.queueURL)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := c.Poll(ctx)
		switch {
		case err != nil:
			slog.Error("receive message failed", "error", err)
			sleep(ctx, c.errSleep)
		case n == 0:
			sleep(ctx, c.idleSleep)
		}
	}
}

// Poll receives one batch and processes it. It returns the number of messages received.
// Failed messages are left on the queue to reappear after the visibility timeout;
// successful and poison messages are deleted.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	recvCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	resp, err := c.client.ReceiveMessage(recvCtx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 5,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   180,
	})
	cancel()
	if err != nil {
		return 0, err
	}

	for _, m := range resp.Messages {
		if m.Body == nil {
			slog.Warn("received message with empty body, deleting", "message_id", aws.ToString(m.MessageId))
			c.delete(ctx, m)
			continue
		}
		jobCtx, jobCancel := context.WithTimeout(ctx, c.jobTimeout)
		err := c.handle(jobCtx, []byte(*m.Body))
		jobCancel()

		switch {
		case errors.Is(err, ErrPoison):
			slog.Warn("dropping unprocessable message", "message_id", aws.ToString(m.MessageId), "error", err)
			c.delete(ctx, m)
		case err != nil:
			slog.Error("job failed, leaving for retry", "message_id", aws.ToString(m.MessageId), "error", err)
		default:
			c.delete(ctx, m)
		}
	}
	return len(resp.Messages), nil
}

func (c *Consumer) delete(ctx context.Context, m sqstypes.Message) {
	if m.ReceiptHandle == nil {
		return
	}
	_, err := c.client.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		slog.Error("failed to delete SQS message", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
