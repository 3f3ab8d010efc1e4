// Package sqsqueue carries usage increments over an SQS queue so the API
// process never writes counters itself.
package sqsqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example/comment-search-api/app/models"
	"example/comment-search-api/usage"
)

// API is the subset of *sqs.Client used here.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Applier applies a queued increment at most once per message id. The
// account store satisfies it.
type Applier interface {
	IncrementUsageOnce(ctx context.Context, accountID, requestID string) (bool, error)
}

const (
	receiveBatch = 10
	applyTimeout = 10 * time.Second

	// A received batch stays hidden until every message in it has had its
	// full apply timeout, plus slack for the deletes.
	visibilityTimeout = int32(receiveBatch*applyTimeout/time.Second) + 30
)

var _ usage.Sink = (*Publisher)(nil)

// Publisher enqueues one message per increment.
type Publisher struct {
	client   API
	queueURL string
	now      func() time.Time
}

func NewPublisher(client API, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, now: time.Now}
}

func (p *Publisher) IncrementUsage(ctx context.Context, accountID string) error {
	if accountID == "" {
		return errors.New("sqsqueue: empty account id")
	}
	body, err := json.Marshal(models.UsageMessage{
		ID:        uuid.NewString(),
		AccountID: accountID,
		QueuedAt:  p.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("sqsqueue: marshal usage message: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sqsqueue: send usage message: %w", err)
	}
	return nil
}

// Consumer drains the queue into the account store. Redelivered messages
// are recognised by their id and only deleted.
type Consumer struct {
	client   API
	queueURL string
	sink     Applier
	log      logrus.FieldLogger

	// Backoff after a receive error or an empty poll.
	ErrorBackoff time.Duration
	IdleBackoff  time.Duration
}

func NewConsumer(client API, queueURL string, sink Applier, log logrus.FieldLogger) *Consumer {
	return &Consumer{
		client:       client,
		queueURL:     queueURL,
		sink:         sink,
		log:          log,
		ErrorBackoff: 5 * time.Second,
		IdleBackoff:  2 * time.Second,
	}
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.WithField("queue_url", c.queueURL).Info("usage consumer started")
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := c.PollOnce(ctx)
		switch {
		case err != nil:
			c.log.WithError(err).Error("receive usage messages failed")
			sleep(ctx, c.ErrorBackoff)
		case n == 0:
			sleep(ctx, c.IdleBackoff)
		}
	}
}

// PollOnce receives one batch and returns how many messages it saw.
// Applied and unparseable messages are deleted; messages whose increment
// failed stay on the queue for redelivery.
func (c *Consumer) PollOnce(ctx context.Context) (int, error) {
	recvCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	resp, err := c.client.ReceiveMessage(recvCtx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: receiveBatch,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   visibilityTimeout,
	})
	cancel()
	if err != nil {
		return 0, err
	}

	for _, m := range resp.Messages {
		c.handle(ctx, m)
	}
	return len(resp.Messages), nil
}

func (c *Consumer) handle(ctx context.Context, m sqstypes.Message) {
	if m.Body == nil {
		c.log.Warn("usage message with empty body")
		c.delete(ctx, m)
		return
	}

	var msg models.UsageMessage
	if err := json.Unmarshal([]byte(*m.Body), &msg); err != nil || msg.AccountID == "" || msg.ID == "" {
		c.log.WithField("body", *m.Body).Warn("dropping unparseable usage message")
		c.delete(ctx, m)
		return
	}

	log := c.log.WithFields(logrus.Fields{"message_id": msg.ID, "account_id": msg.AccountID})
	incCtx, cancel := context.WithTimeout(ctx, applyTimeout)
	applied, err := c.sink.IncrementUsageOnce(incCtx, msg.AccountID, msg.ID)
	cancel()
	if err != nil {
		log.WithError(err).Error("apply usage increment failed, leaving for redelivery")
		return
	}
	if applied {
		log.Debug("usage increment applied")
	} else {
		log.Info("duplicate usage message skipped")
	}
	c.delete(ctx, m)
}

func (c *Consumer) delete(ctx context.Context, m sqstypes.Message) {
	if m.ReceiptHandle == nil {
		return
	}
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		c.log.WithError(err).Error("delete usage message failed")
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
