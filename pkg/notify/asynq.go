package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arnavshah/covers-scheduler-api/pkg/errs"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"github.com/hibiken/asynq"
)

// TypeSendSMS is the asynq task type carrying one notification
const TypeSendSMS = "notify:sms"

// NewSMSTask wraps a notification in an asynq task
func NewSMSTask(n models.Notification) (*asynq.Task, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSendSMS, payload, asynq.MaxRetry(3)), nil
}

// AsynqSender enqueues notifications as asynq tasks on Redis
type AsynqSender struct {
	client *asynq.Client
}

// NewAsynqSender creates a sender for the given Redis connection options
func NewAsynqSender(opt asynq.RedisClientOpt) *AsynqSender {
	return &AsynqSender{client: asynq.NewClient(opt)}
}

func (s *AsynqSender) Send(ctx context.Context, n models.Notification) error {
	task, err := NewSMSTask(n)
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrNotifyFailed, err)
	}
	return nil
}

// Close releases the Redis connection
func (s *AsynqSender) Close() error {
	return s.client.Close()
}

// HandleSMSTask delivers queued notifications through sender
func HandleSMSTask(sender Sender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		n, err := DecodeDelivery(t.Payload())
		if err != nil {
			return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
		}
		return sender.Send(ctx, n)
	}
}
