package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arnavshah/covers-scheduler-api/pkg/errs"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// confirmation resolves to the broker's ack or nack for one published message
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type publisher interface {
	publish(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error)
}

type channelPublisher struct {
	ch *amqp.Channel
}

func (p channelPublisher) publish(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error) {
	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("channel is not in confirm mode")
	}
	return dc, nil
}

// AMQPSender publishes notifications to a durable RabbitMQ queue and waits
// for the broker to confirm each one.
type AMQPSender struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	pub   publisher
	queue string
}

func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	return err
}

// DialAMQP connects, declares queue and enables publisher confirms
func DialAMQP(url, queue string) (*AMQPSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declare(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AMQPSender{conn: conn, ch: ch, pub: channelPublisher{ch: ch}, queue: queue}, nil
}

// Publishing builds the message for a notification
func Publishing(n models.Notification) (amqp.Publishing, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    n.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}

// Send publishes n and waits for the confirm of that message
func (s *AMQPSender) Send(ctx context.Context, n models.Notification) error {
	msg, err := Publishing(n)
	if err != nil {
		return err
	}

	conf, err := s.pub.publish(ctx, s.queue, msg)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrNotifyFailed, err)
	}
	ack, err := conf.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ack {
		return fmt.Errorf("%w: publish NACK from broker", errs.ErrNotifyFailed)
	}
	return nil
}

// Close closes the channel and connection
func (s *AMQPSender) Close() {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// DecodeDelivery parses a message body produced by Publishing
func DecodeDelivery(body []byte) (models.Notification, error) {
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return n, err
	}
	if n.Phone == "" {
		return n, errors.New("notification without phone")
	}
	return n, nil
}

// ConsumeAMQP delivers every message on queue through sender until ctx ends.
// Undecodable messages are rejected without requeue; failed sends are requeued once.
func ConsumeAMQP(ctx context.Context, url, queue string, sender Sender, log *zap.Logger) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := declare(ch, queue); err != nil {
		return err
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return err
	}
	deliveries, err := ch.Consume(queue, "notifier", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			n, err := DecodeDelivery(d.Body)
			if err != nil {
				log.Warn("rejecting malformed notification", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			if err := sender.Send(ctx, n); err != nil {
				log.Error("notification send failed", zap.String("id", n.ID), zap.Error(err))
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
