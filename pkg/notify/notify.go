// Package notify delivers staff notifications outside the scheduling path.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/arnavshah/covers-scheduler-api/pkg/metrics"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender delivers a single notification
type Sender interface {
	Send(ctx context.Context, n models.Notification) error
}

// LogSender simulates SMS delivery by logging the message
type LogSender struct {
	log *zap.Logger
}

// NewLogSender creates a LogSender writing to log
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, n models.Notification) error {
	s.log.Info("[SIMULATED SMS]",
		zap.String("id", n.ID),
		zap.String("to", n.Phone),
		zap.String("role", string(n.Role)),
		zap.String("message", n.Message),
	)
	return nil
}

// Dispatcher hands notifications to a Sender on background workers so the
// caller never waits for delivery.
type Dispatcher struct {
	sender  Sender
	backend string
	log     *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan models.Notification
	wg     sync.WaitGroup
}

// NewDispatcher starts workers draining a queue of the given size
func NewDispatcher(sender Sender, backend string, workers, buffer int, log *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	d := &Dispatcher{
		sender:  sender,
		backend: backend,
		log:     log,
		timeout: 10 * time.Second,
		queue:   make(chan models.Notification, buffer),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.sender.Send(ctx, n)
		cancel()
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues(d.backend, "failed").Inc()
			d.log.Error("notification failed", zap.String("id", n.ID), zap.String("to", n.Phone), zap.Error(err))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(d.backend, "sent").Inc()
	}
}

// Dispatch queues notifications without blocking and returns how many were queued.
// Notifications that do not fit in the queue are dropped and logged.
func (d *Dispatcher) Dispatch(notes []models.Notification) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("dispatcher closed, dropping notifications", zap.Int("count", len(notes)))
		return 0
	}

	queued := 0
	for _, n := range notes {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		select {
		case d.queue <- n:
			queued++
		default:
			metrics.NotificationsTotal.WithLabelValues(d.backend, "dropped").Inc()
			d.log.Warn("notification queue full, dropping", zap.String("to", n.Phone))
		}
	}
	return queued
}

// Close stops accepting notifications and waits for queued ones to be sent
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}
