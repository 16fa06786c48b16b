package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventLogFile is the file name the consumer appends to inside its log dir.
const EventLogFile = "unavailability.log"

// Consumer listens to the unavailability.changed queue and appends one
// line per event to <LogDir>/unavailability.log.
type Consumer struct {
	URL    string
	LogDir string
	Log    *log.Logger
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes
// until ctx is cancelled.  Lost connections are retried with exponential
// backoff capped at 30s.  Messages that cannot be handled are rejected
// without requeue so one bad payload cannot wedge the queue.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warnf("event-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warnf("event-consumer: consume loop ended: %v; reconnecting", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warnf("event-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(UnavailabilityQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(UnavailabilityQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := AppendEvent(c.LogDir, d.Body); err != nil {
				c.Log.Errorf("event-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// AppendEvent decodes body and appends its log line under dir.
func AppendEvent(dir string, body []byte) error {
	var ev UnavailabilityChangedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.UnavailabilityID == 0 || ev.Action == "" {
		return errors.New("event missing action or unavailability_id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, EventLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatEvent(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatEvent renders ev as a single newline-terminated line.
func FormatEvent(ev UnavailabilityChangedEvent) string {
	reason := ""
	if ev.Reason != nil {
		reason = *ev.Reason
	}
	return fmt.Sprintf("[%s] Unavailability %s | id=%d | reference=%s:%d | start=%s | end=%s | reason=%q\n",
		ev.OccurredAt, ev.Action, ev.UnavailabilityID, ev.ReferenceType, ev.ReferenceID,
		ev.StartDatetime, ev.EndDatetime, reason)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
