package service

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/travel-availability/internal/queue"
)

// Publisher receives change events after a write has committed.
type Publisher interface {
	PublishUnavailabilityChanged(ctx context.Context, ev queue.UnavailabilityChangedEvent) error
}

// dialTimeout caps connection setup when the caller's context has no
// earlier deadline.
const dialTimeout = 5 * time.Second

// AMQPPublisher sends events to the unavailability.changed queue.  Each
// publish dials its own connection; writes are admin-driven and rare, so
// there is no long-lived channel to babysit.
type AMQPPublisher struct {
	URL string
	Log *log.Logger
}

// PublishUnavailabilityChanged publishes ev as a persistent JSON message.
// Any error is logged and returned so the caller can choose to ignore it.
func (p *AMQPPublisher) PublishUnavailabilityChanged(ctx context.Context, ev queue.UnavailabilityChangedEvent) error {
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      dialerFor(ctx),
	})
	if err != nil {
		p.Log.Warnf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Warnf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queue.UnavailabilityQueueName, // name
		true,                          // durable
		false,                         // autoDelete
		false,                         // exclusive
		false,                         // noWait
		nil,                           // args
	); err != nil {
		p.Log.Warnf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.UnavailabilityQueueName, false, false, pub); err != nil {
		p.Log.Warnf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}

// dialerFor bounds the TCP connect and the AMQP handshake by ctx.  The
// deadline is set on the socket because the handshake itself does not
// take a context.
func dialerFor(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		deadline := time.Now().Add(dialTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		dctx, cancel := context.WithDeadline(ctx, deadline)
		defer cancel()
		var d net.Dialer
		conn, err := d.DialContext(dctx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}
