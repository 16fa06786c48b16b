package service

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/travel-availability/internal/logger"
	"github.com/iliyamo/travel-availability/internal/model"
	"github.com/iliyamo/travel-availability/internal/queue"
)

// silentBroker accepts TCP connections and never answers the AMQP
// handshake.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().String()
}

func TestAMQPPublisherHonoursContextDeadline(t *testing.T) {
	p := &AMQPPublisher{URL: "amqp://guest:guest@" + silentBroker(t) + "/", Log: logger.NewWithOutput("test", "OFF", io.Discard)}
	ev := queue.NewUnavailabilityChangedEvent(queue.ActionCreated, model.Unavailability{
		ID: 1, ReferenceID: 1, ReferenceType: model.ReferenceDriver, StartDatetime: day(1), EndDatetime: day(2),
	}, day(1))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	started := time.Now()
	err := p.PublishUnavailabilityChanged(ctx, ev)
	assert.Error(t, err)
	assert.Less(t, time.Since(started), 3*time.Second)
}

func TestDialerForRespectsCancelledContext(t *testing.T) {
	addr := silentBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dialerFor(ctx)("tcp", addr)
	assert.Error(t, err)
}
