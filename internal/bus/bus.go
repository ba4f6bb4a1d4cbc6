// Package bus adapts Redis into the three message paths the agent uses: the
// provisioning work queue (a list popped without blocking), the operation
// channel (pub/sub), and the upstream list every outcome, event, heartbeat
// and forwarded log line is pushed onto.
package bus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client for the given address.
func NewClient(addr, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping checks that the Redis server is reachable.
func Ping(ctx context.Context, client *backend.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Queue is the provisioning work queue.
type Queue struct {
	client *backend.Client
	key    string
}

// NewQueue creates a Queue reading from the list at key.
func NewQueue(client *backend.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

// Pop removes and returns the head of the queue without blocking.
// It returns nil, nil when the queue is empty.
func (q *Queue) Pop(ctx context.Context) ([]byte, error) {
	data, err := q.client.LPop(ctx, q.key).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from %s: %w", q.key, err)
	}
	return data, nil
}

// Channel is the operation channel subscription.
type Channel struct {
	pubsub  *backend.PubSub
	name    string
	timeout time.Duration
}

// Subscribe subscribes to the named channel. Receive waits at most timeout
// for each message.
func Subscribe(ctx context.Context, client *backend.Client, name string, timeout time.Duration) (*Channel, error) {
	pubsub := client.Subscribe(ctx, name)

	// Wait for the subscription confirmation so messages published right
	// after Subscribe returns are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", name, err)
	}

	return &Channel{pubsub: pubsub, name: name, timeout: timeout}, nil
}

// Receive returns the next message payload. It returns nil, nil when the
// timeout expires or the next item is not a data message.
func (c *Channel) Receive(ctx context.Context) ([]byte, error) {
	msg, err := c.pubsub.ReceiveTimeout(ctx, c.timeout)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to receive from %s: %w", c.name, err)
	}

	m, ok := msg.(*backend.Message)
	if !ok {
		return nil, nil
	}
	return []byte(m.Payload), nil
}

// Close unsubscribes and releases the connection.
func (c *Channel) Close() error {
	return c.pubsub.Close()
}
