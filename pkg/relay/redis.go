package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis Pub/Sub-backed Relay. Each bound operation subscribes
// to its own channel; a publish from any node reaches the node that owns
// the binding, where the request is emitted locally.
type Redis struct {
	client        redis.UniversalClient
	channelPrefix string

	mu            sync.RWMutex
	subscriptions map[string]*redisSubscription
	closed        bool
}

type redisSubscription struct {
	binding *Binding
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
}

// NewRedis creates a Redis-backed relay. channelPrefix defaults to
// "klaxon:cancel:".
func NewRedis(client redis.UniversalClient, channelPrefix string) *Redis {
	if channelPrefix == "" {
		channelPrefix = "klaxon:cancel:"
	}
	return &Redis{
		client:        client,
		channelPrefix: channelPrefix,
		subscriptions: make(map[string]*redisSubscription),
	}
}

// Bind creates a root signal binding for the operation and subscribes to
// its cancellation channel.
func (r *Redis) Bind(ctx context.Context, opID string) (*Binding, error) {
	if opID == "" {
		return nil, fmt.Errorf("operation id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("relay is closed")
	}
	if _, exists := r.subscriptions[opID]; exists {
		return nil, fmt.Errorf("operation %s already bound", opID)
	}

	pubsub := r.client.Subscribe(ctx, r.channelPrefix+opID)
	subCtx, cancelFn := context.WithCancel(context.Background())

	sub := &redisSubscription{
		binding: newBinding(),
		pubsub:  pubsub,
		cancel:  cancelFn,
	}
	r.subscriptions[opID] = sub
	metricsRecorder().RecordBindings("redis", len(r.subscriptions))

	go r.forward(subCtx, sub)

	return sub.binding, nil
}

// forward drains pub/sub messages for one binding and emits locally.
func (r *Redis) forward(ctx context.Context, sub *redisSubscription) {
	defer func() {
		_ = sub.pubsub.Close()
	}()

	ch := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var req Request
			if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
				metricsRecorder().RecordFailed("redis", "unmarshal_failed")
				continue
			}
			sub.binding.Emit()
			metricsRecorder().RecordDelivered("redis")
		}
	}
}

// Publish sends a cancellation request over Redis Pub/Sub. Requests to
// channels with no subscriber are dropped by Redis, matching the local
// relay's silent-drop behavior for unknown operations.
func (r *Redis) Publish(ctx context.Context, req *Request) error {
	if req == nil {
		metricsRecorder().RecordFailed("redis", "nil_request")
		return fmt.Errorf("request cannot be nil")
	}
	if req.OperationID == "" {
		metricsRecorder().RecordFailed("redis", "empty_operation_id")
		return fmt.Errorf("request operation_id cannot be empty")
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		metricsRecorder().RecordFailed("redis", "relay_closed")
		return fmt.Errorf("relay is closed")
	}
	r.mu.RUnlock()

	data, err := json.Marshal(req)
	if err != nil {
		metricsRecorder().RecordFailed("redis", "marshal_failed")
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := r.client.Publish(ctx, r.channelPrefix+req.OperationID, data).Err(); err != nil {
		metricsRecorder().RecordFailed("redis", "publish_failed")
		return err
	}
	metricsRecorder().RecordPublished("redis")
	return nil
}

// Release unsubscribes and closes the binding for the given operation ID.
func (r *Redis) Release(opID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subscriptions[opID]
	if !ok {
		return nil
	}

	sub.cancel()
	sub.binding.Close()
	delete(r.subscriptions, opID)
	metricsRecorder().RecordBindings("redis", len(r.subscriptions))
	return nil
}

// Close shuts down the relay, cancelling all subscriptions and closing
// all bindings. The Redis client itself is owned by the caller.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	for opID, sub := range r.subscriptions {
		sub.cancel()
		sub.binding.Close()
		delete(r.subscriptions, opID)
	}
	metricsRecorder().RecordBindings("redis", 0)
	return nil
}

// Healthy returns true if the relay is open and Redis answers a ping.
func (r *Redis) Healthy() bool {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return false
	}
	return r.client.Ping(context.Background()).Err() == nil
}
