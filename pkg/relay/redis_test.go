package relay

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func requireRedisClient(tb testing.TB) redis.UniversalClient {
	tb.Helper()

	addr := os.Getenv("KLAXON_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancelFn := context.WithTimeout(context.Background(), time.Second)
	defer cancelFn()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		tb.Skipf("redis is not available at %s: %v", addr, err)
	}

	tb.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestRedis_PublishAcrossRelays(t *testing.T) {
	client := requireRedisClient(t)
	prefix := fmt.Sprintf("klaxon:test:cancel:%d:", time.Now().UnixNano())

	pub := NewRedis(client, prefix)
	defer pub.Close()
	sub := NewRedis(client, prefix)
	defer sub.Close()

	b, err := sub.Bind(context.Background(), "remote-op")
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	st := b.NewState()

	// Give the subscription loop a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	err = pub.Publish(context.Background(), &Request{
		OperationID: "remote-op",
		Reason:      "deadline exceeded",
		Origin:      "node-2",
		SentAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for !b.Cancelled(st) {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for remote cancellation")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRedis_ReleaseStopsDelivery(t *testing.T) {
	client := requireRedisClient(t)
	prefix := fmt.Sprintf("klaxon:test:cancel:%d:", time.Now().UnixNano())

	r := NewRedis(client, prefix)
	defer r.Close()

	b, err := r.Bind(context.Background(), "op-1")
	if err != nil {
		t.Fatal(err)
	}
	st := b.NewState()

	if err := r.Release("op-1"); err != nil {
		t.Fatal(err)
	}

	if err := r.Publish(context.Background(), &Request{OperationID: "op-1", SentAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if b.Cancelled(st) {
		t.Error("released binding must not receive cancellations")
	}
}

func TestRedis_ClosedRelayRejectsOperations(t *testing.T) {
	client := requireRedisClient(t)
	r := NewRedis(client, "")

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if r.Healthy() {
		t.Error("closed relay must be unhealthy")
	}
	if _, err := r.Bind(context.Background(), "op-1"); err == nil {
		t.Error("expected error binding on closed relay")
	}
	if err := r.Publish(context.Background(), &Request{OperationID: "op-1", SentAt: time.Now()}); err == nil {
		t.Error("expected error publishing on closed relay")
	}
}
