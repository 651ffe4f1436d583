package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHeartbeatRegistersInstance(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	ctx := context.Background()
	StartInstanceHeartbeatOnce(t, ctx, client, 5051)

	count, err := CountActiveInstances(ctx, client)
	if err != nil {
		t.Fatalf("CountActiveInstances: %v", err)
	}
	if count != 1 {
		t.Fatalf("active instances = %d, want 1", count)
	}

	instances, err := ListActiveInstances(ctx, client)
	if err != nil {
		t.Fatalf("ListActiveInstances: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("instances = %+v, want one entry", instances)
	}
	if instances[0].ID != instanceID || instances[0].Port != 5051 {
		t.Fatalf("instance = %+v, want this node's payload", instances[0])
	}
}

func TestHeartbeatExpires(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	ctx := context.Background()
	StartInstanceHeartbeatOnce(t, ctx, client, 5051)

	server.FastForward(DefaultHeartbeatTTL + time.Second)

	count, err := CountActiveInstances(ctx, client)
	if err != nil {
		t.Fatalf("CountActiveInstances: %v", err)
	}
	if count != 0 {
		t.Fatalf("active instances = %d, want the stale key expired", count)
	}
}

// StartInstanceHeartbeatOnce sends a single heartbeat without the ticker loop.
func StartInstanceHeartbeatOnce(t *testing.T, ctx context.Context, client *redis.Client, port int) {
	t.Helper()
	heartbeatCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		StartInstanceHeartbeat(heartbeatCtx, client, InstanceHeartbeatKeyPrefix, port, time.Hour, DefaultHeartbeatTTL)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		count, err := CountActiveInstances(ctx, client)
		if err == nil && count > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("heartbeat never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
}
