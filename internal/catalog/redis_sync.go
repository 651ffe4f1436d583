package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	redisCatalogChannel = "streamgate:catalog:updates"
	redisCatalogTimeout = 5 * time.Second
)

type redisSyncState struct {
	mu     sync.RWMutex
	client *redis.Client
	ctx    context.Context
	cancel context.CancelFunc
	reload func(ctx context.Context) error
}

type catalogSyncEvent struct {
	Origin    string `json:"origin"`
	SourceID  uint64 `json:"source_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

var (
	globalRedisSync   redisSyncState
	catalogSyncNodeID = generateCatalogSyncNodeID()
)

// EnableRedisSynchronization wires catalog reloads to Redis pub/sub so every
// node republishes its in-memory view after another node refreshes a source.
// reload is called on foreign events and is expected to read the persisted
// channel sets and push them into the catalog.
func EnableRedisSynchronization(ctx context.Context, client *redis.Client, reload func(ctx context.Context) error) {
	if client == nil || reload == nil {
		log.Warn("Catalog sync disabled: redis client or reload hook is nil")
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	globalRedisSync.mu.Lock()
	if globalRedisSync.client != nil {
		globalRedisSync.mu.Unlock()
		return
	}

	syncCtx, cancel := context.WithCancel(ctx)
	globalRedisSync.client = client
	globalRedisSync.ctx = syncCtx
	globalRedisSync.cancel = cancel
	globalRedisSync.reload = reload
	globalRedisSync.mu.Unlock()

	go subscribeToCatalogUpdates(syncCtx, client)
}

func subscribeToCatalogUpdates(ctx context.Context, client *redis.Client) {
	pubsub := client.Subscribe(ctx, redisCatalogChannel)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) || ctx.Err() != nil {
				return
			}
			log.Error("Catalog sync: subscription error", "error", err)
			time.Sleep(time.Second)
			continue
		}

		var event catalogSyncEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Error("Catalog sync: invalid payload", "error", err)
			continue
		}

		if event.Origin == catalogSyncNodeID {
			continue
		}

		reload := catalogReloadHook()
		if reload == nil {
			continue
		}
		if err := reload(ctx); err != nil {
			log.Error("Catalog sync: reload failed", "source_id", event.SourceID, "error", err)
			continue
		}
		log.Debug("Catalog sync: reloaded after remote refresh", "source_id", event.SourceID, "reason", event.Reason)
	}
}

// BroadcastRefresh tells the other nodes that a source's channel set changed.
// A node without Redis configured is a silent no-op.
func BroadcastRefresh(ctx context.Context, sourceID uint64, reason string) error {
	client, baseCtx := catalogRedisClient()
	if client == nil {
		return nil
	}

	event := catalogSyncEvent{
		Origin:    catalogSyncNodeID,
		SourceID:  sourceID,
		Reason:    reason,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	merged := mergedContext(ctx, baseCtx)
	opCtx, cancel := redisTimeoutCtx(merged)
	defer cancel()

	return client.Publish(opCtx, redisCatalogChannel, payload).Err()
}

func catalogRedisClient() (*redis.Client, context.Context) {
	globalRedisSync.mu.RLock()
	defer globalRedisSync.mu.RUnlock()
	return globalRedisSync.client, globalRedisSync.ctx
}

func catalogReloadHook() func(ctx context.Context) error {
	globalRedisSync.mu.RLock()
	defer globalRedisSync.mu.RUnlock()
	return globalRedisSync.reload
}

func generateCatalogSyncNodeID() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}

func mergedContext(ctx context.Context, fallback context.Context) context.Context {
	switch {
	case ctx != nil && ctx.Err() == nil:
		return ctx
	case fallback != nil && fallback.Err() == nil:
		return fallback
	default:
		return context.Background()
	}
}

func redisTimeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if deadline, hasDeadline := ctx.Deadline(); hasDeadline && time.Until(deadline) <= redisCatalogTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, redisCatalogTimeout)
}
