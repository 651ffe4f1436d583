package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"streamgate/internal/support"
)

const (
	InstanceHeartbeatKeyPrefix = "streamgate:instance:"
	DefaultHeartbeatInterval   = 15 * time.Second
	DefaultHeartbeatTTL        = 30 * time.Second
)

type ActiveInstance struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
	Port   int    `json:"port"`
}

var instanceID = generateInstanceID()

func generateInstanceID() string {
	if configured := strings.TrimSpace(support.GetInstanceID()); configured != "" {
		return configured
	}
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d", hostname, os.Getpid(), time.Now().UnixNano())
}

func currentInstancePayload(port int) ActiveInstance {
	return ActiveInstance{
		ID:     instanceID,
		Name:   support.GetInstanceName(),
		Region: support.GetInstanceRegion(),
		Port:   port,
	}
}

func CurrentInstance(port int) ActiveInstance {
	return currentInstancePayload(port)
}

func StartInstanceHeartbeat(ctx context.Context, client *redis.Client, keyPrefix string, port int, interval, ttl time.Duration) {
	if ctx == nil {
		ctx = context.Background()
	}
	heartbeatKey := keyPrefix + instanceID
	heartbeatValue, _ := json.Marshal(currentInstancePayload(port))

	sendHeartbeat := func() {
		if err := client.SetEx(ctx, heartbeatKey, heartbeatValue, ttl).Err(); err != nil {
			log.Error("Failed to update instance heartbeat", "key", heartbeatKey, "error", err)
		}
	}

	sendHeartbeat()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sendHeartbeat()
		}
	}
}

func LaunchInstanceHeartbeat(parent context.Context, client *redis.Client, port int) context.CancelFunc {
	ctx, cancel := context.WithCancel(parent)
	go StartInstanceHeartbeat(ctx, client, InstanceHeartbeatKeyPrefix, port, DefaultHeartbeatInterval, DefaultHeartbeatTTL)
	return cancel
}

func CountActiveInstances(ctx context.Context, client *redis.Client) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	keys, err := client.Keys(ctx, InstanceHeartbeatKeyPrefix+"*").Result()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func ListActiveInstances(ctx context.Context, client *redis.Client) ([]ActiveInstance, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	keys, err := client.Keys(ctx, InstanceHeartbeatKeyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []ActiveInstance{}, nil
	}

	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make([]ActiveInstance, 0, len(keys))
	for idx, key := range keys {
		instance := ActiveInstance{
			ID: strings.TrimPrefix(key, InstanceHeartbeatKeyPrefix),
		}
		if instance.ID == "" {
			continue
		}

		if idx < len(values) {
			if raw, ok := values[idx].(string); ok && strings.TrimSpace(raw) != "" {
				var payload ActiveInstance
				if err := json.Unmarshal([]byte(raw), &payload); err == nil {
					if strings.TrimSpace(payload.ID) != "" {
						instance.ID = strings.TrimSpace(payload.ID)
					}
					instance.Name = strings.TrimSpace(payload.Name)
					instance.Region = strings.TrimSpace(payload.Region)
					instance.Port = payload.Port
				}
			}
		}

		if instance.Name == "" {
			instance.Name = instance.ID
		}
		if instance.Region == "" {
			instance.Region = "Unknown"
		}

		result = append(result, instance)
	}

	return result, nil
}
