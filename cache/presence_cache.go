package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	presenceActivityKey = "presence:activity"  // Hash: userID -> activity
	presenceOnlineKey   = "presence:online:%s" // String: 用户在线心跳
	presenceTTL         = 60 * time.Second     // 心跳过期时间 60秒
)

// PresenceCache 用户在线状态与正在收听的内容
type PresenceCache struct {
	client *redis.Client
}

func NewPresenceCache(client *redis.Client) *PresenceCache {
	return &PresenceCache{client: client}
}

// SetActivity records what the user is listening to and refreshes the heartbeat.
func (c *PresenceCache) SetActivity(ctx context.Context, userID, activity string) error {
	if c.client == nil {
		return errNoClient
	}
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, presenceActivityKey, userID, activity)
	pipe.Set(ctx, fmt.Sprintf(presenceOnlineKey, userID), "1", presenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Touch 刷新心跳
func (c *PresenceCache) Touch(ctx context.Context, userID string) error {
	if c.client == nil {
		return errNoClient
	}
	return c.client.Set(ctx, fmt.Sprintf(presenceOnlineKey, userID), "1", presenceTTL).Err()
}

// Remove 用户下线
func (c *PresenceCache) Remove(ctx context.Context, userID string) error {
	if c.client == nil {
		return errNoClient
	}
	pipe := c.client.Pipeline()
	pipe.HDel(ctx, presenceActivityKey, userID)
	pipe.Del(ctx, fmt.Sprintf(presenceOnlineKey, userID))
	_, err := pipe.Exec(ctx)
	return err
}

// Activities returns the activity of every user whose heartbeat has not expired.
func (c *PresenceCache) Activities(ctx context.Context) (map[string]string, error) {
	if c.client == nil {
		return nil, errNoClient
	}
	all, err := c.client.HGetAll(ctx, presenceActivityKey).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(all))
	for userID, activity := range all {
		n, err := c.client.Exists(ctx, fmt.Sprintf(presenceOnlineKey, userID)).Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out[userID] = activity
		}
	}
	return out, nil
}
