package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"melodify/model"

	"github.com/go-redis/redis/v8"
)

const recentSongsKey = "recent:%s" // Sorted Set: songID -> playedAt (ms)

// RecentCache 最近播放记录存储
type RecentCache struct {
	client *redis.Client
}

func NewRecentCache(client *redis.Client) *RecentCache {
	return &RecentCache{client: client}
}

// Load returns the user's entries, newest first.
func (c *RecentCache) Load(ctx context.Context, userID string) ([]model.RecentEntry, error) {
	if c.client == nil {
		return nil, errNoClient
	}

	key := fmt.Sprintf(recentSongsKey, userID)
	members, err := c.client.ZRevRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load recent songs: %w", err)
	}
	return toRecentEntries(members), nil
}

// Push 在一个 MULTI 中写入一条记录并截断，不需要先读取。
// ZADD 对已存在的歌曲只更新分数，因此不会产生重复。
func (c *RecentCache) Push(ctx context.Context, userID string, entry model.RecentEntry, limit int) ([]model.RecentEntry, error) {
	if c.client == nil {
		return nil, errNoClient
	}

	key := fmt.Sprintf(recentSongsKey, userID)
	var members *redis.ZSliceCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, &redis.Z{
			Score:  float64(entry.PlayedAt.UnixMilli()),
			Member: strconv.FormatInt(entry.SongID, 10),
		})
		pipe.ZRemRangeByRank(ctx, key, 0, -int64(limit)-1)
		members = pipe.ZRevRangeWithScores(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save recent songs: %w", err)
	}
	return toRecentEntries(members.Val()), nil
}

func toRecentEntries(members []redis.Z) []model.RecentEntry {
	entries := make([]model.RecentEntry, 0, len(members))
	for _, z := range members {
		member, _ := z.Member.(string)
		songID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue // 非法成员直接跳过
		}
		entries = append(entries, model.RecentEntry{
			SongID:   songID,
			PlayedAt: time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return entries
}
