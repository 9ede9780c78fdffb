package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"melodify/model"

	"github.com/go-redis/redis/v8"
)

const (
	searchResultKey = "search:%s"
	searchResultTTL = 10 * time.Minute
)

// SearchCache 搜索结果缓存，键为规范化后的查询
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSearchCache(client *redis.Client) *SearchCache {
	return &SearchCache{client: client, ttl: searchResultTTL}
}

func (c *SearchCache) Get(ctx context.Context, query string) ([]*model.Song, bool, error) {
	if c.client == nil {
		return nil, false, errNoClient
	}

	data, err := c.client.Get(ctx, fmt.Sprintf(searchResultKey, query)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var songs []*model.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal search results: %w", err)
	}
	return songs, true, nil
}

func (c *SearchCache) Set(ctx context.Context, query string, songs []*model.Song) error {
	if c.client == nil {
		return errNoClient
	}
	if songs == nil {
		songs = []*model.Song{}
	}
	data, err := json.Marshal(songs)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}
	return c.client.Set(ctx, fmt.Sprintf(searchResultKey, query), data, c.ttl).Err()
}

// Invalidate 曲库变化后清空所有搜索缓存
func (c *SearchCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return errNoClient
	}
	iter := c.client.Scan(ctx, 0, fmt.Sprintf(searchResultKey, "*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
