// Package search runs catalog queries with per-session cancellation and caching.
package search

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"melodify/core/apperr"
	"melodify/logger"
	"melodify/model"
)

// MinQueryLength 少于该长度的查询直接返回空结果
const MinQueryLength = 2

// Func queries the catalog.
type Func func(ctx context.Context, query string) ([]*model.Song, error)

// Cache stores results by normalised query.
type Cache interface {
	Get(ctx context.Context, query string) ([]*model.Song, bool, error)
	Set(ctx context.Context, query string, songs []*model.Song) error
}

// Normalize 缓存键使用去空白的小写查询
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Cached wraps fn with cache. Cache failures are logged and the query falls through.
func Cached(fn Func, cache Cache) Func {
	return func(ctx context.Context, query string) ([]*model.Song, error) {
		key := Normalize(query)
		if songs, ok, err := cache.Get(ctx, key); err != nil {
			logger.Warn("[Search] Cache read failed", logger.String("query", key), logger.ErrorField(err))
		} else if ok {
			return songs, nil
		}

		songs, err := fn(ctx, query)
		if err != nil {
			return nil, err
		}
		if err := cache.Set(ctx, key, songs); err != nil {
			logger.Warn("[Search] Cache write failed", logger.String("query", key), logger.ErrorField(err))
		}
		return songs, nil
	}
}

// Session 同一搜索框内的查询序列。新查询取消仍在进行的旧查询，
// 旧查询的结果不会覆盖新查询。并发安全。
type Session struct {
	search Func

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewSession(fn Func) *Session {
	return &Session{search: fn}
}

// Search runs query, superseding any earlier one. A superseded query returns
// apperr.ErrCancelled. Queries shorter than MinQueryLength return no results.
func (s *Session) Search(ctx context.Context, query string) ([]*model.Song, error) {
	var out []*model.Song
	err := s.Deliver(ctx, query, func(songs []*model.Song) { out = songs })
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deliver 与 Search 相同，但在仍是最新查询时持锁调用 deliver，
// 旧查询的结果不会晚于新查询送达。deliver 不能阻塞，也不能回调 Session。
func (s *Session) Deliver(ctx context.Context, query string, deliver func([]*model.Song)) error {
	ctx, cancel, gen := s.begin(ctx)
	defer cancel()

	q := strings.TrimSpace(query)
	songs := []*model.Song{}
	var err error
	if utf8.RuneCountInString(q) >= MinQueryLength {
		songs, err = s.search(ctx, q)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return apperr.ErrCancelled
	}
	if err != nil {
		return err
	}
	deliver(songs)
	return nil
}

// Clear cancels the in-flight query, if any.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) begin(parent context.Context) (context.Context, context.CancelFunc, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.gen++
	s.cancel = cancel
	return ctx, cancel, s.gen
}
