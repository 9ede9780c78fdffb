// Package history keeps each user's recently played songs.
package history

import (
	"context"
	"time"

	"melodify/core/apperr"
	"melodify/logger"
	"melodify/model"
)

// MaxEntries 每个用户保留的最近播放条数
const MaxEntries = 50

// Store persists the ordered entry list of a user, newest first.
// Push must be atomic: it replaces any entry for the same song, keeps the
// limit newest entries and returns the resulting list.
type Store interface {
	Load(ctx context.Context, userID string) ([]model.RecentEntry, error)
	Push(ctx context.Context, userID string, entry model.RecentEntry, limit int) ([]model.RecentEntry, error)
}

// SongResolver 曲库查询，歌曲不存在时返回 nil, nil
type SongResolver interface {
	GetByID(ctx context.Context, id int64) (*model.Song, error)
}

// UserChecker reports whether a user exists.
type UserChecker interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// Log 最近播放记录
type Log struct {
	store Store
	songs SongResolver
	users UserChecker
}

// Option configures a Log.
type Option func(*Log)

// WithUserCheck makes Record and List fail with NotFound for unknown users.
func WithUserCheck(users UserChecker) Option {
	return func(l *Log) { l.users = users }
}

func New(store Store, songs SongResolver, opts ...Option) *Log {
	l := &Log{store: store, songs: songs}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record moves songID to the front of the user's history, stamped with at.
func (l *Log) Record(ctx context.Context, userID string, songID int64, at time.Time) ([]model.RecentEntry, error) {
	if songID <= 0 {
		return nil, apperr.Validation("Song ID is required")
	}
	if err := l.checkUser(ctx, userID); err != nil {
		return nil, err
	}

	next, err := l.store.Push(ctx, userID, model.RecentEntry{SongID: songID, PlayedAt: at}, MaxEntries)
	if err != nil {
		logger.Error("[Recent] Failed to save recent songs",
			logger.String("userId", userID),
			logger.Int64("songId", songID),
			logger.ErrorField(err))
		return nil, apperr.Upstream("save recent songs", err)
	}
	return next, nil
}

// List resolves the user's history into songs, dropping entries whose song is gone.
func (l *Log) List(ctx context.Context, userID string) ([]model.RecentSong, error) {
	if err := l.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	entries, err := l.store.Load(ctx, userID)
	if err != nil {
		return nil, apperr.Upstream("load recent songs", err)
	}

	out := make([]model.RecentSong, 0, len(entries))
	for _, e := range entries {
		song, err := l.songs.GetByID(ctx, e.SongID)
		if err != nil {
			return nil, apperr.Upstream("resolve recent song", err)
		}
		if song == nil {
			continue
		}
		out = append(out, model.RecentSong{Song: *song, PlayedAt: e.PlayedAt})
	}
	return out, nil
}

// Prepend 去重后插入到最前，并截断到 limit 条。供内存实现的 Store 使用
func Prepend(entries []model.RecentEntry, entry model.RecentEntry, limit int) []model.RecentEntry {
	out := make([]model.RecentEntry, 0, len(entries)+1)
	out = append(out, entry)
	for _, e := range entries {
		if e.SongID == entry.SongID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out
}

func (l *Log) checkUser(ctx context.Context, userID string) error {
	if l.users == nil {
		return nil
	}
	ok, err := l.users.Exists(ctx, userID)
	if err != nil {
		return apperr.Upstream("load user", err)
	}
	if !ok {
		return apperr.NotFound("User not found")
	}
	return nil
}
