package player

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodify/cache"
	"melodify/core/history"
	"melodify/model"
)

type songCatalog map[int64]*model.Song

func (c songCatalog) GetByID(_ context.Context, id int64) (*model.Song, error) {
	return c[id], nil
}

func newRedisHistory(t *testing.T, songs []*model.Song) *history.Log {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	catalog := songCatalog{}
	for _, s := range songs {
		catalog[s.ID] = s
	}
	return history.New(cache.NewRecentCache(client), catalog)
}

func recentIDs(t *testing.T, log *history.Log, userID string) []int64 {
	t.Helper()
	recent, err := log.List(context.Background(), userID)
	require.NoError(t, err)
	ids := make([]int64, 0, len(recent))
	for _, r := range recent {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestRapidTrackChangesKeepEveryPlay(t *testing.T) {
	songs := makeSongs("A", "B", "C", "D", "E")
	log := newRedisHistory(t, songs)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for round := 0; round < 20; round++ {
		userID := fmt.Sprintf("user_%d", round)
		s := NewSession(userID, WithHistory(log), WithClock(func() time.Time { return fixed }))

		_, err := s.PlayFrom(songs, 0)
		require.NoError(t, err)
		for i := 0; i < 4; i++ {
			require.True(t, s.Next())
		}
		s.Wait()

		assert.Equal(t, []int64{5, 4, 3, 2, 1}, recentIDs(t, log, userID), "round %d", round)
	}
}

func TestReplayMovesSongToFront(t *testing.T) {
	songs := makeSongs("A", "B")
	log := newRedisHistory(t, songs)
	s := NewSession("user_1", WithHistory(log))

	_, err := s.PlayFrom(songs, 0)
	require.NoError(t, err)
	require.True(t, s.Next())
	_, err = s.JumpTo(0)
	require.NoError(t, err)
	s.Wait()

	assert.Equal(t, []int64{1, 2}, recentIDs(t, log, "user_1"))
}

func TestHistoryWritesFollowPlayOrder(t *testing.T) {
	h := &fakeHistory{}
	s, _ := newTestSession(h)

	_, err := s.PlayFrom(numberedSongs(8), 0)
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		require.True(t, s.Next())
	}
	s.Wait()

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, h.songIDs())

	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 1; i < len(h.calls); i++ {
		assert.True(t, h.calls[i].at.After(h.calls[i-1].at))
	}
}
