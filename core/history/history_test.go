package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodify/core/apperr"
	"melodify/model"
)

type memoryStore struct {
	data    map[string][]model.RecentEntry
	saveErr error
}

func (m *memoryStore) Load(_ context.Context, userID string) ([]model.RecentEntry, error) {
	return append([]model.RecentEntry(nil), m.data[userID]...), nil
}

func (m *memoryStore) Push(_ context.Context, userID string, entry model.RecentEntry, limit int) ([]model.RecentEntry, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.data[userID] = Prepend(m.data[userID], entry, limit)
	return m.data[userID], nil
}

type catalog map[int64]*model.Song

func (c catalog) GetByID(_ context.Context, id int64) (*model.Song, error) {
	return c[id], nil
}

type knownUsers map[string]bool

func (k knownUsers) Exists(_ context.Context, userID string) (bool, error) {
	return k[userID], nil
}

func newLog() (*Log, *memoryStore, catalog) {
	store := &memoryStore{data: map[string][]model.RecentEntry{}}
	songs := catalog{}
	for i := int64(1); i <= 60; i++ {
		songs[i] = &model.Song{ID: i, Title: "song"}
	}
	return New(store, songs), store, songs
}

func TestRecordDeduplicates(t *testing.T) {
	log, store, _ := newLog()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := log.Record(ctx, "u1", 5, t0)
	require.NoError(t, err)
	_, err = log.Record(ctx, "u1", 6, t0.Add(time.Minute))
	require.NoError(t, err)
	entries, err := log.Record(ctx, "u1", 5, t0.Add(2*time.Minute))
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, model.RecentEntry{SongID: 5, PlayedAt: t0.Add(2 * time.Minute)}, entries[0])
	assert.Equal(t, int64(6), entries[1].SongID)
	assert.Equal(t, entries, store.data["u1"])
}

func TestRecordKeepsFiftyNewest(t *testing.T) {
	log, store, _ := newLog()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 51; i++ {
		_, err := log.Record(ctx, "u1", i, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	entries := store.data["u1"]
	require.Len(t, entries, MaxEntries)
	assert.Equal(t, int64(51), entries[0].SongID)
	assert.Equal(t, int64(2), entries[MaxEntries-1].SongID)
	for _, e := range entries {
		assert.NotEqual(t, int64(1), e.SongID)
	}
}

func TestRecordValidation(t *testing.T) {
	log, _, _ := newLog()
	_, err := log.Record(context.Background(), "u1", 0, time.Now())
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRecordSaveFailure(t *testing.T) {
	log, store, _ := newLog()
	store.saveErr = errors.New("connection reset")
	_, err := log.Record(context.Background(), "u1", 3, time.Now())
	var up *apperr.UpstreamError
	assert.ErrorAs(t, err, &up)
}

func TestListDropsDeletedSongs(t *testing.T) {
	log, _, songs := newLog()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []int64{1, 2, 3} {
		_, err := log.Record(ctx, "u1", id, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	delete(songs, 2)

	got, err := log.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, t0.Add(2*time.Minute), got[0].PlayedAt)
	assert.Equal(t, int64(1), got[1].ID)
	assert.Equal(t, t0, got[1].PlayedAt)
}

func TestListEmpty(t *testing.T) {
	log, _, _ := newLog()
	got, err := log.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUserCheck(t *testing.T) {
	store := &memoryStore{data: map[string][]model.RecentEntry{}}
	log := New(store, catalog{}, WithUserCheck(knownUsers{"u1": true}))

	_, err := log.Record(context.Background(), "ghost", 1, time.Now())
	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "User not found", nf.Message)
	assert.Empty(t, store.data)

	_, err = log.List(context.Background(), "ghost")
	assert.ErrorAs(t, err, &nf)
}

func TestPrependDoesNotAlias(t *testing.T) {
	orig := []model.RecentEntry{{SongID: 1}, {SongID: 2}}
	_ = Prepend(orig, model.RecentEntry{SongID: 2}, MaxEntries)
	assert.Equal(t, []model.RecentEntry{{SongID: 1}, {SongID: 2}}, orig)
}

func TestPrependTruncates(t *testing.T) {
	got := Prepend([]model.RecentEntry{{SongID: 1}, {SongID: 2}, {SongID: 3}}, model.RecentEntry{SongID: 4}, 2)
	assert.Equal(t, []model.RecentEntry{{SongID: 4}, {SongID: 1}}, got)
}
