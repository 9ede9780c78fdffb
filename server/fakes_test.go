package server

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"melodify/config"
	"melodify/core/auth"
	"melodify/core/history"
	"melodify/core/presence"
	"melodify/model"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type memSongs struct {
	mu     sync.Mutex
	nextID int64
	songs  map[int64]*model.Song
}

func newMemSongs(titles ...string) *memSongs {
	m := &memSongs{songs: map[int64]*model.Song{}}
	for _, t := range titles {
		m.Create(context.Background(), &model.Song{Title: t, Artist: "Artist " + t})
	}
	return m
}

func (m *memSongs) Create(_ context.Context, song *model.Song) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	song.ID = m.nextID
	if song.Language == "" {
		song.Language = model.DefaultLanguage
	}
	cp := *song
	m.songs[song.ID] = &cp
	return song.ID, nil
}

func (m *memSongs) GetByID(_ context.Context, id int64) (*model.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSongs) Update(_ context.Context, song *model.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *song
	m.songs[song.ID] = &cp
	return nil
}

func (m *memSongs) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.songs, id)
	return nil
}

func (m *memSongs) List(context.Context) ([]*model.Song, error) {
	return m.filter(func(*model.Song) bool { return true }), nil
}

func (m *memSongs) ListByAlbum(_ context.Context, albumID int64) ([]*model.Song, error) {
	return m.filter(func(s *model.Song) bool { return s.AlbumID != nil && *s.AlbumID == albumID }), nil
}

func (m *memSongs) ListByIDs(_ context.Context, ids []int64) ([]*model.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Song, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.songs[id]; ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSongs) Random(_ context.Context, n int) ([]*model.Song, error) {
	all := m.filter(func(*model.Song) bool { return true })
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (m *memSongs) Search(_ context.Context, query string, limit int) ([]*model.Song, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	out := m.filter(func(s *model.Song) bool {
		return strings.Contains(strings.ToLower(s.Title), q) || strings.Contains(strings.ToLower(s.Artist), q)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSongs) Stats(context.Context) (*model.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &model.Stats{TotalSongs: int64(len(m.songs))}, nil
}

func (m *memSongs) filter(keep func(*model.Song) bool) []*model.Song {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Song, 0)
	for _, s := range m.songs {
		if keep(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memAlbums struct {
	mu     sync.Mutex
	songs  *memSongs
	albums map[int64]*model.Album
}

func (m *memAlbums) Create(_ context.Context, album *model.Album) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	album.ID = int64(len(m.albums) + 1)
	cp := *album
	m.albums[album.ID] = &cp
	return album.ID, nil
}

func (m *memAlbums) GetByID(_ context.Context, id int64) (*model.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.albums[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memAlbums) List(context.Context) ([]*model.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Album, 0, len(m.albums))
	for _, a := range m.albums {
		out = append(out, a)
	}
	return out, nil
}

func (m *memAlbums) DeleteWithSongs(ctx context.Context, id int64) (int64, error) {
	songs, _ := m.songs.ListByAlbum(ctx, id)
	for _, s := range songs {
		m.songs.Delete(ctx, s.ID)
	}
	m.mu.Lock()
	delete(m.albums, id)
	m.mu.Unlock()
	return int64(len(songs)), nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUsers(externalIDs ...string) *memUsers {
	m := &memUsers{users: map[string]*model.User{}}
	for _, id := range externalIDs {
		m.Upsert(context.Background(), &model.User{ExternalID: id, FullName: "Ada Lovelace"})
	}
	return m
}

func (m *memUsers) GetByExternalID(_ context.Context, externalID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[externalID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Upsert(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[user.ExternalID]; ok {
		u.FullName, u.ImageURL = user.FullName, user.ImageURL
		return nil
	}
	user.ID = int64(len(m.users) + 1)
	cp := *user
	m.users[user.ExternalID] = &cp
	return nil
}

func (m *memUsers) SaveSettings(_ context.Context, userID int64, s model.PlayerSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			u.Settings = s
			u.HasSettings = true
		}
	}
	return nil
}

func (m *memUsers) Exists(_ context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[externalID]
	return ok, nil
}

func (m *memUsers) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

type memRecent struct {
	mu      sync.Mutex
	entries map[string][]model.RecentEntry
}

func (m *memRecent) Load(_ context.Context, userID string) ([]model.RecentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.RecentEntry(nil), m.entries[userID]...), nil
}

func (m *memRecent) Push(_ context.Context, userID string, entry model.RecentEntry, limit int) ([]model.RecentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = history.Prepend(m.entries[userID], entry, limit)
	return append([]model.RecentEntry(nil), m.entries[userID]...), nil
}

func (m *memRecent) get(userID string) []model.RecentEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[userID]
}

type memAssets struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
}

func (m *memAssets) Upload(_ context.Context, folder, filename string, r io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "http://assets.local/" + folder + "/" + filename
	m.uploaded = append(m.uploaded, url)
	return url, nil
}

func (m *memAssets) DeleteURL(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, url)
	return nil
}

type memSearchCache struct {
	mu          sync.Mutex
	results     map[string][]*model.Song
	invalidated int
}

func (m *memSearchCache) Get(_ context.Context, query string) ([]*model.Song, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	songs, ok := m.results[query]
	return songs, ok, nil
}

func (m *memSearchCache) Set(_ context.Context, query string, songs []*model.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[query] = songs
	return nil
}

func (m *memSearchCache) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = map[string][]*model.Song{}
	m.invalidated++
	return nil
}

// testEnv 组装好的处理器和内存依赖
type testEnv struct {
	handler  *APIHandler
	songs    *memSongs
	albums   *memAlbums
	users    *memUsers
	recent   *memRecent
	assets   *memAssets
	cache    *memSearchCache
	hub      *presence.Hub
	verifier *auth.Verifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	verifier, err := auth.NewVerifier(testSecret)
	require.NoError(t, err)

	hub := presence.NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	songs := newMemSongs("Blue Train", "So What", "Naima")
	env := &testEnv{
		songs:    songs,
		albums:   &memAlbums{songs: songs, albums: map[int64]*model.Album{}},
		users:    newMemUsers("user_1", "admin_1"),
		recent:   &memRecent{entries: map[string][]model.RecentEntry{}},
		assets:   &memAssets{},
		cache:    &memSearchCache{results: map[string][]*model.Song{}},
		hub:      hub,
		verifier: verifier,
	}
	env.handler = NewAPIHandler(Deps{
		Songs:    env.songs,
		Albums:   env.albums,
		Users:    env.users,
		Recent:   env.recent,
		Assets:   env.assets,
		Cache:    env.cache,
		Verifier: verifier,
		Hub:      hub,
		Config:   &config.Config{AdminIDs: []string{"admin_1"}, SearchRatePerSec: 100, SearchBurst: 100},
	})
	return env
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.verifier.Issue(userID, "Ada Lovelace", time.Hour)
	require.NoError(t, err)
	return tok
}
