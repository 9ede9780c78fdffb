package model

import "time"

// DefaultLanguage is applied to songs created without a language.
const DefaultLanguage = "English"

// Song represents a track in the catalog.
type Song struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	ImageURL    string    `json:"imageUrl"`
	AudioURL    string    `json:"audioUrl"`
	Duration    int       `json:"duration"` // Duration in seconds
	AlbumID     *int64    `json:"albumId"`
	Lyrics      *string   `json:"lyrics,omitempty"`
	Language    string    `json:"language"`
	ReleaseDate time.Time `json:"releaseDate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RecentSong 最近播放列表中的一首歌，附带播放时间
type RecentSong struct {
	Song
	PlayedAt time.Time `json:"playedAt"`
}

// RecentEntry 最近播放记录，只保存歌曲引用
type RecentEntry struct {
	SongID   int64     `json:"songId"`
	PlayedAt time.Time `json:"playedAt"`
}

// Stats 曲库统计
type Stats struct {
	TotalSongs   int64 `json:"totalSongs"`
	TotalAlbums  int64 `json:"totalAlbums"`
	TotalUsers   int64 `json:"totalUsers"`
	TotalArtists int64 `json:"totalArtists"`
}
