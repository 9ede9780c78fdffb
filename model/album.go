package model

import "time"

// Album 表示一张专辑
type Album struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	ImageURL    string    `json:"imageUrl"`
	ReleaseYear int       `json:"releaseYear"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AlbumWithSongs 包含专辑信息和其包含的歌曲
type AlbumWithSongs struct {
	Album
	Songs []*Song `json:"songs"`
}
