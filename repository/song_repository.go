package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"melodify/logger"
	"melodify/model"
)

// DefaultSearchLimit 搜索结果条数上限
const DefaultSearchLimit = 20

// SongRepository 定义歌曲相关的数据库操作接口
type SongRepository interface {
	Create(ctx context.Context, song *model.Song) (int64, error)
	// GetByID returns nil, nil when the song does not exist.
	GetByID(ctx context.Context, id int64) (*model.Song, error)
	Update(ctx context.Context, song *model.Song) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*model.Song, error)
	ListByAlbum(ctx context.Context, albumID int64) ([]*model.Song, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*model.Song, error)
	Random(ctx context.Context, n int) ([]*model.Song, error)
	Search(ctx context.Context, query string, limit int) ([]*model.Song, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// mysqlSongRepository implements SongRepository for MySQL.
type mysqlSongRepository struct {
	db *sql.DB
}

// NewMySQLSongRepository creates a new mysqlSongRepository.
func NewMySQLSongRepository(db *sql.DB) SongRepository {
	return &mysqlSongRepository{db: db}
}

const songColumns = `id, title, artist, image_url, audio_url, duration, album_id, lyrics, language, release_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSong(row rowScanner) (*model.Song, error) {
	song := &model.Song{}
	var albumID sql.NullInt64
	var lyrics sql.NullString
	err := row.Scan(&song.ID, &song.Title, &song.Artist, &song.ImageURL, &song.AudioURL, &song.Duration,
		&albumID, &lyrics, &song.Language, &song.ReleaseDate, &song.CreatedAt, &song.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if albumID.Valid {
		id := albumID.Int64
		song.AlbumID = &id
	}
	if lyrics.Valid {
		text := lyrics.String
		song.Lyrics = &text
	}
	return song, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullableString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// Create 创建歌曲，语言和发行时间缺省时填充默认值
func (r *mysqlSongRepository) Create(ctx context.Context, song *model.Song) (int64, error) {
	if song.Language == "" {
		song.Language = model.DefaultLanguage
	}
	now := time.Now()
	if song.ReleaseDate.IsZero() {
		song.ReleaseDate = now
	}

	query := `INSERT INTO songs (title, artist, image_url, audio_url, duration, album_id, lyrics, language, release_date, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		song.Title, song.Artist, song.ImageURL, song.AudioURL, song.Duration,
		nullableInt64(song.AlbumID), nullableString(song.Lyrics), song.Language, song.ReleaseDate, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateSong: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateSong: %w", err)
	}
	song.ID = id
	song.CreatedAt, song.UpdatedAt = now, now
	logger.Info("[Song] Song created", logger.Int64("songId", id), logger.String("title", song.Title))
	return id, nil
}

// GetByID retrieves a song by its ID.
func (r *mysqlSongRepository) GetByID(ctx context.Context, id int64) (*model.Song, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE id = ?`, id)
	song, err := scanSong(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Song not found
		}
		return nil, fmt.Errorf("failed to scan song by ID %d: %w", id, err)
	}
	return song, nil
}

// Update 更新歌曲的全部可编辑字段
func (r *mysqlSongRepository) Update(ctx context.Context, song *model.Song) error {
	query := `UPDATE songs SET title = ?, artist = ?, image_url = ?, audio_url = ?, duration = ?, album_id = ?,
	           lyrics = ?, language = ?, release_date = ?, updated_at = ? WHERE id = ?`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		song.Title, song.Artist, song.ImageURL, song.AudioURL, song.Duration, nullableInt64(song.AlbumID),
		nullableString(song.Lyrics), song.Language, song.ReleaseDate, now, song.ID)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateSong for song ID %d: %w", song.ID, err)
	}
	song.UpdatedAt = now
	return nil
}

func (r *mysqlSongRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete song ID %d: %w", id, err)
	}
	return nil
}

func (r *mysqlSongRepository) List(ctx context.Context) ([]*model.Song, error) {
	return r.query(ctx, "List", `SELECT `+songColumns+` FROM songs ORDER BY created_at DESC`)
}

// ListByAlbum 按加入专辑的顺序返回歌曲
func (r *mysqlSongRepository) ListByAlbum(ctx context.Context, albumID int64) ([]*model.Song, error) {
	return r.query(ctx, "ListByAlbum", `SELECT `+songColumns+` FROM songs WHERE album_id = ? ORDER BY id ASC`, albumID)
}

// ListByIDs returns the songs in the order of ids, skipping ids that do not exist.
func (r *mysqlSongRepository) ListByIDs(ctx context.Context, ids []int64) ([]*model.Song, error) {
	if len(ids) == 0 {
		return []*model.Song{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	songs, err := r.query(ctx, "ListByIDs", `SELECT `+songColumns+` FROM songs WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*model.Song, len(songs))
	for _, s := range songs {
		byID[s.ID] = s
	}
	ordered := make([]*model.Song, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}

// Random 随机取 n 首歌曲
func (r *mysqlSongRepository) Random(ctx context.Context, n int) ([]*model.Song, error) {
	return r.query(ctx, "Random", `SELECT `+songColumns+` FROM songs ORDER BY RAND() LIMIT ?`, n)
}

// Search matches title, artist or language.
func (r *mysqlSongRepository) Search(ctx context.Context, query string, limit int) ([]*model.Song, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	return r.query(ctx, "Search",
		`SELECT `+songColumns+` FROM songs WHERE title LIKE ? OR artist LIKE ? OR language LIKE ? ORDER BY title ASC LIMIT ?`,
		pattern, pattern, pattern, limit)
}

// Stats 统计歌曲数、专辑数、用户数和歌手数
func (r *mysqlSongRepository) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{}
	query := `SELECT
		(SELECT COUNT(*) FROM songs),
		(SELECT COUNT(*) FROM albums),
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(DISTINCT artist) FROM (SELECT artist FROM songs UNION SELECT artist FROM albums) AS a)`
	err := r.db.QueryRowContext(ctx, query).Scan(&stats.TotalSongs, &stats.TotalAlbums, &stats.TotalUsers, &stats.TotalArtists)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return stats, nil
}

func (r *mysqlSongRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*model.Song, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs in %s: %w", op, err)
	}
	defer rows.Close()

	songs := make([]*model.Song, 0)
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song in %s: %w", op, err)
		}
		songs = append(songs, song)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in %s: %w", op, err)
	}
	return songs, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
