package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"melodify/logger"
	"melodify/model"
)

// AlbumRepository 定义专辑相关的数据库操作接口
type AlbumRepository interface {
	// Create 创建新专辑
	Create(ctx context.Context, album *model.Album) (int64, error)

	// GetByID 根据ID获取专辑信息，不存在时返回 nil, nil
	GetByID(ctx context.Context, id int64) (*model.Album, error)

	// List 获取所有专辑
	List(ctx context.Context) ([]*model.Album, error)

	// DeleteWithSongs 删除专辑及其包含的歌曲
	DeleteWithSongs(ctx context.Context, id int64) (int64, error)
}

// MySQLAlbumRepository MySQL实现的专辑仓库
type MySQLAlbumRepository struct {
	db *sql.DB
}

// NewMySQLAlbumRepository 创建新的MySQL专辑仓库实例
func NewMySQLAlbumRepository(db *sql.DB) *MySQLAlbumRepository {
	return &MySQLAlbumRepository{db: db}
}

const albumColumns = `id, title, artist, image_url, release_year, created_at, updated_at`

// Create 创建新专辑
func (r *MySQLAlbumRepository) Create(ctx context.Context, album *model.Album) (int64, error) {
	query := `
		INSERT INTO albums (title, artist, image_url, release_year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		album.Title,
		album.Artist,
		album.ImageURL,
		album.ReleaseYear,
		now,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create album: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for album: %w", err)
	}
	album.ID = id
	album.CreatedAt, album.UpdatedAt = now, now
	return id, nil
}

// GetByID 根据ID获取专辑信息
func (r *MySQLAlbumRepository) GetByID(ctx context.Context, id int64) (*model.Album, error) {
	album := &model.Album{}
	err := r.db.QueryRowContext(ctx, `SELECT `+albumColumns+` FROM albums WHERE id = ?`, id).Scan(
		&album.ID,
		&album.Title,
		&album.Artist,
		&album.ImageURL,
		&album.ReleaseYear,
		&album.CreatedAt,
		&album.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get album %d: %w", id, err)
	}
	return album, nil
}

// List 获取所有专辑，按创建时间倒序
func (r *MySQLAlbumRepository) List(ctx context.Context) ([]*model.Album, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+albumColumns+` FROM albums ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	defer rows.Close()

	albums := make([]*model.Album, 0)
	for rows.Next() {
		album := &model.Album{}
		if err := rows.Scan(
			&album.ID,
			&album.Title,
			&album.Artist,
			&album.ImageURL,
			&album.ReleaseYear,
			&album.CreatedAt,
			&album.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		albums = append(albums, album)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListAlbums: %w", err)
	}
	return albums, nil
}

// DeleteWithSongs 在一个事务中删除专辑及其歌曲，返回删除的歌曲数
func (r *MySQLAlbumRepository) DeleteWithSongs(ctx context.Context, id int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				logger.Error("[Album] Failed to rollback transaction", logger.ErrorField(rbErr))
			}
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE album_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete songs of album %d: %w", id, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted songs: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM albums WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to delete album %d: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit album deletion: %w", err)
	}
	return deleted, nil
}
