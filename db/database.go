package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"melodify/config"
	"melodify/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// DSN builds the MySQL data source name for cfg.
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	var err error
	DB, err = sql.Open("mysql", DSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxIdleConns(10)
	DB.SetMaxOpenConns(50)
	DB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = DB.PingContext(ctx); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to the database.")
	return nil
}

// CloseDB 关闭数据库连接
func CloseDB() error {
	if DB == nil {
		return nil
	}
	return DB.Close()
}

// InitDB creates the catalog tables if they don't exist.
func InitDB(ctx context.Context, conn *sql.DB) error {
	if err := createAlbumsTable(ctx, conn); err != nil {
		return err
	}
	if err := createSongsTable(ctx, conn); err != nil {
		return err
	}
	logger.Info("Database schema initialization completed.")
	return nil
}

func createAlbumsTable(ctx context.Context, conn *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS albums (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		artist VARCHAR(255) NOT NULL,
		image_url VARCHAR(767) NOT NULL,
		release_year INT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create albums table: %w", err)
	}
	return nil
}

func createSongsTable(ctx context.Context, conn *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS songs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		artist VARCHAR(255) NOT NULL,
		image_url VARCHAR(767) NOT NULL,
		audio_url VARCHAR(767) NOT NULL,
		duration INT NOT NULL,
		album_id BIGINT NULL,
		lyrics TEXT NULL,
		language VARCHAR(64) NOT NULL DEFAULT 'English',
		release_date DATETIME NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_songs_album (album_id),
		INDEX idx_songs_title (title),
		INDEX idx_songs_artist (artist),
		CONSTRAINT fk_songs_album FOREIGN KEY (album_id) REFERENCES albums(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create songs table: %w", err)
	}
	return nil
}
