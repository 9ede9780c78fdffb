package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"melodify/config"
	"melodify/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// 上传目录
const (
	AudioFolder = "audio"
	ImageFolder = "images"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// AssetStore 封装了 MinIO 客户端，保存歌曲音频和封面
type AssetStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewAssetStore connects to MinIO and makes sure the bucket exists.
func NewAssetStore(ctx context.Context, cfg *config.Config) (*AssetStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	s := &AssetStore{
		client:    client,
		bucket:    cfg.MinioBucket,
		publicURL: PublicBaseURL(cfg),
	}
	if err := s.ensureBucket(ctx, cfg.MinioRegion); err != nil {
		return nil, err
	}

	logger.Info("MinIO asset store ready",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return s, nil
}

// PublicBaseURL 对外访问地址，未配置时由 endpoint 推导
func PublicBaseURL(cfg *config.Config) string {
	if cfg.MinioPublicURL != "" {
		return strings.TrimRight(cfg.MinioPublicURL, "/")
	}
	scheme := "http"
	if cfg.MinioUseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.MinioEndpoint, cfg.MinioBucket)
}

func (s *AssetStore) ensureBucket(ctx context.Context, region string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("Created MinIO bucket", logger.String("bucket", s.bucket))
	return nil
}

// Upload stores r under folder and returns its public URL. Failures are returned
// to the caller as is; there is no retry.
func (s *AssetStore) Upload(ctx context.Context, folder, filename string, r io.Reader, size int64, contentType string) (string, error) {
	object := ObjectName(folder, filename)
	if contentType == "" {
		contentType = guessMIME(filename)
	}

	_, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	return s.publicURL + "/" + object, nil
}

// DeleteURL removes the object behind a URL returned by Upload. URLs from other hosts are ignored.
func (s *AssetStore) DeleteURL(ctx context.Context, url string) error {
	object, ok := strings.CutPrefix(url, s.publicURL+"/")
	if !ok || object == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", object, err)
	}
	return nil
}

// List 列出存储桶中的对象
func (s *AssetStore) List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}

		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
		})
	}
	return objects, stats, nil
}

// Usage 按文件类型统计大小
func (s *AssetStore) Usage(ctx context.Context) (map[string]int64, error) {
	objects, _, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	usage := make(map[string]int64)
	for _, obj := range objects {
		usage[Category(obj.Key)] += obj.Size
	}
	return usage, nil
}

// DeletePrefix 递归删除目录，返回删除的对象数
func (s *AssetStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var toDelete []minio.ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return 0, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		toDelete = append(toDelete, object)
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(toDelete))
	for _, obj := range toDelete {
		objectsCh <- obj
	}
	close(objectsCh)

	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return 0, fmt.Errorf("删除对象 %s 失败: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return len(toDelete), nil
}

// ObjectName 生成不重复的对象名，保留原扩展名
func ObjectName(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(folder, uuid.New().String()+ext)
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// Category 从文件名推断内容类别
func Category(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".mp3", ".wav", ".flac", ".m4a", ".ogg":
		return "audio"
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	default:
		return "other"
	}
}

func guessMIME(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
