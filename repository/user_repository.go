package repository

import (
	"context"
	"errors"
	"fmt"

	"melodify/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository 用户及播放器设置的数据访问接口
type UserRepository interface {
	// GetByExternalID returns nil, nil when no user has the identity-provider id.
	GetByExternalID(ctx context.Context, externalID string) (*model.User, error)
	// Upsert 按外部ID创建用户或更新资料，不会覆盖播放器设置
	Upsert(ctx context.Context, user *model.User) error
	SaveSettings(ctx context.Context, userID int64, settings model.PlayerSettings) error
	Exists(ctx context.Context, externalID string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// gormUserRepository GORM 实现
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository 创建 GORM 用户仓库
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", externalID, err)
	}
	return &user, nil
}

func (r *gormUserRepository) Upsert(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "image_url", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", user.ExternalID, err)
	}
	return nil
}

// SaveSettings 使用 map 更新，保证 false 和 0 也会写入
func (r *gormUserRepository) SaveSettings(ctx context.Context, userID int64, s model.PlayerSettings) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"player_shuffle":     s.Shuffle,
		"player_loop":        string(s.Loop),
		"player_volume":      s.Volume,
		"player_show_queue":  s.ShowQueue,
		"player_initialized": true,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to save settings for user %d: %w", userID, res.Error)
	}
	return nil
}

func (r *gormUserRepository) Exists(ctx context.Context, externalID string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("external_id = ?", externalID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check user %s: %w", externalID, err)
	}
	return n > 0, nil
}

func (r *gormUserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
