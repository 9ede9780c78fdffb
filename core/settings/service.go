// Package settings persists per-user player settings.
package settings

import (
	"context"
	"fmt"

	"melodify/core/apperr"
	"melodify/logger"
	"melodify/model"
)

// UserStore 用户设置的持久化接口
type UserStore interface {
	// GetByExternalID returns nil, nil when the user does not exist.
	GetByExternalID(ctx context.Context, externalID string) (*model.User, error)
	SaveSettings(ctx context.Context, userID int64, settings model.PlayerSettings) error
}

type ShuffleResult struct {
	Message string `json:"message"`
	Shuffle bool   `json:"shuffle"`
}

type LoopResult struct {
	Message string         `json:"message"`
	Loop    model.LoopMode `json:"loop"`
}

type VolumeResult struct {
	Message string `json:"message"`
	Volume  int    `json:"volume"`
}

type QueueResult struct {
	Message   string `json:"message"`
	ShowQueue bool   `json:"showQueue"`
}

// Service 播放器设置服务
type Service struct {
	users UserStore
}

func NewService(users UserStore) *Service {
	return &Service{users: users}
}

// Load returns the user's settings, materialising and persisting defaults on first read.
func (s *Service) Load(ctx context.Context, userID string) (model.PlayerSettings, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return model.PlayerSettings{}, err
	}
	return user.Settings, nil
}

func (s *Service) ToggleShuffle(ctx context.Context, userID string) (*ShuffleResult, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := user.Settings
	next.Shuffle = !next.Shuffle
	if err := s.save(ctx, user, next); err != nil {
		return nil, err
	}

	msg := "Shuffle disabled"
	if next.Shuffle {
		msg = "Shuffle enabled"
	}
	return &ShuffleResult{Message: msg, Shuffle: next.Shuffle}, nil
}

func (s *Service) CycleLoop(ctx context.Context, userID string) (*LoopResult, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Settings.Loop.Valid() {
		logger.Warn("[Settings] Unknown loop mode, treating as off",
			logger.String("userId", userID),
			logger.String("loop", string(user.Settings.Loop)))
	}
	next := user.Settings
	next.Loop = next.Loop.Next()
	if err := s.save(ctx, user, next); err != nil {
		return nil, err
	}
	return &LoopResult{Message: loopMessage(next.Loop), Loop: next.Loop}, nil
}

// SetVolume rejects values outside [0,100] before touching the store.
func (s *Service) SetVolume(ctx context.Context, userID string, volume int) (*VolumeResult, error) {
	if volume < model.MinVolume || volume > model.MaxVolume {
		return nil, apperr.Validation("Volume must be between 0 and 100")
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := user.Settings
	next.Volume = volume
	if err := s.save(ctx, user, next); err != nil {
		return nil, err
	}
	return &VolumeResult{Message: fmt.Sprintf("Volume set to %d%%", volume), Volume: volume}, nil
}

func (s *Service) ToggleQueue(ctx context.Context, userID string) (*QueueResult, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := user.Settings
	next.ShowQueue = !next.ShowQueue
	if err := s.save(ctx, user, next); err != nil {
		return nil, err
	}

	msg := "Queue hidden"
	if next.ShowQueue {
		msg = "Queue shown"
	}
	return &QueueResult{Message: msg, ShowQueue: next.ShowQueue}, nil
}

// loadUser 读取用户，设置缺失时写入默认值
func (s *Service) loadUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByExternalID(ctx, userID)
	if err != nil {
		return nil, apperr.Upstream("load user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}
	if !user.HasSettings {
		if err := s.save(ctx, user, model.DefaultPlayerSettings()); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *Service) save(ctx context.Context, user *model.User, next model.PlayerSettings) error {
	if err := s.users.SaveSettings(ctx, user.ID, next); err != nil {
		logger.Error("[Settings] Failed to save player settings",
			logger.Int64("userId", user.ID),
			logger.ErrorField(err))
		return apperr.Upstream("save settings", err)
	}
	user.Settings = next
	user.HasSettings = true
	return nil
}

func loopMessage(loop model.LoopMode) string {
	switch loop {
	case model.LoopOne:
		return "Loop one song enabled"
	case model.LoopAll:
		return "Loop all songs enabled"
	default:
		return "Loop disabled"
	}
}

// ForUser adapts the service to a single user's settings API.
func (s *Service) ForUser(userID string) *UserSettings {
	return &UserSettings{svc: s, userID: userID}
}

// UserSettings 绑定到单个用户的设置接口，供播放会话使用
type UserSettings struct {
	svc    *Service
	userID string
}

func (u *UserSettings) Load(ctx context.Context) (model.PlayerSettings, error) {
	return u.svc.Load(ctx, u.userID)
}

func (u *UserSettings) ToggleShuffle(ctx context.Context) (string, bool, error) {
	res, err := u.svc.ToggleShuffle(ctx, u.userID)
	if err != nil {
		return "", false, err
	}
	return res.Message, res.Shuffle, nil
}

func (u *UserSettings) CycleLoop(ctx context.Context) (string, model.LoopMode, error) {
	res, err := u.svc.CycleLoop(ctx, u.userID)
	if err != nil {
		return "", "", err
	}
	return res.Message, res.Loop, nil
}

func (u *UserSettings) SetVolume(ctx context.Context, volume int) (string, int, error) {
	res, err := u.svc.SetVolume(ctx, u.userID, volume)
	if err != nil {
		return "", 0, err
	}
	return res.Message, res.Volume, nil
}

func (u *UserSettings) ToggleQueue(ctx context.Context) (string, bool, error) {
	res, err := u.svc.ToggleQueue(ctx, u.userID)
	if err != nil {
		return "", false, err
	}
	return res.Message, res.ShowQueue, nil
}
