package model

import "time"

// LoopMode 循环模式
type LoopMode string

const (
	LoopOff LoopMode = "off"
	LoopOne LoopMode = "one"
	LoopAll LoopMode = "all"
)

// Valid reports whether m is one of the known loop modes.
func (m LoopMode) Valid() bool {
	return m == LoopOff || m == LoopOne || m == LoopAll
}

// Next 按 off -> one -> all -> off 循环。存储中的未知值按 off 处理。
func (m LoopMode) Next() LoopMode {
	switch m {
	case LoopOne:
		return LoopAll
	case LoopAll:
		return LoopOff
	default:
		return LoopOne
	}
}

// Default player settings.
const (
	DefaultVolume = 75
	MinVolume     = 0
	MaxVolume     = 100
)

// PlayerSettings 用户播放器设置，随用户记录持久化
type PlayerSettings struct {
	Shuffle   bool     `json:"shuffle" gorm:"column:shuffle;not null"`
	Loop      LoopMode `json:"loop" gorm:"column:loop;size:8;not null"`
	Volume    int      `json:"volume" gorm:"column:volume;not null"`
	ShowQueue bool     `json:"showQueue" gorm:"column:show_queue;not null"`
}

// DefaultPlayerSettings returns the settings materialised for users without a record.
func DefaultPlayerSettings() PlayerSettings {
	return PlayerSettings{
		Shuffle:   false,
		Loop:      LoopOff,
		Volume:    DefaultVolume,
		ShowQueue: false,
	}
}

// User represents a user in the system. Identity lives with the external provider;
// ExternalID is the provider's subject.
type User struct {
	ID         int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	ExternalID string `json:"externalId" gorm:"size:128;uniqueIndex;not null"`
	FullName   string `json:"fullName" gorm:"size:255;not null"`
	ImageURL   string `json:"imageUrl" gorm:"size:767"`

	// HasSettings 为 false 时 Settings 尚未初始化
	HasSettings bool           `json:"-" gorm:"column:player_initialized;not null"`
	Settings    PlayerSettings `json:"playerSettings" gorm:"embedded;embeddedPrefix:player_"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// FirstName 返回全名的第一个单词
func (u *User) FirstName() string {
	for i, r := range u.FullName {
		if r == ' ' {
			return u.FullName[:i]
		}
	}
	return u.FullName
}
