package player

import (
	"context"
	"fmt"

	"melodify/model"
)

// SettingsAPI is the remote settings contract for one user. Every call returns the
// server-confirmed value.
type SettingsAPI interface {
	Load(ctx context.Context) (model.PlayerSettings, error)
	ToggleShuffle(ctx context.Context) (string, bool, error)
	CycleLoop(ctx context.Context) (string, model.LoopMode, error)
	SetVolume(ctx context.Context, volume int) (string, int, error)
	ToggleQueue(ctx context.Context) (string, bool, error)
}

// Notifier surfaces status messages and errors to the user.
type Notifier interface {
	Notify(message string)
	NotifyError(err error)
}

// Commit applies the outcome of a settings round trip. It must run on the session goroutine.
type Commit func()

// SettingsSync 本地设置缓存，只接受服务端确认后的值。
// 网络调用可以在其他 goroutine 中执行，返回的 Commit 交回会话 goroutine 执行。
type SettingsSync struct {
	api      SettingsAPI
	session  *Session
	notifier Notifier
	settings model.PlayerSettings
}

// NewSettingsSync binds the session's advance mode to the synced settings.
func NewSettingsSync(api SettingsAPI, session *Session, notifier Notifier) *SettingsSync {
	s := &SettingsSync{
		api:      api,
		session:  session,
		notifier: notifier,
		settings: model.DefaultPlayerSettings(),
	}
	session.mode = s.Mode
	return s
}

// Start loads persisted settings and applies them to the session.
func (s *SettingsSync) Start(ctx context.Context) error {
	settings, err := s.api.Load(ctx)
	if err != nil {
		return fmt.Errorf("load player settings: %w", err)
	}
	s.settings = settings

	st := &s.session.state
	st.Volume = settings.Volume
	st.Muted = settings.Volume == 0
	st.PreviousVolume = model.DefaultVolume
	if settings.Volume > 0 {
		st.PreviousVolume = settings.Volume
	}
	return nil
}

// Settings returns the confirmed settings.
func (s *SettingsSync) Settings() model.PlayerSettings { return s.settings }

// Mode derives the advance mode from the confirmed settings.
func (s *SettingsSync) Mode() Mode {
	return ModeFor(s.settings.Shuffle, s.settings.Loop)
}

func (s *SettingsSync) ToggleShuffle(ctx context.Context) Commit {
	msg, shuffle, err := s.api.ToggleShuffle(ctx)
	if err != nil {
		return s.failed(err)
	}
	return func() {
		s.settings.Shuffle = shuffle
		s.notifier.Notify(msg)
	}
}

func (s *SettingsSync) CycleLoop(ctx context.Context) Commit {
	msg, loop, err := s.api.CycleLoop(ctx)
	if err != nil {
		return s.failed(err)
	}
	return func() {
		s.settings.Loop = loop
		s.notifier.Notify(msg)
	}
}

func (s *SettingsSync) SetVolume(ctx context.Context, volume int) Commit {
	msg, confirmed, err := s.api.SetVolume(ctx, volume)
	if err != nil {
		return s.failed(err)
	}
	return func() {
		s.settings.Volume = confirmed
		s.session.applyVolume(confirmed)
		s.notifier.Notify(msg)
	}
}

func (s *SettingsSync) ToggleQueue(ctx context.Context) Commit {
	msg, show, err := s.api.ToggleQueue(ctx)
	if err != nil {
		return s.failed(err)
	}
	return func() {
		s.settings.ShowQueue = show
		s.notifier.Notify(msg)
	}
}

// ToggleMute mutes by persisting volume 0, or restores the remembered volume.
// st is the session state observed when the user asked.
func (s *SettingsSync) ToggleMute(ctx context.Context, st State) Commit {
	if st.Muted {
		restore := st.PreviousVolume
		if restore <= 0 {
			restore = model.DefaultVolume
		}
		return s.SetVolume(ctx, restore)
	}

	remember := st.Volume
	msg, confirmed, err := s.api.SetVolume(ctx, 0)
	if err != nil {
		return s.failed(err)
	}
	return func() {
		if remember > 0 {
			s.session.state.PreviousVolume = remember
		}
		s.settings.Volume = confirmed
		s.session.applyVolume(confirmed)
		s.notifier.Notify(msg)
	}
}

func (s *SettingsSync) failed(err error) Commit {
	return func() { s.notifier.NotifyError(err) }
}
