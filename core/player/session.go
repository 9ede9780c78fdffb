package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"melodify/model"
)

// IdleActivity 暂停或停止时广播的活动文本
const IdleActivity = "Idle"

// State 进程内的播放状态，不持久化
type State struct {
	Current        *model.Song `json:"currentSong"`
	Playing        bool        `json:"isPlaying"`
	Elapsed        float64     `json:"currentTime"`
	Muted          bool        `json:"isMuted"`
	Volume         int         `json:"volume"`
	PreviousVolume int         `json:"previousVolume"`
}

// Snapshot is the full observable view of a session.
type Snapshot struct {
	State
	Queue   []*model.Song `json:"queue"`
	Pointer int           `json:"currentIndex"`
}

// Activity is emitted on every change of what the user is listening to.
type Activity struct {
	UserID  string      `json:"userId"`
	Message string      `json:"activity"`
	Song    *model.Song `json:"song,omitempty"`
	Playing bool        `json:"isPlaying"`
	At      time.Time   `json:"at"`
}

// HistoryRecorder persists a play into the user's recent history.
type HistoryRecorder interface {
	Record(ctx context.Context, userID string, songID int64, at time.Time) ([]model.RecentEntry, error)
}

// Session 单个连接的播放会话。所有方法必须在同一个 goroutine 中调用；
// 历史记录由一个后台 goroutine 按播放顺序逐条写入。
type Session struct {
	userID  string
	queue   *Queue
	state   State
	history HistoryRecorder
	mode    func() Mode
	now     func() time.Time
	ctx     context.Context

	activityListeners []func(Activity)
	errorListeners    []func(error)

	lastPlayed time.Time

	mu      sync.Mutex
	pending []historyWrite
	writing bool
	wg      sync.WaitGroup
}

type historyWrite struct {
	songID int64
	at     time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHistory sets the recorder written on every track change.
func WithHistory(h HistoryRecorder) SessionOption {
	return func(s *Session) { s.history = h }
}

// WithQueue replaces the default queue, e.g. one built with a fixed random source.
func WithQueue(q *Queue) SessionOption {
	return func(s *Session) { s.queue = q }
}

// WithClock 指定时间源
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithContext sets the context used by background history writes. It should not be
// tied to a single request.
func WithContext(ctx context.Context) SessionOption {
	return func(s *Session) { s.ctx = ctx }
}

// NewSession creates a session for userID in sequential mode.
func NewSession(userID string, opts ...SessionOption) *Session {
	s := &Session{
		userID: userID,
		state: State{
			Volume:         model.DefaultVolume,
			PreviousVolume: model.DefaultVolume,
		},
		mode: func() Mode { return Sequential },
		now:  time.Now,
		ctx:  context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = NewQueue()
	}
	return s
}

// OnActivity registers a presence listener. Listeners run on the session goroutine.
func (s *Session) OnActivity(fn func(Activity)) {
	s.activityListeners = append(s.activityListeners, fn)
}

// OnError registers a listener for asynchronous persistence failures. Listeners run
// on background goroutines and must be safe for concurrent use.
func (s *Session) OnError(fn func(error)) {
	s.errorListeners = append(s.errorListeners, fn)
}

// UserID returns the owner of the session.
func (s *Session) UserID() string { return s.userID }

// PlayFrom adopts tracks and starts playing the one at index. Empty input is a no-op.
func (s *Session) PlayFrom(tracks []*model.Song, index int) (*model.Song, error) {
	song, err := s.queue.Adopt(tracks, index)
	if err != nil || song == nil {
		return nil, err
	}
	s.setCurrent(song)
	return song, nil
}

// Next advances per the current mode. It returns false when playback stopped.
func (s *Session) Next() bool {
	song, ok := s.queue.Advance(s.mode())
	if !ok {
		s.stop()
		return false
	}
	s.setCurrent(song)
	return true
}

// Previous moves back one track. It returns false when playback stopped.
func (s *Session) Previous() bool {
	song, ok := s.queue.Retreat()
	if !ok {
		s.stop()
		return false
	}
	s.setCurrent(song)
	return true
}

// JumpTo plays the queue entry at index.
func (s *Session) JumpTo(index int) (*model.Song, error) {
	song, err := s.queue.JumpTo(index)
	if err != nil {
		return nil, err
	}
	s.setCurrent(song)
	return song, nil
}

// TogglePlayPause flips playing. Without a current track it stays paused.
func (s *Session) TogglePlayPause() bool {
	if s.state.Current == nil {
		s.state.Playing = false
		return false
	}
	s.state.Playing = !s.state.Playing
	if s.state.Playing {
		s.emit(nowPlaying(s.state.Current), s.state.Current)
	} else {
		s.emit(IdleActivity, nil)
	}
	return s.state.Playing
}

// SetElapsed updates the playback position in seconds.
func (s *Session) SetElapsed(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	s.state.Elapsed = seconds
}

// RemoveAt removes a queue entry. The current selection follows the queue pointer but
// playback is not restarted.
func (s *Session) RemoveAt(index int) {
	s.queue.RemoveAt(index)
	s.state.Current = s.queue.Current()
	if s.state.Current == nil {
		s.state.Playing = false
	}
}

// Reorder moves a queue entry. The current track keeps playing.
func (s *Session) Reorder(from, to int) {
	s.queue.Reorder(from, to)
}

// Clear empties the queue and stops playback.
func (s *Session) Clear() {
	s.queue.Clear()
	wasPlaying := s.state.Playing
	s.state.Current = nil
	s.state.Playing = false
	s.state.Elapsed = 0
	if wasPlaying {
		s.emit(IdleActivity, nil)
	}
}

// State returns a copy of the playback state.
func (s *Session) State() State { return s.state }

// Snapshot returns the playback state together with the queue.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		State:   s.state,
		Queue:   s.queue.Tracks(),
		Pointer: s.queue.Pointer(),
	}
}

// Wait blocks until pending history writes finish.
func (s *Session) Wait() { s.wg.Wait() }

// setCurrent 是唯一写入最近播放记录的路径
func (s *Session) setCurrent(song *model.Song) {
	s.state.Current = song
	s.state.Playing = true
	s.state.Elapsed = 0
	s.emit(nowPlaying(song), song)

	if s.history == nil {
		return
	}
	// 同一毫秒内的连续切歌也要保持先后顺序
	at := s.now()
	if !at.After(s.lastPlayed) {
		at = s.lastPlayed.Add(time.Millisecond)
	}
	s.lastPlayed = at

	s.wg.Add(1)
	s.mu.Lock()
	s.pending = append(s.pending, historyWrite{songID: song.ID, at: at})
	if !s.writing {
		s.writing = true
		go s.drainHistory()
	}
	s.mu.Unlock()
}

// drainHistory 按入队顺序写入，队列为空时退出
func (s *Session) drainHistory() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.writing = false
			s.mu.Unlock()
			return
		}
		w := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		if _, err := s.history.Record(s.ctx, s.userID, w.songID, w.at); err != nil {
			s.fail(fmt.Errorf("record recent song %d: %w", w.songID, err))
		}
		s.wg.Done()
	}
}

func (s *Session) stop() {
	s.state.Playing = false
	s.emit(IdleActivity, nil)
}

func (s *Session) applyVolume(volume int) {
	s.state.Volume = volume
	s.state.Muted = volume == 0
}

func (s *Session) emit(message string, song *model.Song) {
	a := Activity{
		UserID:  s.userID,
		Message: message,
		Song:    song,
		Playing: s.state.Playing,
		At:      s.now(),
	}
	for _, fn := range s.activityListeners {
		fn(a)
	}
}

func (s *Session) fail(err error) {
	for _, fn := range s.errorListeners {
		fn(err)
	}
}

func nowPlaying(song *model.Song) string {
	return fmt.Sprintf("Playing %s by %s", song.Title, song.Artist)
}
