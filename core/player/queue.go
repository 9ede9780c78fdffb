package player

import (
	"errors"
	"math/rand"
	"time"

	"melodify/model"
)

// ErrIndexOutOfRange is returned by Adopt and JumpTo for an index outside the queue.
var ErrIndexOutOfRange = errors.New("queue index out of range")

// NoTrack 表示没有当前曲目的指针值
const NoTrack = -1

// Queue 播放队列与当前指针。非并发安全，由所属 Session 串行调用。
type Queue struct {
	tracks  []*model.Song
	pointer int
	rnd     *rand.Rand
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithRand 指定随机源，测试中用于固定随机播放顺序
func WithRand(r *rand.Rand) QueueOption {
	return func(q *Queue) { q.rnd = r }
}

// NewQueue creates an empty queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{pointer: NoTrack}
	for _, opt := range opts {
		opt(q)
	}
	if q.rnd == nil {
		q.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return q
}

// Adopt replaces the queue with tracks and points at start. Empty input leaves the
// queue untouched and returns nil.
func (q *Queue) Adopt(tracks []*model.Song, start int) (*model.Song, error) {
	if len(tracks) == 0 {
		return nil, nil
	}
	if start < 0 || start >= len(tracks) {
		return nil, ErrIndexOutOfRange
	}
	q.tracks = append(make([]*model.Song, 0, len(tracks)), tracks...)
	q.pointer = start
	return q.tracks[start], nil
}

// Advance moves the pointer per mode. ok=false is the stop signal; the pointer is left unchanged.
func (q *Queue) Advance(mode Mode) (*model.Song, bool) {
	n := len(q.tracks)
	if n == 0 {
		return nil, false
	}

	if mode == LoopOne {
		if q.pointer == NoTrack {
			return nil, false
		}
		return q.tracks[q.pointer], true
	}

	next := q.pointer + 1
	if mode.shuffles() {
		next = q.rnd.Intn(n) // 允许重复当前曲目
	}

	if next >= n {
		if !mode.wraps() {
			return nil, false
		}
		next = 0
	}

	q.pointer = next
	return q.tracks[next], true
}

// Retreat moves the pointer back by one. ok=false at the head of the queue.
func (q *Queue) Retreat() (*model.Song, bool) {
	prev := q.pointer - 1
	if prev < 0 || prev >= len(q.tracks) {
		return nil, false
	}
	q.pointer = prev
	return q.tracks[prev], true
}

// RemoveAt splices out the track at index. Removing the current track slides the
// pointer onto the next available one, or NoTrack when the queue empties.
func (q *Queue) RemoveAt(index int) {
	if index < 0 || index >= len(q.tracks) {
		return
	}
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)

	switch {
	case index < q.pointer:
		q.pointer--
	case index == q.pointer:
		if last := len(q.tracks) - 1; q.pointer > last {
			q.pointer = last
		}
	}
}

// Reorder moves the track at from to to with remove-then-insert semantics.
func (q *Queue) Reorder(from, to int) {
	n := len(q.tracks)
	if from == to || from < 0 || from >= n || to < 0 || to >= n {
		return
	}

	moved := q.tracks[from]
	q.tracks = append(q.tracks[:from], q.tracks[from+1:]...)
	q.tracks = append(q.tracks[:to], append([]*model.Song{moved}, q.tracks[to:]...)...)

	p := q.pointer
	switch {
	case from == p:
		q.pointer = to
	case from < p && p <= to:
		q.pointer--
	case to <= p && p < from:
		q.pointer++
	}
}

// JumpTo points at index directly.
func (q *Queue) JumpTo(index int) (*model.Song, error) {
	if index < 0 || index >= len(q.tracks) {
		return nil, ErrIndexOutOfRange
	}
	q.pointer = index
	return q.tracks[index], nil
}

// Clear 清空队列
func (q *Queue) Clear() {
	q.tracks = nil
	q.pointer = NoTrack
}

// Current returns the track under the pointer, or nil.
func (q *Queue) Current() *model.Song {
	if q.pointer < 0 || q.pointer >= len(q.tracks) {
		return nil
	}
	return q.tracks[q.pointer]
}

func (q *Queue) Pointer() int { return q.pointer }

func (q *Queue) Len() int { return len(q.tracks) }

// Tracks returns a copy of the queue contents.
func (q *Queue) Tracks() []*model.Song {
	return append([]*model.Song(nil), q.tracks...)
}
