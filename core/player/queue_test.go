package player

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodify/model"
)

func makeSongs(titles ...string) []*model.Song {
	out := make([]*model.Song, len(titles))
	for i, title := range titles {
		out[i] = &model.Song{ID: int64(i + 1), Title: title, Artist: "Artist " + title, Duration: 180}
	}
	return out
}

func numberedSongs(n int) []*model.Song {
	titles := make([]string, n)
	for i := range titles {
		titles[i] = fmt.Sprintf("T%d", i)
	}
	return makeSongs(titles...)
}

func titles(tracks []*model.Song) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Title
	}
	return out
}

func TestAdoptReturnsTrackAtStart(t *testing.T) {
	tracks := numberedSongs(5)
	for i := range tracks {
		q := NewQueue()
		song, err := q.Adopt(tracks, i)
		require.NoError(t, err)
		assert.Same(t, tracks[i], song)
		assert.Same(t, tracks[i], q.Current())
		assert.Equal(t, i, q.Pointer())
	}
}

func TestAdoptEmptyIsNoop(t *testing.T) {
	q := NewQueue()
	_, err := q.Adopt(makeSongs("A", "B"), 1)
	require.NoError(t, err)

	song, err := q.Adopt(nil, 0)
	require.NoError(t, err)
	assert.Nil(t, song)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 1, q.Pointer())
}

func TestAdoptOutOfRange(t *testing.T) {
	q := NewQueue()
	_, err := q.Adopt(makeSongs("A"), 3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, NoTrack, q.Pointer())
}

func TestAdoptCopiesInput(t *testing.T) {
	tracks := makeSongs("A", "B", "C")
	q := NewQueue()
	_, err := q.Adopt(tracks, 0)
	require.NoError(t, err)

	q.RemoveAt(0)
	assert.Equal(t, []string{"A", "B", "C"}, titles(tracks))
}

func TestAdvanceSequentialScenario(t *testing.T) {
	q := NewQueue()
	_, err := q.Adopt(makeSongs("A", "B", "C"), 0)
	require.NoError(t, err)

	song, ok := q.Advance(Sequential)
	require.True(t, ok)
	assert.Equal(t, "B", song.Title)
	assert.Equal(t, 1, q.Pointer())

	song, ok = q.Advance(Sequential)
	require.True(t, ok)
	assert.Equal(t, "C", song.Title)
	assert.Equal(t, 2, q.Pointer())

	song, ok = q.Advance(Sequential)
	assert.False(t, ok)
	assert.Nil(t, song)
	assert.Equal(t, 2, q.Pointer())
}

func TestAdvanceLoopAllWraps(t *testing.T) {
	q := NewQueue()
	_, err := q.Adopt(makeSongs("A", "B", "C"), 2)
	require.NoError(t, err)

	song, ok := q.Advance(LoopAll)
	require.True(t, ok)
	assert.Equal(t, "A", song.Title)
	assert.Equal(t, 0, q.Pointer())
}

func TestAdvanceLoopOneReplays(t *testing.T) {
	for _, shuffle := range []bool{false, true} {
		mode := ModeFor(shuffle, model.LoopOne)
		require.Equal(t, LoopOne, mode)

		q := NewQueue(WithRand(rand.New(rand.NewSource(7))))
		_, err := q.Adopt(makeSongs("A", "B", "C"), 2)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			song, ok := q.Advance(mode)
			require.True(t, ok)
			assert.Equal(t, "C", song.Title)
			assert.Equal(t, 2, q.Pointer())
		}
	}
}

func TestAdvanceShuffleStaysInRange(t *testing.T) {
	tracks := numberedSongs(6)
	q := NewQueue(WithRand(rand.New(rand.NewSource(42))))
	_, err := q.Adopt(tracks, 0)
	require.NoError(t, err)

	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		song, ok := q.Advance(Shuffle)
		require.True(t, ok)
		p := q.Pointer()
		require.True(t, p >= 0 && p < len(tracks))
		assert.Same(t, tracks[p], song)
		seen[p] = true
	}
	// 均匀随机，200 次足以覆盖全部下标
	assert.Len(t, seen, len(tracks))
}

func TestAdvanceEmptyQueueStops(t *testing.T) {
	q := NewQueue()
	for _, mode := range []Mode{Sequential, Shuffle, LoopOne, LoopAll, ShuffleLoopAll} {
		_, ok := q.Advance(mode)
		assert.False(t, ok, mode.String())
	}
}

func TestRetreat(t *testing.T) {
	q := NewQueue()
	_, err := q.Adopt(makeSongs("A", "B", "C"), 1)
	require.NoError(t, err)

	song, ok := q.Retreat()
	require.True(t, ok)
	assert.Equal(t, "A", song.Title)
	assert.Equal(t, 0, q.Pointer())

	song, ok = q.Retreat()
	assert.False(t, ok)
	assert.Nil(t, song)
	assert.Equal(t, 0, q.Pointer())
}

func TestRemoveAt(t *testing.T) {
	cases := []struct {
		name    string
		pointer int
		remove  int
		want    []string
		wantPtr int
	}{
		{"before pointer", 2, 0, []string{"B", "C", "D"}, 1},
		{"after pointer", 1, 3, []string{"A", "B", "C"}, 1},
		{"current slides to next", 1, 1, []string{"A", "C", "D"}, 1},
		{"current at tail clamps", 3, 3, []string{"A", "B", "C"}, 2},
		{"out of range", 1, 9, []string{"A", "B", "C", "D"}, 1},
		{"negative", 1, -1, []string{"A", "B", "C", "D"}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q := NewQueue()
			_, err := q.Adopt(makeSongs("A", "B", "C", "D"), c.pointer)
			require.NoError(t, err)

			q.RemoveAt(c.remove)
			assert.Equal(t, c.want, titles(q.Tracks()))
			assert.Equal(t, c.wantPtr, q.Pointer())
		})
	}
}

func TestRemoveOnlyTrack(t *testing.T) {
	q := NewQueue()
	_, err := q.Adopt(makeSongs("A"), 0)
	require.NoError(t, err)

	q.RemoveAt(q.Pointer())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, NoTrack, q.Pointer())
	assert.Nil(t, q.Current())
}

func TestReorder(t *testing.T) {
	cases := []struct {
		name     string
		pointer  int
		from, to int
		want     []string
		wantPtr  int
	}{
		{"moving current", 1, 1, 3, []string{"A", "C", "D", "B", "E"}, 3},
		{"across pointer forward", 2, 0, 3, []string{"B", "C", "D", "A", "E"}, 1},
		{"onto pointer forward", 2, 0, 2, []string{"B", "C", "A", "D", "E"}, 1},
		{"across pointer backward", 2, 4, 1, []string{"A", "E", "B", "C", "D"}, 3},
		{"onto pointer backward", 2, 4, 2, []string{"A", "B", "E", "C", "D"}, 3},
		{"behind pointer", 3, 0, 1, []string{"B", "A", "C", "D", "E"}, 3},
		{"same index", 2, 2, 2, []string{"A", "B", "C", "D", "E"}, 2},
		{"out of range", 2, 0, 5, []string{"A", "B", "C", "D", "E"}, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q := NewQueue()
			_, err := q.Adopt(makeSongs("A", "B", "C", "D", "E"), c.pointer)
			require.NoError(t, err)

			q.Reorder(c.from, c.to)
			assert.Equal(t, c.want, titles(q.Tracks()))
			assert.Equal(t, c.wantPtr, q.Pointer())
		})
	}
}

func TestReorderRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(2024))
	for i := 0; i < 500; i++ {
		n := 2 + rnd.Intn(9)
		tracks := numberedSongs(n)
		rnd.Shuffle(n, func(a, b int) { tracks[a], tracks[b] = tracks[b], tracks[a] })

		q := NewQueue()
		pointer := rnd.Intn(n)
		_, err := q.Adopt(tracks, pointer)
		require.NoError(t, err)
		current := q.Current()

		a, b := rnd.Intn(n), rnd.Intn(n)
		q.Reorder(a, b)
		assert.ElementsMatch(t, tracks, q.Tracks())
		assert.Same(t, current, q.Current(), "pointer follows the current track")

		q.Reorder(b, a)
		assert.Equal(t, titles(tracks), titles(q.Tracks()), "reorder(%d,%d) then back", a, b)
		assert.Equal(t, pointer, q.Pointer())
	}
}

func TestClearAndJumpTo(t *testing.T) {
	q := NewQueue()
	_, err := q.Adopt(makeSongs("A", "B", "C"), 0)
	require.NoError(t, err)

	song, err := q.JumpTo(2)
	require.NoError(t, err)
	assert.Equal(t, "C", song.Title)

	_, err = q.JumpTo(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, 2, q.Pointer())

	q.Clear()
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, NoTrack, q.Pointer())
	assert.Nil(t, q.Current())
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, Sequential, ModeFor(false, model.LoopOff))
	assert.Equal(t, Shuffle, ModeFor(true, model.LoopOff))
	assert.Equal(t, LoopAll, ModeFor(false, model.LoopAll))
	assert.Equal(t, ShuffleLoopAll, ModeFor(true, model.LoopAll))
	assert.Equal(t, LoopOne, ModeFor(true, model.LoopOne))
	assert.Equal(t, Sequential, ModeFor(false, model.LoopMode("bogus")))
}
