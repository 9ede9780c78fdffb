package player

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodify/model"
)

type fakeSettingsAPI struct {
	stored model.PlayerSettings
	err    error
	volume []int
}

func (f *fakeSettingsAPI) Load(context.Context) (model.PlayerSettings, error) {
	return f.stored, f.err
}

func (f *fakeSettingsAPI) ToggleShuffle(context.Context) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	f.stored.Shuffle = !f.stored.Shuffle
	return "shuffle toggled", f.stored.Shuffle, nil
}

func (f *fakeSettingsAPI) CycleLoop(context.Context) (string, model.LoopMode, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.stored.Loop = f.stored.Loop.Next()
	return "loop cycled", f.stored.Loop, nil
}

func (f *fakeSettingsAPI) SetVolume(_ context.Context, v int) (string, int, error) {
	f.volume = append(f.volume, v)
	if f.err != nil {
		return "", 0, f.err
	}
	f.stored.Volume = v
	return "volume set", v, nil
}

func (f *fakeSettingsAPI) ToggleQueue(context.Context) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	f.stored.ShowQueue = !f.stored.ShowQueue
	return "queue toggled", f.stored.ShowQueue, nil
}

type recordingNotifier struct {
	messages []string
	errs     []error
}

func (n *recordingNotifier) Notify(msg string)     { n.messages = append(n.messages, msg) }
func (n *recordingNotifier) NotifyError(err error) { n.errs = append(n.errs, err) }

func TestStartAppliesVolume(t *testing.T) {
	cases := []struct {
		volume       int
		wantMuted    bool
		wantPrevious int
	}{
		{40, false, 40},
		{0, true, model.DefaultVolume},
	}
	for _, c := range cases {
		api := &fakeSettingsAPI{stored: model.PlayerSettings{Volume: c.volume, Loop: model.LoopAll, Shuffle: true}}
		s := NewSession("u")
		sync := NewSettingsSync(api, s, &recordingNotifier{})
		require.NoError(t, sync.Start(context.Background()))

		st := s.State()
		assert.Equal(t, c.volume, st.Volume)
		assert.Equal(t, c.wantMuted, st.Muted)
		assert.Equal(t, c.wantPrevious, st.PreviousVolume)
		assert.Equal(t, ShuffleLoopAll, sync.Mode())
	}
}

func TestStartFailure(t *testing.T) {
	api := &fakeSettingsAPI{err: errors.New("unavailable")}
	sync := NewSettingsSync(api, NewSession("u"), &recordingNotifier{})
	err := sync.Start(context.Background())
	assert.ErrorIs(t, err, api.err)
	assert.Equal(t, model.DefaultPlayerSettings(), sync.Settings())
}

func TestTogglesApplyConfirmedValues(t *testing.T) {
	api := &fakeSettingsAPI{stored: model.DefaultPlayerSettings()}
	n := &recordingNotifier{}
	s := NewSession("u")
	sync := NewSettingsSync(api, s, n)
	ctx := context.Background()
	require.NoError(t, sync.Start(ctx))

	commit := sync.ToggleShuffle(ctx)
	assert.False(t, sync.Settings().Shuffle, "not applied before commit")
	commit()
	assert.True(t, sync.Settings().Shuffle)

	sync.CycleLoop(ctx)()
	assert.Equal(t, model.LoopOne, sync.Settings().Loop)
	assert.Equal(t, LoopOne, sync.Mode())

	sync.ToggleQueue(ctx)()
	assert.True(t, sync.Settings().ShowQueue)

	sync.SetVolume(ctx, 30)()
	assert.Equal(t, 30, sync.Settings().Volume)
	assert.Equal(t, 30, s.State().Volume)

	assert.Equal(t, []string{"shuffle toggled", "loop cycled", "queue toggled", "volume set"}, n.messages)
	assert.Empty(t, n.errs)
}

func TestFailedToggleLeavesStateUnchanged(t *testing.T) {
	api := &fakeSettingsAPI{stored: model.DefaultPlayerSettings()}
	n := &recordingNotifier{}
	s := NewSession("u")
	sync := NewSettingsSync(api, s, n)
	ctx := context.Background()
	require.NoError(t, sync.Start(ctx))

	api.err = errors.New("write failed")
	sync.ToggleShuffle(ctx)()
	sync.CycleLoop(ctx)()
	sync.SetVolume(ctx, 10)()

	assert.Equal(t, model.DefaultPlayerSettings(), sync.Settings())
	assert.Equal(t, model.DefaultVolume, s.State().Volume)
	assert.Len(t, n.errs, 3)
	assert.Empty(t, n.messages)
}

func TestToggleMuteRoundTrip(t *testing.T) {
	api := &fakeSettingsAPI{stored: model.PlayerSettings{Volume: 60, Loop: model.LoopOff}}
	s := NewSession("u")
	sync := NewSettingsSync(api, s, &recordingNotifier{})
	ctx := context.Background()
	require.NoError(t, sync.Start(ctx))

	sync.ToggleMute(ctx, s.State())()
	st := s.State()
	assert.True(t, st.Muted)
	assert.Zero(t, st.Volume)
	assert.Equal(t, 60, st.PreviousVolume)

	sync.ToggleMute(ctx, s.State())()
	st = s.State()
	assert.False(t, st.Muted)
	assert.Equal(t, 60, st.Volume)
	assert.Equal(t, []int{0, 60}, api.volume)
}

func TestUnmuteFallsBackToDefault(t *testing.T) {
	api := &fakeSettingsAPI{stored: model.PlayerSettings{Volume: 0, Loop: model.LoopOff}}
	s := NewSession("u")
	sync := NewSettingsSync(api, s, &recordingNotifier{})
	ctx := context.Background()
	require.NoError(t, sync.Start(ctx))

	sync.ToggleMute(ctx, s.State())()
	assert.Equal(t, model.DefaultVolume, s.State().Volume)
	assert.False(t, s.State().Muted)
}

func TestSessionAdvancesWithSyncedMode(t *testing.T) {
	api := &fakeSettingsAPI{stored: model.PlayerSettings{Volume: 50, Loop: model.LoopAll}}
	s := NewSession("u")
	sync := NewSettingsSync(api, s, &recordingNotifier{})
	require.NoError(t, sync.Start(context.Background()))

	_, err := s.PlayFrom(makeSongs("A", "B"), 1)
	require.NoError(t, err)
	require.True(t, s.Next())
	assert.Equal(t, "A", s.State().Current.Title)
}
