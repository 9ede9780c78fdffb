package player

import "melodify/model"

// Mode 决定 Advance 如何选择下一首
type Mode int

const (
	Sequential Mode = iota
	Shuffle
	LoopOne
	LoopAll
	ShuffleLoopAll // 随机播放，越界时回到开头
)

func (m Mode) String() string {
	switch m {
	case Shuffle:
		return "shuffle"
	case LoopOne:
		return "loop-one"
	case LoopAll:
		return "loop-all"
	case ShuffleLoopAll:
		return "shuffle+loop-all"
	default:
		return "sequential"
	}
}

func (m Mode) shuffles() bool { return m == Shuffle || m == ShuffleLoopAll }

func (m Mode) wraps() bool { return m == LoopAll || m == ShuffleLoopAll }

// ModeFor derives the advance mode from persisted settings. Loop-one wins over shuffle.
func ModeFor(shuffle bool, loop model.LoopMode) Mode {
	switch {
	case loop == model.LoopOne:
		return LoopOne
	case shuffle && loop == model.LoopAll:
		return ShuffleLoopAll
	case shuffle:
		return Shuffle
	case loop == model.LoopAll:
		return LoopAll
	default:
		return Sequential
	}
}
