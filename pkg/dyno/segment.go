package dyno

import "github.com/ja7ad/dyno/pkg/util"

// segmenter tracks same-direction run lengths and labels the tail of the
// store once a run reaches min. Each phase opens once and is sealed when
// its run breaks; the loss side only counts after power is sealed.
type segmenter struct {
	min int

	powerRun     int
	powerStarted bool
	powerEnded   bool

	lossRun     int
	lossStarted bool
	lossEnded   bool
}

func newSegmenter(minimum int) segmenter { return segmenter{min: minimum} }

// step consumes the transition into the last record. The seed record has
// no transition and is ignored.
func (s *segmenter) step(records []Record) {
	n := len(records)
	if n < 2 {
		return
	}
	// the last record's flags describe the transition from the one before it
	last := records[n-1]

	if !(s.powerStarted && s.powerEnded) {
		if last.Increment {
			s.powerRun++
			s.lossRun = 0
		} else {
			s.powerRun = 0
		}

		if s.powerRun >= s.min && !s.powerEnded {
			s.powerStarted = true
			label(records, s.powerRun+1, Power)
		} else if s.powerStarted && s.powerRun < s.min {
			s.powerEnded = true
		}
		return
	}

	if last.Decrement {
		s.lossRun++
		s.powerRun = 0
	} else {
		s.lossRun = 0
	}

	if s.lossRun >= s.min && !s.lossEnded {
		s.lossStarted = true
		label(records, s.lossRun, Loss)
	} else if s.lossStarted && s.lossRun < s.min {
		s.lossEnded = true
	}
}

// label marks the last count records. Records already carrying a status
// are left alone.
func label(records []Record, count int, st Status) {
	from := max(len(records)-count, 0)
	for i := from; i < len(records); i++ {
		if records[i].Status == Unset {
			records[i].Status = st
		}
	}
}

func (s *segmenter) phase() Phase {
	switch {
	case !s.powerStarted:
		return SeekingPower
	case !s.powerEnded:
		return InPower
	case !s.lossStarted:
		return SeekingLoss
	case !s.lossEnded:
		return InLoss
	default:
		return Done
	}
}

// progress is the current run length relative to min, in [0,1].
func (s *segmenter) progress() float64 {
	if s.min <= 0 {
		return 1
	}
	switch s.phase() {
	case SeekingPower, InPower:
		return util.Clamp01(float64(s.powerRun) / float64(s.min))
	case SeekingLoss, InLoss:
		return util.Clamp01(float64(s.lossRun) / float64(s.min))
	default:
		return 1
	}
}
