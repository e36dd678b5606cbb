package dyno

// DefaultMinimumRecords is the run length that commits a phase.
const DefaultMinimumRecords = 20

// Engine turns a stream of speed samples into power and loss curves.
// It keeps one append-only record store per session and is not safe for
// concurrent use; wrap it (see pkg/session) when feeding and reading from
// different goroutines.
type Engine struct {
	cal     Calibration
	records []Record
	seg     segmenter

	// derived fields are stale
	dirty bool
}

// New creates an engine. minimumRecords <= 0 selects DefaultMinimumRecords.
func New(minimumRecords int) *Engine {
	if minimumRecords <= 0 {
		minimumRecords = DefaultMinimumRecords
	}
	return &Engine{seg: newSegmenter(minimumRecords)}
}

// SetConfig replaces the calibration. Stored records pick it up on the
// next PowerRecords or Records call.
func (e *Engine) SetConfig(cal Calibration) {
	e.cal = cal
	e.dirty = true
}

func (e *Engine) Calibration() Calibration { return e.cal }

// AddRecord appends s and advances the segmentation state machine once.
//
// Direction flags compare floor(speed) with the previous record. The first
// record of a session has no predecessor and gets both flags set.
func (e *Engine) AddRecord(s Sample) {
	r := Record{
		Speed:      s.Speed,
		Time:       s.Time,
		Altitude:   clonePtr(s.Altitude),
		Satellites: clonePtr(s.Satellites),
		Increment:  true,
		Decrement:  true,
	}
	if n := len(e.records); n > 0 {
		prev, cur := e.records[n-1].Speed.Floor(), s.Speed.Floor()
		r.Increment = cur >= prev
		r.Decrement = cur <= prev
	}

	e.records = append(e.records, r)
	e.seg.step(e.records)
	e.dirty = true
}

// PowerRecords recomputes physics and both smoothing passes over the whole
// store and returns copies of the records labeled Power, oldest first.
func (e *Engine) PowerRecords() []Record {
	e.recompute()
	return e.filter(Power)
}

// LossRecords returns copies of the records labeled Loss, oldest first.
// Derived fields are as of the last recompute.
func (e *Engine) LossRecords() []Record {
	return e.filter(Loss)
}

// Records recomputes the derived fields and returns a copy of the whole store.
func (e *Engine) Records() []Record {
	e.recompute()
	out := make([]Record, len(e.records))
	for i, r := range e.records {
		out[i] = r.clone()
	}
	return out
}

// Reset drops every record and the segmentation state. Calibration is kept.
func (e *Engine) Reset() {
	e.records = nil
	e.seg = newSegmenter(e.seg.min)
	e.dirty = false
}

func (e *Engine) Len() int { return len(e.records) }

func (e *Engine) Phase() Phase { return e.seg.phase() }

// Progress reports how far the current run is towards committing the phase
// being sought, in [0,1].
func (e *Engine) Progress() float64 { return e.seg.progress() }

func (e *Engine) MinimumRecords() int { return e.seg.min }

// recompute is a full recompute, skipped when neither the store nor the
// calibration changed since the last one.
func (e *Engine) recompute() {
	if !e.dirty {
		return
	}
	derive(e.records, e.cal)
	smooth(e.records)
	e.dirty = false
}

func (e *Engine) filter(st Status) []Record {
	out := make([]Record, 0)
	for _, r := range e.records {
		if r.Status == st {
			out = append(out, r.clone())
		}
	}
	return out
}

// clone copies r without sharing its optional fields with the store.
func (r Record) clone() Record {
	r.Altitude = clonePtr(r.Altitude)
	r.Satellites = clonePtr(r.Satellites)
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
