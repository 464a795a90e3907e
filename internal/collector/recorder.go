package collector

import "github.com/koustreak/dbmeta/internal/model"

// Recorder accumulates object failures for one database collection. It is
// owned by a single goroutine and handed off with Drain.
type Recorder struct {
	failures []model.ObjectFailure
	seen     map[string]struct{}
	drained  bool
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{seen: make(map[string]struct{})}
}

// Record appends f unless a failure for the same object and stage is
// already present. It reports whether f was stored.
func (r *Recorder) Record(f model.ObjectFailure) bool {
	if r.drained {
		panic("collector: Record called after Drain")
	}
	k := f.Key()
	if _, dup := r.seen[k]; dup {
		return false
	}
	r.seen[k] = struct{}{}
	r.failures = append(r.failures, f)
	return true
}

// Len returns the number of failures recorded so far.
func (r *Recorder) Len() int { return len(r.failures) }

// Drain returns the accumulated failures, never nil, and retires the recorder.
func (r *Recorder) Drain() []model.ObjectFailure {
	out := r.failures
	if out == nil {
		out = []model.ObjectFailure{}
	}
	r.failures = nil
	r.seen = nil
	r.drained = true
	return out
}
