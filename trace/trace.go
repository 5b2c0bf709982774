// Package trace renders a point-in-time snapshot of the global frame
// table (spec §4.B) as a pprof profile, so the frame-table invariant
// (spec §8: every FTE has a matching ON_FRAME SPTE and vice versa) and
// eviction behavior can be inspected with standard pprof tooling
// instead of ad hoc printf debugging, generalized to a format a real
// profiler can open.
package trace

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"

	"frame"
)

// FrameSnapshot builds a pprof profile with one sample per live FTE: the
// sample's value is the single frame it occupies, and its one location
// is labeled with the owning address space and virtual page, so opening
// the profile in `pprof -tree` shows frame count grouped by owner.
func FrameSnapshot(t *frame.Table_t) *profile.Profile {
	entries := t.Snapshot()

	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "frames", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "frames", Unit: "count"},
		Period:     1,
	}

	funcs := make(map[string]*profile.Function)
	var nextID uint64 = 1

	funcFor := func(name string) *profile.Function {
		if f, ok := funcs[name]; ok {
			return f
		}
		f := &profile.Function{ID: nextID, Name: name, SystemName: name}
		nextID++
		funcs[name] = f
		p.Function = append(p.Function, f)
		return f
	}

	for _, e := range entries {
		owner := fmt.Sprintf("owner(%p)", e.Owner)
		fn := funcFor(owner)
		loc := &profile.Location{
			ID:      nextID,
			Address: uint64(e.Page),
			Line:    []profile.Line{{Function: fn}},
		}
		nextID++
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{1},
			Label:    map[string][]string{"owner": {owner}},
		})
	}
	return p
}

// Write encodes the snapshot in pprof's gzip-compressed wire format.
func Write(w io.Writer, t *frame.Table_t) error {
	return FrameSnapshot(t).Write(w)
}
