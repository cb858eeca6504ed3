package join

import (
	"fmt"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring"
)

// StageStats counts the work done at one stage
type StageStats struct {
	Stage      int
	Name       string
	Candidates int64 // tuples considered (scanned or returned by probes)
	Passed     int64 // candidates satisfying the local predicate
	Probes     int64 // index lookups issued, 0 for the driving stage
	Misses     int64 // lookups that found no bucket
}

// Stats summarises one run
type Stats struct {
	Driving        int64 // driving rows scanned
	Emitted        int64 // bindings handed to the sink
	GlobalRejected int64 // complete bindings failing the global predicate
	Stages         []StageStats
	Duration       time.Duration

	// Matched holds the ordinals of driving rows that produced at least
	// one emitted binding.
	Matched *roaring.Bitmap
}

func newStats(p *Pipeline) Stats {
	s := Stats{
		Stages:  make([]StageStats, len(p.stages)),
		Matched: roaring.New(),
	}
	for i, st := range p.stages {
		s.Stages[i] = StageStats{Stage: i, Name: st.name}
	}
	return s
}

// merge adds the counters of other into s
func (s *Stats) merge(other Stats) {
	s.Driving += other.Driving
	s.Emitted += other.Emitted
	s.GlobalRejected += other.GlobalRejected
	for i := range s.Stages {
		s.Stages[i].Candidates += other.Stages[i].Candidates
		s.Stages[i].Passed += other.Stages[i].Passed
		s.Stages[i].Probes += other.Stages[i].Probes
		s.Stages[i].Misses += other.Stages[i].Misses
	}
	s.Matched.Or(other.Matched)
}

// MatchedRows returns the number of driving rows with at least one result
func (s Stats) MatchedRows() uint64 {
	if s.Matched == nil {
		return 0
	}
	return s.Matched.GetCardinality()
}

// String renders a compact multi-line summary
func (s Stats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d results from %d driving rows (%d matched) in %s\n",
		s.Emitted, s.Driving, s.MatchedRows(), s.Duration)
	for _, st := range s.Stages {
		fmt.Fprintf(&sb, "  %d %-8s candidates=%d passed=%d", st.Stage, st.Name, st.Candidates, st.Passed)
		if st.Stage > 0 {
			fmt.Fprintf(&sb, " probes=%d misses=%d", st.Probes, st.Misses)
		}
		sb.WriteString("\n")
	}
	if s.GlobalRejected > 0 {
		fmt.Fprintf(&sb, "  global rejected %d\n", s.GlobalRejected)
	}
	return sb.String()
}
