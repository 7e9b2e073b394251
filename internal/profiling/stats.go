package profiling

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/pprof/profile"
)

// calleeRows is how many of the top entries get caller/callee listings.
const calleeRows = 5

// Entry aggregates samples for one function.
type Entry struct {
	Name    string
	File    string
	Flat    int64
	Cum     int64
	Callers map[string]int64
	Callees map[string]int64
}

// Stats is a per-function breakdown of a profile sorted by cumulative
// value, highest first.
type Stats struct {
	Unit    string
	Total   int64
	Entries []*Entry
}

// Analyze decodes a pprof profile and aggregates its last sample value by
// function.
func Analyze(data []byte) (*Stats, error) {
	p, err := profile.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}

	stats := &Stats{}
	if len(p.SampleType) == 0 {
		return stats, nil
	}
	idx := len(p.SampleType) - 1
	stats.Unit = p.SampleType[idx].Unit

	byName := map[string]*Entry{}
	entry := func(fn *profile.Function) *Entry {
		e, ok := byName[fn.Name]
		if !ok {
			e = &Entry{Name: fn.Name, File: fn.Filename, Callers: map[string]int64{}, Callees: map[string]int64{}}
			byName[fn.Name] = e
		}
		return e
	}

	for _, s := range p.Sample {
		v := s.Value[idx]
		stats.Total += v

		// Frames run leaf first; inlined lines are listed innermost first.
		var stack []*profile.Function
		for _, loc := range s.Location {
			for _, line := range loc.Line {
				if line.Function != nil {
					stack = append(stack, line.Function)
				}
			}
		}
		if len(stack) == 0 {
			continue
		}

		entry(stack[0]).Flat += v
		seen := map[string]bool{}
		for i, fn := range stack {
			e := entry(fn)
			if !seen[fn.Name] {
				e.Cum += v
				seen[fn.Name] = true
			}
			if i+1 < len(stack) {
				caller := stack[i+1].Name
				e.Callers[caller] += v
				entry(stack[i+1]).Callees[fn.Name] += v
			}
		}
	}

	for _, e := range byName {
		stats.Entries = append(stats.Entries, e)
	}
	sort.Slice(stats.Entries, func(i, j int) bool {
		a, b := stats.Entries[i], stats.Entries[j]
		if a.Cum != b.Cum {
			return a.Cum > b.Cum
		}
		if a.Flat != b.Flat {
			return a.Flat > b.Flat
		}
		return a.Name < b.Name
	})
	return stats, nil
}

// Write prints the top limit entries followed by callers and callees of
// the leading ones.
func (s *Stats) Write(w io.Writer, limit int) error {
	if len(s.Entries) == 0 {
		_, err := fmt.Fprintln(w, "no samples collected")
		return err
	}
	if limit <= 0 || limit > len(s.Entries) {
		limit = len(s.Entries)
	}

	fmt.Fprintf(w, "total %s, showing %d of %d functions sorted by cumulative\n\n", s.format(s.Total), limit, len(s.Entries))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "flat\tflat%\tcum\tcum%\t\t")
	for _, e := range s.Entries[:limit] {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\t%s\n", s.format(e.Flat), s.percent(e.Flat), s.format(e.Cum), s.percent(e.Cum), e.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	rows := limit
	if rows > calleeRows {
		rows = calleeRows
	}
	for _, e := range s.Entries[:rows] {
		fmt.Fprintf(w, "\n%s\n", e.Name)
		s.writeEdges(w, "called by", e.Callers)
		s.writeEdges(w, "calls", e.Callees)
	}
	return nil
}

func (s *Stats) writeEdges(w io.Writer, label string, edges map[string]int64) {
	if len(edges) == 0 {
		return
	}
	names := make([]string, 0, len(edges))
	for name := range edges {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if edges[names[i]] != edges[names[j]] {
			return edges[names[i]] > edges[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Fprintf(w, "  %-9s %10s  %s\n", label, s.format(edges[name]), name)
	}
}

func (s *Stats) format(v int64) string {
	if s.Unit == "nanoseconds" {
		return time.Duration(v).Round(time.Microsecond).String()
	}
	return fmt.Sprintf("%d", v)
}

func (s *Stats) percent(v int64) string {
	if s.Total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(v)/float64(s.Total))
}
