package load

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/basjoofan/core/hist"
)

// Latency summarizes the iteration latency distribution. Min, Max and
// Mean are exact; the percentiles are histogram estimates.
type Latency struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
	P50  time.Duration
	P90  time.Duration
	P95  time.Duration
	P99  time.Duration
}

// RequestStat aggregates send durations per request name
type RequestStat struct {
	Count int
	Mean  time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Summary is the aggregate of one load run
type Summary struct {
	RunID             string
	Test              string
	Concurrency       int
	Iterations        int
	Success           int
	AssertionFailures int
	ExecutionErrors   int
	NetworkFailures   int
	ErrorKinds        map[string]int
	Latency           Latency
	Requests          map[string]*RequestStat
	Elapsed           time.Duration
	Throughput        float64 // iterations per second of wall time
}

func (s *Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "test %s: %d iterations in %v (%.1f/s), %d workers\n",
		s.Test, s.Iterations, s.Elapsed.Round(time.Millisecond), s.Throughput, s.Concurrency)
	fmt.Fprintf(&sb, "  success %d, assertion failures %d, execution errors %d, network failures %d\n",
		s.Success, s.AssertionFailures, s.ExecutionErrors, s.NetworkFailures)
	if len(s.ErrorKinds) > 0 {
		kinds := make([]string, 0, len(s.ErrorKinds))
		for kind := range s.ErrorKinds {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(&sb, "    %s: %d\n", kind, s.ErrorKinds[kind])
		}
	}
	fmt.Fprintf(&sb, "  latency min %v  mean %v  max %v\n",
		s.Latency.Min.Round(time.Microsecond),
		s.Latency.Mean.Round(time.Microsecond),
		s.Latency.Max.Round(time.Microsecond))
	fmt.Fprintf(&sb, "          p50 %v  p90 %v  p95 %v  p99 %v\n",
		s.Latency.P50.Round(time.Microsecond),
		s.Latency.P90.Round(time.Microsecond),
		s.Latency.P95.Round(time.Microsecond),
		s.Latency.P99.Round(time.Microsecond))
	if len(s.Requests) > 0 {
		names := make([]string, 0, len(s.Requests))
		for name := range s.Requests {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("  requests:\n")
		for _, name := range names {
			stat := s.Requests[name]
			fmt.Fprintf(&sb, "    %-20s count %-8d mean %-12v min %-12v max %v\n",
				name, stat.Count,
				stat.Mean.Round(time.Microsecond),
				stat.Min.Round(time.Microsecond),
				stat.Max.Round(time.Microsecond))
		}
	}
	return sb.String()
}

// histBits and histMax size the latency histogram: microsecond samples
// up to ten minutes with a 1/64 resolution.
const (
	histBits = 6
	histMax  = int(10 * time.Minute / time.Microsecond)
)

// aggregator folds iteration results into a summary. It runs on a
// single goroutine; merging is associative and commutative, so worker
// arrival order never matters.
type aggregator struct {
	iterations int
	outcomes   map[Outcome]int
	errorKinds map[string]int
	latencies  *hist.Hist
	latMin     time.Duration
	latMax     time.Duration
	latSum     time.Duration
	requests   map[string]*requestAccum
}

type requestAccum struct {
	count int
	sum   time.Duration
	min   time.Duration
	max   time.Duration
}

func newAggregator() *aggregator {
	return &aggregator{
		outcomes:   make(map[Outcome]int),
		errorKinds: make(map[string]int),
		latencies:  hist.New(histBits, histMax),
		requests:   make(map[string]*requestAccum),
	}
}

func (a *aggregator) add(result Result) {
	a.iterations++
	a.outcomes[result.Outcome]++
	if result.ErrorKind != "" {
		a.errorKinds[result.ErrorKind]++
	}

	a.latencies.Add(int(result.Elapsed / time.Microsecond))
	if a.iterations == 1 || result.Elapsed < a.latMin {
		a.latMin = result.Elapsed
	}
	if result.Elapsed > a.latMax {
		a.latMax = result.Elapsed
	}
	a.latSum += result.Elapsed

	for _, record := range result.Records {
		if record.Response == nil {
			continue
		}
		accum, ok := a.requests[record.Name]
		if !ok {
			accum = &requestAccum{min: record.Duration, max: record.Duration}
			a.requests[record.Name] = accum
		}
		accum.count++
		accum.sum += record.Duration
		if record.Duration < accum.min {
			accum.min = record.Duration
		}
		if record.Duration > accum.max {
			accum.max = record.Duration
		}
	}
}

func (a *aggregator) summary(runID, test string, concurrency int, elapsed time.Duration) *Summary {
	s := &Summary{
		RunID:             runID,
		Test:              test,
		Concurrency:       concurrency,
		Iterations:        a.iterations,
		Success:           a.outcomes[Success],
		AssertionFailures: a.outcomes[AssertionFailure],
		ExecutionErrors:   a.outcomes[ExecutionError],
		NetworkFailures:   a.outcomes[NetworkFailure],
		ErrorKinds:        a.errorKinds,
		Requests:          make(map[string]*RequestStat, len(a.requests)),
		Elapsed:           elapsed,
	}
	if elapsed > 0 {
		s.Throughput = float64(a.iterations) / elapsed.Seconds()
	}
	if a.iterations > 0 {
		quantiles := a.latencies.Quantiles([]float64{0.5, 0.9, 0.95, 0.99})
		s.Latency = Latency{
			Min:  a.latMin,
			Max:  a.latMax,
			Mean: a.latSum / time.Duration(a.iterations),
			P50:  time.Duration(quantiles[0]) * time.Microsecond,
			P90:  time.Duration(quantiles[1]) * time.Microsecond,
			P95:  time.Duration(quantiles[2]) * time.Microsecond,
			P99:  time.Duration(quantiles[3]) * time.Microsecond,
		}
	}
	for name, accum := range a.requests {
		s.Requests[name] = &RequestStat{
			Count: accum.count,
			Mean:  accum.sum / time.Duration(accum.count),
			Min:   accum.min,
			Max:   accum.max,
		}
	}
	return s
}
