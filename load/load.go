// Package load replays a test block across concurrent virtual users
// and aggregates outcomes into a run summary.
package load

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/basjoofan/core/ast"
	"github.com/basjoofan/core/eval"
)

// State is the lifecycle of one run
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateCompleted
	StateCancelled
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateRunning:   "running",
	StateDraining:  "draining",
	StateCompleted: "completed",
	StateCancelled: "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", s)
}

// Outcome classifies one iteration
type Outcome int

const (
	Success Outcome = iota
	AssertionFailure
	ExecutionError
	NetworkFailure
)

var outcomeNames = map[Outcome]string{
	Success:          "success",
	AssertionFailure: "assertion failure",
	ExecutionError:   "execution error",
	NetworkFailure:   "network failure",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", o)
}

// Result is produced exactly once per executed iteration
type Result struct {
	Worker    int
	Outcome   Outcome
	ErrorKind string
	Error     string
	Failed    []string // failed assertion sources
	Records   []*eval.Record
	Elapsed   time.Duration
	Timestamp time.Time
}

// Options configure a run. Duration and Iterations are exclusive stop
// conditions: a set Duration makes the iteration count unbounded.
// With neither set the block runs exactly once per the functional mode.
type Options struct {
	Concurrency int
	Duration    time.Duration
	Iterations  int
	Sender      eval.Sender // nil for the default HTTP client
	Output      io.Writer   // script print output, nil discards
	Records     io.Writer   // per-send record lines, nil discards
	Logger      *slog.Logger
}

// Runner executes one load run over a compiled script.
// The program, the request definitions and the base scope are shared
// read-only by every worker; each iteration gets its own child scope.
type Runner struct {
	block   *ast.TestBlock
	base    *eval.Scope
	opts    Options
	state   atomic.Int32
	stopped atomic.Bool
}

// NewRunner compiles the script's top level into the base scope and
// locates the named test block. A failure here is the caller's to
// handle; nothing has been scheduled yet.
func NewRunner(ctx context.Context, program *ast.Program, name string, opts Options) (*Runner, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Duration > 0 {
		opts.Iterations = math.MaxInt
	} else if opts.Iterations < 1 {
		opts.Iterations = 1
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	} else if opts.Concurrency > 1 {
		// Print builtins run on worker goroutines against this one writer
		opts.Output = &syncWriter{w: opts.Output}
	}
	if opts.Records == nil {
		opts.Records = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	block, ok := program.Test(name)
	if !ok {
		return nil, fmt.Errorf("test not found: %s", name)
	}

	base := eval.NewScope(nil)
	evaluator := newEvaluator(opts)
	if _, err := evaluator.Eval(ctx, program, base); err != nil {
		return nil, err
	}

	return &Runner{block: block, base: base, opts: opts}, nil
}

func newEvaluator(opts Options) *eval.Evaluator {
	evalOpts := []eval.Option{eval.WithOutput(opts.Output)}
	if opts.Sender != nil {
		evalOpts = append(evalOpts, eval.WithSender(opts.Sender))
	}
	return eval.NewEvaluator(evalOpts...)
}

// State returns the run's current lifecycle state
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) transition(from, to State) bool {
	return r.state.CompareAndSwap(int32(from), int32(to))
}

// Run executes the load run and blocks until every worker has drained.
// Cancelling ctx stops the run cooperatively: in-flight iterations
// finish, no further ones start and the partial summary is returned.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if !r.transition(StateIdle, StateRunning) {
		return nil, fmt.Errorf("run already started")
	}

	start := time.Now()
	runID := uuid.NewString()
	r.opts.Logger.Debug("run starting",
		"run", runID, "test", r.block.Name,
		"concurrency", r.opts.Concurrency, "duration", r.opts.Duration)

	results := make(chan Result, r.opts.Concurrency)

	// Shared countdown so the total is exact even when the iteration
	// count does not divide evenly across workers.
	var budget atomic.Int64
	budget.Store(int64(r.opts.Iterations))

	workersDone := make(chan struct{})
	go r.watch(ctx, workersDone)

	var wg sync.WaitGroup
	for w := 0; w < r.opts.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.work(ctx, worker, &budget, results)
		}(w)
	}

	// Fan-in: the aggregator goroutine is the only consumer, so no
	// worker ever touches shared counters or the records writer.
	agg := newAggregator()
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		for result := range results {
			for _, record := range result.Records {
				fmt.Fprintln(r.opts.Records, record)
			}
			agg.add(result)
		}
	}()

	wg.Wait()
	close(workersDone)
	close(results)
	<-aggDone

	if !r.transition(StateRunning, StateCompleted) {
		r.transition(StateDraining, StateCompleted)
	}

	summary := agg.summary(runID, r.block.Name, r.opts.Concurrency, time.Since(start))
	r.opts.Logger.Debug("run finished",
		"run", runID, "state", r.State(),
		"iterations", summary.Iterations, "elapsed", summary.Elapsed)
	return summary, nil
}

// watch flips the stop flag when the duration elapses or the caller
// cancels. Workers observe it only at iteration boundaries.
func (r *Runner) watch(ctx context.Context, done <-chan struct{}) {
	var timeout <-chan time.Time
	if r.opts.Duration > 0 {
		timer := time.NewTimer(r.opts.Duration)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-timeout:
		r.transition(StateRunning, StateDraining)
		r.stopped.Store(true)
	case <-ctx.Done():
		r.state.Store(int32(StateCancelled))
		r.stopped.Store(true)
	case <-done:
	}
}

// work is one virtual user: sequential iterations, each with a fresh
// child scope of the shared base scope and a fresh record list.
func (r *Runner) work(ctx context.Context, worker int, budget *atomic.Int64, results chan<- Result) {
	evaluator := newEvaluator(r.opts)
	// Iterations already in flight are never interrupted; the client's
	// own timeout bounds a hung send.
	iterCtx := context.WithoutCancel(ctx)

	for !r.stopped.Load() && budget.Add(-1) >= 0 {
		scope := eval.NewScope(r.base)
		start := time.Now()
		_, err := evaluator.EvalBlock(iterCtx, r.block.Body, scope)
		elapsed := time.Since(start)

		results <- classify(worker, err, evaluator.TakeRecords(), elapsed)
	}
}

// syncWriter serializes writes from concurrent workers
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// classify folds one iteration's error and records into a Result
func classify(worker int, err error, records []*eval.Record, elapsed time.Duration) Result {
	result := Result{
		Worker:    worker,
		Records:   records,
		Elapsed:   elapsed,
		Timestamp: time.Now(),
	}

	if err != nil {
		result.Error = err.Error()
		result.Outcome = ExecutionError
		if evalErr, ok := err.(*eval.Error); ok {
			result.ErrorKind = evalErr.Kind.String()
			if evalErr.Kind == eval.NetworkFailure {
				result.Outcome = NetworkFailure
			}
		}
		return result
	}

	for _, record := range records {
		for _, scored := range record.Asserts {
			if !scored.Result {
				result.Failed = append(result.Failed, scored.Expr)
			}
		}
	}
	if len(result.Failed) > 0 {
		result.Outcome = AssertionFailure
	}
	return result
}
