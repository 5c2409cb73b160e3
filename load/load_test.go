package load

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basjoofan/core/ast"
	"github.com/basjoofan/core/parser"
	"github.com/basjoofan/core/request"
)

// stubSender answers every send from memory and counts calls
type stubSender struct {
	status int
	body   string
	err    error
	delay  time.Duration
	calls  atomic.Int64
}

func (s *stubSender) Do(_ context.Context, _ *request.Request) (*request.Response, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &request.Response{
		Status:     "200 OK",
		StatusCode: s.status,
		Version:    "HTTP/1.1",
		Header:     http.Header{},
		Body:       []byte(s.body),
		Duration:   time.Millisecond,
	}, nil
}

const pingScript = `
rq ping ` + "`" + `
GET https://example.com/ping
` + "`" + `[status == 200]
test smoke {
	ping->
}
`

func parseScript(t *testing.T, src string) *ast.Program {
	t.Helper()
	program, err := parser.ParseFile(src)
	require.NoError(t, err)
	return program
}

func TestRunSingleIteration(t *testing.T) {
	stub := &stubSender{status: 200}
	runner, err := NewRunner(context.Background(), parseScript(t, pingScript), "smoke",
		Options{Sender: stub})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, runner.State())

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, runner.State())

	assert.Equal(t, 1, summary.Iterations)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 0, summary.AssertionFailures)
	assert.Equal(t, int64(1), stub.calls.Load())
	require.Contains(t, summary.Requests, "ping")
	assert.Equal(t, 1, summary.Requests["ping"].Count)
}

func TestRunExactIterationTotal(t *testing.T) {
	stub := &stubSender{status: 200}
	runner, err := NewRunner(context.Background(), parseScript(t, pingScript), "smoke",
		Options{Concurrency: 4, Iterations: 10, Sender: stub})
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	// The shared budget keeps the total exact even when the count does
	// not divide evenly across workers.
	assert.Equal(t, 10, summary.Iterations)
	assert.Equal(t, 10, summary.Success)
	assert.Equal(t, int64(10), stub.calls.Load())
	assert.Equal(t, 4, summary.Concurrency)
	assert.Greater(t, summary.Throughput, 0.0)
}

func TestRunAssertionFailures(t *testing.T) {
	stub := &stubSender{status: 500}
	runner, err := NewRunner(context.Background(), parseScript(t, pingScript), "smoke",
		Options{Concurrency: 2, Iterations: 6, Sender: stub})
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Iterations)
	assert.Equal(t, 0, summary.Success)
	assert.Equal(t, 6, summary.AssertionFailures)
	// The send itself succeeded, so request stats still accumulate
	assert.Equal(t, 6, summary.Requests["ping"].Count)
}

func TestRunExecutionErrorsAreIsolated(t *testing.T) {
	script := pingScript + `
test broken {
	ping->
	boom
}
`
	stub := &stubSender{status: 200}
	runner, err := NewRunner(context.Background(), parseScript(t, script), "broken",
		Options{Concurrency: 3, Iterations: 9, Sender: stub})
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	// Every iteration fails on its own; the run itself completes
	assert.Equal(t, StateCompleted, runner.State())
	assert.Equal(t, 9, summary.Iterations)
	assert.Equal(t, 9, summary.ExecutionErrors)
	assert.Equal(t, 9, summary.ErrorKinds["undefined name"])
	// The send before the failure still counts
	assert.Equal(t, 9, summary.Requests["ping"].Count)
}

func TestRunNetworkFailures(t *testing.T) {
	stub := &stubSender{err: &request.Error{Kind: request.ConnectionRefused, Err: io.ErrClosedPipe}}
	runner, err := NewRunner(context.Background(), parseScript(t, pingScript), "smoke",
		Options{Iterations: 3, Sender: stub})
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.NetworkFailures)
	assert.Equal(t, 3, summary.ErrorKinds["network failure"])
	assert.Empty(t, summary.Requests, "failed sends have no response to time")
}

func TestRunDuration(t *testing.T) {
	stub := &stubSender{status: 200, delay: time.Millisecond}
	runner, err := NewRunner(context.Background(), parseScript(t, pingScript), "smoke",
		Options{Concurrency: 2, Duration: 80 * time.Millisecond, Sender: stub})
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, runner.State())
	assert.Greater(t, summary.Iterations, 0)
	assert.GreaterOrEqual(t, summary.Elapsed, 80*time.Millisecond)
}

func TestRunCancellation(t *testing.T) {
	stub := &stubSender{status: 200, delay: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	runner, err := NewRunner(ctx, parseScript(t, pingScript), "smoke",
		Options{Concurrency: 2, Duration: 10 * time.Second, Sender: stub})
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	summary, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, runner.State())
	// Partial results are still aggregated
	assert.Greater(t, summary.Iterations, 0)
	assert.Equal(t, summary.Iterations, summary.Success)
	assert.Less(t, summary.Elapsed, 5*time.Second)
}

func TestRunRecordsWriter(t *testing.T) {
	stub := &stubSender{status: 200}
	var records bytes.Buffer
	runner, err := NewRunner(context.Background(), parseScript(t, pingScript), "smoke",
		Options{Sender: stub, Records: &records})
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, records.String(), "=== SEND  ping")
	assert.Contains(t, records.String(), "--- PASS  ping")
}

func TestRunConcurrentWriters(t *testing.T) {
	script := `
rq ping ` + "`" + `
GET https://example.com/ping
` + "`" + `[status == 200]
test noisy {
	println("iteration done")
	ping->
}
`
	stub := &stubSender{status: 200}
	var records, output bytes.Buffer
	runner, err := NewRunner(context.Background(), parseScript(t, script), "noisy",
		Options{Concurrency: 8, Iterations: 40, Sender: stub, Records: &records, Output: &output})
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 40, summary.Iterations)

	// Record lines come out whole: one per send, never interleaved
	assert.Equal(t, 40, strings.Count(records.String(), "=== SEND  ping"))
	assert.Equal(t, 40, strings.Count(records.String(), "--- PASS  ping"))
	assert.Equal(t, 40, strings.Count(output.String(), "iteration done"))
}

func TestRunTwiceFails(t *testing.T) {
	stub := &stubSender{status: 200}
	runner, err := NewRunner(context.Background(), parseScript(t, pingScript), "smoke",
		Options{Sender: stub})
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestNewRunnerErrors(t *testing.T) {
	_, err := NewRunner(context.Background(), parseScript(t, pingScript), "missing", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test not found: missing")

	// A top-level failure surfaces before anything is scheduled
	_, err = NewRunner(context.Background(), parseScript(t, "let a = boom\ntest t { a }"), "t", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined name")
}

func TestAggregatorOrderIndependent(t *testing.T) {
	results := []Result{
		{Outcome: Success, Elapsed: 10 * time.Millisecond},
		{Outcome: AssertionFailure, Elapsed: 30 * time.Millisecond, Failed: []string{"status == 200"}},
		{Outcome: Success, Elapsed: 20 * time.Millisecond},
		{Outcome: ExecutionError, ErrorKind: "undefined name", Elapsed: 5 * time.Millisecond},
	}

	forward := newAggregator()
	for _, r := range results {
		forward.add(r)
	}
	backward := newAggregator()
	for i := len(results) - 1; i >= 0; i-- {
		backward.add(results[i])
	}

	elapsed := 100 * time.Millisecond
	a := forward.summary("run", "t", 1, elapsed)
	b := backward.summary("run", "t", 1, elapsed)

	assert.Equal(t, a.Iterations, b.Iterations)
	assert.Equal(t, a.Success, b.Success)
	assert.Equal(t, a.AssertionFailures, b.AssertionFailures)
	assert.Equal(t, a.ExecutionErrors, b.ExecutionErrors)
	assert.Equal(t, a.ErrorKinds, b.ErrorKinds)
	assert.Equal(t, a.Latency, b.Latency)

	assert.Equal(t, 5*time.Millisecond, a.Latency.Min)
	assert.Equal(t, 30*time.Millisecond, a.Latency.Max)
	assert.Equal(t, 65*time.Millisecond/4, a.Latency.Mean)
}

func TestSummaryString(t *testing.T) {
	agg := newAggregator()
	agg.add(Result{Outcome: Success, Elapsed: 10 * time.Millisecond})
	summary := agg.summary("run", "smoke", 2, 50*time.Millisecond)

	s := summary.String()
	assert.Contains(t, s, "test smoke: 1 iterations")
	assert.Contains(t, s, "2 workers")
	assert.Contains(t, s, "success 1")
	assert.Contains(t, s, "latency min")
}

func TestRunAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok": true}`)
	}))
	defer server.Close()

	script := fmt.Sprintf(`
rq get `+"`"+`
GET %s/get
`+"`"+`[status == 200, json.ok == true]
test ok {
	get->
	response.status
}
`, server.URL)

	runner, err := NewRunner(context.Background(), parseScript(t, script), "ok",
		Options{Concurrency: 2, Iterations: 6})
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Iterations)
	assert.Equal(t, 6, summary.Success)
	assert.Equal(t, 6, summary.Requests["get"].Count)
	assert.GreaterOrEqual(t, summary.Latency.Max, summary.Latency.Min)
}
