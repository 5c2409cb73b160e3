package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/basjoofan/core/ast"
	"github.com/basjoofan/core/eval"
	"github.com/basjoofan/core/load"
	"github.com/basjoofan/core/parser"
)

const version = "0.1.0"

const usage = `basjoofan - scriptable HTTP testing and load generation

Usage:
  basjoofan eval <code>           evaluate fan source text
  basjoofan test [name] [flags]   run a test block
  basjoofan                       start a repl
  basjoofan -h                    show this help

Test flags:
  -f path      script file or directory of .fan files (default ".")
  -c count     concurrent virtual users (default 1)
  -d duration  run duration, e.g. 30s, 2m, 1h (makes -n unbounded)
  -n count     iteration count (default 1)
  -log level   log level: debug, info, warn, error (default info)
  -logfmt fmt  log format: text or json (default text)

Without a name, every test block in the script runs once.

Example script (.fan):
  let host = "httpbingo.org";
  rq get ` + "`" + `
  GET https://{host}/get
  Accept: application/json
  ` + "`" + `[status == 200];
  test smoke {
    get->
    response.status
  }
`

func main() {
	args := os.Args[1:]

	if len(args) == 0 {
		repl()
		return
	}

	switch args[0] {
	case "-h", "--help":
		fmt.Print(usage)

	case "-v", "--version":
		fmt.Printf("basjoofan version %s\n", version)

	case "eval":
		if len(args) < 2 {
			fatal("eval needs source text")
		}
		evalText(strings.Join(args[1:], " "))

	case "test":
		runTest(args[1:])

	default:
		fmt.Print(usage)
		os.Exit(1)
	}
}

func repl() {
	scanner := bufio.NewScanner(os.Stdin)
	scope := eval.NewScope(nil)
	evaluator := eval.NewEvaluator()
	ctx := context.Background()

	fmt.Printf("basjoofan %s (exit to quit)\n", version)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" {
			return
		}
		if line == "" {
			continue
		}
		program, err := parser.ParseFile(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		value, err := evaluator.Eval(ctx, program, scope)
		if err != nil {
			fmt.Println(err)
			continue
		}
		for _, record := range evaluator.TakeRecords() {
			fmt.Println(record)
		}
		fmt.Println(value)
	}
}

func evalText(text string) {
	program, err := parser.ParseFile(text)
	if err != nil {
		fatal("%v", err)
	}
	evaluator := eval.NewEvaluator()
	value, err := evaluator.Eval(context.Background(), program, eval.NewScope(nil))
	if err != nil {
		fatal("%v", err)
	}
	for _, record := range evaluator.TakeRecords() {
		fmt.Println(record)
	}
	fmt.Println(value)
}

func runTest(args []string) {
	name := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name = args[0]
		args = args[1:]
	}

	flags := flag.NewFlagSet("test", flag.ExitOnError)
	path := flags.String("f", ".", "script file or directory")
	concurrency := flags.Int("c", 1, "concurrent virtual users")
	durationStr := flags.String("d", "", "run duration, e.g. 30s, 2m, 1h")
	iterations := flags.Int("n", 1, "iteration count")
	logLevel := flags.String("log", "info", "log level")
	logFormat := flags.String("logfmt", "text", "log format: text or json")
	if err := flags.Parse(args); err != nil {
		os.Exit(2)
	}

	logger := newLogger(*logLevel, *logFormat)
	slog.SetDefault(logger)

	var duration time.Duration
	if *durationStr != "" {
		var err error
		duration, err = time.ParseDuration(*durationStr)
		if err != nil {
			fatal("invalid duration %q: %v", *durationStr, err)
		}
	}

	text, err := readScript(*path)
	if err != nil {
		fatal("%v", err)
	}
	program, err := parser.ParseFile(text)
	if err != nil {
		fatal("%v", err)
	}

	// Stop on interrupt; in-flight iterations still finish
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if name == "" {
		runTests(ctx, program, load.Options{
			Output:  os.Stdout,
			Records: os.Stdout,
			Logger:  logger,
		}, os.Stderr)
		return
	}

	opts := load.Options{
		Concurrency: *concurrency,
		Duration:    duration,
		Iterations:  *iterations,
		Logger:      logger,
	}
	if opts.Concurrency == 1 && duration == 0 && *iterations == 1 {
		opts.Output = os.Stdout
		opts.Records = os.Stdout
	}
	if err := runOne(ctx, program, name, opts); err != nil {
		fatal("%v", err)
	}
}

// runTests is the functional mode: every test block once, in definition
// order. A failing block is reported and the rest still run.
func runTests(ctx context.Context, program *ast.Program, opts load.Options, errw io.Writer) {
	for _, test := range program.Tests() {
		if err := runOne(ctx, program, test.Name, opts); err != nil {
			fmt.Fprintln(errw, err)
		}
	}
}

func runOne(ctx context.Context, program *ast.Program, name string, opts load.Options) error {
	runner, err := load.NewRunner(ctx, program, name, opts)
	if err != nil {
		return err
	}
	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if runner.State() == load.StateCancelled {
		fmt.Println("run cancelled; partial results:")
	}
	fmt.Print(summary)
	return nil
}

func newLogger(level, format string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: l}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// readScript reads a .fan file, or concatenates every .fan file under
// a directory in walk order.
func readScript(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		return string(data), nil
	}

	var sb strings.Builder
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".fan" {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		sb.Write(data)
		sb.WriteString("\n")
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no .fan files under %s", path)
	}
	return sb.String(), nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
