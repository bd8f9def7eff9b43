// creative validates, auto-fixes and renders canvas JSON files in batch,
// using the same pipeline as the API server.
//
// Usage:
//
//	creative [flags] validate|autofix|render canvas.json...
//
// Results are written to stdout as a JSON array in input order; logs go to
// stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"adora/internal/bootstrap"
	"adora/internal/domain"
	"adora/internal/infra"
	"adora/internal/pipeline"
)

type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string { return e.msg }
func (e exitError) ExitCode() int { return e.code }

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	formats      []string
	outputFormat string
	dataDir      string
	concurrency  int
	write        bool
}

type fileResult struct {
	File   string `json:"file"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	failed bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("creative", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringSliceVar(&opts.formats, "formats", nil, "formats to render (default: the canvas format)")
	flagSet.StringVar(&opts.outputFormat, "output-format", "png", "encoding hint: png or jpg")
	flagSet.StringVar(&opts.dataDir, "data-dir", "", "override DATA_DIR")
	flagSet.IntVarP(&opts.concurrency, "concurrency", "j", 4, "canvases processed in parallel")
	flagSet.BoolVar(&opts.write, "write", false, "autofix: overwrite each input file with the fixed canvas")
	flagSet.Usage = func() {
		fmt.Fprintln(stderr, "Usage: creative [flags] validate|autofix|render canvas.json...")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return exitError{code: 2, msg: err.Error()}
	}
	rest := flagSet.Args()
	if len(rest) < 2 {
		flagSet.Usage()
		return exitError{code: 2, msg: "command and at least one canvas file required"}
	}
	command, files := rest[0], rest[1:]
	switch command {
	case "validate", "autofix", "render":
	default:
		return exitError{code: 2, msg: fmt.Sprintf("unknown command %q", command)}
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	logger := infra.NewLoggerTo(stderr, cfg.AppEnv)

	stack, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.concurrency))
	for i, file := range files {
		g.Go(func() error {
			results[i] = process(gctx, stack.Pipeline, command, file, opts)
			if results[i].failed {
				logger.Warn().Str("file", file).Str("command", command).Str("error", results[i].Error).Msg("canvas failed")
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		if r.failed {
			failed++
		}
	}
	if failed > 0 {
		return exitError{code: 1, msg: fmt.Sprintf("%d of %d canvases failed", failed, len(files))}
	}
	return nil
}

// process runs one command on one file. Invalid canvases and failed
// validation both mark the result as failed without stopping the batch.
func process(ctx context.Context, svc *pipeline.Service, command, file string, opts options) fileResult {
	res := fileResult{File: file}
	fail := func(err error) fileResult {
		res.Error = err.Error()
		res.failed = true
		return res
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fail(err)
	}
	var canvas domain.CreativeCanvas
	if err := json.Unmarshal(data, &canvas); err != nil {
		return fail(fmt.Errorf("parse canvas: %w", err))
	}

	switch command {
	case "validate":
		v, err := svc.Validate(canvas)
		if err != nil {
			return fail(err)
		}
		res.Result = v
		res.failed = !v.Passed
	case "autofix":
		fixed, err := svc.AutoFix(canvas)
		if err != nil {
			return fail(err)
		}
		if opts.write && len(fixed.Applied) > 0 {
			out, err := json.MarshalIndent(fixed.Canvas, "", "  ")
			if err != nil {
				return fail(err)
			}
			if err := os.WriteFile(file, append(out, '\n'), 0o644); err != nil {
				return fail(err)
			}
		}
		res.Result = fixed
		res.failed = !fixed.Validation.Passed
	case "render":
		out, err := svc.Render(ctx, pipeline.RenderRequest{Canvas: canvas, Formats: opts.formats, OutputFormat: opts.outputFormat})
		if err != nil {
			return fail(err)
		}
		res.Result = out
	}
	return res
}
