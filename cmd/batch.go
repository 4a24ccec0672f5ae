package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/venture-kit/plan-proxy/internal/planner"
)

var (
	batchFile        string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process a JSONL file of assist requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}
		st, err := buildStack(cfg)
		if err != nil {
			return err
		}
		caller, err := st.caller()
		if err != nil {
			return err
		}

		reqs, err := readRequests(batchFile)
		if err != nil {
			return err
		}
		zap.L().Info("starting batch",
			zap.Int("requests", len(reqs)),
			zap.Int("concurrency", batchConcurrency))

		results, err := processBatch(ctx, reqs, batchConcurrency, func(ctx context.Context, req planner.Request) (*planner.Envelope, error) {
			return st.orch.Handle(ctx, caller, req)
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		for _, r := range results {
			if err := enc.Encode(r); err != nil {
				return eris.Wrap(err, "encode result")
			}
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "JSONL file of request objects (required)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "max in-flight requests")
	batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// readRequests parses one request object per line, skipping blank lines.
func readRequests(path string) ([]planner.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open batch file")
	}
	defer f.Close()

	var reqs []planner.Request
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var req planner.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, eris.Wrapf(err, "parse batch file line %d", line)
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "read batch file")
	}
	return reqs, nil
}

// batchResult pairs a request's position with its outcome; exactly one of
// envelope or error is set.
type batchResult struct {
	Index    int               `json:"index"`
	Envelope *planner.Envelope `json:"envelope,omitempty"`
	Error    map[string]any    `json:"error,omitempty"`
}

// handleFunc runs one request; batch injects the orchestrator-bound closure.
type handleFunc func(ctx context.Context, req planner.Request) (*planner.Envelope, error)

// processBatch runs requests with bounded concurrency. Per-request pipeline
// failures are recorded in the result rather than aborting the batch; only
// context cancellation stops it.
func processBatch(ctx context.Context, reqs []planner.Request, concurrency int, handle handleFunc) ([]batchResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]batchResult, len(reqs))
	var succeeded, failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			env, err := handle(ctx, req)
			switch {
			case err == nil:
				results[i] = batchResult{Index: i, Envelope: env}
				succeeded.Add(1)
			default:
				he, ok := planner.AsHTTPError(err)
				if !ok {
					he = &planner.HTTPError{Status: 500, Code: "proxy_error", Extra: map[string]any{"detail": err.Error()}}
				}
				results[i] = batchResult{Index: i, Error: he.Body()}
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch interrupted")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()))
	return results, nil
}
