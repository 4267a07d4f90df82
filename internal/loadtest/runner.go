package loadtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/nsted/internal/client"
	"github.com/okian/nsted/pkg/logger"
)

const (
	outcomeSuccess    = "success"
	outcomeRejected   = "rejected"
	outcomeUnexpected = "unexpected"
	outcomeFailed     = "failed"
)

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := client.New(cfg.BaseURL, client.WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "starting load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("uploads", cfg.Uploads),
		logger.Int("workers", cfg.Workers),
		logger.Int("invalidEvery", cfg.InvalidEvery),
		logger.Duration("timeout", cfg.Timeout),
	)

	// Step 1: Check service health
	if _, err := c.Stats(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}

	// Step 2: Generate recordings
	recs, err := Generate(cfg, cfg.Uploads)
	if err != nil {
		return nil, fmt.Errorf("generate recordings: %w", err)
	}

	// Step 3: Upload concurrently
	start := time.Now()
	stats := submit(ctx, c, cfg.Workers, recs, log)
	stats.Duration = time.Since(start)

	// Step 4: Read back the saved prediction
	if stats.Succeeded > 0 {
		p, err := c.PredictedClass(ctx)
		if err != nil {
			return stats, fmt.Errorf("predict from saved: %w", err)
		}
		stats.SavedClass = p.PredictedClass
	}

	log.Info(ctx, "load test finished",
		logger.Int("succeeded", stats.Succeeded),
		logger.Int("rejected", stats.Rejected),
		logger.Int("unexpected", stats.Unexpected),
		logger.Int("failed", stats.Failed),
		logger.Duration("p50", stats.P50),
		logger.Duration("p95", stats.P95),
		logger.Float64("uploadsPerSecond", stats.Throughput()),
	)
	return stats, ctx.Err()
}

type uploadResult struct {
	outcome string
	class   string
	latency time.Duration
}

// submit fans recordings out to workers and aggregates their results.
func submit(ctx context.Context, c *client.Client, workers int, recs []Recording, log logger.Logger) *Stats {
	var (
		submitted atomic.Int64
		mu        sync.Mutex
		results   = make([]uploadResult, 0, len(recs))
		wg        sync.WaitGroup
	)

	jobs := make(chan Recording, workers*2)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				if ctx.Err() != nil {
					continue
				}
				res := uploadOne(ctx, c, rec)
				n := submitted.Add(1)
				if res.outcome == outcomeUnexpected || res.outcome == outcomeFailed {
					log.Warn(ctx, "upload did not behave as expected",
						logger.String("file", rec.Name),
						logger.Bool("invalid", rec.Invalid),
						logger.String("outcome", res.outcome),
					)
				}
				log.Debug(ctx, "upload finished", logger.Any("n", n), logger.Duration("latency", res.latency))

				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, rec := range recs {
			select {
			case <-ctx.Done():
				return
			case jobs <- rec:
			}
		}
	}()

	wg.Wait()
	return summarize(results)
}

func uploadOne(ctx context.Context, c *client.Client, rec Recording) uploadResult {
	start := time.Now()
	out, err := c.Upload(ctx, rec.Name, bytes.NewReader(rec.Data))
	res := uploadResult{latency: time.Since(start)}

	var se *client.StatusError
	switch {
	case err == nil && !rec.Invalid:
		res.outcome, res.class = outcomeSuccess, out.PredictedClass
	case errors.As(err, &se) && rec.Invalid && se.Status == http.StatusUnprocessableEntity:
		res.outcome = outcomeRejected
	case err == nil || se != nil:
		res.outcome = outcomeUnexpected
	default:
		res.outcome = outcomeFailed
	}
	return res
}

func summarize(results []uploadResult) *Stats {
	s := &Stats{Uploads: len(results), Classes: map[string]int{}}
	latencies := make([]time.Duration, 0, len(results))
	for _, r := range results {
		switch r.outcome {
		case outcomeSuccess:
			s.Succeeded++
			s.Classes[r.class]++
		case outcomeRejected:
			s.Rejected++
		case outcomeUnexpected:
			s.Unexpected++
		default:
			s.Failed++
		}
		latencies = append(latencies, r.latency)
	}
	if len(latencies) == 0 {
		return s
	}
	slices.Sort(latencies)
	s.P50 = percentile(latencies, 50)
	s.P95 = percentile(latencies, 95)
	s.Max = latencies[len(latencies)-1]
	return s
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
