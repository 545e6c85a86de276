package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/queue"
	"github.com/maltedev/price-tracker/internal/ratelimit"
)

type RefreshConfig struct {
	Workers    int
	MinDelay   time.Duration
	MaxDelay   time.Duration
	MaxRetries int
	Site       models.Site
}

type RefreshStats struct {
	Total      int `json:"total"`
	Updated    int `json:"updated"`
	Failed     int `json:"failed"`
	Retried    int `json:"retried"`
	PriceDrops int `json:"price_drops"`
}

// Refresher re-scrapes every tracked product. Each attempt is an independent
// Track call with its own proxy session. Only retryable failures are retried,
// at lower priority than first attempts.
type Refresher struct {
	tracker *Tracker
	limiter *ratelimit.AdaptiveRateLimiter
	cfg     RefreshConfig
	logger  *slog.Logger
}

func NewRefresher(tracker *Tracker, cfg RefreshConfig, logger *slog.Logger) *Refresher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Refresher{
		tracker: tracker,
		limiter: ratelimit.NewAdaptiveRateLimiter(cfg.MinDelay, cfg.MaxDelay),
		cfg:     cfg,
		logger:  logger.With("component", "refresher"),
	}
}

// RefreshAll runs one pass and blocks until every product succeeded, failed
// for good or ctx ended.
func (r *Refresher) RefreshAll(ctx context.Context) (RefreshStats, error) {
	products, err := r.tracker.Products(ctx, database.ListFilter{Site: r.cfg.Site})
	if err != nil {
		return RefreshStats{}, err
	}

	stats := RefreshStats{Total: len(products)}
	if len(products) == 0 {
		return stats, nil
	}

	q := queue.NewInMemoryQueue()
	for _, p := range products {
		if err := q.Push(&queue.Task{ProductID: p.ID, URL: p.URL, Priority: r.cfg.MaxRetries}); err != nil {
			return stats, err
		}
	}

	run := &refreshRun{queue: q, remaining: len(products), stats: &stats}

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.work(ctx, worker, run)
		}(i)
	}
	wg.Wait()

	r.logger.Info("refresh pass finished",
		"total", stats.Total,
		"updated", stats.Updated,
		"failed", stats.Failed,
		"retried", stats.Retried,
		"price_drops", stats.PriceDrops)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (r *Refresher) work(ctx context.Context, worker int, run *refreshRun) {
	for {
		task, err := run.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) {
				r.logger.Debug("worker stopping", "worker", worker, "error", err)
			}
			return
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return
		}

		outcome, err := r.tracker.Track(ctx, task.URL)
		switch {
		case err != nil:
			r.logger.Error("failed to store refresh", "worker", worker, "url", task.URL, "error", err)
			run.finish(func(s *RefreshStats) { s.Failed++ })

		case outcome.Result.Success:
			r.limiter.RecordSuccess()
			run.finish(func(s *RefreshStats) {
				s.Updated++
				if outcome.IsPriceDrop {
					s.PriceDrops++
				}
			})

		default:
			failure := outcome.Result.Error
			r.limiter.RecordError()
			if failure.Retryable() && task.Attempt < r.cfg.MaxRetries {
				task.Attempt++
				task.Priority = r.cfg.MaxRetries - task.Attempt
				r.logger.Warn("retrying refresh",
					"worker", worker,
					"url", task.URL,
					"attempt", task.Attempt,
					"kind", failure.Kind,
					"message", failure.Message)
				if run.retry(task) {
					continue
				}
			}
			r.logger.Warn("refresh failed",
				"worker", worker,
				"url", task.URL,
				"kind", failure.Kind,
				"status", failure.Status,
				"message", failure.Message)
			run.finish(func(s *RefreshStats) { s.Failed++ })
		}
	}
}

type refreshRun struct {
	mu        sync.Mutex
	queue     *queue.InMemoryQueue
	remaining int
	stats     *RefreshStats
}

// finish records a terminal task outcome and closes the queue after the last.
func (run *refreshRun) finish(update func(*RefreshStats)) {
	run.mu.Lock()
	defer run.mu.Unlock()

	update(run.stats)
	run.remaining--
	if run.remaining == 0 {
		run.queue.Close()
	}
}

func (run *refreshRun) retry(task *queue.Task) bool {
	if err := run.queue.Push(task); err != nil {
		return false
	}
	run.mu.Lock()
	run.stats.Retried++
	run.mu.Unlock()
	return true
}
