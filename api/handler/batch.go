package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/tabscan/config"
	"github.com/use-agent/tabscan/models"
	"github.com/use-agent/tabscan/scanner"
	"github.com/use-agent/tabscan/webhook"
)

// batchJob is one batch scan. Results are filled in as queries finish.
type batchJob struct {
	mu        sync.Mutex
	id        string
	status    string
	completed int
	failed    int
	results   []*models.ScanResult
	createdAt time.Time
}

func (j *batchJob) record(idx int, r *models.ScanResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results[idx] = r
	j.completed++
	if !r.Success {
		j.failed++
	}
}

func (j *batchJob) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.failed == len(j.results):
		j.status = models.BatchFailed
	case j.failed > 0:
		j.status = models.BatchPartial
	default:
		j.status = models.BatchCompleted
	}
}

func (j *batchJob) snapshot() models.BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*models.ScanResult, len(j.results))
	copy(results, j.results)
	return models.BatchStatusResponse{
		ID:        j.id,
		Status:    j.status,
		Completed: j.completed,
		Total:     len(j.results),
		Results:   results,
	}
}

// Batches runs batch scans in the background and keeps their results
// queryable until they expire.
type Batches struct {
	sc      *scanner.Scanner
	cfg     config.BatchConfig
	hooks   *webhook.Client
	jobs    sync.Map // id -> *batchJob
	baseCtx context.Context
}

// NewBatches creates the job store. Jobs run under ctx, and expiry stops
// when ctx is done.
func NewBatches(ctx context.Context, sc *scanner.Scanner, cfg config.BatchConfig, hooks *webhook.Client) *Batches {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	b := &Batches{sc: sc, cfg: cfg, hooks: hooks, baseCtx: ctx}
	go b.expire(ctx)
	return b
}

func (b *Batches) expire(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.evictBefore(time.Now().Add(-b.cfg.JobTTL))
		}
	}
}

func (b *Batches) evictBefore(cutoff time.Time) {
	b.jobs.Range(func(key, value any) bool {
		if value.(*batchJob).createdAt.Before(cutoff) {
			b.jobs.Delete(key)
		}
		return true
	})
}

// Post returns a handler for POST /api/v1/batch/scan.
func (b *Batches) Post() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		job := &batchJob{
			id:        "batch-" + randomID(),
			status:    models.BatchProcessing,
			results:   make([]*models.ScanResult, len(req.Queries)),
			createdAt: time.Now(),
		}
		b.jobs.Store(job.id, job)

		go b.run(job, req)

		c.JSON(http.StatusAccepted, models.BatchResponse{
			ID:     job.id,
			Status: models.BatchProcessing,
			Total:  len(req.Queries),
		})
	}
}

// Get returns a handler for GET /api/v1/batch/:id.
func (b *Batches) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := b.jobs.Load(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeNotFound,
					Message: "batch job not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, val.(*batchJob).snapshot())
	}
}

// run scans every query with bounded concurrency. Scans never fail as Go
// errors, so the group is used only for its limit.
func (b *Batches) run(job *batchJob, req models.BatchRequest) {
	opts := scanner.OptionsFrom(req.Options)

	g, ctx := errgroup.WithContext(b.baseCtx)
	g.SetLimit(b.cfg.Concurrency)
	for i, q := range req.Queries {
		g.Go(func() error {
			job.record(i, b.sc.ScanQuery(ctx, q, opts))
			return nil
		})
	}
	_ = g.Wait()
	job.finish()

	snap := job.snapshot()
	slog.Info("batch job finished",
		"id", snap.ID,
		"status", snap.Status,
		"completed", snap.Completed,
		"total", snap.Total,
	)

	if req.WebhookURL != "" && b.hooks != nil {
		b.hooks.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
			Type:      "batch.completed",
			JobID:     snap.ID,
			Timestamp: time.Now().Unix(),
			Data:      snap,
		})
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
