// Package harvester implements the catalog ingestion pipeline.
package harvester

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codecatalog/harvester/internal/archive"
	"github.com/codecatalog/harvester/internal/catalog"
	"github.com/codecatalog/harvester/internal/leetcode"
	"github.com/codecatalog/harvester/internal/metrics"
	"github.com/codecatalog/harvester/internal/notify"
)

// Client is the remote catalog surface the pipeline consumes. Absence is a
// value at this boundary: an empty slice means the list could not be
// fetched, a nil detail means the question is unavailable.
type Client interface {
	FetchSummaries(ctx context.Context, limit int) []leetcode.QuestionSummary
	FetchDetail(ctx context.Context, slug string) *leetcode.QuestionDetail
}

// Store persists one normalized problem and its tags atomically.
type Store interface {
	UpsertProblem(ctx context.Context, problem catalog.Problem, tags []catalog.Tag) error
}

// Config controls Harvester behavior.
type Config struct {
	// ArchivePrefix prefixes the key of every archived raw payload.
	ArchivePrefix string
}

// Options selects the behavior of one run.
type Options struct {
	Limit        int
	FetchDetails bool
	// DelayMin/DelayMax bound the uniform random inter-item throttle delay.
	// Applied in detail mode only; zero disables throttling.
	DelayMin    time.Duration
	DelayMax    time.Duration
	StrictStats bool
}

// RunSummary is the payload published after a completed run.
type RunSummary struct {
	RunID string `json:"run_id"`
	catalog.Result
}

// Harvester pulls a bounded list of problem summaries, optionally enriches
// each with a detail fetch, normalizes fields, and upserts each problem with
// its tags. Items are processed sequentially; one item's failure never
// aborts the rest.
type Harvester struct {
	client   Client
	store    Store
	archive  archive.Store
	notifier notify.Publisher
	cfg      Config
	logger   *zap.Logger

	sleep     func(time.Duration)
	randFloat func() float64
}

// New constructs a Harvester. archiveStore and notifier may be nil to
// disable raw-payload archiving and run-summary notification.
func New(
	client Client,
	store Store,
	archiveStore archive.Store,
	notifier notify.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Harvester {
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "details"
	}
	return &Harvester{
		client:    client,
		store:     store,
		archive:   archiveStore,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		sleep:     time.Sleep,
		randFloat: rand.Float64,
	}
}

// Run executes one harvest. The only fatal precondition is an empty summary
// list; everything downstream is best-effort per item and reported through
// the returned result, never by an error escaping Run.
func (h *Harvester) Run(ctx context.Context, opts Options) catalog.Result {
	runID := uuid.NewString()
	logger := h.logger.With(zap.String("run_id", runID))
	logger.Info("starting harvest",
		zap.Int("limit", opts.Limit),
		zap.Bool("fetch_details", opts.FetchDetails),
	)

	summaries := h.client.FetchSummaries(ctx, opts.Limit)
	if len(summaries) == 0 {
		metrics.RecordRun("list_fetch_failed")
		logger.Error("problem list fetch failed, aborting run")
		return catalog.Result{Success: false, Message: "problem list fetch failed"}
	}

	succeeded := 0
	var failed []string
	for i, summary := range summaries {
		logger.Info("processing problem",
			zap.Int("index", i+1),
			zap.Int("total", len(summaries)),
			zap.String("slug", summary.TitleSlug),
		)
		if err := h.processItem(ctx, summary, opts, logger); err != nil {
			logger.Warn("problem failed",
				zap.String("slug", summary.TitleSlug),
				zap.Error(err),
			)
			metrics.RecordProblem("failure")
			failed = append(failed, summary.TitleSlug)
		} else {
			metrics.RecordProblem("success")
			succeeded++
		}
		// Throttle between items, never after the last one.
		if opts.FetchDetails && i < len(summaries)-1 {
			h.throttle(opts)
		}
	}

	result := catalog.Result{
		Success:      true,
		Total:        len(summaries),
		SuccessCount: succeeded,
		FailCount:    len(summaries) - succeeded,
		Failed:       failed,
		Message: fmt.Sprintf("harvest complete: %d succeeded, %d failed",
			succeeded, len(summaries)-succeeded),
	}
	metrics.RecordRun("completed")
	h.publishSummary(ctx, runID, result, logger)
	logger.Info("harvest finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailCount),
	)
	return result
}

func (h *Harvester) processItem(
	ctx context.Context,
	summary leetcode.QuestionSummary,
	opts Options,
	logger *zap.Logger,
) error {
	var (
		problem catalog.Problem
		tags    []catalog.Tag
		err     error
	)
	if opts.FetchDetails {
		detail := h.client.FetchDetail(ctx, summary.TitleSlug)
		if detail == nil {
			return fmt.Errorf("question detail unavailable for %q", summary.TitleSlug)
		}
		h.archiveDetail(ctx, summary.TitleSlug, detail, logger)
		problem, tags, err = problemFromDetail(*detail, opts.StrictStats)
	} else {
		problem, tags, err = problemFromSummary(summary)
	}
	if err != nil {
		return fmt.Errorf("normalize %q: %w", summary.TitleSlug, err)
	}
	if err := h.store.UpsertProblem(ctx, problem, tags); err != nil {
		return fmt.Errorf("persist %q: %w", summary.TitleSlug, err)
	}
	logger.Info("stored problem",
		zap.Int64("problem_id", problem.ProblemID),
		zap.String("title", problem.Title),
	)
	return nil
}

// archiveDetail saves the raw payload best-effort; failure is logged and
// never fails the item.
func (h *Harvester) archiveDetail(
	ctx context.Context,
	slug string,
	detail *leetcode.QuestionDetail,
	logger *zap.Logger,
) {
	if h.archive == nil {
		return
	}
	data, err := json.Marshal(detail)
	if err != nil {
		logger.Warn("marshal detail for archive failed", zap.String("slug", slug), zap.Error(err))
		return
	}
	key := fmt.Sprintf("%s/%s.json", h.cfg.ArchivePrefix, slug)
	uri, err := h.archive.Put(ctx, key, data)
	if err != nil {
		logger.Warn("archive detail failed", zap.String("slug", slug), zap.Error(err))
		return
	}
	if uri != "" {
		logger.Debug("archived detail", zap.String("slug", slug), zap.String("uri", uri))
	}
}

func (h *Harvester) throttle(opts Options) {
	if opts.DelayMax <= 0 {
		return
	}
	delay := opts.DelayMin
	if opts.DelayMax > opts.DelayMin {
		spread := float64(opts.DelayMax - opts.DelayMin)
		delay += time.Duration(h.randFloat() * spread)
	}
	if delay <= 0 {
		return
	}
	metrics.ObserveThrottleDelay(delay)
	h.sleep(delay)
}

func (h *Harvester) publishSummary(
	ctx context.Context,
	runID string,
	result catalog.Result,
	logger *zap.Logger,
) {
	if h.notifier == nil {
		return
	}
	id, err := h.notifier.Publish(ctx, RunSummary{RunID: runID, Result: result})
	if err != nil {
		logger.Warn("publish run summary failed", zap.Error(err))
		return
	}
	if id != "" {
		logger.Debug("published run summary", zap.String("message_id", id))
	}
}
