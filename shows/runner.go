package shows

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"showfinder/metrics"
)

// Scan statuses recorded with each cycle.
const (
	ScanStatusOK     = "ok"
	ScanStatusFailed = "failed"
)

// Scan records one pipeline run.
type Scan struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Profiles   int
	Posts      int
	Shows      int
	Status     string
	Error      string
}

// ContentSource fetches recent posts for a set of profiles.
type ContentSource interface {
	RecentPosts(ctx context.Context, usernames []string) ([]Post, error)
}

// ScanStore persists scan results.
type ScanStore interface {
	ListProfiles(ctx context.Context) ([]Profile, error)
	ReplaceShows(ctx context.Context, scanID string, shows []Show) error
	RecordScan(ctx context.Context, scan *Scan) error
}

// Runner executes scan cycles over the tracked profiles.
type Runner struct {
	source    ContentSource
	processor *Processor
	store     ScanStore
}

// NewRunner creates a scan runner.
func NewRunner(source ContentSource, processor *Processor, store ScanStore) *Runner {
	return &Runner{
		source:    source,
		processor: processor,
		store:     store,
	}
}

// Run performs one scan over all tracked profiles and returns the shows
// found. Stored shows are replaced wholesale; the scan itself is recorded
// whether it succeeds or fails.
func (r *Runner) Run(ctx context.Context) ([]Show, error) {
	start := time.Now()
	scan := &Scan{ID: uuid.NewString(), StartedAt: start}

	profiles, err := r.store.ListProfiles(ctx)
	if err != nil {
		return nil, r.fail(ctx, scan, fmt.Errorf("list profiles: %w", err))
	}
	scan.Profiles = len(profiles)

	if len(profiles) == 0 {
		slog.Info("no profiles to scan", "scan_id", scan.ID)
		r.finish(ctx, scan)
		return nil, nil
	}

	usernames := make([]string, len(profiles))
	for i, p := range profiles {
		usernames[i] = p.Username
	}

	slog.Info("starting scan", "scan_id", scan.ID, "profiles", len(profiles))

	posts, err := r.source.RecentPosts(ctx, usernames)
	if err != nil {
		return nil, r.fail(ctx, scan, fmt.Errorf("fetch posts: %w", err))
	}
	scan.Posts = len(posts)

	found := r.processor.Process(ctx, posts)
	scan.Shows = len(found)

	if err := r.store.ReplaceShows(ctx, scan.ID, found); err != nil {
		return nil, r.fail(ctx, scan, fmt.Errorf("store shows: %w", err))
	}

	r.finish(ctx, scan)
	metrics.PostsProcessed.Add(float64(len(posts)))
	metrics.ShowsFound.Add(float64(len(found)))
	metrics.ScanDuration.Observe(time.Since(start).Seconds())

	slog.Info("scan complete", "scan_id", scan.ID, "posts", len(posts), "shows", len(found))
	return found, nil
}

func (r *Runner) finish(ctx context.Context, scan *Scan) {
	scan.Status = ScanStatusOK
	scan.FinishedAt = time.Now()
	r.record(ctx, scan)
	metrics.ScansTotal.WithLabelValues(ScanStatusOK).Inc()
}

func (r *Runner) fail(ctx context.Context, scan *Scan, err error) error {
	scan.Status = ScanStatusFailed
	scan.Error = err.Error()
	scan.FinishedAt = time.Now()
	r.record(ctx, scan)
	metrics.ScansTotal.WithLabelValues(ScanStatusFailed).Inc()
	return err
}

func (r *Runner) record(ctx context.Context, scan *Scan) {
	if err := r.store.RecordScan(ctx, scan); err != nil {
		slog.Warn("failed to record scan", "scan_id", scan.ID, "error", err)
	}
}
