package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/types"
)

// DefaultFetchTimeout bounds a single adapter fetch.
const DefaultFetchTimeout = 10 * time.Second

// SourceFailure records an adapter that failed or timed out during a fetch.
type SourceFailure struct {
	Source types.SourceType
	Err    error
}

// Result is the Aggregator's output for one reconciliation run.
type Result struct {
	Window     types.Window
	Candidates []types.CandidateEvent
	Failures   []SourceFailure
}

// Aggregator fans out to every adapter and merges what comes back.
type Aggregator struct {
	adapters []Adapter
	timeout  time.Duration
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. Adapter order decides which duplicate
// wins when two sources report the same id.
func NewAggregator(timeout time.Duration, logger *slog.Logger, adapters ...Adapter) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{adapters: adapters, timeout: timeout, logger: logger}
}

// Collect fetches every adapter concurrently, each under its own timeout. A
// failing adapter contributes nothing and is reported in Result.Failures; it
// never aborts the others. Candidates are de-duplicated by id, limited to the
// window and ordered by start then id.
func (a *Aggregator) Collect(ctx context.Context, userID string, w types.Window) Result {
	lists := make([][]types.CandidateEvent, len(a.adapters))
	errs := make([]error, len(a.adapters))
	req := FetchRequest{UserID: userID, Window: w}

	var g errgroup.Group
	for i, ad := range a.adapters {
		i, ad := i, ad
		g.Go(func() error {
			lists[i], errs[i] = a.fetchOne(ctx, ad, req)
			// Isolated: a failed source never cancels its siblings.
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Window: w}
	for i, err := range errs {
		if err == nil {
			continue
		}
		src := a.adapters[i].Source()
		a.logger.WarnContext(ctx, "source fetch failed",
			"error_code", string(types.ErrCodeSourceFetchFailure),
			"source", string(src),
			"run_id", types.GetRunID(ctx),
			"error", err,
		)
		res.Failures = append(res.Failures, SourceFailure{Source: src, Err: err})
	}

	res.Candidates = Merge(w, lists...)
	return res
}

type fetchResult struct {
	list []types.CandidateEvent
	err  error
}

// fetchOne runs one adapter under the fetch timeout. The deadline is enforced
// here rather than trusted to the adapter: an adapter that ignores ctx keeps
// running in the background, but its late result is dropped and the run moves
// on without it.
func (a *Aggregator) fetchOne(ctx context.Context, ad Adapter, req FetchRequest) ([]types.CandidateEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		var res fetchResult
		defer func() {
			if r := recover(); r != nil {
				res = fetchResult{err: fetchError(ad.Source(), fmt.Errorf("panic: %v", r))}
			}
			done <- res
		}()
		res.list, res.err = ad.Fetch(ctx, req)
	}()

	var res fetchResult
	select {
	case res = <-done:
		if res.err == nil && ctx.Err() != nil {
			res.err = ctx.Err()
		}
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err != nil {
		if !types.IsCode(res.err, types.ErrCodeSourceFetchFailure) {
			res.err = fetchError(ad.Source(), res.err)
		}
		return nil, res.err
	}
	return res.list, nil
}

// Merge concatenates lists in order, keeps the first candidate seen for each
// id, drops candidates outside w and sorts the rest by start then id.
func Merge(w types.Window, lists ...[]types.CandidateEvent) []types.CandidateEvent {
	seen := make(map[string]struct{})
	var out []types.CandidateEvent
	for _, list := range lists {
		for _, c := range list {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			if !w.Contains(c.Start) {
				continue
			}
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Start.Time, out[j].Start.Time
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
