// Package reconcile drives a harvest run: discover what each source
// offers, diff it against the manifest, fetch the delta, and record the
// outcome.
package reconcile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"dataharvest/pkg/config"
	"dataharvest/pkg/discover"
	"dataharvest/pkg/fetch"
	"dataharvest/pkg/logger"
	"dataharvest/pkg/manifest"
	"dataharvest/pkg/source"
)

// Result aggregates the per-source outcome counts
type Result struct {
	Source     string
	Group      string
	Discovered int
	Skipped    int
	Fetched    int
	Failed     int
}

// Runner executes a harvest run over a source registry
type Runner struct {
	cfg        *config.Config
	store      *manifest.Store
	fetcher    *fetch.Fetcher
	discoverer *discover.Discoverer
	logger     logger.Logger
}

// NewRunner wires a runner from configuration. One fetcher and one
// manifest store are shared across all sources of the run.
func NewRunner(cfg *config.Config) *Runner {
	fetcher := fetch.New(cfg)
	return &Runner{
		cfg:        cfg,
		store:      manifest.NewStore(cfg.Storage.Root, cfg.Storage.ManifestName),
		fetcher:    fetcher,
		discoverer: discover.New(cfg, fetcher),
		logger:     logger.GetLogger(),
	}
}

// Store exposes the runner's manifest store
func (r *Runner) Store() *manifest.Store {
	return r.store
}

// Run processes the registry in declaration order and returns one
// result per source. The manifest is loaded before any fetch; a corrupt
// ledger aborts the run. The manifest is persisted after every source,
// so an interrupted run loses at most the in-flight source.
func (r *Runner) Run(ctx context.Context, sources []source.Descriptor) ([]Result, error) {
	if err := r.store.Load(); err != nil {
		return nil, fmt.Errorf("cannot start run: %w", err)
	}

	results := make([]Result, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := r.runSource(ctx, src)
		results = append(results, res)

		if err := r.store.Save(); err != nil {
			return results, fmt.Errorf("failed to persist manifest after %s: %w", src.Name, err)
		}
	}

	return results, nil
}

// runSource reconciles one source: discover, diff, fetch the delta,
// record. A failure never escapes to the run; it lands in the counts
// and the ledger.
func (r *Runner) runSource(ctx context.Context, src source.Descriptor) Result {
	res := Result{Source: src.Name, Group: src.Group}
	log := r.logger.WithFields(map[string]interface{}{
		"source": src.Name,
		"group":  src.Group,
	})

	if src.Strategy == source.StrategyManual {
		r.recordManualSkip(src)
		res.Skipped = 1
		log.Info("manual source skipped")
		return res
	}

	log.Info("discovering")
	candidates, err := r.discoverer.Discover(ctx, src)
	if err != nil {
		log.WithError(err).Warn("discovery failed, no candidates for this source")
		return res
	}
	res.Discovered = len(candidates)

	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}

		if r.store.IsAlreadyFetched(cand.Locator, cand.LocalPath) {
			res.Skipped++
			continue
		}

		dest := filepath.Join(r.cfg.Storage.Root, filepath.FromSlash(cand.LocalPath))
		fetched, err := r.fetchCandidate(ctx, cand, dest)
		now := time.Now().UTC()

		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.ErrorWithFields("fetch failed", map[string]interface{}{
				"locator": cand.Locator,
				"error":   err.Error(),
			})
			r.store.Record(manifest.Entry{
				Locator:   cand.Locator,
				LocalPath: cand.LocalPath,
				FetchedAt: now,
				Status:    manifest.StatusError,
				Group:     src.Group,
				Source:    src.Name,
				Note:      err.Error(),
			})
			res.Failed++
			continue
		}

		r.store.Record(manifest.Entry{
			Locator:     cand.Locator,
			LocalPath:   cand.LocalPath,
			ContentHash: fetched.Hash,
			FetchedAt:   now,
			Status:      manifest.StatusSuccess,
			Group:       src.Group,
			Source:      src.Name,
			Note:        cand.Note,
		})
		res.Fetched++
	}

	log.InfoWithFields("source reconciled", map[string]interface{}{
		"discovered": res.Discovered,
		"skipped":    res.Skipped,
		"fetched":    res.Fetched,
		"failed":     res.Failed,
	})

	return res
}

// fetchCandidate retrieves one candidate to its destination. API
// candidates with a query document go out as a POST; everything else
// is a plain GET.
func (r *Runner) fetchCandidate(ctx context.Context, cand discover.Candidate, dest string) (*fetch.Result, error) {
	if cand.Method == "post" {
		return r.fetcher.PostToFile(ctx, cand.Locator, cand.Body, dest)
	}
	return r.fetcher.FetchToFile(ctx, cand.Locator, dest)
}

// recordManualSkip notes a source that cannot be harvested
// automatically. Recorded once; reruns leave the entry untouched.
func (r *Runner) recordManualSkip(src source.Descriptor) {
	locator := src.Params.URL
	if locator == "" {
		locator = "manual:" + src.Name
	}
	if r.store.Contains(locator) {
		return
	}
	r.store.Record(manifest.Entry{
		Locator:   locator,
		FetchedAt: time.Now().UTC(),
		Status:    manifest.StatusSkipped,
		Group:     src.Group,
		Source:    src.Name,
		Note:      src.Params.Note,
	})
}

// Totals sums a run's per-source results
func Totals(results []Result) Result {
	total := Result{Source: "total"}
	for _, r := range results {
		total.Discovered += r.Discovered
		total.Skipped += r.Skipped
		total.Fetched += r.Fetched
		total.Failed += r.Failed
	}
	return total
}
