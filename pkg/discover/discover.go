// Package discover turns a source descriptor into the set of candidate
// artifacts currently offered by the remote source. Strategies are
// read-only: discovery never writes to the manifest or the storage root.
package discover

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"dataharvest/pkg/config"
	"dataharvest/pkg/fetch"
	"dataharvest/pkg/logger"
	"dataharvest/pkg/period"
	"dataharvest/pkg/source"
)

// Candidate is one remote artifact a strategy proposes for fetching
type Candidate struct {
	// Locator is the absolute URL of the artifact
	Locator string

	// LocalPath is the destination path relative to the storage root
	LocalPath string

	// Period is the publication period extracted from the link, when one
	// could be determined
	Period time.Time

	// Method is the HTTP method to fetch with. Empty means GET.
	Method string

	// Body is the JSON query document for POST candidates
	Body map[string]interface{}

	// Note carries free-form context into the manifest entry
	Note string
}

// Strategy produces candidates for one source
type Strategy interface {
	Discover(ctx context.Context, src source.Descriptor) ([]Candidate, error)
}

// Discoverer dispatches a source descriptor to its strategy
type Discoverer struct {
	cfg       *config.Config
	fetcher   *fetch.Fetcher
	protected *fetch.Fetcher
	logger    logger.Logger
}

// New creates a Discoverer sharing the run's fetcher. The challenge
// capable client for rendered sources is created on first use.
func New(cfg *config.Config, fetcher *fetch.Fetcher) *Discoverer {
	return &Discoverer{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger.GetLogger(),
	}
}

// Discover runs the strategy named by the descriptor. Manual sources
// yield no candidates; the caller records them as skipped.
func (d *Discoverer) Discover(ctx context.Context, src source.Descriptor) ([]Candidate, error) {
	switch src.Strategy {
	case source.StrategyDirect:
		return d.direct(ctx, src)
	case source.StrategyListing:
		return d.listing(ctx, src)
	case source.StrategyPaginated:
		return d.paginated(ctx, src)
	case source.StrategyHierarchy:
		return d.hierarchy(ctx, src)
	case source.StrategyRendered:
		return d.rendered(ctx, src)
	case source.StrategyAPI:
		return d.api(ctx, src)
	case source.StrategyManual:
		return nil, nil
	default:
		return nil, fmt.Errorf("source %q: unknown strategy %q", src.Name, src.Strategy)
	}
}

func (d *Discoverer) protectedFetcher() *fetch.Fetcher {
	if d.protected == nil {
		d.protected = fetch.NewProtected(d.cfg)
	}
	return d.protected
}

// candidatesFromPage extracts, filters and maps document links on one
// page. fallback supplies a period for links that carry none of their
// own, as with terminal documents under a dated sub-page.
func (d *Discoverer) candidatesFromPage(src source.Descriptor, body []byte, pageURL string, fallback time.Time) ([]Candidate, error) {
	filters, err := compileFilters(src.Params.RegexFilters)
	if err != nil {
		return nil, err
	}

	links, err := extractLinks(body, pageURL, src.Params.Selector)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	seen := make(map[string]bool)
	var out []Candidate

	for _, l := range links {
		if !downloadable(l.URL, src.Params.Extensions) {
			continue
		}
		if len(filters) > 0 && !matchesAny(l, filters) {
			continue
		}
		if seen[l.URL] {
			continue
		}
		seen[l.URL] = true

		cand, ok := d.buildCandidate(src, l, now, fallback)
		if !ok {
			continue
		}
		out = append(out, cand)
	}

	return out, nil
}

// buildCandidate derives the period and destination path for one link.
// Links with no extractable period are kept: their age cannot be judged,
// so the recency window never excludes them.
func (d *Discoverer) buildCandidate(src source.Descriptor, l link, now, fallback time.Time) (Candidate, bool) {
	p, found := period.Extract(l.Text)
	if !found {
		p, found = period.Extract(l.URL)
	}
	if !found && !fallback.IsZero() {
		p, found = fallback, true
	}

	if src.Params.WithinMonths > 0 && found && !period.WithinMonths(p, now, src.Params.WithinMonths) {
		return Candidate{}, false
	}

	subdir := ""
	if src.Params.SubdirByPeriod && found {
		if src.Params.FiscalLayout {
			if fy, ok := period.FiscalYear(l.Text + " " + l.URL); ok {
				subdir = period.FiscalYearDir(fy)
			} else {
				subdir = period.YearDir(p.Year())
			}
		} else {
			subdir = period.YearDir(p.Year())
		}
	}

	return Candidate{
		Locator:   l.URL,
		LocalPath: period.DestPath(src.Group, subdir, fileNameFromURL(l.URL)),
		Period:    p,
	}, true
}

// fileNameFromURL returns the last path segment of a URL, without any
// query string
func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return path.Base(raw)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return "index"
	}
	return name
}
