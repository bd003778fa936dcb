package discover

import (
	"context"
	"strings"
	"time"

	"dataharvest/pkg/period"
	"dataharvest/pkg/source"
)

// hierarchy descends one level from a hub page: sub-page links matching
// the configured pattern name a publication period each, and the
// documents live on the sub-pages. A sub-page that fails to fetch or
// parse skips that period only.
func (d *Discoverer) hierarchy(ctx context.Context, src source.Descriptor) ([]Candidate, error) {
	result, err := d.fetcher.Fetch(ctx, src.Params.URL)
	if err != nil {
		return nil, err
	}

	links, err := extractLinks(result.Body, src.Params.URL, src.Params.Selector)
	if err != nil {
		return nil, err
	}

	pattern := strings.ToLower(src.Params.LinkPattern)
	now := time.Now().UTC()
	seenPage := make(map[string]bool)
	seenDoc := make(map[string]bool)
	var all []Candidate

	for _, l := range links {
		if pattern != "" &&
			!strings.Contains(strings.ToLower(l.URL), pattern) &&
			!strings.Contains(strings.ToLower(l.Text), pattern) {
			continue
		}
		// Documents linked straight off the hub are handled by the
		// listing strategy; here only sub-pages descend.
		if downloadable(l.URL, src.Params.Extensions) {
			continue
		}
		if seenPage[l.URL] {
			continue
		}
		seenPage[l.URL] = true

		subPeriod, found := period.Extract(l.Text)
		if !found {
			subPeriod, found = period.Extract(l.URL)
		}
		if src.Params.WithinMonths > 0 && found && !period.WithinMonths(subPeriod, now, src.Params.WithinMonths) {
			continue
		}

		sub, err := d.fetcher.Fetch(ctx, l.URL)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			d.logger.WarnWithFields("period page fetch failed, skipping period", map[string]interface{}{
				"source": src.Name,
				"page":   l.URL,
				"error":  err.Error(),
			})
			continue
		}

		fallback := time.Time{}
		if found {
			fallback = subPeriod
		}

		candidates, err := d.candidatesFromPage(src, sub.Body, l.URL, fallback)
		if err != nil {
			d.logger.WarnWithFields("period page parse failed, skipping period", map[string]interface{}{
				"source": src.Name,
				"page":   l.URL,
				"error":  err.Error(),
			})
			continue
		}

		for _, c := range candidates {
			if seenDoc[c.Locator] {
				continue
			}
			seenDoc[c.Locator] = true
			all = append(all, c)
		}
	}

	d.logger.InfoWithFields("hierarchy discovered", map[string]interface{}{
		"source":     src.Name,
		"periods":    len(seenPage),
		"candidates": len(all),
	})

	return all, nil
}
