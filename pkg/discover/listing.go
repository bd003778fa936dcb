package discover

import (
	"context"
	"time"

	"dataharvest/pkg/source"
)

// listing fetches one index page and extracts its document links
func (d *Discoverer) listing(ctx context.Context, src source.Descriptor) ([]Candidate, error) {
	result, err := d.fetcher.Fetch(ctx, src.Params.URL)
	if err != nil {
		return nil, err
	}

	candidates, err := d.candidatesFromPage(src, result.Body, src.Params.URL, time.Time{})
	if err != nil {
		return nil, err
	}

	d.logger.InfoWithFields("listing discovered", map[string]interface{}{
		"source":     src.Name,
		"candidates": len(candidates),
	})

	return candidates, nil
}
