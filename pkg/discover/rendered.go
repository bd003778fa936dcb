package discover

import (
	"context"
	"time"

	"dataharvest/pkg/retry"
	"dataharvest/pkg/source"
)

// rendered handles sources behind an interactive challenge. The page is
// requested through the challenge-capable client and polled until the
// challenge resolves or the configured wait runs out; an unresolved
// challenge degrades to zero candidates instead of failing the run.
func (d *Discoverer) rendered(ctx context.Context, src source.Descriptor) ([]Candidate, error) {
	fetcher := d.protectedFetcher()
	deadline := time.Now().Add(d.cfg.Rendered.ChallengeTimeout)

	var body []byte
	for {
		result, err := fetcher.Fetch(ctx, src.Params.URL)
		if err == nil {
			body = result.Body
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if time.Now().Add(d.cfg.Rendered.PollInterval).After(deadline) {
			d.logger.WarnWithFields("challenge not resolved in time, skipping source", map[string]interface{}{
				"source": src.Name,
				"url":    src.Params.URL,
				"error":  err.Error(),
			})
			return nil, nil
		}

		d.logger.DebugWithFields("challenge pending, polling", map[string]interface{}{
			"source": src.Name,
		})
		if err := retry.Wait(ctx, d.cfg.Rendered.PollInterval); err != nil {
			return nil, err
		}
	}

	candidates, err := d.candidatesFromPage(src, body, src.Params.URL, time.Time{})
	if err != nil {
		return nil, err
	}

	d.logger.InfoWithFields("rendered page discovered", map[string]interface{}{
		"source":     src.Name,
		"candidates": len(candidates),
	})

	return candidates, nil
}
