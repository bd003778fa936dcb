package discover

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"dataharvest/pkg/source"
)

const (
	// defaultMaxPages caps traversal when the source sets no limit
	defaultMaxPages = 20

	// emptyPageLimit stops traversal after this many consecutive pages
	// with no new matching links
	emptyPageLimit = 2
)

// paginated walks an index split across numbered pages, incrementing
// the page parameter until the page cap or two consecutive pages yield
// nothing new
func (d *Discoverer) paginated(ctx context.Context, src source.Descriptor) ([]Candidate, error) {
	maxPages := src.Params.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	seen := make(map[string]bool)
	var all []Candidate
	emptyStreak := 0

	for page := 1; page <= maxPages; page++ {
		pageURL, err := pageURL(src.Params.URL, src.Params.PageParam, page)
		if err != nil {
			return nil, err
		}

		result, err := d.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			d.logger.WarnWithFields("page fetch failed, stopping pagination", map[string]interface{}{
				"source": src.Name,
				"page":   page,
				"error":  err.Error(),
			})
			break
		}

		candidates, err := d.candidatesFromPage(src, result.Body, pageURL, time.Time{})
		if err != nil {
			d.logger.WarnWithFields("page parse failed, stopping pagination", map[string]interface{}{
				"source": src.Name,
				"page":   page,
				"error":  err.Error(),
			})
			break
		}

		added := 0
		for _, c := range candidates {
			if seen[c.Locator] {
				continue
			}
			seen[c.Locator] = true
			all = append(all, c)
			added++
		}

		if added == 0 {
			emptyStreak++
			if emptyStreak >= emptyPageLimit {
				break
			}
		} else {
			emptyStreak = 0
		}
	}

	d.logger.InfoWithFields("pagination discovered", map[string]interface{}{
		"source":     src.Name,
		"candidates": len(all),
	})

	return all, nil
}

// pageURL sets the page number query parameter on the base URL
func pageURL(base, param string, page int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid source url %s: %w", base, err)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
