package discover

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"dataharvest/pkg/period"
	"dataharvest/pkg/source"
)

// api maps a JSON API endpoint to a single candidate. GET endpoints
// carry their query parameters in the locator; POST endpoints carry a
// query document that is sent at fetch time. No request is made during
// discovery.
func (d *Discoverer) api(_ context.Context, src source.Descriptor) ([]Candidate, error) {
	u, err := url.Parse(src.Params.URL)
	if err != nil {
		return nil, fmt.Errorf("source %q: invalid endpoint url %s: %w", src.Name, src.Params.URL, err)
	}

	if len(src.Params.Query) > 0 {
		q := u.Query()
		for k, v := range src.Params.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	name := src.Params.Filename
	if name == "" {
		name = src.Name + ".json"
	}

	return []Candidate{{
		Locator:   u.String(),
		LocalPath: period.DestPath(src.Group, "", name),
		Method:    strings.ToLower(src.Params.Method),
		Body:      src.Params.Body,
		Note:      src.Params.Note,
	}}, nil
}
