package discover

import (
	"context"
	"time"

	"dataharvest/pkg/period"
	"dataharvest/pkg/source"
)

// direct maps a source whose URL is the artifact itself to a single
// candidate. No request is made during discovery. The period comes
// from the filename alone; the rest of the URL path is full of ids and
// revision stamps that look like years.
func (d *Discoverer) direct(_ context.Context, src source.Descriptor) ([]Candidate, error) {
	name := src.Params.Filename
	if name == "" {
		name = fileNameFromURL(src.Params.URL)
	}

	p, found := period.Extract(name)

	subdir := ""
	if src.Params.SubdirByPeriod && found {
		subdir = period.YearDir(p.Year())
	}

	var periodValue time.Time
	if found {
		periodValue = p
	}

	return []Candidate{{
		Locator:   src.Params.URL,
		LocalPath: period.DestPath(src.Group, subdir, name),
		Period:    periodValue,
		Note:      src.Params.Note,
	}}, nil
}
