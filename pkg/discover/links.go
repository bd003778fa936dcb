package discover

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	errs "dataharvest/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// defaultExtensions are the artifact types harvested when a source does
// not override them
var defaultExtensions = []string{
	".pdf", ".xlsx", ".xls", ".csv", ".docx", ".doc", ".zip", ".json",
}

// link is one anchor found on an index page, with its href resolved to
// an absolute URL
type link struct {
	URL  string
	Text string
}

// extractLinks parses an HTML page and returns its anchors matching the
// CSS selector, with relative hrefs resolved against the page URL.
// An empty selector matches every anchor with an href.
func extractLinks(body []byte, pageURL, selector string) ([]link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.New(errs.ErrorTypeParsing, 0, "failed to parse page %s: %v", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeParsing, 0, "invalid page url %s: %v", pageURL, err)
	}

	if selector == "" {
		selector = "a[href]"
	}

	var links []link
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		links = append(links, link{
			URL:  base.ResolveReference(ref).String(),
			Text: strings.TrimSpace(s.Text()),
		})
	})

	return links, nil
}

// downloadable reports whether a URL points at a harvestable artifact,
// judged by its path extension
func downloadable(raw string, extensions []string) bool {
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}

	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	p = strings.ToLower(p)

	for _, ext := range extensions {
		if strings.HasSuffix(p, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// compileFilters compiles the source's regex filters. A broken pattern
// is a registry mistake and fails discovery for that source.
func compileFilters(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, errs.New(errs.ErrorTypeParsing, 0, "invalid regex filter %q: %v", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// matchesAny reports whether a link's URL or text matches at least one
// filter
func matchesAny(l link, filters []*regexp.Regexp) bool {
	for _, re := range filters {
		if re.MatchString(l.URL) || re.MatchString(l.Text) {
			return true
		}
	}
	return false
}
