package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dataharvest/pkg/config"
	"dataharvest/pkg/fetch"
	"dataharvest/pkg/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.HTTP.JitterMin = 0
	cfg.HTTP.JitterMax = time.Millisecond
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	cfg.Rendered.ChallengeTimeout = 200 * time.Millisecond
	cfg.Rendered.PollInterval = 10 * time.Millisecond
	return cfg
}

func newTestDiscoverer() *Discoverer {
	cfg := testConfig()
	return New(cfg, fetch.New(cfg))
}

func locators(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Locator
	}
	return out
}

func TestDirect(t *testing.T) {
	d := newTestDiscoverer()

	src := source.Descriptor{
		Name:     "form-i797",
		Group:    "Forms",
		Strategy: source.StrategyDirect,
		Params:   source.Params{URL: "https://example.gov/files/form/i-797c.pdf"},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	assert.Equal(t, "https://example.gov/files/form/i-797c.pdf", candidates[0].Locator)
	assert.Equal(t, "Forms/i-797c.pdf", candidates[0].LocalPath)
}

func TestDirectFilenameOverride(t *testing.T) {
	d := newTestDiscoverer()

	src := source.Descriptor{
		Name:     "latest-report",
		Group:    "Reports",
		Strategy: source.StrategyDirect,
		Params: source.Params{
			URL:      "https://example.gov/download?id=42",
			Filename: "latest-report.pdf",
		},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Reports/latest-report.pdf", candidates[0].LocalPath)
}

func TestDirectIgnoresYearsOutsideFilename(t *testing.T) {
	d := newTestDiscoverer()

	// The path segment carries a revision stamp that looks like a year;
	// only the filename may drive the period layout
	src := source.Descriptor{
		Name:     "stamped",
		Group:    "Reports",
		Strategy: source.StrategyDirect,
		Params: source.Params{
			URL:            "https://example.gov/sites/default/files/2023-06/processing.pdf",
			SubdirByPeriod: true,
		},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Reports/processing.pdf", candidates[0].LocalPath)

	// A dated filename still gets its year subdirectory
	src.Params.URL = "https://example.gov/sites/default/files/2023-06/report-2025.pdf"
	candidates, err = d.Discover(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "Reports/2025/report-2025.pdf", candidates[0].LocalPath)
}

func TestAPIGet(t *testing.T) {
	d := newTestDiscoverer()

	src := source.Descriptor{
		Name:     "census-population",
		Group:    "Census",
		Strategy: source.StrategyAPI,
		Params: source.Params{
			URL: "https://api.example.gov/data/2023/acs",
			Query: map[string]string{
				"get": "NAME,B01001_001E",
				"for": "state:*",
			},
		},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	// Query parameters are encoded in sorted order, so the locator is
	// stable across runs
	assert.Equal(t, "https://api.example.gov/data/2023/acs?for=state%3A%2A&get=NAME%2CB01001_001E", candidates[0].Locator)
	assert.Equal(t, "Census/census-population.json", candidates[0].LocalPath)
	assert.Empty(t, candidates[0].Method)
	assert.Nil(t, candidates[0].Body)
}

func TestAPIPost(t *testing.T) {
	d := newTestDiscoverer()

	src := source.Descriptor{
		Name:     "bls-employment",
		Group:    "BLS",
		Strategy: source.StrategyAPI,
		Params: source.Params{
			URL:      "https://api.example.gov/timeseries/data/",
			Method:   "POST",
			Filename: "employment.json",
			Body: map[string]interface{}{
				"seriesid":  []string{"CES0000000001"},
				"startyear": "2024",
			},
		},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	assert.Equal(t, "https://api.example.gov/timeseries/data/", candidates[0].Locator)
	assert.Equal(t, "BLS/employment.json", candidates[0].LocalPath)
	assert.Equal(t, "post", candidates[0].Method)
	assert.Equal(t, "2024", candidates[0].Body["startyear"])
}

func TestManualYieldsNoCandidates(t *testing.T) {
	d := newTestDiscoverer()

	src := source.Descriptor{
		Name:     "portal-only",
		Group:    "Portal",
		Strategy: source.StrategyManual,
		Params:   source.Params{Note: "requires login"},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/reports/annual_2026.pdf">Annual Report 2026</a>
			<a href="data/survey_2026.xlsx">Survey Data</a>
			<a href="/reports/annual_2026.pdf">Annual Report 2026 (duplicate)</a>
			<a href="/about.html">About us</a>
			<a href="mailto:webmaster@example.gov">Contact</a>
			<a href="#top">Back to top</a>
		</body></html>`)
	}))
	defer server.Close()

	d := newTestDiscoverer()
	src := source.Descriptor{
		Name:     "reports",
		Group:    "Reports",
		Strategy: source.StrategyListing,
		Params:   source.Params{URL: server.URL + "/index.html"},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, []string{
		server.URL + "/reports/annual_2026.pdf",
		server.URL + "/data/survey_2026.xlsx",
	}, locators(candidates))
	assert.Equal(t, "Reports/annual_2026.pdf", candidates[0].LocalPath)
}

func TestListingRegexFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/visa_bulletin_march.pdf">Visa Bulletin March</a>
			<a href="/unrelated_notice.pdf">Unrelated Notice</a>
		</body></html>`)
	}))
	defer server.Close()

	d := newTestDiscoverer()
	src := source.Descriptor{
		Name:     "bulletins",
		Group:    "Bulletins",
		Strategy: source.StrategyListing,
		Params: source.Params{
			URL:          server.URL,
			RegexFilters: []string{`visa.bulletin`},
		},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Contains(t, candidates[0].Locator, "visa_bulletin_march.pdf")
}

func TestListingRecencyWindowAndPeriodSubdir(t *testing.T) {
	now := time.Now().UTC()
	recent := now.Format("January 2006")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a href="/bulletin_current.pdf">Bulletin %s</a>
			<a href="/bulletin_old.pdf">Bulletin March 2019</a>
			<a href="/bulletin_undated.pdf">Bulletin special edition</a>
		</body></html>`, recent)
	}))
	defer server.Close()

	d := newTestDiscoverer()
	src := source.Descriptor{
		Name:     "bulletins",
		Group:    "Bulletins",
		Strategy: source.StrategyListing,
		Params: source.Params{
			URL:            server.URL,
			WithinMonths:   12,
			SubdirByPeriod: true,
		},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// The dated recent link goes into its year subdirectory
	assert.Contains(t, candidates[0].Locator, "bulletin_current.pdf")
	assert.Equal(t, fmt.Sprintf("Bulletins/%d/bulletin_current.pdf", now.Year()), candidates[0].LocalPath)

	// The undated link is kept and stays flat
	assert.Contains(t, candidates[1].Locator, "bulletin_undated.pdf")
	assert.Equal(t, "Bulletins/bulletin_undated.pdf", candidates[1].LocalPath)
}

func TestPaginated(t *testing.T) {
	var requestedPages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requestedPages = append(requestedPages, page)
		switch page {
		case "1":
			fmt.Fprint(w, `<a href="/doc_a.pdf">Doc A</a><a href="/doc_b.pdf">Doc B</a>`)
		case "2":
			fmt.Fprint(w, `<a href="/doc_b.pdf">Doc B again</a><a href="/doc_c.pdf">Doc C</a>`)
		default:
			fmt.Fprint(w, `<html><body>No results</body></html>`)
		}
	}))
	defer server.Close()

	d := newTestDiscoverer()
	src := source.Descriptor{
		Name:     "archive",
		Group:    "Archive",
		Strategy: source.StrategyPaginated,
		Params: source.Params{
			URL:       server.URL + "/archive",
			PageParam: "page",
		},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)

	// Duplicates across pages collapse; two empty pages end the walk
	assert.Equal(t, []string{
		server.URL + "/doc_a.pdf",
		server.URL + "/doc_b.pdf",
		server.URL + "/doc_c.pdf",
	}, locators(candidates))
	assert.Equal(t, []string{"1", "2", "3", "4"}, requestedPages)
}

func TestPaginatedPageCap(t *testing.T) {
	var pagesServed int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		fmt.Fprintf(w, `<a href="/doc_%s.pdf">Doc</a>`, r.URL.Query().Get("page"))
	}))
	defer server.Close()

	d := newTestDiscoverer()
	src := source.Descriptor{
		Name:     "endless",
		Group:    "Archive",
		Strategy: source.StrategyPaginated,
		Params: source.Params{
			URL:       server.URL,
			PageParam: "page",
			MaxPages:  3,
		},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
	assert.Equal(t, 3, pagesServed)
}

func TestHierarchyWithPartialFailure(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	now := time.Now().UTC()
	thisPeriod := now.Format("January 2006")
	lastPeriod := now.AddDate(0, -1, 0).Format("January 2006")

	mux.HandleFunc("/hub", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a href="/bulletin/current">Visa Bulletin for %s</a>
			<a href="/bulletin/broken">Visa Bulletin for %s</a>
			<a href="/newsroom">Newsroom</a>
		</body></html>`, thisPeriod, lastPeriod)
	})
	mux.HandleFunc("/bulletin/current", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/files/bulletin.pdf">Download PDF</a>`)
	})
	mux.HandleFunc("/bulletin/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	d := newTestDiscoverer()
	src := source.Descriptor{
		Name:     "visa-bulletin",
		Group:    "VisaBulletin",
		Strategy: source.StrategyHierarchy,
		Params: source.Params{
			URL:            server.URL + "/hub",
			LinkPattern:    "visa bulletin for",
			WithinMonths:   12,
			SubdirByPeriod: true,
		},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)

	// The broken period is skipped, the healthy one still yields its doc
	require.Len(t, candidates, 1)
	assert.Equal(t, server.URL+"/files/bulletin.pdf", candidates[0].Locator)

	// The document carries no date of its own, so the sub-page period
	// drives the year subdirectory
	assert.Equal(t, fmt.Sprintf("VisaBulletin/%d/bulletin.pdf", now.Year()), candidates[0].LocalPath)
	assert.Equal(t, now.Year(), candidates[0].Period.Year())
}

func TestHierarchyRecencyWindowSkipsOldPeriods(t *testing.T) {
	var subPagesFetched int
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/hub", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/bulletin/2018">Visa Bulletin for June 2018</a>
		</body></html>`)
	})
	mux.HandleFunc("/bulletin/2018", func(w http.ResponseWriter, r *http.Request) {
		subPagesFetched++
		fmt.Fprint(w, `<a href="/files/old.pdf">Old PDF</a>`)
	})

	d := newTestDiscoverer()
	src := source.Descriptor{
		Name:     "visa-bulletin",
		Group:    "VisaBulletin",
		Strategy: source.StrategyHierarchy,
		Params: source.Params{
			URL:          server.URL + "/hub",
			LinkPattern:  "visa bulletin for",
			WithinMonths: 12,
		},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	// Out-of-window periods are never even fetched
	assert.Equal(t, 0, subPagesFetched)
}

func TestRenderedResolvesAfterPolling(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `<a href="/data/export.csv">Export</a>`)
	}))
	defer server.Close()

	cfg := testConfig()
	d := New(cfg, fetch.New(cfg))
	// Plain client against the test server; the challenge transport is
	// exercised against real endpoints only
	d.protected = fetch.New(cfg)

	src := source.Descriptor{
		Name:     "protected-data",
		Group:    "ProtectedData",
		Strategy: source.StrategyRendered,
		Params:   source.Params{URL: server.URL},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, server.URL+"/data/export.csv", candidates[0].Locator)
}

func TestRenderedDegradesOnTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Rendered.ChallengeTimeout = 50 * time.Millisecond
	d := New(cfg, fetch.New(cfg))
	d.protected = fetch.New(cfg)

	src := source.Descriptor{
		Name:     "locked",
		Group:    "Locked",
		Strategy: source.StrategyRendered,
		Params:   source.Params{URL: server.URL},
	}

	candidates, err := d.Discover(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDownloadable(t *testing.T) {
	tests := []struct {
		url        string
		extensions []string
		want       bool
	}{
		{"https://x.gov/a.pdf", nil, true},
		{"https://x.gov/a.PDF", nil, true},
		{"https://x.gov/a.pdf?v=2", nil, true},
		{"https://x.gov/a.xlsx", nil, true},
		{"https://x.gov/page.html", nil, false},
		{"https://x.gov/", nil, false},
		{"https://x.gov/a.pdf", []string{".csv"}, false},
		{"https://x.gov/a.csv", []string{".csv"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, downloadable(tt.url, tt.extensions))
		})
	}
}

func TestCompileFiltersRejectsBadPattern(t *testing.T) {
	_, err := compileFilters([]string{`valid`, `broken[`})
	require.Error(t, err)
}

func TestFileNameFromURL(t *testing.T) {
	assert.Equal(t, "a.pdf", fileNameFromURL("https://x.gov/files/a.pdf"))
	assert.Equal(t, "a.pdf", fileNameFromURL("https://x.gov/files/a.pdf?version=3"))
	assert.Equal(t, "index", fileNameFromURL("https://x.gov/"))
}
