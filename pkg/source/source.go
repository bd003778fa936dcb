// Package source defines the registry of remote sources and loads it
// from a YAML file. Descriptors are read-only during a run.
package source

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Strategy identifiers
const (
	StrategyDirect    = "direct"
	StrategyListing   = "listing"
	StrategyPaginated = "paginated"
	StrategyHierarchy = "hierarchy"
	StrategyRendered  = "rendered"
	StrategyAPI       = "api"
	StrategyManual    = "manual"
)

var validStrategies = map[string]bool{
	StrategyDirect:    true,
	StrategyListing:   true,
	StrategyPaginated: true,
	StrategyHierarchy: true,
	StrategyRendered:  true,
	StrategyAPI:       true,
	StrategyManual:    true,
}

// Params carries the strategy-specific knobs for one source
type Params struct {
	// URL is the entry point: the document itself for direct sources,
	// the index page for listing and rendered sources, the hub page for
	// hierarchical sources, the page template for paginated sources.
	URL string `yaml:"url"`

	// Selector is the goquery CSS selector for candidate links.
	// Defaults to "a[href]" when empty.
	Selector string `yaml:"selector,omitempty"`

	// PageParam is the query parameter incremented by the paginated
	// strategy, e.g. "page".
	PageParam string `yaml:"page_param,omitempty"`

	// MaxPages caps paginated traversal. Zero means the default cap.
	MaxPages int `yaml:"max_pages,omitempty"`

	// RegexFilters keeps only links whose URL or text matches at least
	// one of the patterns. Empty means no filtering.
	RegexFilters []string `yaml:"regex_filters,omitempty"`

	// LinkPattern selects the per-period sub-page links on a hub page
	// for the hierarchy strategy.
	LinkPattern string `yaml:"link_pattern,omitempty"`

	// Extensions overrides the downloadable-extension filter.
	Extensions []string `yaml:"extensions,omitempty"`

	// WithinMonths restricts candidates to periods within the last N
	// months. Zero disables the recency window.
	WithinMonths int `yaml:"within_months,omitempty"`

	// SubdirByPeriod places each file under a year (or fiscal-year)
	// subdirectory derived from its period.
	SubdirByPeriod bool `yaml:"subdir_by_period,omitempty"`

	// FiscalLayout uses FY-prefixed subdirectories instead of calendar
	// years when SubdirByPeriod is set.
	FiscalLayout bool `yaml:"fiscal_layout,omitempty"`

	// Filename overrides the destination filename for direct and api
	// sources.
	Filename string `yaml:"filename,omitempty"`

	// Method is the HTTP method for api sources: "get" (default) or
	// "post".
	Method string `yaml:"method,omitempty"`

	// Query holds extra query parameters appended to the endpoint URL
	// of an api source.
	Query map[string]string `yaml:"query,omitempty"`

	// Body is the JSON query document sent by a POST api source.
	Body map[string]interface{} `yaml:"body,omitempty"`

	// Note is carried into the manifest entry, e.g. the reason a manual
	// source cannot be fetched automatically.
	Note string `yaml:"note,omitempty"`
}

// Descriptor identifies one remote source in the registry
type Descriptor struct {
	Name     string `yaml:"name"`
	Group    string `yaml:"group"`
	Strategy string `yaml:"strategy"`
	Params   Params `yaml:"params"`
}

// registryFile is the on-disk shape of the registry
type registryFile struct {
	Sources []Descriptor `yaml:"sources"`
}

// Validate checks a single descriptor for structural problems
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("source has no name")
	}
	if d.Group == "" {
		return fmt.Errorf("source %q has no group", d.Name)
	}
	if !validStrategies[d.Strategy] {
		return fmt.Errorf("source %q has unknown strategy %q", d.Name, d.Strategy)
	}
	if d.Strategy != StrategyManual && d.Params.URL == "" {
		return fmt.Errorf("source %q has no url", d.Name)
	}
	if d.Strategy == StrategyPaginated && d.Params.PageParam == "" {
		return fmt.Errorf("paginated source %q has no page_param", d.Name)
	}
	if d.Strategy == StrategyAPI {
		switch strings.ToLower(d.Params.Method) {
		case "", "get", "post":
		default:
			return fmt.Errorf("api source %q has unsupported method %q", d.Name, d.Params.Method)
		}
		if strings.ToLower(d.Params.Method) == "post" && len(d.Params.Body) == 0 {
			return fmt.Errorf("api source %q posts without a body", d.Name)
		}
	}
	return nil
}

// LoadRegistry reads the source registry from a YAML file, preserving
// declaration order. Every descriptor is validated; the first invalid
// one fails the load.
func LoadRegistry(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}

	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s declares no sources", path)
	}

	seen := make(map[string]bool, len(file.Sources))
	for _, src := range file.Sources {
		if err := src.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(src.Name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[key] = true
	}

	return file.Sources, nil
}
