// Package period extracts publication periods from link text and URLs
// and derives deterministic destination paths from them.
package period

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var monthNumbers = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	monthYearRe    = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)[-\s]?(\d{4})\b`)
	numericMonthRe = regexp.MustCompile(`\b(\d{4})[-_](\d{1,2})\b`)
	fiscalQuarterRe = regexp.MustCompile(`(?:fy|fiscal\s*year)\s*_?(\d{4}).*?q(\d)`)
	quarterFiscalRe = regexp.MustCompile(`q(\d).*?(?:fy|fiscal\s*year)\s*_?(\d{4})`)
	calQuarterRe   = regexp.MustCompile(`\b(\d{4})[-_]?q(\d)\b`)
	bareYearRe     = regexp.MustCompile(`\b(20\d{2})\b`)
	fiscalYearRe   = regexp.MustCompile(`fy[-_\s]?(\d{2,4})`)
	quarterRe      = regexp.MustCompile(`q(\d)`)
)

// Extract parses a publication date out of free-form link text or a URL.
// Recognized shapes, in order of precedence: "February 2026", "2026-02",
// fiscal quarters ("FY2025_Q3", "Q3 FY2025", mapped to the federal quarter
// end date), calendar quarters ("2026Q2"), and a bare year.
// Returns the zero time and false when nothing matches.
func Extract(text string) (time.Time, bool) {
	text = strings.ToLower(text)

	if m := monthYearRe.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[2])
		return time.Date(year, monthNumbers[m[1]], 1, 0, 0, 0, 0, time.UTC), true
	}

	if m := numericMonthRe.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 && year >= 2000 && year <= 2100 {
			return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
		}
	}

	if t, ok := extractFiscalQuarter(text); ok {
		return t, true
	}

	if m := calQuarterRe.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		quarter, _ := strconv.Atoi(m[2])
		if quarter >= 1 && quarter <= 4 {
			month := time.Month((quarter-1)*3 + 1)
			return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
		}
	}

	if m := bareYearRe.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}

// extractFiscalQuarter maps a federal fiscal year quarter to its quarter-end
// date. Q1 of FY2025 ends Dec 31 2024; Q2-Q4 end Mar 31, Jun 30 and Sep 30
// of the fiscal year's own calendar year.
func extractFiscalQuarter(text string) (time.Time, bool) {
	var year, quarter int

	if m := fiscalQuarterRe.FindStringSubmatch(text); m != nil {
		year, _ = strconv.Atoi(m[1])
		quarter, _ = strconv.Atoi(m[2])
	} else if m := quarterFiscalRe.FindStringSubmatch(text); m != nil {
		quarter, _ = strconv.Atoi(m[1])
		year, _ = strconv.Atoi(m[2])
	} else {
		return time.Time{}, false
	}

	if quarter < 1 || quarter > 4 {
		return time.Time{}, false
	}

	switch quarter {
	case 1:
		return time.Date(year-1, time.December, 31, 0, 0, 0, 0, time.UTC), true
	case 2:
		return time.Date(year, time.March, 31, 0, 0, 0, 0, time.UTC), true
	case 3:
		return time.Date(year, time.June, 30, 0, 0, 0, 0, time.UTC), true
	default:
		return time.Date(year, time.September, 30, 0, 0, 0, 0, time.UTC), true
	}
}

// FiscalYear extracts a 4-digit fiscal year from text like "FY2024" or
// "FY14" (2-digit years are assumed to be 20xx).
func FiscalYear(text string) (int, bool) {
	m := fiscalYearRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, false
	}
	year, _ := strconv.Atoi(m[1])
	if year < 100 {
		year += 2000
	}
	return year, true
}

// Quarter extracts a quarter number (1-4) from text like "Q3"
func Quarter(text string) (int, bool) {
	m := quarterRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, false
	}
	q, _ := strconv.Atoi(m[1])
	if q < 1 || q > 4 {
		return 0, false
	}
	return q, true
}

// WithinMonths reports whether t falls within n months before the reference
// date, using the 30-day month approximation
func WithinMonths(t, reference time.Time, months int) bool {
	cutoff := reference.AddDate(0, 0, -months*30)
	return !t.Before(cutoff)
}

// DestPath derives the destination path for an artifact, relative to the
// storage root. The period segment is omitted when subdir is empty, so a
// flat group layout and a per-period layout share one derivation. The
// group name never repeats as a nested directory.
func DestPath(group, subdir, filename string) string {
	group = sanitizeSegment(group)
	filename = path.Base(filename)

	if subdir == "" || sanitizeSegment(subdir) == group {
		return path.Join(group, filename)
	}
	return path.Join(group, sanitizeSegment(subdir), filename)
}

// YearDir formats a year subdirectory segment
func YearDir(year int) string {
	return strconv.Itoa(year)
}

// FiscalYearDir formats a fiscal year subdirectory segment
func FiscalYearDir(year int) string {
	return fmt.Sprintf("FY%d", year)
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "..", "")
	s = strings.Trim(s, "/")
	return s
}
