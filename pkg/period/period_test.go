package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Time
		ok   bool
	}{
		{"month name with year", "Visa Bulletin For February 2026", date(2026, time.February, 1), true},
		{"abbreviated month", "released Feb 2026", date(2026, time.February, 1), true},
		{"month-year with dash", "visa-bulletin-for-february-2026.html", date(2026, time.February, 1), true},
		{"numeric year-month", "report 2026-02 final.pdf", date(2026, time.February, 1), true},
		{"numeric with underscore", "stats 2025_11 revised", date(2025, time.November, 1), true},
		{"fiscal quarter Q1 ends prior december", "LCA_Disclosure_Data_FY2025_Q1.xlsx", date(2024, time.December, 31), true},
		{"fiscal quarter Q2", "FY2025_Q2 layout", date(2025, time.March, 31), true},
		{"fiscal quarter Q3", "LCA_Disclosure_Data_FY2025_Q3.xlsx", date(2025, time.June, 30), true},
		{"fiscal quarter Q4", "FY2025 Q4 disclosure", date(2025, time.September, 30), true},
		{"quarter before fiscal year", "Q3 FY2025 summary", date(2025, time.June, 30), true},
		{"calendar quarter", "issuances 2026Q2", date(2026, time.April, 1), true},
		{"calendar quarter with dash", "2026-Q2 data", date(2026, time.April, 1), true},
		{"bare year", "Yearbook of Statistics 2023", date(2023, time.January, 1), true},
		{"no date at all", "click here for the spreadsheet", time.Time{}, false},
		{"month out of range", "report 2026-13 final", date(2026, time.January, 1), true}, // falls through to bare year
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFiscalYear(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"LCA_Disclosure_Data_FY2024_Q2.xlsx", 2024, true},
		{"H1B Record Layout FY14.pdf", 2014, true},
		{"PERM_FY 2023", 2023, true},
		{"no year here", 0, false},
	}

	for _, tt := range tests {
		got, ok := FiscalYear(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.text)
		}
	}
}

func TestQuarter(t *testing.T) {
	q, ok := Quarter("FY2024_Q3")
	assert.True(t, ok)
	assert.Equal(t, 3, q)

	_, ok = Quarter("FY2024")
	assert.False(t, ok)

	_, ok = Quarter("Q7 nonsense")
	assert.False(t, ok)
}

func TestWithinMonths(t *testing.T) {
	ref := date(2026, time.June, 15)

	assert.True(t, WithinMonths(date(2026, time.January, 1), ref, 12))
	assert.True(t, WithinMonths(date(2025, time.July, 15), ref, 12))
	assert.False(t, WithinMonths(date(2024, time.May, 1), ref, 12))
	// Future dates are always in range
	assert.True(t, WithinMonths(date(2026, time.December, 1), ref, 12))
}

func TestDestPath(t *testing.T) {
	assert.Equal(t, "OFLC/FY2024/data.xlsx", DestPath("OFLC", "FY2024", "data.xlsx"))
	assert.Equal(t, "VisaBulletin/2026/bulletin.pdf", DestPath("VisaBulletin", YearDir(2026), "bulletin.pdf"))
	assert.Equal(t, "WARN/report.xlsx", DestPath("WARN", "", "report.xlsx"))

	// A subdir equal to the group must not nest the group twice
	assert.Equal(t, "USCIS/forms.csv", DestPath("USCIS", "USCIS", "forms.csv"))

	// Filenames are always flattened to their base name
	assert.Equal(t, "G/2024/f.pdf", DestPath("G", "2024", "some/dir/f.pdf"))

	// Path traversal characters are stripped from segments
	assert.Equal(t, "G/sub/f.pdf", DestPath("/G/", "../sub", "f.pdf"))
}

func TestFiscalYearDir(t *testing.T) {
	assert.Equal(t, "FY2024", FiscalYearDir(2024))
	assert.Equal(t, "2024", YearDir(2024))
}
