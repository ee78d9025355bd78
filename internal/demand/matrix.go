package demand

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/rs/zerolog/log"
)

// Options control label cleaning and the window used when no date parses.
type Options struct {
	StripToken    string
	FallbackStart time.Time
	FallbackEnd   time.Time
}

func DefaultOptions() Options {
	return Options{
		StripToken:    "MDF",
		FallbackStart: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
		FallbackEnd:   time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC),
	}
}

// Report describes how the date column was interpreted.
type Report struct {
	DayFirst    bool `json:"day_first"`
	Parsed      int  `json:"parsed"`
	Unparseable int  `json:"unparseable"`
	Fallback    bool `json:"fallback"`
}

// Matrix is an immutable SKU x day table of demanded units covering every
// day between the first and last parsed date.
type Matrix struct {
	start  time.Time
	days   int
	skus   []string
	index  map[string]int
	qty    [][]float64
	report Report
}

// CleanLabel removes token as a standalone word, case-insensitively, and trims
// the result.
func CleanLabel(label, token string) string {
	label = strings.TrimSpace(label)
	if token == "" {
		return label
	}
	re := tokenPattern(token)
	return strings.TrimSpace(re.ReplaceAllString(label, ""))
}

func tokenPattern(token string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(token) + `\b\s*`)
}

// Build aggregates demand records into a gap-free daily matrix. Rows whose
// date does not parse under the chosen interpretation are counted and left out.
func Build(records []domain.DemandRecord, opts Options) *Matrix {
	raws := make([]string, len(records))
	for i, r := range records {
		raws[i] = r.RawDate
	}
	chosen := chooseInterpretation(raws)

	m := &Matrix{
		index: make(map[string]int),
		report: Report{
			DayFirst:    chosen.dayFirst,
			Parsed:      chosen.parsed,
			Unparseable: len(records) - chosen.parsed,
		},
	}

	if chosen.parsed == 0 {
		m.start = truncateDay(opts.FallbackStart)
		m.days = daysBetween(m.start, truncateDay(opts.FallbackEnd)) + 1
		if m.days < 1 {
			m.days = 1
		}
		m.report.Fallback = true
		log.Warn().
			Int("rows", len(records)).
			Time("from", m.start).
			Int("days", m.days).
			Msg("No valid demand dates parsed; using fallback window")
		return m
	}

	m.start = chosen.min
	m.days = daysBetween(chosen.min, chosen.max) + 1

	var re *regexp.Regexp
	if opts.StripToken != "" {
		re = tokenPattern(opts.StripToken)
	}

	for i, r := range records {
		if !chosen.ok[i] {
			continue
		}
		sku := strings.TrimSpace(r.SKU)
		if re != nil {
			sku = strings.TrimSpace(re.ReplaceAllString(sku, ""))
		}
		row, ok := m.index[sku]
		if !ok {
			row = len(m.skus)
			m.index[sku] = row
			m.skus = append(m.skus, sku)
			m.qty = append(m.qty, make([]float64, m.days))
		}
		m.qty[row][daysBetween(m.start, chosen.dates[i])] += r.Quantity
	}

	m.sortSKUs()

	log.Info().
		Bool("day_first", chosen.dayFirst).
		Str("from", m.Start().Format("2006-01-02")).
		Str("to", m.End().Format("2006-01-02")).
		Int("span_days", m.days-1).
		Msg("Date parse chosen")
	if m.report.Unparseable > 0 {
		log.Warn().
			Int("rows", m.report.Unparseable).
			Msg("Rows with unparseable dates excluded from the timeline")
	}

	return m
}

func (m *Matrix) sortSKUs() {
	order := make([]int, len(m.skus))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return m.skus[order[a]] < m.skus[order[b]] })

	skus := make([]string, len(order))
	qty := make([][]float64, len(order))
	for i, j := range order {
		skus[i] = m.skus[j]
		qty[i] = m.qty[j]
		m.index[skus[i]] = i
	}
	m.skus, m.qty = skus, qty
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func (m *Matrix) Start() time.Time { return m.start }

func (m *Matrix) End() time.Time { return m.start.AddDate(0, 0, m.days-1) }

// Len is the number of days in the matrix.
func (m *Matrix) Len() int { return m.days }

// Day returns the calendar date of day index i.
func (m *Matrix) Day(i int) time.Time { return m.start.AddDate(0, 0, i) }

// SKUs returns the sorted SKUs that have at least one dated row.
func (m *Matrix) SKUs() []string {
	out := make([]string, len(m.skus))
	copy(out, m.skus)
	return out
}

// Quantity returns whole units demanded for sku on day index i. Unknown SKUs
// and out of range days are zero.
func (m *Matrix) Quantity(sku string, i int) int {
	row, ok := m.index[sku]
	if !ok || i < 0 || i >= m.days {
		return 0
	}
	return domain.WholeUnits(m.qty[row][i])
}

func (m *Matrix) Report() Report { return m.report }
