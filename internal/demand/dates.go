package demand

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	separatorReplacer = strings.NewReplacer(".", "-", "/", "-")
	timeSuffix        = regexp.MustCompile(`[ T]\d{1,2}:\d{2}(:\d{2}(\.\d+)?)?.*$`)

	// Layouts whose field order does not depend on locale.
	unambiguousLayouts = []string{"2006-1-2", "2-Jan-2006", "2-Jan-06", "Jan-2-2006", "2-January-2006"}
	dayFirstLayouts    = []string{"2-1-2006", "2-1-06"}
	monthFirstLayouts  = []string{"1-2-2006", "1-2-06"}
)

// Highest serial excelize accepts (9999-12-31).
const maxExcelSerial = 2958465

func normalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	s = timeSuffix.ReplaceAllString(s, "")
	return separatorReplacer.Replace(s)
}

// parseDate parses raw under one locale interpretation. The result is
// truncated to a UTC calendar day.
func parseDate(raw string, dayFirst bool) (time.Time, bool) {
	s := normalizeDate(raw)
	if s == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial < 1 || serial > maxExcelSerial {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return truncateDay(t), true
	}

	layouts := monthFirstLayouts
	if dayFirst {
		layouts = dayFirstLayouts
	}
	for _, group := range [][]string{unambiguousLayouts, layouts} {
		for _, layout := range group {
			if t, err := time.Parse(layout, s); err == nil {
				return truncateDay(t), true
			}
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// interpretation is the outcome of parsing a whole column one way.
type interpretation struct {
	dayFirst bool
	dates    []time.Time
	ok       []bool
	parsed   int
	min, max time.Time
}

func interpret(raws []string, dayFirst bool) interpretation {
	in := interpretation{
		dayFirst: dayFirst,
		dates:    make([]time.Time, len(raws)),
		ok:       make([]bool, len(raws)),
	}
	for i, raw := range raws {
		t, ok := parseDate(raw, dayFirst)
		if !ok {
			continue
		}
		in.dates[i], in.ok[i] = t, true
		if in.parsed == 0 || t.Before(in.min) {
			in.min = t
		}
		if in.parsed == 0 || t.After(in.max) {
			in.max = t
		}
		in.parsed++
	}
	return in
}

func (in interpretation) spanDays() int {
	if in.parsed == 0 {
		return 0
	}
	return int(in.max.Sub(in.min).Hours() / 24)
}

// concentration is the share of parsed dates falling in the three busiest months.
func (in interpretation) concentration() float64 {
	if in.parsed == 0 {
		return 0
	}
	counts := make(map[time.Time]int)
	for i, t := range in.dates {
		if in.ok[i] {
			counts[time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)]++
		}
	}
	values := make([]int, 0, len(counts))
	for _, c := range counts {
		values = append(values, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))
	top := 0
	for i := 0; i < len(values) && i < 3; i++ {
		top += values[i]
	}
	return float64(top) / float64(in.parsed)
}

// better reports whether in scores strictly higher than other: more parsed
// rows, then a tighter span, then a higher monthly concentration.
func (in interpretation) better(other interpretation) bool {
	if in.parsed != other.parsed {
		return in.parsed > other.parsed
	}
	if a, b := in.spanDays(), other.spanDays(); a != b {
		return a < b
	}
	return in.concentration() > other.concentration()
}

// chooseInterpretation parses the column both ways and keeps the better one
// for every row. Month-first wins ties.
func chooseInterpretation(raws []string) interpretation {
	monthFirst := interpret(raws, false)
	dayFirst := interpret(raws, true)
	if dayFirst.better(monthFirst) {
		return dayFirst
	}
	return monthFirst
}
