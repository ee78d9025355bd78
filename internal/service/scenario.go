package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// ParseScenario parses "name:lead=7,cover=45,min=10,max=12". Keys are optional
// and fall back to defaults; the name part may be omitted.
func ParseScenario(expr string, defaults domain.SimulationParams) (domain.SimulationParams, error) {
	p := defaults
	p.Interactive = false

	expr = strings.TrimSpace(expr)
	if expr == "" {
		return p, fmt.Errorf("empty scenario")
	}

	body := expr
	if name, rest, ok := strings.Cut(expr, ":"); ok {
		p.Name = strings.TrimSpace(name)
		body = rest
	} else if !strings.Contains(expr, "=") {
		p.Name = expr
		return p, nil
	}

	for _, pair := range strings.Split(body, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return p, fmt.Errorf("scenario %q: expected key=value, got %q", expr, pair)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		var err error
		switch key {
		case "lead", "lead_time_days":
			p.LeadTimeDays, err = strconv.Atoi(value)
		case "cover", "cover_days":
			p.CoverDays, err = strconv.ParseFloat(value, 64)
		case "min", "min_truck_tons":
			p.MinTruckTons, err = strconv.ParseFloat(value, 64)
		case "max", "max_truck_tons":
			p.MaxTruckTons, err = strconv.ParseFloat(value, 64)
		default:
			return p, fmt.Errorf("scenario %q: unknown key %q", expr, key)
		}
		if err != nil {
			return p, fmt.Errorf("scenario %q: invalid %s: %w", expr, key, err)
		}
	}

	return p, nil
}
