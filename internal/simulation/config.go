package simulation

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds the replenishment policy constants of a run.
type Config struct {
	LeadTimeDays int     `json:"lead_time_days"`
	CoverDays    float64 `json:"cover_days"`
	MinTruckTons float64 `json:"min_truck_tons"`
	MaxTruckTons float64 `json:"max_truck_tons"`
}

func DefaultConfig() Config {
	return Config{
		LeadTimeDays: 7,
		CoverDays:    45,
		MinTruckTons: 10,
		MaxTruckTons: 12,
	}
}

func (c Config) Validate() error {
	switch {
	case c.LeadTimeDays < 1:
		return fmt.Errorf("%w: lead time must be at least 1 day, got %d", ErrInvalidConfig, c.LeadTimeDays)
	case c.CoverDays < 0:
		return fmt.Errorf("%w: cover days must not be negative, got %g", ErrInvalidConfig, c.CoverDays)
	case c.MinTruckTons <= 0 || c.MaxTruckTons <= 0:
		return fmt.Errorf("%w: truck bounds must be positive, got %g..%g", ErrInvalidConfig, c.MinTruckTons, c.MaxTruckTons)
	case c.MinTruckTons > c.MaxTruckTons:
		return fmt.Errorf("%w: min truck tons %g exceeds max %g", ErrInvalidConfig, c.MinTruckTons, c.MaxTruckTons)
	}
	return nil
}
