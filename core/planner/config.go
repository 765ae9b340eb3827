package planner

import (
	"fmt"
	"math"

	"github.com/gridshift/carbonsched/core/model"
)

// Weights balances the three objectives of the composite score. The
// weights apply to min-max normalized values, so they are directly
// comparable; they must sum to one.
type Weights struct {
	Carbon   float64 `json:"carbon"`
	Cost     float64 `json:"cost"`
	Deadline float64 `json:"deadline"`
}

// SetDefaults applies the default carbon-leaning objective.
func (w *Weights) SetDefaults() {
	if w.Carbon == 0 && w.Cost == 0 && w.Deadline == 0 {
		w.Carbon = 0.6
		w.Cost = 0.3
		w.Deadline = 0.1
	}
}

// Validate checks the weights are a convex combination.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"carbon": w.Carbon, "cost": w.Cost, "deadline": w.Deadline} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s weight %.3f outside [0, 1]", model.ErrInvalidConfiguration, name, v)
		}
	}
	if sum := w.Carbon + w.Cost + w.Deadline; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: weights sum to %.3f, want 1", model.ErrInvalidConfiguration, sum)
	}
	return nil
}

// Config tunes the planner.
type Config struct {
	Weights Weights `json:"weights"`
	// HorizonHours bounds how far ahead of a job's earliest start the
	// planner requests forecasts.
	HorizonHours int `json:"horizon_hours"`
}

// SetDefaults fills zero fields with working values.
func (c *Config) SetDefaults() {
	c.Weights.SetDefaults()
	if c.HorizonHours == 0 {
		c.HorizonHours = 48
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.HorizonHours < 1 {
		return fmt.Errorf("%w: horizon_hours must be at least 1", model.ErrInvalidConfiguration)
	}
	return nil
}
