package signal

import (
	"context"
	"math"
	"time"

	"github.com/gridshift/carbonsched/core/model"
)

// GeneratorConfig shapes the synthetic forecast curves.
type GeneratorConfig struct {
	// BaseIntensity is the mean carbon intensity in gCO2/kWh.
	BaseIntensity float64 `json:"base_intensity"`
	// IntensityAmplitude is the peak-to-mean swing over a day.
	IntensityAmplitude float64 `json:"intensity_amplitude"`
	// BasePrice is the mean electricity price in GBP/kWh.
	BasePrice float64 `json:"base_price"`
	// PriceAmplitude is the daily price swing.
	PriceAmplitude float64 `json:"price_amplitude"`
	// Source names the provenance string stamped on signals.
	Source string `json:"source"`
}

// SetDefaults applies the typical UK grid shape: cleanest and cheapest
// in the small hours, dirtiest around the evening peak.
func (c *GeneratorConfig) SetDefaults() {
	if c.BaseIntensity == 0 {
		c.BaseIntensity = 250
	}
	if c.IntensityAmplitude == 0 {
		c.IntensityAmplitude = 120
	}
	if c.BasePrice == 0 {
		c.BasePrice = 0.15
	}
	if c.PriceAmplitude == 0 {
		c.PriceAmplitude = 0.08
	}
	if c.Source == "" {
		c.Source = "synthetic_generator"
	}
}

// Generator produces deterministic half-hourly signals following a
// diurnal curve. It stands in for live forecast feeds in simulations;
// given identical inputs it always returns identical signals.
type Generator struct {
	cfg GeneratorConfig
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	cfg.SetDefaults()
	return &Generator{cfg: cfg}
}

// Fetch generates signals at slot boundaries within [from, to).
func (g *Generator) Fetch(_ context.Context, region model.Region, from, to time.Time) ([]model.GridSignal, error) {
	var out []model.GridSignal
	for ts := model.NextSlot(from); ts.Before(to.UTC()); ts = ts.Add(model.SlotDuration) {
		out = append(out, g.at(region, ts))
	}
	return out, nil
}

func (g *Generator) at(region model.Region, ts time.Time) model.GridSignal {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60
	// Peak around 18:00, trough around 04:00.
	phase := (hour - 18) / 24 * 2 * math.Pi
	factor := math.Cos(phase)
	intensity := g.cfg.BaseIntensity + g.cfg.IntensityAmplitude*factor
	price := g.cfg.BasePrice + g.cfg.PriceAmplitude*factor
	renewable := renewableFromIntensity(intensity)
	return model.GridSignal{
		Region:            region,
		Timestamp:         ts,
		CarbonIntensity:   intensity,
		PricePerKWh:       price,
		RenewableFraction: renewable,
		DataSource:        g.cfg.Source,
	}
}

// renewableFromIntensity estimates the renewable share from carbon
// intensity, mirroring the heuristics of regional UK grid data.
func renewableFromIntensity(intensity float64) float64 {
	switch {
	case intensity < 100:
		return 0.7
	case intensity < 200:
		return 0.5
	case intensity < 300:
		return 0.3
	default:
		return 0.15
	}
}
