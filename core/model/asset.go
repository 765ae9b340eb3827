package model

import "fmt"

// ComputeAsset represents a schedulable compute resource such as a GPU
// cluster or a server rack. Assets are immutable once registered except
// for capacity edits by an administrator.
type ComputeAsset struct {
	ID          string          `json:"asset_id" validate:"required"`
	Type        string          `json:"asset_type" validate:"required"`
	Region      Region          `json:"region" validate:"required"`
	MaxPowerKW  float64         `json:"max_power_kw" validate:"required,gt=0"`
	MinPowerKW  float64         `json:"min_power_kw" validate:"gte=0"`
	Flexibility FlexibilityType `json:"flexibility_type"`
}

// Validate checks that the asset definition is sound.
func (a ComputeAsset) Validate() error {
	if err := validate.Struct(a); err != nil {
		return invalidf("asset %s: %v", a.ID, err)
	}
	if !a.Region.Valid() {
		return invalidf("asset %s: unknown region %q", a.ID, a.Region)
	}
	if !a.Flexibility.Valid() {
		return invalidf("asset %s: unknown flexibility type %q", a.ID, a.Flexibility)
	}
	if a.MinPowerKW > a.MaxPowerKW {
		return invalidf("asset %s: min power %.1fkW exceeds max power %.1fkW", a.ID, a.MinPowerKW, a.MaxPowerKW)
	}
	return nil
}

func (a ComputeAsset) String() string {
	return fmt.Sprintf("%s (%s, %s, %.0fkW)", a.ID, a.Type, a.Region, a.MaxPowerKW)
}
