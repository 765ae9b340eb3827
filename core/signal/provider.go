package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridshift/carbonsched/core/model"
)

// ErrUnavailable indicates that upstream signal data cannot be obtained
// and no usable cached value exists. The cache never synthesizes data
// in its place; callers retry once upstream recovers.
var ErrUnavailable = errors.New("grid signal unavailable")

// Provider fetches grid signals for a region over a time range. The
// returned sequence is ordered by timestamp at half-hour granularity.
// Implementations must fail with a descriptive error on network or
// parse failure; they have no guaranteed uptime.
type Provider interface {
	Fetch(ctx context.Context, region model.Region, from, to time.Time) ([]model.GridSignal, error)
}

// ProviderError wraps an upstream fetch failure with its region.
type ProviderError struct {
	Region model.Region
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("signal provider: region %s: %v", e.Region, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
