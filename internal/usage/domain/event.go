package domain

import (
	"time"

	"github.com/clusterops/usage-collector/internal/clock"
)

// NewEvent assembles a canonical usage event. CollectedAt is stamped from
// the injected clock; callers are responsible for end >= start.
func NewEvent(
	clk clock.Clock,
	source Source,
	windowStart time.Time,
	windowEnd time.Time,
	metrics UsageMetrics,
	ctx EventContext,
	identities []Identity,
	projectName *string,
) UsageEvent {
	if identities == nil {
		identities = []Identity{}
	}
	return UsageEvent{
		SchemaVersion:   SchemaVersion,
		Source:          source,
		TimeWindowStart: windowStart,
		TimeWindowEnd:   windowEnd,
		CollectedAt:     clk.Now(),
		ProjectName:     projectName,
		Metrics:         metrics,
		Identities:      identities,
		Context:         ctx,
	}
}
