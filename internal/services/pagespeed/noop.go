package pagespeed

import (
	"context"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

// Noop is a PerformanceAuditor that reports no data. It stands in when no
// PageSpeed API key is configured so pages still persist with nil
// performance fields.
type Noop struct{}

// NewNoop returns a no-op auditor.
func NewNoop() *Noop {
	return &Noop{}
}

// Audit returns an empty result.
func (Noop) Audit(_ context.Context, _ string) (enrich.PerformanceResult, error) {
	return enrich.PerformanceResult{}, nil
}
