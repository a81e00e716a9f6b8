package trials

import (
	"context"
	"fmt"

	"github.com/seantiz/tatool/internal/executable"
)

const defaultProbeSamples = 1000

// TimingProbe samples the controller clock and fails the trial if a
// timestamp is ever smaller than the one before it.
type TimingProbe struct {
	// Samples is the number of readings. Zero means 1000.
	Samples int
}

var _ executable.Executable = (*TimingProbe)(nil)

// Description implements executable.Describer.
func (p *TimingProbe) Description() string {
	return "checks that trial timestamps never go backwards"
}

// Run implements executable.Executable.
func (p *TimingProbe) Run(ctx context.Context, c *executable.Controller) error {
	samples := p.Samples
	if samples <= 0 {
		samples = defaultProbeSamples
	}

	first := c.Now()
	prev := first
	for i := 1; i < samples; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := c.Now()
		if now < prev {
			c.Fail(fmt.Errorf("clock went backwards at sample %d: %.3fms after %.3fms", i, now, prev))
			return nil
		}
		prev = now
	}

	src := c.Timing()
	c.Logger().Info("timing probe finished",
		"samples", samples,
		"strategy", src.Strategy().String(),
		"precision", src.Precision().String(),
		"span_ms", prev-first,
	)
	c.StopModule()
	return nil
}
