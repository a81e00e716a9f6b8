package trials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/tatool/internal/executable"
	"github.com/seantiz/tatool/internal/model"
	"github.com/seantiz/tatool/internal/stimulus"
	"github.com/seantiz/tatool/internal/tabular"
)

// ErrNoStimuli is reported when the stimulus resource has no data rows.
var ErrNoStimuli = errors.New("stimulus list is empty")

// Presentation is one stimulus shown to the participant.
type Presentation struct {
	Index    int
	Stimulus tabular.Record
	// Onset is the controller timestamp taken when the stimulus was drawn.
	Onset float64
}

// StimulusList presents the rows of a tabular resource in random order,
// each exactly once, then ends the module. A StimulusList holds no run
// state and may serve several sessions at once.
type StimulusList struct {
	// Resource names the delimited file; its first row is the header.
	Resource model.ResourceDescriptor

	// Limit caps the number of presentations. Zero presents every row.
	Limit int

	// Interval is the pause after each presentation.
	Interval time.Duration

	// OnPresent, if set, is called for every presentation.
	OnPresent func(Presentation)
}

var _ executable.Executable = (*StimulusList)(nil)

// Description implements executable.Describer.
func (s *StimulusList) Description() string {
	return fmt.Sprintf("presents %s/%s in random order without repeats", s.Resource.ResourceType, s.Resource.ResourceName)
}

// Run implements executable.Executable.
func (s *StimulusList) Run(ctx context.Context, c *executable.Controller) error {
	logger := c.Logger()

	table, err := c.FetchTabular(ctx, s.Resource, true)
	if err != nil {
		c.Fail(fmt.Errorf("load stimuli: %w", err))
		return nil
	}
	if table.Len() == 0 {
		c.Fail(ErrNoStimuli)
		return nil
	}

	sel := c.Selector()
	pool := stimulus.FromSlice(stimulus.Shuffle(sel, table.Records))

	for n := 0; s.Limit <= 0 || n < s.Limit; n++ {
		rec, ok := stimulus.DrawWithoutReplacement(sel, pool)
		if !ok {
			break
		}

		p := Presentation{Index: n, Stimulus: rec, Onset: c.Now()}
		logger.Debug("stimulus presented", "index", n, "onset_ms", p.Onset, "remaining", pool.Size())
		if s.OnPresent != nil {
			s.OnPresent(p)
		}

		if s.Interval > 0 {
			select {
			case <-time.After(s.Interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	logger.Info("stimulus list finished", "rows", table.Len(), "unpresented", pool.Size())
	c.StopModule()
	return nil
}
