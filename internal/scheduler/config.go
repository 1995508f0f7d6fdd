package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/wesleyorama2/gabsload/internal/failure"
)

// DefaultDrainTimeout bounds how long in-flight journeys may run after the
// last stage.
const DefaultDrainTimeout = 30 * time.Second

// Stage holds a target concurrency for a duration.
type Stage struct {
	Duration time.Duration `json:"duration" yaml:"duration"`
	Target   int           `json:"target" yaml:"target"`
}

func (s Stage) String() string {
	return fmt.Sprintf("%s:%d", s.Duration, s.Target)
}

// Config drives one scheduler run.
type Config struct {
	Stages       []Stage
	DrainTimeout time.Duration
}

// Validate reports every problem with the stage list.
func (c Config) Validate() error {
	var result *multierror.Error

	if len(c.Stages) == 0 {
		result = multierror.Append(result, failure.Configf("stages", "at least one stage is required"))
	}
	for i, st := range c.Stages {
		if st.Duration < 0 {
			result = multierror.Append(result, failure.Configf(fmt.Sprintf("stages[%d].duration", i), "must not be negative"))
		}
		if st.Target < 0 {
			result = multierror.Append(result, failure.Configf(fmt.Sprintf("stages[%d].target", i), "must not be negative"))
		}
	}
	if len(c.Stages) > 0 && c.TotalDuration() <= 0 {
		result = multierror.Append(result, failure.Configf("stages", "total duration must be greater than zero"))
	}
	if c.DrainTimeout < 0 {
		result = multierror.Append(result, failure.Configf("drain_timeout", "must not be negative"))
	}

	return result.ErrorOrNil()
}

// TotalDuration is the sum of the stage durations.
func (c Config) TotalDuration() time.Duration {
	var total time.Duration
	for _, st := range c.Stages {
		total += st.Duration
	}
	return total
}

// PeakTarget is the largest stage target.
func (c Config) PeakTarget() int {
	peak := 0
	for _, st := range c.Stages {
		if st.Target > peak {
			peak = st.Target
		}
	}
	return peak
}

// TargetAt returns the target of the stage whose window contains elapsed.
// Past the last stage it returns 0. The scheduler reaches the same value
// by switching stages on a timer rather than calling this; it is the
// reference definition of the ramp used by tests.
func (c Config) TargetAt(elapsed time.Duration) int {
	var end time.Duration
	for _, st := range c.Stages {
		end += st.Duration
		if elapsed < end {
			return st.Target
		}
	}
	return 0
}

// FormatStages renders stages as "30s:5, 1m0s:10".
func FormatStages(stages []Stage) string {
	parts := make([]string, len(stages))
	for i, st := range stages {
		parts[i] = st.String()
	}
	return strings.Join(parts, ", ")
}
