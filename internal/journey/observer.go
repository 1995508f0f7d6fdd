package journey

import (
	"go.uber.org/zap"

	"github.com/wesleyorama2/gabsload/internal/actor"
)

// LogObserver writes journey events to a zap logger. Failed critical steps
// log at warn, optional failures at info, successes at debug.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver returns an observer tagged with component=journey.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{logger: logger.With(zap.String("component", "journey"))}
}

// StepFinished implements Observer.
func (l *LogObserver) StepFinished(kind actor.Kind, rec StepRecord) {
	fields := []zap.Field{
		zap.Stringer("actor", kind),
		zap.String("step", rec.Name),
		zap.Duration("duration", rec.Duration),
	}
	switch {
	case rec.Success:
		l.logger.Debug("step completed", fields...)
	case rec.Critical:
		l.logger.Warn("critical step failed", append(fields, zap.String("error", rec.Error))...)
	default:
		l.logger.Info("optional step failed, continuing", append(fields, zap.String("error", rec.Error))...)
	}
}

// JourneyFinished implements Observer.
func (l *LogObserver) JourneyFinished(res Result) {
	fields := []zap.Field{
		zap.Stringer("actor", res.Kind),
		zap.Bool("success", res.Success),
		zap.String("status", res.Status),
		zap.Duration("duration", res.Duration),
		zap.Int("steps", len(res.Steps)),
	}
	if !res.Success {
		l.logger.Warn("journey failed", append(fields,
			zap.String("failed_step", res.FailedStep),
			zap.String("error", res.Error))...)
		return
	}
	l.logger.Debug("journey finished", fields...)
}

// Observers fans events out to several observers.
type Observers []Observer

// StepFinished implements Observer.
func (os Observers) StepFinished(kind actor.Kind, rec StepRecord) {
	for _, o := range os {
		o.StepFinished(kind, rec)
	}
}

// JourneyFinished implements Observer.
func (os Observers) JourneyFinished(res Result) {
	for _, o := range os {
		o.JourneyFinished(res)
	}
}
