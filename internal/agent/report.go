package agent

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reporter is the state report engine. It emits a heartbeat every
// interval.
type Reporter struct {
	emitter  Emitter
	interval time.Duration
	log      zerolog.Logger
}

// NewReporter creates a state report engine.
func NewReporter(emitter Emitter, interval time.Duration, log zerolog.Logger) *Reporter {
	return &Reporter{
		emitter:  emitter,
		interval: interval,
		log:      log.With().Str("engine", EngineReport).Logger(),
	}
}

// Run emits heartbeats until ctx is cancelled. Emit failures are logged
// and the next heartbeat is tried on schedule.
func (r *Reporter) Run(ctx context.Context) error {
	r.log.Info().Dur("interval", r.interval).Msg("state report engine started")
	for {
		if err := r.emitter.Heartbeat(ctx); err != nil && ctx.Err() == nil {
			r.log.Error().Err(err).Msg("failed to emit heartbeat")
		}
		if !sleep(ctx, r.interval) {
			r.log.Info().Msg("state report engine stopped")
			return nil
		}
	}
}
