package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jbweber/jimvn/internal/bus"
	"github.com/jbweber/jimvn/internal/command"
	"github.com/jbweber/jimvn/internal/metrics"
)

// Engine names, used in logs and metrics.
const (
	EngineProvision = "provision"
	EngineOperate   = "operate"
	EngineReport    = "report"
)

// Result is the outcome of one processed command.
type Result struct {
	Response bus.Response
	Err      error
}

// OK reports whether the command succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// reporter publishes results. It is shared by the command engines.
type reporter struct {
	engine  string
	emitter Emitter
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// publish emits the outcome for r. A failure to emit is logged; the
// command is not retried.
func (r *reporter) publish(ctx context.Context, res Result) {
	resp := res.Response
	if res.OK() {
		r.log.Info().Str("action", resp.Action).Str("uuid", resp.UUID).Msg("command succeeded")
		r.metrics.Command(r.engine, resp.Action, metrics.ResultSuccess)
		if err := r.emitter.Success(ctx, resp); err != nil {
			r.log.Error().Err(err).Str("action", resp.Action).Msg("failed to emit success")
		}
		return
	}

	event := r.log.Error()
	var verr *command.ValidationError
	if errors.As(res.Err, &verr) {
		event = r.log.Warn()
	}
	event.Err(res.Err).Str("action", resp.Action).Str("uuid", resp.UUID).Msg("command failed")

	r.metrics.Command(r.engine, resp.Action, metrics.ResultFailure)
	if err := r.emitter.Failure(ctx, resp); err != nil {
		r.log.Error().Err(err).Str("action", resp.Action).Msg("failed to emit failure")
	}
}

// skip records a command dropped without an outcome.
func (r *reporter) skip(action string) {
	r.metrics.Command(r.engine, action, metrics.ResultSkipped)
}

// recovered converts a recovered panic value into an error.
func recovered(v interface{}) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}

// sleep waits for d or until ctx is cancelled. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
