package agent

import (
	"context"
	"errors"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"

	"github.com/jbweber/jimvn/internal/bus"
	"github.com/jbweber/jimvn/internal/command"
	"github.com/jbweber/jimvn/internal/metrics"
)

// OperatorOptions configures an Operator.
type OperatorOptions struct {
	Channel    Channel
	Emitter    Emitter
	Operations Operations
	Registry   Registry
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	Debug      bool
}

// Operator is the operation engine.
type Operator struct {
	channel  Channel
	ops      Operations
	registry Registry
	debug    bool
	out      reporter
	log      zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) bool
}

// NewOperator creates an operation engine.
func NewOperator(opts OperatorOptions) *Operator {
	log := opts.Logger.With().Str("engine", EngineOperate).Logger()
	return &Operator{
		channel:  opts.Channel,
		ops:      opts.Operations,
		registry: opts.Registry,
		debug:    opts.Debug,
		out: reporter{
			engine:  EngineOperate,
			emitter: opts.Emitter,
			log:     log,
			metrics: opts.Metrics,
		},
		log:   log,
		sleep: sleep,
	}
}

// Run processes operations until ctx is cancelled.
func (o *Operator) Run(ctx context.Context) error {
	o.log.Info().Msg("operation engine started")
	for ctx.Err() == nil {
		o.Step(ctx)
	}
	o.log.Info().Msg("operation engine stopped")
	return nil
}

// Step waits for one message on the operation channel and processes it.
func (o *Operator) Step(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Err(recovered(r)).Msg("operation iteration panicked")
		}
	}()

	if o.debug {
		o.log.Debug().Msg("alive")
	}

	raw, err := o.channel.Receive(ctx)
	if err != nil {
		o.log.Error().Err(err).Msg("failed to receive operation")
		o.sleep(ctx, time.Second)
		return
	}
	if raw == nil {
		return
	}

	o.Process(ctx, raw)
}

// Process handles one raw operation and publishes its outcome. It returns
// the result, or nil when the operation produced no outcome. The operation
// and its outcome are not bound to ctx cancellation.
func (o *Operator) Process(ctx context.Context, raw []byte) (res *Result) {
	ctx = context.WithoutCancel(ctx)

	env, err := command.ParseInstruction(raw)
	switch {
	case errors.Is(err, command.ErrIncomplete):
		o.log.Debug().Msg("ignoring operation without action or uuid")
		o.out.skip("incomplete")
		return nil
	case err != nil:
		o.log.Warn().Err(err).Msg("dropping malformed operation")
		o.out.skip("malformed")
		return nil
	}

	base := bus.Response{
		Action:   string(env.Action),
		UUID:     env.UUID,
		Passback: env.Passback,
	}

	defer func() {
		if r := recover(); r != nil {
			res = &Result{Response: base, Err: recovered(r)}
			o.out.publish(ctx, *res)
		}
	}()

	if err := o.registry.Refresh(); err != nil {
		result := Result{Response: base, Err: err}
		o.out.publish(ctx, result)
		return &result
	}

	domain, ok := o.registry.Lookup(env.UUID)
	if !ok {
		o.log.Debug().Str("uuid", env.UUID).Str("action", base.Action).Msg("guest not on this host")
		o.out.skip(base.Action)
		return nil
	}

	inst, err := env.Instruction()
	if errors.Is(err, command.ErrUnknownAction) {
		o.log.Error().Str("action", base.Action).Str("uuid", env.UUID).Msg("unknown operation")
		o.out.skip(base.Action)
		return nil
	}

	result := Result{Response: base, Err: err}
	if err == nil {
		result = o.dispatch(ctx, domain, inst, base)
	}

	o.out.publish(ctx, result)
	return &result
}

func (o *Operator) dispatch(ctx context.Context, domain libvirt.Domain, inst command.Instruction, resp bus.Response) Result {
	var err error
	switch i := inst.(type) {
	case *command.Lifecycle:
		err = o.ops.Lifecycle(domain, i.Action)

	case *command.DeleteGuest:
		err = o.ops.Delete(ctx, domain)

	case *command.ResizeDiskOnline:
		err = o.ops.ResizeAttachedDisk(domain, i.DeviceNode, i.SizeKiB())
		if err == nil {
			resp.UUID = i.DiskUUID
		}

	case *command.DiskDevice:
		if i.Action == command.ActionDetachDisk {
			err = o.ops.DetachDisk(domain, i.XML)
		} else {
			err = o.ops.AttachDisk(domain, i.XML)
		}

	case *command.Migrate:
		err = o.ops.Migrate(domain, i.DURI)

	default:
		err = command.ErrUnknownAction
	}

	return Result{Response: resp, Err: err}
}
