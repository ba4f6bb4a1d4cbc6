package agent

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jbweber/jimvn/internal/bus"
	"github.com/jbweber/jimvn/internal/command"
	"github.com/jbweber/jimvn/internal/metrics"
	"github.com/jbweber/jimvn/internal/naming"
	"github.com/jbweber/jimvn/internal/storage"
)

// ProvisionerOptions configures a Provisioner.
type ProvisionerOptions struct {
	Queue         Queue
	Emitter       Emitter
	Provisioning  Provisioning
	Load          LoadFunc
	LoadThreshold float64
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
	Debug         bool
}

// Provisioner is the provisioning engine.
type Provisioner struct {
	queue     Queue
	prov      Provisioning
	load      LoadFunc
	threshold float64
	debug     bool
	out       reporter
	log       zerolog.Logger
	metrics   *metrics.Metrics
	scene     scene

	sleep func(ctx context.Context, d time.Duration) bool
}

// NewProvisioner creates a provisioning engine.
func NewProvisioner(opts ProvisionerOptions) *Provisioner {
	log := opts.Logger.With().Str("engine", EngineProvision).Logger()
	return &Provisioner{
		queue:     opts.Queue,
		prov:      opts.Provisioning,
		load:      opts.Load,
		threshold: opts.LoadThreshold,
		debug:     opts.Debug,
		out: reporter{
			engine:  EngineProvision,
			emitter: opts.Emitter,
			log:     log,
			metrics: opts.Metrics,
		},
		log:     log,
		metrics: opts.Metrics,
		sleep:   sleep,
	}
}

// Run processes jobs until ctx is cancelled.
func (p *Provisioner) Run(ctx context.Context) error {
	p.log.Info().Msg("provisioning engine started")
	for ctx.Err() == nil {
		p.Step(ctx)
	}
	p.log.Info().Msg("provisioning engine stopped")
	return nil
}

// Step runs one iteration: clean up a dirty scene, wait according to the
// host load, then pop and process at most one job. Cancelling ctx interrupts
// the waits and the dequeue only; a job already taken runs to completion.
func (p *Provisioner) Step(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Err(recovered(r)).Msg("provisioning iteration panicked")
		}
	}()

	if p.debug {
		p.log.Debug().Msg("alive")
	}

	p.cleanup(context.WithoutCancel(ctx))

	load, err := p.load()
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to read load average")
		p.sleep(ctx, time.Second)
		return
	}

	wait := time.Duration((load*10 + 1) * float64(time.Second))
	if !p.sleep(ctx, wait) {
		return
	}
	if load > p.threshold {
		p.log.Debug().Float64("load", load).Msg("host busy, not taking jobs")
		return
	}

	raw, err := p.queue.Pop(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to pop job")
		return
	}
	if raw == nil {
		return
	}

	p.Process(ctx, raw)
}

// cleanup removes the images of a guest whose provisioning did not reach
// definition.
func (p *Provisioner) cleanup(ctx context.Context) {
	if !p.scene.dirty {
		return
	}

	volume, path, seed := p.scene.volume, p.scene.path, p.scene.seed
	p.scene.clear()
	p.metrics.DirtyScene(false)

	// The seed may never have been written.
	if err := p.prov.RemoveImage(ctx, volume, seed); err != nil && !errors.Is(err, storage.ErrPathNotFound) {
		p.log.Warn().Err(err).Str("volume", volume).Str("path", seed).Msg("failed to remove seed image of failed guest")
	}

	err := p.prov.RemoveImage(ctx, volume, path)
	switch {
	case err == nil:
		p.log.Info().Str("volume", volume).Str("path", path).Msg("removed system image of failed guest")
	case errors.Is(err, storage.ErrPathNotFound):
		p.log.Warn().Str("volume", volume).Str("path", path).Msg("system image of failed guest not found")
	default:
		p.log.Error().Err(err).Str("volume", volume).Str("path", path).Msg("failed to remove system image of failed guest")
	}
}

// Process handles one raw job and publishes its outcome. It returns the
// result, or nil when the job produced no outcome. The job and its outcome
// are not bound to ctx cancellation.
func (p *Provisioner) Process(ctx context.Context, raw []byte) (res *Result) {
	ctx = context.WithoutCancel(ctx)

	env, err := command.Parse(raw)
	if err != nil {
		p.log.Warn().Err(err).Msg("dropping malformed job")
		p.out.skip("malformed")
		return nil
	}

	base := bus.Response{
		Action:   string(env.Action),
		UUID:     env.UUID,
		Passback: env.Passback,
	}

	published := false
	defer func() {
		if r := recover(); r != nil {
			if published {
				p.log.Error().Err(recovered(r)).Str("action", base.Action).Msg("job panicked after its outcome was published")
				return
			}
			res = &Result{Response: base, Err: recovered(r)}
			p.out.publish(ctx, *res)
		}
	}()

	job, err := env.Job()
	if errors.Is(err, command.ErrUnknownAction) {
		p.log.Warn().Str("action", base.Action).Msg("ignoring job with unknown action")
		p.out.skip(base.Action)
		return nil
	}

	var after func()
	result := Result{Response: base, Err: err}
	if err == nil {
		result, after = p.dispatch(ctx, job, base)
	}

	p.out.publish(ctx, result)
	published = true
	if after != nil {
		after()
	}
	return &result
}

// dispatch runs a decoded job. after, when set, runs once the outcome has
// been published.
func (p *Provisioner) dispatch(ctx context.Context, job command.Job, resp bus.Response) (Result, func()) {
	switch j := job.(type) {
	case *command.CreateGuest:
		return p.createGuest(ctx, j, resp)

	case *command.CreateDisk:
		return Result{Response: resp, Err: p.prov.CreateDisk(ctx, j)}, nil

	case *command.ResizeDiskOffline:
		resp.UUID = j.DiskUUID
		return Result{Response: resp, Err: p.prov.ResizeDisk(ctx, j)}, nil

	case *command.DeleteDisk:
		return Result{Response: resp, Err: p.prov.DeleteDisk(ctx, j)}, nil
	}

	return Result{Response: resp, Err: command.ErrUnknownAction}, nil
}

func (p *Provisioner) createGuest(ctx context.Context, job *command.CreateGuest, resp bus.Response) (Result, func()) {
	p.scene.mark(job.GlusterVolume, job.Disk.Path, naming.SeedImagePath(job.Disk.Path, job.UUID))
	p.metrics.DirtyScene(true)

	if err := p.prov.GenerateSystemImage(ctx, job); err != nil {
		return Result{Response: resp, Err: err}, nil
	}

	domain, err := p.prov.DefineGuest(ctx, job)
	if err != nil {
		return Result{Response: resp, Err: err}, nil
	}

	p.scene.clear()
	p.metrics.DirtyScene(false)

	info, err := p.prov.DiskInfo(ctx, job.GlusterVolume, job.Disk.Path)
	if err != nil {
		return Result{Response: resp, Err: err}, nil
	}
	resp.Data = map[string]interface{}{"disk_info": info}

	// The guest stays defined if it fails to start; the outcome is already out.
	start := func() {
		if err := p.prov.Start(domain); err != nil {
			p.log.Error().Err(err).Str("uuid", job.UUID).Msg("guest defined but failed to start")
		}
	}
	return Result{Response: resp}, start
}
