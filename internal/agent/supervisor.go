package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Engine is a long-lived loop that runs until its context is cancelled.
type Engine interface {
	Run(ctx context.Context) error
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context) error

// Run implements Engine.
func (f EngineFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type namedEngine struct {
	name   string
	engine Engine
}

// Supervisor runs engines in an errgroup and waits for all of them to
// return.
type Supervisor struct {
	log     zerolog.Logger
	engines []namedEngine
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor(log zerolog.Logger) *Supervisor {
	return &Supervisor{log: log}
}

// Add registers an engine. It must be called before Run.
func (s *Supervisor) Add(name string, engine Engine) {
	s.engines = append(s.engines, namedEngine{name: name, engine: engine})
}

// Run starts every engine and blocks until all have returned. An engine
// that fails or panics cancels the others; Run then returns the first
// such error.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, e := range s.engines {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Str("engine", e.name).Interface("panic", r).Msg("engine panicked")
					err = fmt.Errorf("engine %s: %w", e.name, recovered(r))
				}
			}()

			if err := e.engine.Run(gctx); err != nil {
				s.log.Error().Err(err).Str("engine", e.name).Msg("engine failed")
				return fmt.Errorf("engine %s: %w", e.name, err)
			}
			return nil
		})
	}

	return g.Wait()
}
