// Package logging builds the agent's zerolog logger and forwards its
// entries upstream.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	Level   string // trace, debug, info, warn or error
	File    string // empty logs to stderr
	Console bool   // human-readable output instead of JSON
	Host    string
}

// New creates the root logger. The returned closer releases the log file,
// if any.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to parse log level %q: %w", opts.Level, err)
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if opts.Host != "" {
		ctx = ctx.Str("host", opts.Host)
	}
	return ctx.Logger(), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Sink receives forwarded log lines.
type Sink interface {
	Log(ctx context.Context, level, msg string) error
}

type entry struct {
	level string
	msg   string
}

// Forwarder is a zerolog hook that queues entries at or above its level and
// delivers them to a Sink from its own goroutine. Entries are dropped when
// the queue is full so logging never blocks on the network.
type Forwarder struct {
	sink    Sink
	level   zerolog.Level
	entries chan entry
}

// NewForwarder creates a Forwarder for entries at level or above, with a
// queue of the given size.
func NewForwarder(sink Sink, level zerolog.Level, size int) *Forwarder {
	return &Forwarder{
		sink:    sink,
		level:   level,
		entries: make(chan entry, size),
	}
}

// Run implements zerolog.Hook.
func (f *Forwarder) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if level < f.level || level == zerolog.NoLevel {
		return
	}
	select {
	case f.entries <- entry{level: level.String(), msg: msg}:
	default:
	}
}

// Deliver sends queued entries to the sink until ctx is cancelled.
// Delivery errors are discarded; reporting them through the same logger
// would loop.
func (f *Forwarder) Deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-f.entries:
			_ = f.sink.Log(ctx, e.level, e.msg)
		}
	}
}
