package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// DefaultIdle is how long the loop yields when no MIDI event is pending.
const DefaultIdle = time.Millisecond

// Source yields raw MIDI messages. Poll must not block.
type Source interface {
	Poll() (RawEvent, bool, error)
	Close() error
}

// Sink delivers whole frames to the receiving hardware.
type Sink interface {
	WriteFrame(Frame) error
	Close() error
}

type State int32

const (
	Running State = iota
	Stopped
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Stats are running totals for one bridge.
type Stats struct {
	Events  uint64
	Frames  uint64
	Ignored uint64
}

// Bridge forwards note events from a Source to a Sink in arrival order. It
// owns both ends and closes them when Run returns.
type Bridge struct {
	src    Source
	sink   Sink
	format Format
	idle   time.Duration
	log    *slog.Logger

	state   atomic.Int32
	events  atomic.Uint64
	frames  atomic.Uint64
	ignored atomic.Uint64
}

type Option func(*Bridge)

// WithIdle sets the yield interval used while the source has nothing pending.
func WithIdle(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.idle = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

func NewBridge(src Source, sink Sink, format Format, opts ...Option) *Bridge {
	b := &Bridge{
		src:    src,
		sink:   sink,
		format: format,
		idle:   DefaultIdle,
		log:    logger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run forwards events until ctx is cancelled (nil result) or the source or
// sink fails (that error). Both ends are closed before Run returns.
func (b *Bridge) Run(ctx context.Context) (err error) {
	b.state.Store(int32(Running))
	b.log.Info("bridge: running", "format", b.format, "idle", b.idle)
	defer func() {
		b.state.Store(int32(Stopped))
		err = errors.Join(err, b.release())
		st := b.Stats()
		b.log.Info("bridge: stopped", "events", st.Events, "frames", st.Frames, "ignored", st.Ignored)
	}()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ev, ok, err := b.src.Poll()
		if err != nil {
			return fmt.Errorf("bridge: source: %w", err)
		}
		if !ok {
			if timer == nil {
				timer = time.NewTimer(b.idle)
			} else {
				timer.Reset(b.idle)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}
			continue
		}

		if err := b.forward(ev); err != nil {
			return fmt.Errorf("bridge: sink: %w", err)
		}
	}
}

func (b *Bridge) forward(ev RawEvent) error {
	b.events.Add(1)
	note := Decode(ev)
	frame, ok := EncodeEvent(note, b.format)
	if !ok {
		b.ignored.Add(1)
		b.log.Debug("bridge: event ignored", "msg", midi.Message(ev.Data).String(), "delta", ev.Delta)
		return nil
	}
	b.log.Debug("bridge: note", "kind", note.Kind, "address", note.Address, "velocity", note.Velocity, "delta", ev.Delta)
	if err := b.sink.WriteFrame(frame); err != nil {
		return err
	}
	b.frames.Add(1)
	return nil
}

// release closes both ends, source first.
func (b *Bridge) release() error {
	var errs []error
	if err := b.src.Close(); err != nil {
		errs = append(errs, fmt.Errorf("bridge: close source: %w", err))
	}
	if err := b.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("bridge: close sink: %w", err))
	}
	return errors.Join(errs...)
}

func (b *Bridge) State() State { return State(b.state.Load()) }

func (b *Bridge) Stats() Stats {
	return Stats{
		Events:  b.events.Load(),
		Frames:  b.frames.Load(),
		Ignored: b.ignored.Load(),
	}
}
