package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// DefaultPortMatch selects the macOS IAC virtual bus when it is present.
const DefaultPortMatch = "IAC"

// midiQueueSize bounds the hand-off between the driver callback and Poll.
const midiQueueSize = 256

var (
	// ErrNoPortFound means the driver reported no MIDI inputs at all.
	ErrNoPortFound = errors.New("midi: no input ports found")
	// ErrSourceLost means the listener stopped delivering (device gone).
	ErrSourceLost = errors.New("midi: input lost")
)

// MIDISource owns one open MIDI input and exposes its messages through a
// non-blocking Poll.
type MIDISource struct {
	name   string
	in     drivers.In
	stopFn func()

	events  chan RawEvent
	dropped atomic.Uint64

	// listener goroutine only
	lastTS  int32
	started bool

	errOnce sync.Once
	errCh   chan error

	closeOnce sync.Once
	closeErr  error
}

func newMIDISource(name string) *MIDISource {
	return &MIDISource{
		name:   name,
		events: make(chan RawEvent, midiQueueSize),
		errCh:  make(chan error, 1),
	}
}

// OpenMIDISource enumerates the driver's inputs, prints them to w, picks one
// with selectPort and starts listening on it.
func OpenMIDISource(drv drivers.Driver, match string, w io.Writer) (*MIDISource, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("midi: list inputs: %w", err)
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	printPorts(w, names)

	idx, err := selectPort(names, match)
	if err != nil {
		return nil, err
	}
	in := ins[idx]
	fmt.Fprintf(w, "\nListening on: %s\n", in.String())

	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("midi: open %q: %w", in.String(), err)
	}

	src := newMIDISource(in.String())
	stop, err := midi.ListenTo(in, src.handle, midi.HandleError(src.fail))
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("midi: listen %q: %w", in.String(), err)
	}
	src.in = in
	src.stopFn = stop
	logger.Info("midi: input connected", "device", src.name)
	return src, nil
}

// selectPort returns the index of the first name containing match, index 0
// when nothing matches, or ErrNoPortFound for an empty list.
func selectPort(names []string, match string) (int, error) {
	if len(names) == 0 {
		return 0, ErrNoPortFound
	}
	if match != "" {
		for i, n := range names {
			if strings.Contains(n, match) {
				return i, nil
			}
		}
	}
	logger.Warn("midi: no input matches, falling back to first port", "match", match, "device", names[0])
	return 0, nil
}

func printPorts(w io.Writer, names []string) {
	fmt.Fprintln(w, "Available MIDI ports:")
	for i, n := range names {
		fmt.Fprintf(w, "%d: %s\n", i, n)
	}
}

// listInputs returns the input port names the driver currently reports.
func listInputs(drv drivers.Driver) ([]string, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("midi: list inputs: %w", err)
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	logger.Debug("midi: inputs found", "count", len(names), "devices", strings.Join(names, ", "))
	return names, nil
}

// handle runs on the driver's callback goroutine.
func (m *MIDISource) handle(msg midi.Message, timestampms int32) {
	var delta time.Duration
	if m.started {
		if d := timestampms - m.lastTS; d > 0 {
			delta = time.Duration(d) * time.Millisecond
		}
	}
	m.started = true
	m.lastTS = timestampms

	ev := RawEvent{Data: append([]byte(nil), msg...), Delta: delta}
	select {
	case m.events <- ev:
	default:
		n := m.dropped.Add(1)
		logger.Warn("midi: queue full, event dropped", "device", m.name, "msg", msg.String(), "dropped", n)
	}
}

func (m *MIDISource) fail(err error) {
	m.errOnce.Do(func() {
		logger.Warn("midi: listener error, device likely disconnected", "device", m.name, "err", err)
		m.errCh <- fmt.Errorf("%w: %s: %v", ErrSourceLost, m.name, err)
	})
}

// Poll returns the next pending event without blocking. Events already
// received are drained before a listener failure is reported.
func (m *MIDISource) Poll() (RawEvent, bool, error) {
	select {
	case ev := <-m.events:
		return ev, true, nil
	default:
	}
	select {
	case err := <-m.errCh:
		// keep reporting on later polls
		m.errCh <- err
		return RawEvent{}, false, err
	default:
	}
	return RawEvent{}, false, nil
}

// Name is the selected input port.
func (m *MIDISource) Name() string { return m.name }

// Dropped counts events lost to a full queue.
func (m *MIDISource) Dropped() uint64 { return m.dropped.Load() }

// Close stops the listener and releases the port. Safe to call twice.
func (m *MIDISource) Close() error {
	m.closeOnce.Do(func() {
		logger.Info("midi: closing input", "device", m.name)
		if m.stopFn != nil {
			m.stopFn()
			m.stopFn = nil
		}
		if m.in != nil {
			m.closeErr = m.in.Close()
			m.in = nil
		}
	})
	return m.closeErr
}
