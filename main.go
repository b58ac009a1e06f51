package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// -------------------- Config --------------------

const defaultSerialDevice = "/dev/cu.usbserial-11101"

type config struct {
	serialDev string
	match     string
	format    Format
	idle      time.Duration
	debug     bool
	list      bool
}

func parseFlags(args []string, errOut io.Writer) (config, error) {
	fs := flag.NewFlagSet("midi-uart", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var cfg config
	var format string
	fs.StringVar(&cfg.serialDev, "serial", defaultSerialDevice, "serial device the hardware is attached to")
	fs.StringVar(&cfg.match, "match", DefaultPortMatch, "substring of the MIDI input name to listen on (first port if none match)")
	fs.StringVar(&format, "format", FormatRaw.String(), "wire format: raw (3 bytes per note) or packed (1 byte per note)")
	fs.DurationVar(&cfg.idle, "idle", DefaultIdle, "how long to yield when no MIDI event is pending")
	fs.BoolVar(&cfg.debug, "debug", false, "enable debug logging (adds source location)")
	fs.BoolVar(&cfg.list, "list", false, "list MIDI inputs and serial ports, then exit")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	f, err := ParseFormat(format)
	if err != nil {
		return config{}, err
	}
	cfg.format = f
	if cfg.idle <= 0 {
		return config{}, fmt.Errorf("-idle must be positive, got %v", cfg.idle)
	}
	if cfg.serialDev == "" && !cfg.list {
		return config{}, errors.New("-serial must not be empty")
	}
	return cfg, nil
}

// -------------------- Run --------------------

// run opens the MIDI source before the serial sink, so a machine without any
// MIDI input never touches the serial device, then runs the bridge until ctx
// is done or a device fails.
func run(ctx context.Context, cfg config, openSource func() (Source, error), openSink func() (Sink, error)) error {
	src, err := openSource()
	if err != nil {
		return err
	}
	sink, err := openSink()
	if err != nil {
		return errors.Join(err, src.Close())
	}
	b := NewBridge(src, sink, cfg.format, WithIdle(cfg.idle), WithLogger(logger))
	return b.Run(ctx)
}

func listDevices(w io.Writer, drv *rtmididrv.Driver) error {
	names, err := listInputs(drv)
	if err != nil {
		return err
	}
	printPorts(w, names)

	ports, err := listSerialPorts()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nAvailable serial ports:")
	for _, p := range ports {
		fmt.Fprintln(w, "  "+p)
	}
	return nil
}

// -------------------- Main --------------------

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	initLogger(cfg.debug)
	logger.Info("midi-uart starting",
		"serial", cfg.serialDev,
		"match", cfg.match,
		"format", cfg.format,
		"idle", cfg.idle,
		"debug", cfg.debug,
	)

	drv, err := rtmididrv.New()
	if err != nil {
		logger.Error("midi: driver init failed", "err", err)
		os.Exit(1)
	}
	defer drv.Close()

	if cfg.list {
		if err := listDevices(os.Stdout, drv); err != nil {
			logger.Error("listing devices failed", "err", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openSource := func() (Source, error) {
		src, err := OpenMIDISource(drv, cfg.match, os.Stdout)
		if err != nil {
			return nil, err
		}
		fmt.Println("Play notes in the DAW - press Ctrl+C to quit")
		return src, nil
	}
	openSink := func() (Sink, error) {
		return OpenSerial(cfg.serialDev)
	}

	err = run(ctx, cfg, openSource, openSink)
	switch {
	case err == nil:
		logger.Info("midi-uart exiting")
	case errors.Is(err, ErrNoPortFound):
		logger.Error("no MIDI input ports available", "err", err)
		drv.Close()
		os.Exit(1)
	default:
		logger.Error("bridge failed", "err", err)
		drv.Close()
		os.Exit(1)
	}
}
