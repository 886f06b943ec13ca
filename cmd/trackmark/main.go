package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roadlens/trackmark/internal/config"
	"github.com/roadlens/trackmark/internal/dispatcher"
	"github.com/roadlens/trackmark/internal/influx"
	"github.com/roadlens/trackmark/internal/logging"
	intOtel "github.com/roadlens/trackmark/internal/otel"
	"github.com/roadlens/trackmark/internal/viewer"
	"github.com/roadlens/trackmark/pkg/core"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "trackmark"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitRefused = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses flags, sets up logging and storage, dispatches one command and
// prints its result to stdout.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	configDir := fs.String("config", ".", "directory containing "+config.ConfigFileName)
	privileged := fs.Bool("privileged", false, "allow delete and import")
	fs.String("storage", "", "storage backend: memory, sqlite, postgres or api")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	configErr := config.Load(*configDir)
	_ = viper.BindPFlag("storage.type", fs.Lookup("storage"))
	_ = viper.BindPFlag("logLevel", fs.Lookup("log-level"))

	sessionStart := time.Now()
	logLevel := viper.GetString("logLevel")
	var logOut io.Writer = stderr
	if f, err := logging.OpenLogFile(viper.GetString("logsDir"), AppName, sessionStart); err != nil {
		fmt.Fprintf(stderr, "Failed to open log file, logging to stderr: %v\n", err)
	} else {
		defer f.Close()
		logOut = f
	}

	otelProvider, err := intOtel.New(intOtel.FromConfig(config.GetOTelConfig(), logOut))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to set up OpenTelemetry: %v\n", err)
		otelProvider, _ = intOtel.New(intOtel.Config{})
	}

	viewCtx := viewer.NewContext()
	logOpts := []logging.Option{logging.WithContext(viewCtx.LogAttrs)}
	if gc := config.GetGraylogConfig(); gc.Enabled {
		w, err := logging.NewGraylogWriter(gc.Address)
		if err != nil {
			fmt.Fprintf(stderr, "Graylog disabled: %v\n", err)
		} else {
			defer w.Close()
			logOpts = append(logOpts, logging.WithGraylog(w))
		}
	}

	slogManager := logging.NewSlogManager()
	slogManager.Setup(logOut, logLevel, otelProvider.LoggerProvider(), logOpts...)
	logger := slogManager.Logger()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := slogManager.Flush(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "Failed to flush logs: %v\n", err)
		}
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "Failed to shut down OpenTelemetry: %v\n", err)
		}
	}()

	if configErr != nil {
		logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		logger.Info("Loaded config", "dir", *configDir)
	}
	logger.Info("Starting", "version", CurrentVersion, "build", BuildDate, "privileged", *privileged)

	zl := logging.NewZerolog(logOut, logLevel)

	backend, err := initStorage(config.GetStorageConfig(), logger, zl)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailed
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	a := &app{
		backend:    backend,
		log:        logger,
		privileged: *privileged,
		viewCfg:    config.GetViewerConfig(),
		importCfg:  config.GetImportConfig(),
		viewCtx:    viewCtx,
	}
	if ic := config.GetInfluxConfig(); ic.Enabled {
		m := influx.NewManager(ic, zl, filepath.Join(viper.GetString("logsDir"), "import_runs.lp.gz"))
		if err := m.Connect(ctx); err != nil {
			logger.Warn("Import reporting disabled", "error", err)
		} else {
			defer m.Close()
			a.reporter = m
		}
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(logger), *privileged)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailed
	}
	a.registerCommands(d)

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr, fs, d)
		return exitUsage
	}

	result, err := d.Dispatch(ctx, dispatcher.Event{Command: rest[0], Args: rest[1:], Timestamp: time.Now()})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	if result != nil {
		fmt.Fprintln(stdout, result)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, dispatcher.ErrUnknownCommand), errors.Is(err, core.ErrValidation):
		return exitUsage
	case errors.Is(err, core.ErrForbidden), errors.Is(err, core.ErrConflict):
		return exitRefused
	default:
		return exitFailed
	}
}

func printUsage(w io.Writer, fs *pflag.FlagSet, d *dispatcher.Dispatcher) {
	fmt.Fprintf(w, "usage: %s [flags] <command> [args]\n\ncommands:\n", AppName)
	for _, cmd := range d.Commands() {
		fmt.Fprintf(w, "  %s\n", d.Help(cmd))
	}
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
}
