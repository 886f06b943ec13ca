// Package dispatcher routes CLI commands to their handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roadlens/trackmark/pkg/core"
)

// ErrUnknownCommand is returned by Dispatch for unregistered commands.
var ErrUnknownCommand = errors.New("unknown command")

// Event represents one command invocation.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(ctx context.Context, e Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	minArgs    int
	usage      string
	privileged bool
	logged     bool
}

// MinArgs rejects events carrying fewer than n arguments.
func MinArgs(n int) Option {
	return func(c *config) {
		c.minArgs = n
	}
}

// Usage sets the argument synopsis shown in help and argument errors.
func Usage(s string) Option {
	return func(c *config) {
		c.usage = s
	}
}

// Privileged restricts the handler to privileged dispatchers.
func Privileged() Option {
	return func(c *config) {
		c.privileged = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type entry struct {
	cfg     config
	handler HandlerFunc
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers   map[string]entry
	logger     Logger
	privileged bool

	// OTEL metrics
	processed metric.Int64Counter
	failed    metric.Int64Counter
}

// New creates a new Dispatcher with the given logger. privileged unlocks
// handlers registered with Privileged.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger, privileged bool) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers:   make(map[string]entry),
		logger:     logger,
		privileged: privileged,
	}

	m := meter()

	var err error
	d.processed, err = m.Int64Counter(
		"dispatcher.commands.processed",
		metric.WithDescription("Total commands processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.commands.failed",
		metric.WithDescription("Total commands that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	handler := h
	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.handlers[command] = entry{cfg: cfg, handler: handler}
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) (any, error) {
	en, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	cmdAttr := attribute.String("command", e.Command)
	result, err := d.run(ctx, en, e)
	d.processed.Add(ctx, 1, metric.WithAttributes(cmdAttr))
	if err != nil {
		d.failed.Add(ctx, 1, metric.WithAttributes(cmdAttr))
	}
	return result, err
}

func (d *Dispatcher) run(ctx context.Context, en entry, e Event) (any, error) {
	if en.cfg.privileged && !d.privileged {
		return nil, fmt.Errorf("%s: %w", e.Command, core.ErrForbidden)
	}
	if len(e.Args) < en.cfg.minArgs {
		return nil, &core.ValidationError{
			Field:  "args",
			Value:  fmt.Sprint(len(e.Args)),
			Reason: fmt.Sprintf("usage: %s %s", e.Command, en.cfg.usage),
		}
	}
	return en.handler(ctx, e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered commands, sorted.
func (d *Dispatcher) Commands() []string {
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Help returns the synopsis of command, marking privileged commands.
func (d *Dispatcher) Help(command string) string {
	en, ok := d.handlers[command]
	if !ok {
		return ""
	}
	s := command
	if en.cfg.usage != "" {
		s += " " + en.cfg.usage
	}
	if en.cfg.privileged {
		s += " (privileged)"
	}
	return s
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "args", len(e.Args))

		result, err := h(ctx, e)

		if err != nil {
			d.logger.Error("command failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
