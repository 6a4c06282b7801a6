package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sylo/internal/connector"
	"sylo/internal/platform/metrics"
)

// Dispatcher holds the fixed service registry. The registry is assembled at
// startup from each executor's declared name, so routing is a map lookup and
// an unknown service can never reach an upstream.
type Dispatcher struct {
	executors map[string]connector.Executor
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Dispatcher)

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(logger *slog.Logger, executors []connector.Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		executors: make(map[string]connector.Executor, len(executors)),
		logger:    logger,
	}
	for _, e := range executors {
		name := e.Name()
		if name == "" {
			panic("command: executor with empty name")
		}
		if _, dup := d.executors[name]; dup {
			panic("command: duplicate executor " + name)
		}
		d.executors[name] = e
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Execute validates, routes and runs one command. Routing and execution
// failures are reported inside the Result with status "error"; the only Go
// error returned is ErrInvalidCommand for structurally broken input.
func (d *Dispatcher) Execute(ctx context.Context, cmd *Command) (*Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	commandID := cmd.RequestID
	if commandID == "" {
		commandID = uuid.NewString()
	}

	exec, ok := d.executors[cmd.Service]
	if !ok {
		return d.finish(cmd, &Result{
			CommandID: commandID,
			Status:    StatusError,
			Error:     fmt.Sprintf("Unsupported service: %s", cmd.Service),
		}, 0), nil
	}

	action, ok := exec.Actions()[cmd.Action]
	if !ok {
		return d.finish(cmd, &Result{
			CommandID: commandID,
			Status:    StatusError,
			Error:     fmt.Sprintf("Unsupported %s action: %s", cmd.Service, cmd.Action),
		}, 0), nil
	}

	start := time.Now()
	// Connections are keyed by user: the broker connection id is the user id.
	data, err := action(ctx, cmd.UserID, cmd.Parameters)
	elapsed := time.Since(start)

	result := &Result{CommandID: commandID, Status: StatusSuccess, Data: data}
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
	}
	return d.finish(cmd, result, elapsed), nil
}

func (d *Dispatcher) finish(cmd *Command, res *Result, elapsed time.Duration) *Result {
	if d.metrics != nil {
		d.metrics.RecordCommand(cmd.Service, res.Status, elapsed.Seconds())
	}
	d.logger.Info("command dispatched",
		"command_id", res.CommandID,
		"user_id", cmd.UserID,
		"service", cmd.Service,
		"action", cmd.Action,
		"status", res.Status,
		"duration_ms", elapsed.Milliseconds(),
	)
	return res
}
