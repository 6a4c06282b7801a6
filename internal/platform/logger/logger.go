package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Services receive it by
// injection so tests can swap in slog.New(slog.DiscardHandler).
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
