// Package command routes validated webhook commands to their service
// executors and folds the outcome into a uniform result envelope.
package command

import "errors"

// ErrInvalidCommand marks a command missing its required fields. Callers
// translate it to a 400; every other failure is reported inside the result
// envelope with a 200.
var ErrInvalidCommand = errors.New("invalid command structure")

// Command is one instruction received over the webhook.
type Command struct {
	UserID     string         `json:"userId"`
	Service    string         `json:"service"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
	RequestID  string         `json:"requestId,omitempty"`
}

// Validate checks the structural fields the dispatcher needs to route.
func (c *Command) Validate() error {
	if c.UserID == "" || c.Service == "" || c.Action == "" || c.Parameters == nil {
		return ErrInvalidCommand
	}
	return nil
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the uniform outcome of a dispatched command.
type Result struct {
	CommandID string         `json:"commandId"`
	Status    string         `json:"status"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}
