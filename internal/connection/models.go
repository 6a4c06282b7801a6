package connection

import "time"

// Connection links a user to a third-party service account. The broker
// connection ID is an opaque handle; no tokens are stored here. Rows are soft
// deleted (IsActive=false) so the audit trail keeps its referents.
type Connection struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Service      string    `json:"service"`
	ConnectionID string    `json:"connectionId"`
	Scopes       []string  `json:"scopes"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
