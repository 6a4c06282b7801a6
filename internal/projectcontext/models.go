// Package projectcontext assembles a cross-service snapshot of a user's
// workspace: mailbox state, open tasks and receivables, merged into one
// document for downstream automation.
package projectcontext

import "time"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ServiceStatus reports one service's contribution to the snapshot.
type ServiceStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	LastSync  time.Time `json:"lastSync"`
	ItemCount int       `json:"itemCount"`
	Error     string    `json:"error,omitempty"`
}

// UrgentItem is anything the user should look at first, regardless of which
// service surfaced it.
type UrgentItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Source      string   `json:"source"`
	DueDate     string   `json:"dueDate,omitempty"`
}

type CommunicationItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Priority    Priority `json:"priority"`
}

type Activity struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
}

type Communications struct {
	UnreadCount    int                 `json:"unreadCount"`
	UrgentItems    []CommunicationItem `json:"urgentItems"`
	RecentActivity []Activity          `json:"recentActivity"`
}

type Project struct {
	Name       string `json:"name"`
	Completion int    `json:"completion"`
	Deadline   string `json:"deadline,omitempty"`
	Status     string `json:"status"`
	Source     string `json:"source"`
}

type Financials struct {
	TotalReceivables float64 `json:"totalReceivables"`
	TotalPayables    float64 `json:"totalPayables"`
	OverdueAmount    float64 `json:"overdueAmount"`
	OverdueCount     int     `json:"overdueCount"`
	Currency         string  `json:"currency"`
}

type Summary struct {
	TotalItems     int `json:"totalItems"`
	UrgentItems    int `json:"urgentItems"`
	RecentActivity int `json:"recentActivity"`
}

// ProjectContext is the merged snapshot. Services that failed still appear in
// Services with status "error"; only their data is absent.
type ProjectContext struct {
	Timestamp      time.Time       `json:"timestamp"`
	UserID         string          `json:"userId"`
	Services       []ServiceStatus `json:"services"`
	Summary        Summary         `json:"summary"`
	Communications *Communications `json:"communications,omitempty"`
	Projects       []Project       `json:"projects,omitempty"`
	Financials     *Financials     `json:"financials,omitempty"`
	UrgentItems    []UrgentItem    `json:"urgentItems"`
}
