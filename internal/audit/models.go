package audit

import "time"

// Status of an audited command attempt.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// Entry is the durable record of one command attempt. Entries are immutable
// after creation; only the retention sweep removes them.
type Entry struct {
	ID              string         `json:"id,omitempty"`
	UserID          string         `json:"userId"`
	Service         string         `json:"service"`
	Action          string         `json:"action"`
	Resource        string         `json:"resource,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	Status          Status         `json:"status"`
	ErrorCode       string         `json:"errorCode,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	ExecutionTimeMs *int64         `json:"executionTime,omitempty"`
	RetryCount      int            `json:"retryCount,omitempty"`
	IPAddress       string         `json:"ipAddress,omitempty"`
	UserAgent       string         `json:"userAgent,omitempty"`
	RequestID       string         `json:"requestId,omitempty"`
	ExecutedAt      time.Time      `json:"executedAt"`
}

// Filter narrows a user's log listing.
type Filter struct {
	Service   string
	Action    string
	Status    string
	Limit     int
	Offset    int
	StartDate time.Time
	EndDate   time.Time
}

// ActionCount pairs an action name with its occurrence count.
type ActionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// Stats aggregates a service's audit trail over a date range.
type Stats struct {
	TotalActions         int           `json:"totalActions"`
	SuccessfulActions    int           `json:"successfulActions"`
	FailedActions        int           `json:"failedActions"`
	AverageExecutionTime int64         `json:"averageExecutionTime"`
	TopActions           []ActionCount `json:"topActions"`
	ErrorRate            float64       `json:"errorRate"`
}
