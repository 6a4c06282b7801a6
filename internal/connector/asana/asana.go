// Package asana wraps the Asana REST surface reachable through the broker
// proxy.
package asana

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"sylo/internal/broker"
	"sylo/internal/connector"
)

const serviceName = "asana"

type Task struct {
	GID       string `json:"gid"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	DueDate   string `json:"due_date,omitempty"`
	Projects  []Ref  `json:"projects,omitempty"`
	Tags      []Ref  `json:"tags,omitempty"`
}

type Project struct {
	GID       string `json:"gid"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	Completed bool   `json:"completed"`
	DueDate   string `json:"due_date,omitempty"`
}

type Ref struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// TaskStats summarizes the caller's task list for the context compiler.
type TaskStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
	DueToday  int `json:"dueToday"`
	Upcoming  int `json:"upcoming"`
}

type taskListResponse struct {
	Data []Task `json:"data"`
}

type projectListResponse struct {
	Data []Project `json:"data"`
}

type userResponse struct {
	Data struct {
		GID string `json:"gid"`
	} `json:"data"`
}

type taskResponse struct {
	Data Task `json:"data"`
}

type Service struct {
	broker broker.Caller
}

func New(b broker.Caller) *Service {
	return &Service{broker: b}
}

func (s *Service) Name() string { return serviceName }

// Actions returns the fixed Asana action table.
func (s *Service) Actions() map[string]connector.ActionFunc {
	return map[string]connector.ActionFunc{
		"get_tasks":          s.actionGetTasks,
		"create_task":        s.actionCreateTask,
		"get_task_stats":     s.actionGetTaskStats,
		"get_upcoming_tasks": s.actionGetUpcomingTasks,
		"get_projects":       s.actionGetProjects,
	}
}

func (s *Service) actionGetTasks(ctx context.Context, connectionID string, _ map[string]any) (map[string]any, error) {
	tasks, err := s.GetMyTasks(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
}

func (s *Service) actionCreateTask(ctx context.Context, connectionID string, params map[string]any) (map[string]any, error) {
	name, ok := connector.StringParam(params, "name")
	if !ok {
		return nil, fmt.Errorf("Missing required parameter: name")
	}

	task, err := s.CreateTask(ctx, connectionID, name,
		connector.OptionalString(params, "project_gid"),
		connector.OptionalString(params, "due_date"),
		connector.OptionalString(params, "notes"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"task": task}, nil
}

func (s *Service) actionGetTaskStats(ctx context.Context, connectionID string, _ map[string]any) (map[string]any, error) {
	stats, err := s.GetTaskStats(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total":     stats.Total,
		"completed": stats.Completed,
		"overdue":   stats.Overdue,
		"dueToday":  stats.DueToday,
		"upcoming":  stats.Upcoming,
	}, nil
}

func (s *Service) actionGetUpcomingTasks(ctx context.Context, connectionID string, _ map[string]any) (map[string]any, error) {
	tasks, err := s.GetUpcomingTasks(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
}

func (s *Service) actionGetProjects(ctx context.Context, connectionID string, params map[string]any) (map[string]any, error) {
	projects, err := s.GetProjects(ctx, connectionID, connector.IntParam(params, "limit", 20))
	if err != nil {
		return nil, err
	}
	return map[string]any{"projects": projects, "count": len(projects)}, nil
}

const taskFields = "name,completed,due_date,projects.name,tags.name,created_at,modified_at"

// GetMyTasks resolves the connection's own user first, then lists that
// assignee's incomplete tasks.
func (s *Service) GetMyTasks(ctx context.Context, connectionID string) ([]Task, error) {
	var me userResponse
	if err := s.broker.ProxyCall(ctx, serviceName, connectionID, "/api/1.0/users/me", "GET", nil, &me); err != nil {
		return nil, fmt.Errorf("resolve asana user: %w", err)
	}

	endpoint := fmt.Sprintf("/api/1.0/tasks?assignee=%s&completed_since=now&opt_fields=%s", me.Data.GID, taskFields)
	var resp taskListResponse
	if err := s.broker.ProxyCall(ctx, serviceName, connectionID, endpoint, "GET", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch my asana tasks: %w", err)
	}
	return orEmpty(resp.Data), nil
}

// GetProjects lists projects visible to the connection.
func (s *Service) GetProjects(ctx context.Context, connectionID string, limit int) ([]Project, error) {
	endpoint := fmt.Sprintf("/api/1.0/projects?limit=%d&opt_fields=name,color,completed,current_status,due_date,team.name", limit)
	var resp projectListResponse
	if err := s.broker.ProxyCall(ctx, serviceName, connectionID, endpoint, "GET", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch asana projects: %w", err)
	}
	if resp.Data == nil {
		return []Project{}, nil
	}
	return resp.Data, nil
}

// GetUpcomingTasks lists incomplete tasks due within the next seven days.
func (s *Service) GetUpcomingTasks(ctx context.Context, connectionID string) ([]Task, error) {
	horizon := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	endpoint := fmt.Sprintf("/api/1.0/tasks?due_date.before=%s&completed_since=now&opt_fields=%s", horizon, taskFields)
	var resp taskListResponse
	if err := s.broker.ProxyCall(ctx, serviceName, connectionID, endpoint, "GET", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch upcoming asana tasks: %w", err)
	}
	return orEmpty(resp.Data), nil
}

// GetTaskStats derives counts from the caller's tasks and upcoming tasks,
// fetched concurrently.
func (s *Service) GetTaskStats(ctx context.Context, connectionID string) (*TaskStats, error) {
	var myTasks, upcoming []Task

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		myTasks, err = s.GetMyTasks(gctx, connectionID)
		return err
	})
	g.Go(func() error {
		var err error
		upcoming, err = s.GetUpcomingTasks(gctx, connectionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("asana stats: %w", err)
	}

	today := time.Now().Format("2006-01-02")
	stats := &TaskStats{Total: len(myTasks), Upcoming: len(upcoming)}
	for _, task := range myTasks {
		switch {
		case task.Completed:
			stats.Completed++
		case task.DueDate != "" && task.DueDate < today:
			stats.Overdue++
		case task.DueDate == today:
			stats.DueToday++
		}
	}
	return stats, nil
}

// CreateTask creates a task, optionally attached to a project with a due date
// and notes.
func (s *Service) CreateTask(ctx context.Context, connectionID, name, projectGID, dueDate, notes string) (*Task, error) {
	data := map[string]any{"name": name}
	if notes != "" {
		data["notes"] = notes
	}
	if projectGID != "" {
		data["projects"] = []string{projectGID}
	}
	if dueDate != "" {
		data["due_date"] = dueDate
	}

	var resp taskResponse
	err := s.broker.ProxyCall(ctx, serviceName, connectionID, "/api/1.0/tasks", "POST",
		map[string]any{"data": data}, &resp)
	if err != nil {
		return nil, fmt.Errorf("create asana task: %w", err)
	}
	return &resp.Data, nil
}

func orEmpty(tasks []Task) []Task {
	if tasks == nil {
		return []Task{}
	}
	return tasks
}
