package api

import (
	"context"

	"toolbox/internal/tasks"
)

// TaskReader abstracts task persistence needed for API queries.
type TaskReader interface {
	List(ctx context.Context, opts tasks.ListOptions) ([]tasks.Task, error)
	Get(ctx context.Context, id string) (*tasks.Task, error)
	Health(ctx context.Context) (tasks.HealthSummary, error)
}

// TaskService exposes read-only task history queries returning API DTOs.
type TaskService struct {
	store TaskReader
}

// NewTaskService constructs a TaskService around the provided reader.
func NewTaskService(store TaskReader) *TaskService {
	if store == nil {
		return nil
	}
	return &TaskService{store: store}
}

// List returns task history filtered by req. Unknown statuses are ignored.
func (s *TaskService) List(ctx context.Context, req TasksRequest) ([]TaskItem, error) {
	if s == nil || s.store == nil {
		return []TaskItem{}, nil
	}
	statuses := make([]tasks.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		if status, ok := tasks.ParseStatus(raw); ok {
			statuses = append(statuses, status)
		}
	}
	items, err := s.store.List(ctx, tasks.ListOptions{Statuses: statuses, Kind: req.Kind, Limit: req.Limit})
	if err != nil {
		return nil, err
	}
	return FromTasks(items), nil
}

// Describe fetches a single task; a missing id returns nil.
func (s *TaskService) Describe(ctx context.Context, id string) (*TaskItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	task, err := s.store.Get(ctx, id)
	if err != nil || task == nil {
		return nil, err
	}
	item := FromTask(*task)
	return &item, nil
}

// Health returns task counts by status.
func (s *TaskService) Health(ctx context.Context) (tasks.HealthSummary, error) {
	if s == nil || s.store == nil {
		return tasks.HealthSummary{}, nil
	}
	return s.store.Health(ctx)
}

// FromTask converts a stored task into its DTO.
func FromTask(task tasks.Task) TaskItem {
	item := TaskItem{
		ID:         task.ID,
		Kind:       task.Kind,
		Status:     string(task.Status),
		Target:     task.Target,
		Message:    task.Message,
		ErrorKind:  task.ErrorKind,
		RequestID:  task.RequestID,
		DurationMS: task.Duration().Milliseconds(),
	}
	if !task.CreatedAt.IsZero() {
		item.CreatedAt = task.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !task.UpdatedAt.IsZero() {
		item.UpdatedAt = task.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return item
}

// FromTasks converts a slice of stored tasks, preserving order.
func FromTasks(items []tasks.Task) []TaskItem {
	out := make([]TaskItem, 0, len(items))
	for _, task := range items {
		out = append(out, FromTask(task))
	}
	return out
}
