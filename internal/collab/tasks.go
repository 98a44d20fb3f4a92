package collab

import (
	"context"
	"fmt"
	"time"

	"github.com/good-yellow-bee/projectdesk/internal/models"
	"github.com/good-yellow-bee/projectdesk/internal/storage"
)

// TaskService manages tasks. Every call checks access to the owning project.
type TaskService struct {
	store storage.Storage
}

// NewTaskService creates a TaskService.
func NewTaskService(store storage.Storage) *TaskService {
	return &TaskService{store: store}
}

// Create adds a task to a project.
func (s *TaskService) Create(ctx context.Context, projectID int64, in *TaskInput, requester models.Principal) (*models.Task, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := loadMember(ctx, s.store, projectID, requester); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task := &models.Task{
		ProjectID: projectID,
		Title:     in.Title,
		Assignee:  in.Assignee,
		Status:    models.Status(in.Status),
		Deadline:  in.Deadline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Tasks().Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// ListByProject returns a project's tasks in creation order.
func (s *TaskService) ListByProject(ctx context.Context, projectID int64, requester models.Principal) ([]*models.Task, error) {
	if _, err := loadViewable(ctx, s.store, projectID, requester); err != nil {
		return nil, err
	}
	tasks, err := s.store.Tasks().ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Update replaces a task's fields.
func (s *TaskService) Update(ctx context.Context, taskID int64, in *TaskInput, requester models.Principal) (*models.Task, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	task, err := s.loadTask(ctx, taskID, requester)
	if err != nil {
		return nil, err
	}

	task.Title = in.Title
	task.Assignee = in.Assignee
	task.Status = models.Status(in.Status)
	task.Deadline = in.Deadline
	task.UpdatedAt = time.Now().UTC()
	if err := s.store.Tasks().Update(ctx, task); err != nil {
		return nil, mapStorageErr(err, "update task")
	}
	return task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, taskID int64, requester models.Principal) error {
	if _, err := s.loadTask(ctx, taskID, requester); err != nil {
		return err
	}
	if err := s.store.Tasks().Delete(ctx, taskID); err != nil {
		return mapStorageErr(err, "delete task")
	}
	return nil
}

func (s *TaskService) loadTask(ctx context.Context, taskID int64, requester models.Principal) (*models.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrNotFound
	}
	if _, err := loadMember(ctx, s.store, task.ProjectID, requester); err != nil {
		return nil, err
	}
	return task, nil
}
