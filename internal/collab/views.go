package collab

import (
	"context"
	"fmt"

	"github.com/good-yellow-bee/projectdesk/internal/models"
	"github.com/good-yellow-bee/projectdesk/internal/storage"
)

// ExploreService serves the public feed of posted projects.
type ExploreService struct {
	store    storage.Storage
	projects *ProjectService
}

// NewExploreService creates an ExploreService.
func NewExploreService(store storage.Storage, projects *ProjectService) *ExploreService {
	return &ExploreService{store: store, projects: projects}
}

// List returns every posted project with its owner's contact details.
func (s *ExploreService) List(ctx context.Context) ([]*models.ExploreEntry, error) {
	entries, err := s.store.Projects().ListPosted(ctx)
	if err != nil {
		return nil, fmt.Errorf("list explore: %w", err)
	}
	if entries == nil {
		entries = []*models.ExploreEntry{}
	}
	return entries, nil
}

// ToggleNeedMembers sets the recruitment flag of any project the requester
// has access to. The flag is kept while a project is unposted and shows once
// it is posted.
func (s *ExploreService) ToggleNeedMembers(ctx context.Context, projectID int64, need bool, requester models.Principal) error {
	return s.projects.SetNeedMembers(ctx, projectID, need, requester)
}

// CalendarService aggregates a principal's projects with their tasks.
type CalendarService struct {
	store storage.Storage
}

// NewCalendarService creates a CalendarService.
func NewCalendarService(store storage.Storage) *CalendarService {
	return &CalendarService{store: store}
}

// For returns the calendar of every project the principal has access to.
func (s *CalendarService) For(ctx context.Context, requester models.Principal) ([]*models.CalendarProject, error) {
	projects, err := s.store.Projects().ListForMember(ctx, requester.ID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	ids := make([]int64, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	tasks, err := s.store.Tasks().ListByProjects(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	byProject := make(map[int64][]models.CalendarTask, len(projects))
	for _, t := range tasks {
		byProject[t.ProjectID] = append(byProject[t.ProjectID], models.CalendarTask{
			ID:      t.ID,
			Title:   t.Title,
			DueDate: t.Deadline,
			Status:  t.Status,
		})
	}

	out := make([]*models.CalendarProject, 0, len(projects))
	for _, p := range projects {
		ts := byProject[p.ID]
		if ts == nil {
			ts = []models.CalendarTask{}
		}
		out = append(out, &models.CalendarProject{
			ID:        p.ID,
			Title:     p.Title,
			StartDate: p.StartDate,
			EndDate:   p.EndDate,
			Priority:  p.Priority,
			Status:    p.Status,
			Tasks:     ts,
		})
	}
	return out, nil
}
