package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/good-yellow-bee/projectdesk/internal/access"
	"github.com/good-yellow-bee/projectdesk/internal/filestore"
	"github.com/good-yellow-bee/projectdesk/internal/metrics"
	"github.com/good-yellow-bee/projectdesk/internal/models"
	"github.com/good-yellow-bee/projectdesk/internal/storage"
)

// ProjectService owns project records and their upload directories.
type ProjectService struct {
	store storage.Storage
	files *filestore.Store
}

// NewProjectService creates a ProjectService.
func NewProjectService(store storage.Storage, files *filestore.Store) *ProjectService {
	return &ProjectService{store: store, files: files}
}

// Create validates in and creates a project owned by owner.
//
// The row and a provision record are inserted first, then the directory is
// created, then the upload path is stored and the record cleared. When either
// of the last two steps fails the directory and the row are removed again.
func (s *ProjectService) Create(ctx context.Context, in *ProjectInput, owner models.Principal) (*models.Project, error) {
	ownerID := owner.UserID()
	if ownerID == 0 {
		return nil, ErrForbidden
	}
	norm, err := in.normalize()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	project := &models.Project{
		Title:       in.Title,
		Description: in.Description,
		Department:  in.Department,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Priority:    models.Priority(in.Priority),
		TeamMembers: norm.teamMembers.Union(owner.ID),
		Budget:      norm.budget,
		Status:      norm.status,
		Tags:        norm.tags,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	prov, err := s.store.Projects().CreatePending(ctx, project, s.files.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	if err := s.files.Provision(prov.Path); err != nil {
		s.compensate(ctx, prov)
		return nil, &StorageError{Op: "provision", Message: "could not create project upload directory", Err: err}
	}
	if err := s.store.Projects().CompleteProvision(ctx, prov.ProjectID, prov.Path); err != nil {
		s.compensate(ctx, prov)
		return nil, fmt.Errorf("complete provision: %w", err)
	}

	project.UploadPath = prov.Path
	project.Files = []string{}

	log.WithFields(log.Fields{
		"project_id": project.ID,
		"owner_id":   ownerID,
	}).Info("project created")
	return project, nil
}

// compensate removes a half-provisioned project. Its own failures are only
// logged; the provision record stays behind for reconcile when the row
// cannot be removed.
func (s *ProjectService) compensate(ctx context.Context, prov *models.Provision) {
	ctx = context.WithoutCancel(ctx)
	metrics.ProvisionCompensations.Inc()

	if err := s.files.RemoveDir(prov.Path); err != nil {
		log.WithError(err).WithField("project_id", prov.ProjectID).Warn("compensation: remove directory failed")
	}
	if err := s.store.Projects().AbortProvision(ctx, prov.ProjectID); err != nil {
		log.WithError(err).WithField("project_id", prov.ProjectID).Error("compensation: abort provision failed")
	}
}

// Update replaces the editable fields of a project. The requester must pass
// HasAccess and is added to the team along with the owner.
func (s *ProjectService) Update(ctx context.Context, id int64, in *ProjectInput, requester models.Principal) (*models.Project, error) {
	norm, err := in.normalize()
	if err != nil {
		return nil, err
	}
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.HasAccess(project, requester.ID) {
		return nil, ErrForbidden
	}
	return s.apply(ctx, project, in, norm, requester.ID)
}

// AdminUpdate is Update without the access check. The admin is not added
// to the team.
func (s *ProjectService) AdminUpdate(ctx context.Context, id int64, in *ProjectInput) (*models.Project, error) {
	norm, err := in.normalize()
	if err != nil {
		return nil, err
	}
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, project, in, norm)
}

func (s *ProjectService) apply(ctx context.Context, project *models.Project, in *ProjectInput, norm *normalized, extraMembers ...string) (*models.Project, error) {
	members := norm.teamMembers.Union(models.FormatID(project.OwnerID))
	members = members.Union(extraMembers...)

	project.Title = in.Title
	project.Description = in.Description
	project.Department = in.Department
	project.StartDate = in.StartDate
	project.EndDate = in.EndDate
	project.Priority = models.Priority(in.Priority)
	project.TeamMembers = members
	project.Budget = norm.budget
	project.Status = norm.status
	project.Tags = norm.tags
	project.UpdatedAt = time.Now().UTC()

	if err := s.store.Projects().Update(ctx, project); err != nil {
		return nil, mapStorageErr(err, "update project")
	}
	return project, nil
}

// Get returns a project the principal may view. Admins may view any project.
func (s *ProjectService) Get(ctx context.Context, id int64, requester models.Principal) (*models.Project, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(project, requester) {
		return nil, ErrForbidden
	}
	return project, nil
}

// List returns every project when requester is nil, otherwise only those
// the requester has access to.
func (s *ProjectService) List(ctx context.Context, requester *models.Principal) ([]*models.Project, error) {
	if requester == nil {
		projects, err := s.store.Projects().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		return projects, nil
	}
	projects, err := s.store.Projects().ListForMember(ctx, requester.ID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Delete removes a project and, best effort, its upload directory.
func (s *ProjectService) Delete(ctx context.Context, id int64, requester models.Principal) error {
	project, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !access.HasAccess(project, requester.ID) {
		return ErrForbidden
	}

	if err := s.store.Projects().Delete(ctx, id); err != nil {
		return mapStorageErr(err, "delete project")
	}

	if project.Provisioned() {
		if err := s.files.RemoveDir(project.UploadPath); err != nil {
			log.WithError(err).WithField("project_id", id).Warn("project deleted but upload directory was not removed")
		}
	}
	log.WithFields(log.Fields{"project_id": id, "user_id": requester.ID}).Info("project deleted")
	return nil
}

// SetPosted toggles whether a project appears on the explore feed. Callers
// restrict it to admins.
func (s *ProjectService) SetPosted(ctx context.Context, id int64, posted bool) error {
	if err := s.store.Projects().SetPosted(ctx, id, posted); err != nil {
		return mapStorageErr(err, "set posted")
	}
	return nil
}

// SetNeedMembers toggles the recruitment flag. The requester must pass HasAccess.
func (s *ProjectService) SetNeedMembers(ctx context.Context, id int64, need bool, requester models.Principal) error {
	project, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !access.HasAccess(project, requester.ID) {
		return ErrForbidden
	}
	if err := s.store.Projects().SetNeedMembers(ctx, id, need); err != nil {
		return mapStorageErr(err, "set need members")
	}
	return nil
}

func (s *ProjectService) load(ctx context.Context, id int64) (*models.Project, error) {
	return loadProject(ctx, s.store, id)
}

func loadProject(ctx context.Context, store storage.Storage, id int64) (*models.Project, error) {
	project, err := store.Projects().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if project == nil {
		return nil, ErrNotFound
	}
	return project, nil
}

// loadViewable loads a project the principal may read. Admins may read any project.
func loadViewable(ctx context.Context, store storage.Storage, id int64, requester models.Principal) (*models.Project, error) {
	project, err := loadProject(ctx, store, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(project, requester) {
		return nil, ErrForbidden
	}
	return project, nil
}

// loadMember loads a project the principal may modify: owner or team member.
func loadMember(ctx context.Context, store storage.Storage, id int64, requester models.Principal) (*models.Project, error) {
	project, err := loadProject(ctx, store, id)
	if err != nil {
		return nil, err
	}
	if !access.HasAccess(project, requester.ID) {
		return nil, ErrForbidden
	}
	return project, nil
}

func mapStorageErr(err error, op string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrDuplicate):
		return &ConflictError{Message: "record already exists"}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
