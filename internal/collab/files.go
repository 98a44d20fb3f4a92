package collab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/good-yellow-bee/projectdesk/internal/filestore"
	"github.com/good-yellow-bee/projectdesk/internal/metrics"
	"github.com/good-yellow-bee/projectdesk/internal/models"
	"github.com/good-yellow-bee/projectdesk/internal/storage"
)

// DefaultMaxFiles is the number of files accepted by one upload call.
const DefaultMaxFiles = 10

// IncomingFile is one file of an upload. Open is called once.
type IncomingFile struct {
	Field string
	Name  string
	Open  func() (io.ReadCloser, error)
}

// FileFailure names a file that could not be stored or deleted.
type FileFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// UploadResult lists the generated names of stored files and the project's
// full file list afterwards.
type UploadResult struct {
	Stored []string      `json:"stored"`
	Failed []FileFailure `json:"failed"`
	Files  []string      `json:"files"`
}

// DeleteResult reports the outcome of a bulk delete.
type DeleteResult struct {
	Deleted []string      `json:"deleted"`
	Failed  []FileFailure `json:"failed"`
}

// FileService keeps each project's recorded file list in step with its
// upload directory.
type FileService struct {
	store    storage.Storage
	files    *filestore.Store
	maxFiles int
	now      func() time.Time
}

// NewFileService creates a FileService. maxFiles <= 0 selects DefaultMaxFiles.
func NewFileService(store storage.Storage, files *filestore.Store, maxFiles int) *FileService {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &FileService{store: store, files: files, maxFiles: maxFiles, now: time.Now}
}

// Upload stores each incoming file under a generated name and records the
// name once the file is in place. Files that fail are reported; the call
// fails only when nothing could be stored.
func (s *FileService) Upload(ctx context.Context, projectID int64, incoming []IncomingFile, requester models.Principal) (*UploadResult, error) {
	if len(incoming) == 0 {
		return nil, NewValidationError("files", "at least one file is required")
	}
	if len(incoming) > s.maxFiles {
		return nil, NewValidationError("files", fmt.Sprintf("at most %d files may be uploaded at once", s.maxFiles))
	}

	project, err := loadMember(ctx, s.store, projectID, requester)
	if err != nil {
		return nil, err
	}
	if !project.Provisioned() {
		return nil, &StorageError{Op: "upload", Message: "project upload directory is not provisioned"}
	}
	if ok, err := s.files.DirExists(project.UploadPath); err != nil || !ok {
		return nil, &StorageError{Op: "upload", Message: "project upload directory is missing", Err: err}
	}

	result := &UploadResult{Stored: []string{}, Failed: []FileFailure{}}
	var lastErr error
	for _, f := range incoming {
		name, err := s.storeOne(ctx, project, f)
		if err != nil {
			lastErr = err
			metrics.FileOperationsTotal.WithLabelValues("upload", "failed").Inc()
			log.WithError(err).WithFields(log.Fields{
				"project_id": projectID,
				"file":       f.Name,
			}).Warn("upload failed")
			result.Failed = append(result.Failed, FileFailure{Name: f.Name, Reason: "could not store file"})
			continue
		}
		metrics.FileOperationsTotal.WithLabelValues("upload", "ok").Inc()
		result.Stored = append(result.Stored, name)
	}

	if len(result.Stored) == 0 {
		return nil, &StorageError{Op: "upload", Message: "no files could be stored", Err: lastErr}
	}

	files, err := s.store.Files().List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	result.Files = files
	return result, nil
}

func (s *FileService) storeOne(ctx context.Context, project *models.Project, f IncomingFile) (string, error) {
	name := filestore.GenerateName(f.Field, f.Name, s.now())

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	n, err := s.files.Save(project.UploadPath, name, rc)
	if err != nil {
		return "", err
	}
	metrics.FileBytesUploaded.Add(float64(n))

	if err := s.store.Files().Append(ctx, project.ID, name); err != nil {
		if rmErr := s.files.Delete(project.UploadPath, name); rmErr != nil {
			log.WithError(rmErr).WithField("file", name).Warn("could not remove unrecorded upload")
		}
		return "", fmt.Errorf("record file: %w", err)
	}
	return name, nil
}

// List returns the recorded file names in upload order.
func (s *FileService) List(ctx context.Context, projectID int64, requester models.Principal) ([]string, error) {
	project, err := loadViewable(ctx, s.store, projectID, requester)
	if err != nil {
		return nil, err
	}
	return project.Files, nil
}

// Delete removes each named file from disk and then from the record. A name
// stays recorded when its file could not be removed from disk. Names that
// are not recorded are reported as failures.
func (s *FileService) Delete(ctx context.Context, projectID int64, names []string, requester models.Principal) (*DeleteResult, error) {
	if len(names) == 0 {
		return nil, NewValidationError("fileNames", "at least one file name is required")
	}
	project, err := loadMember(ctx, s.store, projectID, requester)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{Deleted: []string{}, Failed: []FileFailure{}}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		if !project.HasFile(name) {
			result.Failed = append(result.Failed, FileFailure{Name: name, Reason: "file not found"})
			continue
		}

		if err := s.files.Delete(project.UploadPath, name); err != nil {
			metrics.FileOperationsTotal.WithLabelValues("delete", "failed").Inc()
			log.WithError(err).WithFields(log.Fields{
				"project_id": projectID,
				"file":       name,
			}).Warn("file delete failed")
			result.Failed = append(result.Failed, FileFailure{Name: name, Reason: "could not delete file"})
			continue
		}

		if err := s.store.Files().Remove(ctx, projectID, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			metrics.FileOperationsTotal.WithLabelValues("delete", "failed").Inc()
			log.WithError(err).WithFields(log.Fields{
				"project_id": projectID,
				"file":       name,
			}).Error("file removed from disk but still recorded")
			result.Failed = append(result.Failed, FileFailure{Name: name, Reason: "could not update file list"})
			continue
		}
		metrics.FileOperationsTotal.WithLabelValues("delete", "ok").Inc()
		result.Deleted = append(result.Deleted, name)
	}
	return result, nil
}

// Download opens a recorded file. The caller closes it.
func (s *FileService) Download(ctx context.Context, projectID int64, name string, requester models.Principal) (*os.File, os.FileInfo, error) {
	project, err := loadViewable(ctx, s.store, projectID, requester)
	if err != nil {
		return nil, nil, err
	}
	if !project.HasFile(name) || !project.Provisioned() {
		return nil, nil, ErrNotFound
	}

	f, info, err := s.files.Open(project.UploadPath, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			metrics.FileDriftTotal.WithLabelValues("download").Inc()
			log.WithFields(log.Fields{
				"project_id": projectID,
				"file":       name,
			}).Warn("recorded file missing on disk")
			return nil, nil, ErrNotFound
		}
		if errors.Is(err, filestore.ErrInvalidName) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	return f, info, nil
}

// HandleRemoved is the watcher callback for files removed outside the
// service. Removals of recorded files are logged and counted as drift.
func (s *FileService) HandleRemoved(dir, name string) {
	projectID, err := models.ParseID(filepath.Base(dir))
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		log.WithError(err).WithField("project_id", projectID).Warn("drift check failed")
		return
	}
	if project == nil || !project.HasFile(name) {
		return
	}

	metrics.FileDriftTotal.WithLabelValues("watcher").Inc()
	log.WithFields(log.Fields{
		"project_id": projectID,
		"file":       name,
	}).Warn("recorded file removed from disk outside the application")
}
