package collab

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/good-yellow-bee/projectdesk/internal/metrics"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// MissingFile is a recorded file that is not on disk.
type MissingFile struct {
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
}

// ReconcileReport summarizes a reconcile run.
type ReconcileReport struct {
	Completed []int64       `json:"completed"`
	Aborted   []int64       `json:"aborted"`
	Missing   []MissingFile `json:"missing"`
	Orphans   []string      `json:"orphans"`
	Pruned    []string      `json:"pruned"`
}

// ReconcileOptions controls what Reconcile may change beyond provisions.
type ReconcileOptions struct {
	// PruneOrphans removes project directories that have no project row.
	PruneOrphans bool
}

// Reconcile resolves provisions left behind by an interrupted create and
// reports recorded files that are missing on disk.
//
// A leftover provision whose row and directory both exist is completed;
// any other is aborted, removing the directory and the unprovisioned row.
func (s *ProjectService) Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileReport, error) {
	report := &ReconcileReport{
		Completed: []int64{},
		Aborted:   []int64{},
		Missing:   []MissingFile{},
		Orphans:   []string{},
		Pruned:    []string{},
	}

	provs, err := s.store.Projects().ListProvisions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list provisions: %w", err)
	}
	for _, prov := range provs {
		if err := s.resolveProvision(ctx, prov, report); err != nil {
			return nil, err
		}
	}

	if err := s.findMissing(ctx, report); err != nil {
		return nil, err
	}
	if err := s.findOrphans(ctx, opts, report); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"completed": len(report.Completed),
		"aborted":   len(report.Aborted),
		"missing":   len(report.Missing),
		"orphans":   len(report.Orphans),
	}).Info("reconcile finished")
	return report, nil
}

func (s *ProjectService) resolveProvision(ctx context.Context, prov *models.Provision, report *ReconcileReport) error {
	fields := log.Fields{"project_id": prov.ProjectID, "path": prov.Path}

	project, err := s.store.Projects().GetByID(ctx, prov.ProjectID)
	if err != nil {
		return fmt.Errorf("get project %d: %w", prov.ProjectID, err)
	}
	dirOK, err := s.files.DirExists(prov.Path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", prov.Path, err)
	}

	if project != nil && dirOK {
		if err := s.store.Projects().CompleteProvision(ctx, prov.ProjectID, prov.Path); err != nil {
			return fmt.Errorf("complete provision %d: %w", prov.ProjectID, err)
		}
		metrics.ProvisionsReconciled.WithLabelValues("completed").Inc()
		report.Completed = append(report.Completed, prov.ProjectID)
		log.WithFields(fields).Info("provision completed")
		return nil
	}

	if err := s.files.RemoveDir(prov.Path); err != nil {
		log.WithError(err).WithFields(fields).Warn("could not remove provisioned directory")
	}
	if err := s.store.Projects().AbortProvision(ctx, prov.ProjectID); err != nil {
		return fmt.Errorf("abort provision %d: %w", prov.ProjectID, err)
	}
	metrics.ProvisionsReconciled.WithLabelValues("aborted").Inc()
	report.Aborted = append(report.Aborted, prov.ProjectID)
	log.WithFields(fields).Info("provision aborted")
	return nil
}

func (s *ProjectService) findMissing(ctx context.Context, report *ReconcileReport) error {
	recorded, err := s.store.Files().ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}

	ids := make([]int64, 0, len(recorded))
	for id := range recorded {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		project, err := s.store.Projects().GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get project %d: %w", id, err)
		}
		if project == nil {
			continue
		}
		for _, name := range recorded[id] {
			if project.Provisioned() && s.files.Exists(project.UploadPath, name) {
				continue
			}
			metrics.FileDriftTotal.WithLabelValues("reconcile").Inc()
			log.WithFields(log.Fields{"project_id": id, "file": name}).Warn("recorded file missing on disk")
			report.Missing = append(report.Missing, MissingFile{ProjectID: id, Name: name})
		}
	}
	return nil
}

func (s *ProjectService) findOrphans(ctx context.Context, opts ReconcileOptions, report *ReconcileReport) error {
	entries, err := os.ReadDir(s.files.Root())
	if err != nil {
		return fmt.Errorf("read uploads root: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := models.ParseID(e.Name())
		if err != nil {
			continue
		}
		project, err := s.store.Projects().GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get project %d: %w", id, err)
		}
		if project != nil {
			continue
		}

		dir := filepath.Join(s.files.Root(), e.Name())
		report.Orphans = append(report.Orphans, dir)
		if !opts.PruneOrphans {
			log.WithField("dir", dir).Warn("upload directory has no project")
			continue
		}
		if err := s.files.RemoveDir(dir); err != nil {
			log.WithError(err).WithField("dir", dir).Warn("could not prune orphaned directory")
			continue
		}
		report.Pruned = append(report.Pruned, dir)
	}
	return nil
}
