package store

import (
	"context"

	log "github.com/sirupsen/logrus"

	"planner-api/domain"
	"planner-api/remote"
)

// ProjectsAPI is the slice of the remote CRUD API the project store consumes.
type ProjectsAPI interface {
	GetAllProjects(ctx context.Context) ([]domain.Project, error)
	CreateProject(ctx context.Context, project domain.Project) (remote.MutationResult, error)
	UpdateProject(ctx context.Context, project domain.Project) (remote.MutationResult, error)
	DeleteProject(ctx context.Context, projectID string) (remote.MutationResult, error)
	ArchiveProject(ctx context.Context, projectID string) (remote.MutationResult, error)
}

// Projects caches the project collection.
type Projects struct {
	api      ProjectsAPI
	logger   *log.Logger
	projects []domain.Project
}

// NewProjects creates a project store.
func NewProjects(api ProjectsAPI, logger *log.Logger) *Projects {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Projects{api: api, logger: logger}
}

// Fetch replaces the cached collection wholesale, keeping the previous cache
// on failure.
func (s *Projects) Fetch(ctx context.Context) error {
	projects, err := s.api.GetAllProjects(ctx)
	if err != nil {
		s.logger.WithError(err).Error("project fetch failed, serving stale cache")
		return err
	}
	s.projects = projects
	return nil
}

// All returns a copy of the cached collection.
func (s *Projects) All() []domain.Project {
	out := make([]domain.Project, len(s.projects))
	copy(out, s.projects)
	return out
}

// ByID looks a project up in the cache.
func (s *Projects) ByID(id string) (domain.Project, bool) {
	for _, p := range s.projects {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Project{}, false
}

// Create persists a new project.
func (s *Projects) Create(ctx context.Context, project domain.Project) error {
	if _, err := s.api.CreateProject(ctx, project); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

// Update persists field changes to a project.
func (s *Projects) Update(ctx context.Context, project domain.Project) error {
	if _, err := s.api.UpdateProject(ctx, project); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

// Delete removes a project. Tasks and notes keep their dangling project
// references; the remote store owns any cascade.
func (s *Projects) Delete(ctx context.Context, projectID string) error {
	if _, err := s.api.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

// Archive moves a project to the archived status without deleting it.
func (s *Projects) Archive(ctx context.Context, projectID string) error {
	if _, err := s.api.ArchiveProject(ctx, projectID); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

// ProjectProgress reports completion over a project's tasks, weighting tasks
// with loaded subtask lists by their subtask completion ratio.
func ProjectProgress(projectID string, tasks *Tasks, subs *SubTasks) domain.Progress {
	return domain.ComputeProgress(tasks.FilterByProject(projectID), subs.ByTask)
}
