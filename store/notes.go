package store

import (
	"context"

	log "github.com/sirupsen/logrus"

	"planner-api/domain"
	"planner-api/remote"
)

// NotesAPI is the slice of the remote CRUD API the note store consumes.
type NotesAPI interface {
	GetAllNotes(ctx context.Context) ([]domain.Note, error)
	GetNote(ctx context.Context, noteID string) (domain.Note, error)
	CreateNote(ctx context.Context, note domain.Note) (remote.MutationResult, error)
	UpdateNote(ctx context.Context, note domain.Note) (remote.MutationResult, error)
	DeleteNote(ctx context.Context, noteID string) (remote.MutationResult, error)
}

// Notes caches the note collection.
type Notes struct {
	api    NotesAPI
	logger *log.Logger
	notes  []domain.Note
}

// NewNotes creates a note store.
func NewNotes(api NotesAPI, logger *log.Logger) *Notes {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Notes{api: api, logger: logger}
}

// Fetch replaces the cached collection wholesale, keeping the previous cache
// on failure.
func (s *Notes) Fetch(ctx context.Context) error {
	notes, err := s.api.GetAllNotes(ctx)
	if err != nil {
		s.logger.WithError(err).Error("note fetch failed, serving stale cache")
		return err
	}
	s.notes = notes
	return nil
}

// All returns a copy of the cached collection.
func (s *Notes) All() []domain.Note {
	out := make([]domain.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// ByID looks a note up in the cache, falling back to a direct fetch on a
// cache miss so deep links resolve before the first full Fetch.
func (s *Notes) ByID(ctx context.Context, id string) (domain.Note, error) {
	for _, n := range s.notes {
		if n.ID == id {
			return n, nil
		}
	}
	return s.api.GetNote(ctx, id)
}

// ByProject returns cached notes linked to the given project.
func (s *Notes) ByProject(projectID string) []domain.Note {
	out := []domain.Note{}
	for _, n := range s.notes {
		if n.ProjectID == projectID {
			out = append(out, n)
		}
	}
	return out
}

// Create persists a new note.
func (s *Notes) Create(ctx context.Context, note domain.Note) error {
	if _, err := s.api.CreateNote(ctx, note); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

// Update persists field changes to a note.
func (s *Notes) Update(ctx context.Context, note domain.Note) error {
	if _, err := s.api.UpdateNote(ctx, note); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

// Delete removes a note.
func (s *Notes) Delete(ctx context.Context, noteID string) error {
	if _, err := s.api.DeleteNote(ctx, noteID); err != nil {
		return err
	}
	return s.Fetch(ctx)
}
