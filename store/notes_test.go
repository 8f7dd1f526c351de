package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"planner-api/domain"
	"planner-api/remote"
)

type fakeNotesAPI struct {
	notes      []domain.Note
	directGets int
}

func (f *fakeNotesAPI) GetAllNotes(_ context.Context) ([]domain.Note, error) {
	return f.notes, nil
}

func (f *fakeNotesAPI) GetNote(_ context.Context, noteID string) (domain.Note, error) {
	f.directGets++
	for _, n := range f.notes {
		if n.ID == noteID {
			return n, nil
		}
	}
	return domain.Note{}, fmt.Errorf("note %q not found", noteID)
}

func (f *fakeNotesAPI) CreateNote(_ context.Context, n domain.Note) (remote.MutationResult, error) {
	f.notes = append(f.notes, n)
	return remote.MutationResult{Success: true, ID: n.ID}, nil
}

func (f *fakeNotesAPI) UpdateNote(_ context.Context, n domain.Note) (remote.MutationResult, error) {
	for i := range f.notes {
		if f.notes[i].ID == n.ID {
			f.notes[i] = n
		}
	}
	return remote.MutationResult{Success: true, ID: n.ID}, nil
}

func (f *fakeNotesAPI) DeleteNote(_ context.Context, noteID string) (remote.MutationResult, error) {
	kept := f.notes[:0:0]
	for _, n := range f.notes {
		if n.ID != noteID {
			kept = append(kept, n)
		}
	}
	f.notes = kept
	return remote.MutationResult{Success: true, ID: noteID}, nil
}

func newTestNotes(api *fakeNotesAPI) *Notes {
	logger, _ := test.NewNullLogger()
	return NewNotes(api, logger)
}

func TestNoteByIDFallsBackToDirectFetch(t *testing.T) {
	api := &fakeNotesAPI{notes: []domain.Note{{ID: "n1", Title: "Ideas"}}}
	s := newTestNotes(api)

	n, err := s.ByID(context.Background(), "n1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if n.Title != "Ideas" || api.directGets != 1 {
		t.Errorf("expected direct fetch on cold cache, note=%+v gets=%d", n, api.directGets)
	}

	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, err := s.ByID(context.Background(), "n1"); err != nil {
		t.Fatalf("ByID after Fetch: %v", err)
	}
	if api.directGets != 1 {
		t.Errorf("warm cache must not hit the remote, gets=%d", api.directGets)
	}
}

func TestNotesByProject(t *testing.T) {
	api := &fakeNotesAPI{notes: []domain.Note{
		{ID: "n1", Title: "Plan", ProjectID: "p1"},
		{ID: "n2", Title: "Scratch"},
	}}
	s := newTestNotes(api)
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	got := s.ByProject("p1")
	if len(got) != 1 || got[0].ID != "n1" {
		t.Errorf("ByProject = %v", got)
	}
}

func TestNoteDeleteRefetches(t *testing.T) {
	api := &fakeNotesAPI{notes: []domain.Note{{ID: "n1", Title: "Plan"}}}
	s := newTestNotes(api)
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if err := s.Delete(context.Background(), "n1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := s.All(); len(got) != 0 {
		t.Errorf("cache after delete = %v, want empty", got)
	}
}
