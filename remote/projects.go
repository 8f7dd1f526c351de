package remote

import (
	"context"
	"net/url"

	"planner-api/domain"
)

// GetAllProjects fetches the whole project collection.
func (c *Client) GetAllProjects(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	if err := c.get(ctx, "getAllProjects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) CreateProject(ctx context.Context, p domain.Project) (MutationResult, error) {
	return c.mutate(ctx, "createProject", p)
}

func (c *Client) UpdateProject(ctx context.Context, p domain.Project) (MutationResult, error) {
	return c.mutate(ctx, "updateProject", p)
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) (MutationResult, error) {
	return c.mutate(ctx, "deleteProject", map[string]string{"projectId": projectID})
}

// ArchiveProject moves a project to the Archived status on the remote.
func (c *Client) ArchiveProject(ctx context.Context, projectID string) (MutationResult, error) {
	return c.mutate(ctx, "archiveProject", map[string]string{"projectId": projectID})
}

// GetAllNotes fetches the whole note collection.
func (c *Client) GetAllNotes(ctx context.Context) ([]domain.Note, error) {
	var notes []domain.Note
	if err := c.get(ctx, "getAllNotes", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// GetNote fetches a single note.
func (c *Client) GetNote(ctx context.Context, noteID string) (domain.Note, error) {
	params := url.Values{"noteId": {noteID}}
	var note domain.Note
	if err := c.get(ctx, "getNote", params, &note); err != nil {
		return domain.Note{}, err
	}
	return note, nil
}

func (c *Client) CreateNote(ctx context.Context, n domain.Note) (MutationResult, error) {
	return c.mutate(ctx, "createNote", n)
}

func (c *Client) UpdateNote(ctx context.Context, n domain.Note) (MutationResult, error) {
	return c.mutate(ctx, "updateNote", n)
}

func (c *Client) DeleteNote(ctx context.Context, noteID string) (MutationResult, error) {
	return c.mutate(ctx, "deleteNote", map[string]string{"noteId": noteID})
}
