// Package models defines the core data structures used throughout the application.
package models

import (
	"fmt"
	"strings"
)

// ErrInvalidRepository indicates a repository reference that is not in
// "owner/name" form.
var ErrInvalidRepository = fmt.Errorf("invalid repository reference")

// Repository identifies a single watched repository.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// ParseRepository parses an "owner/name" reference into a Repository.
func ParseRepository(ref string) (Repository, error) {
	parts := strings.Split(strings.TrimSpace(ref), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepository, ref)
	}
	return Repository{Owner: parts[0], Name: parts[1]}, nil
}

// Key returns the canonical "owner/name" form used for cursor and filter lookups.
func (r Repository) Key() string {
	return r.Owner + "/" + r.Name
}

// Branch represents a single branch of a repository.
type Branch struct {
	Name string `json:"name"`
}

// Commit is the normalized representation of a single commit, independent of
// the source API's wire format.
type Commit struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	AuthorName string `json:"author_name"`
	AuthorURL  string `json:"author_url"`
	AvatarURL  string `json:"avatar_url"`
	HTMLURL    string `json:"html_url"`
	RepoKey    string `json:"repo_key"`
	Branch     string `json:"branch"`
}

// ShortID returns the abbreviated commit id used in rendered messages.
func (c Commit) ShortID() string {
	if len(c.ID) <= 7 {
		return c.ID
	}
	return c.ID[:7]
}

// Cursor maps repository key -> branch name -> id of the newest commit seen.
type Cursor map[string]map[string]string

// Get returns the cursor id for a branch and whether the branch has one.
func (c Cursor) Get(repoKey, branch string) (string, bool) {
	branches, ok := c[repoKey]
	if !ok {
		return "", false
	}
	id, ok := branches[branch]
	return id, ok
}

// Set records the cursor id for a branch, allocating the repository entry if
// it does not exist yet.
func (c Cursor) Set(repoKey, branch, id string) {
	branches, ok := c[repoKey]
	if !ok {
		branches = make(map[string]string)
		c[repoKey] = branches
	}
	branches[branch] = id
}

// HasRepo reports whether any branch of the repository has been seen before.
func (c Cursor) HasRepo(repoKey string) bool {
	_, ok := c[repoKey]
	return ok
}
