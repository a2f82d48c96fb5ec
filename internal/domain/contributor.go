// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"sort"
	"time"
)

// GhostLogin is the login GitHub shows for pull requests whose author account was deleted.
const GhostLogin = "ghost"

// PullRequest is a single merged pull request as yielded by the forge client.
// Only the author fields affect the report; the rest is used for diagnostics.
type PullRequest struct {
	Number      int
	Title       string
	AuthorLogin string
	// AuthorEmail is empty when the author has no public email.
	AuthorEmail string
	CreatedAt   time.Time
	MergedAt    time.Time
}

// Contributor is a distinct author login seen across the processed repositories.
type Contributor struct {
	Login string
	// Email is the most recently folded author email, possibly empty.
	Email        string
	Repositories map[string]struct{}
	PullRequests int
}

// NewContributor returns a contributor with an empty repository set.
func NewContributor(login string) *Contributor {
	return &Contributor{
		Login:        login,
		Repositories: make(map[string]struct{}),
	}
}

// RepositoryNames returns the contributed repositories sorted by name.
func (c *Contributor) RepositoryNames() []string {
	names := make([]string, 0, len(c.Repositories))
	for name := range c.Repositories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RepositoryFailure records a repository skipped because its forge request failed.
type RepositoryFailure struct {
	Repository string
	Err        error
}

// RunSummary holds the run-wide counters printed at the end of a run.
type RunSummary struct {
	Repositories       int
	MergedPullRequests int
	Contributors       int
	FailedRepositories int

	MeanPullRequestsPerRepository    float64
	MedianPullRequestsPerContributor float64
}
