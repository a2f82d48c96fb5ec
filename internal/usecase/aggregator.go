// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/naka-gawa/github-osrcp/internal/domain"
	"github.com/naka-gawa/github-osrcp/internal/gateway"
)

// Aggregator folds merged pull requests into a deduplicated contributor table.
// It is not safe for concurrent use; repositories are processed one at a time so
// that the last-write-wins email policy follows the order pull requests are listed in.
type Aggregator struct {
	lister      gateway.PullRequestLister
	logger      *log.Logger
	diagnostics io.Writer

	continueOnError bool

	contributors       map[string]*domain.Contributor
	mergedPullRequests int
	repositoryCounts   []int
	failures           []domain.RepositoryFailure
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDiagnostics writes per pull request and per repository lines to w.
func WithDiagnostics(w io.Writer) Option {
	return func(a *Aggregator) {
		a.diagnostics = w
	}
}

// WithContinueOnError skips repositories whose forge request fails instead of aborting the run.
func WithContinueOnError(enabled bool) Option {
	return func(a *Aggregator) {
		a.continueOnError = enabled
	}
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(lister gateway.PullRequestLister, logger *log.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		lister:       lister,
		logger:       logger,
		diagnostics:  io.Discard,
		contributors: make(map[string]*domain.Contributor),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fold adds one merged pull request of repository to the contributor table.
func (a *Aggregator) Fold(repository string, pr domain.PullRequest) {
	contributor, ok := a.contributors[pr.AuthorLogin]
	if !ok {
		contributor = domain.NewContributor(pr.AuthorLogin)
		a.contributors[pr.AuthorLogin] = contributor
	}
	contributor.Email = pr.AuthorEmail
	contributor.Repositories[repository] = struct{}{}
	contributor.PullRequests++
	a.mergedPullRequests++
}

// ForEachRepository lists and folds the merged pull requests of every repository, in order.
// Duplicate repositories are visited again. A forge failure aborts the run unless
// the aggregator continues on error, in which case the repository is skipped.
func (a *Aggregator) ForEachRepository(ctx context.Context, repositories []string, baseBranch string) error {
	a.logger.Printf("Usecase: Processing %d repositories on base branch %q...", len(repositories), baseBranch)
	for _, repository := range repositories {
		if err := ctx.Err(); err != nil {
			return err
		}

		pulls, err := a.drain(ctx, repository, baseBranch)
		if err != nil {
			if !a.continueOnError {
				return err
			}
			a.logger.Printf("Usecase: Skipping %s: %v", repository, err)
			fmt.Fprintf(a.diagnostics, "Skipping %s: %v\n", repository, err)
			a.failures = append(a.failures, domain.RepositoryFailure{Repository: repository, Err: err})
			continue
		}

		for _, pr := range pulls {
			a.Fold(repository, pr)
		}
		a.repositoryCounts = append(a.repositoryCounts, len(pulls))
	}
	a.logger.Println("Usecase: Aggregation complete.")
	return nil
}

// drain reads the whole pull request sequence of one repository.
func (a *Aggregator) drain(ctx context.Context, repository, baseBranch string) ([]domain.PullRequest, error) {
	fmt.Fprintf(a.diagnostics, "----- Merged Pull Requests for %s -----\n", repository)

	var pulls []domain.PullRequest
	for pr, err := range a.lister.ListMergedPullRequests(ctx, repository, baseBranch) {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprintf(a.diagnostics, "PR #%d: %s by %s (Created at: %s)\n", pr.Number, pr.Title, pr.AuthorLogin, pr.CreatedAt.Format(time.DateTime))
		pulls = append(pulls, pr)
	}

	fmt.Fprintf(a.diagnostics, "Total merged PRs in %s: %d\n", repository, len(pulls))
	fmt.Fprint(a.diagnostics, "--------------------------------------------------\n\n")
	return pulls, nil
}

// Contributors returns every contributor exactly once, sorted by login.
func (a *Aggregator) Contributors() []*domain.Contributor {
	contributors := make([]*domain.Contributor, 0, len(a.contributors))
	for _, contributor := range a.contributors {
		contributors = append(contributors, contributor)
	}
	sort.Slice(contributors, func(i, j int) bool {
		return contributors[i].Login < contributors[j].Login
	})
	return contributors
}

// Failures returns the repositories skipped because their forge request failed.
func (a *Aggregator) Failures() []domain.RepositoryFailure {
	return a.failures
}
