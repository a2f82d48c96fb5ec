// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"iter"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"golang.org/x/oauth2"

	"github.com/naka-gawa/github-osrcp/internal/domain"
)

// API names accepted by New.
const (
	APIREST    = "rest"
	APIGraphQL = "graphql"
)

// PullRequestLister lists the merged pull requests of a repository.
//
// The returned sequence is lazy, finite and not restartable. Pull requests are
// yielded in creation order. A failure is yielded once as an error wrapping
// domain.ErrForgeRequest and ends the sequence.
type PullRequestLister interface {
	ListMergedPullRequests(ctx context.Context, repository, baseBranch string) iter.Seq2[domain.PullRequest, error]
}

// Options configures a gateway.
type Options struct {
	Token string
	API   string
	// APIURL and GraphQLURL point the clients at a GitHub Enterprise host when set.
	APIURL            string
	GraphQLURL        string
	LookupConcurrency int
}

// New creates the gateway selected by opts.API.
func New(opts Options, logger *log.Logger) (PullRequestLister, error) {
	httpClient, err := newHTTPClient(opts.Token)
	if err != nil {
		return nil, err
	}
	switch opts.API {
	case APIREST, "":
		return newRESTGateway(httpClient, opts, logger)
	case APIGraphQL:
		return newGraphQLGateway(httpClient, opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown api %q", opts.API)
	}
}

// newHTTPClient authenticates requests with the token and waits out secondary rate limits.
func newHTTPClient(token string) (*http.Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}, nil
}

// splitRepository splits an owner/name identifier.
func splitRepository(repository string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: invalid repository identifier %q, expected owner/name", domain.ErrForgeRequest, repository)
	}
	return owner, name, nil
}

func errMissingToken(repository string) error {
	return fmt.Errorf("%w: %s: authentication token is not set (GITHUB_AUTH_TOKEN)", domain.ErrForgeRequest, repository)
}

// fail returns a sequence that yields err and stops.
func fail(err error) iter.Seq2[domain.PullRequest, error] {
	return func(yield func(domain.PullRequest, error) bool) {
		yield(domain.PullRequest{}, err)
	}
}
