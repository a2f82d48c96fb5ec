package gateway

import (
	"context"
	"fmt"
	"iter"
	"log"
	"net/http"

	"github.com/shurcooL/githubv4"

	"github.com/naka-gawa/github-osrcp/internal/domain"
)

// GraphQLGateway lists merged pull requests through the GitHub GraphQL API.
// Author emails come with the pull requests, so no extra lookups are needed.
type GraphQLGateway struct {
	graphqlClient *githubv4.Client
	logger        *log.Logger
	authenticated bool
}

// mergedPullRequestsQuery pages through a repository's merged pull requests, oldest first.
type mergedPullRequestsQuery struct {
	Repository struct {
		PullRequests struct {
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
			Nodes []struct {
				Number    int
				Title     string
				CreatedAt githubv4.DateTime
				MergedAt  githubv4.DateTime
				Author    struct {
					Login string
					User  struct {
						Email string
					} `graphql:"... on User"`
				}
			}
		} `graphql:"pullRequests(states: MERGED, baseRefName: $base, first: 100, after: $cursor, orderBy: {field: CREATED_AT, direction: ASC})"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

func newGraphQLGateway(httpClient *http.Client, opts Options, logger *log.Logger) *GraphQLGateway {
	client := githubv4.NewClient(httpClient)
	if opts.GraphQLURL != "" {
		client = githubv4.NewEnterpriseClient(opts.GraphQLURL, httpClient)
	}
	return &GraphQLGateway{
		graphqlClient: client,
		logger:        logger,
		authenticated: opts.Token != "",
	}
}

// ListMergedPullRequests implements PullRequestLister.
func (g *GraphQLGateway) ListMergedPullRequests(ctx context.Context, repository, baseBranch string) iter.Seq2[domain.PullRequest, error] {
	if !g.authenticated {
		return fail(errMissingToken(repository))
	}
	owner, name, err := splitRepository(repository)
	if err != nil {
		return fail(err)
	}

	return func(yield func(domain.PullRequest, error) bool) {
		variables := map[string]interface{}{
			"owner":  githubv4.String(owner),
			"name":   githubv4.String(name),
			"base":   githubv4.String(baseBranch),
			"cursor": (*githubv4.String)(nil),
		}
		for {
			var q mergedPullRequestsQuery
			if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
				yield(domain.PullRequest{}, fmt.Errorf("%w: failed to query merged pull requests for %s: %w", domain.ErrForgeRequest, repository, err))
				return
			}

			for _, node := range q.Repository.PullRequests.Nodes {
				login := node.Author.Login
				if login == "" {
					login = domain.GhostLogin
				}
				record := domain.PullRequest{
					Number:      node.Number,
					Title:       node.Title,
					AuthorLogin: login,
					AuthorEmail: node.Author.User.Email,
					CreatedAt:   node.CreatedAt.Time,
					MergedAt:    node.MergedAt.Time,
				}
				if !yield(record, nil) {
					return
				}
			}

			if !q.Repository.PullRequests.PageInfo.HasNextPage {
				break
			}
			variables["cursor"] = githubv4.NewString(q.Repository.PullRequests.PageInfo.EndCursor)
			g.logger.Printf("  Fetching next page of pull requests for %s...", repository)
		}
	}
}
