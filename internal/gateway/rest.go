package gateway

import (
	"context"
	"fmt"
	"iter"
	"log"
	"net/http"

	"github.com/google/go-github/v62/github"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-osrcp/internal/domain"
)

// RESTGateway lists merged pull requests through the GitHub REST API.
type RESTGateway struct {
	restClient        *github.Client
	logger            *log.Logger
	authenticated     bool
	lookupConcurrency int
	// emails caches author emails by login for the lifetime of the gateway.
	emails map[string]string
}

func newRESTGateway(httpClient *http.Client, opts Options, logger *log.Logger) (*RESTGateway, error) {
	client := github.NewClient(httpClient)
	if opts.APIURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(opts.APIURL, opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("invalid api url %q: %w", opts.APIURL, err)
		}
	}
	return &RESTGateway{
		restClient:        client,
		logger:            logger,
		authenticated:     opts.Token != "",
		lookupConcurrency: max(opts.LookupConcurrency, 1),
		emails:            make(map[string]string),
	}, nil
}

// ListMergedPullRequests implements PullRequestLister.
// The list endpoint does not carry author emails, so every new author is looked up once.
func (g *RESTGateway) ListMergedPullRequests(ctx context.Context, repository, baseBranch string) iter.Seq2[domain.PullRequest, error] {
	if !g.authenticated {
		return fail(errMissingToken(repository))
	}
	owner, name, err := splitRepository(repository)
	if err != nil {
		return fail(err)
	}

	return func(yield func(domain.PullRequest, error) bool) {
		opts := &github.PullRequestListOptions{
			State:       "closed",
			Base:        baseBranch,
			Sort:        "created",
			Direction:   "asc",
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			pulls, resp, err := g.restClient.PullRequests.List(ctx, owner, name, opts)
			if err != nil {
				yield(domain.PullRequest{}, fmt.Errorf("%w: failed to list pull requests for %s: %w", domain.ErrForgeRequest, repository, err))
				return
			}

			merged := make([]*github.PullRequest, 0, len(pulls))
			for _, pr := range pulls {
				if pr.MergedAt != nil {
					merged = append(merged, pr)
				}
			}
			if err := g.resolveEmails(ctx, merged); err != nil {
				yield(domain.PullRequest{}, fmt.Errorf("%w: %s: %w", domain.ErrForgeRequest, repository, err))
				return
			}

			for _, pr := range merged {
				login := authorLogin(pr)
				record := domain.PullRequest{
					Number:      pr.GetNumber(),
					Title:       pr.GetTitle(),
					AuthorLogin: login,
					AuthorEmail: g.emails[login],
					CreatedAt:   pr.GetCreatedAt().Time,
					MergedAt:    pr.GetMergedAt().Time,
				}
				if !yield(record, nil) {
					return
				}
			}

			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
			g.logger.Printf("  Fetching next page of pull requests for %s...", repository)
		}
	}
}

// resolveEmails fills the email cache for authors of pulls not seen before.
func (g *RESTGateway) resolveEmails(ctx context.Context, pulls []*github.PullRequest) error {
	var pending []string
	queued := make(map[string]bool)
	for _, pr := range pulls {
		login := authorLogin(pr)
		if login == domain.GhostLogin || queued[login] {
			continue
		}
		if _, ok := g.emails[login]; ok {
			continue
		}
		queued[login] = true
		pending = append(pending, login)
	}
	if len(pending) == 0 {
		return nil
	}

	emails := make([]string, len(pending))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.lookupConcurrency)
	for i, login := range pending {
		eg.Go(func() error {
			user, _, err := g.restClient.Users.Get(egCtx, login)
			if err != nil {
				return fmt.Errorf("failed to get user %s: %w", login, err)
			}
			emails[i] = user.GetEmail()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, login := range pending {
		g.emails[login] = emails[i]
	}
	g.logger.Printf("  Resolved %d author profiles.", len(pending))
	return nil
}

func authorLogin(pr *github.PullRequest) string {
	if login := pr.GetUser().GetLogin(); login != "" {
		return login
	}
	return domain.GhostLogin
}
