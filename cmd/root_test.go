package cmd

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-osrcp/internal/config"
	"github.com/naka-gawa/github-osrcp/internal/domain"
	"github.com/naka-gawa/github-osrcp/internal/gateway"
)

// fakeLister serves canned pull requests per repository.
type fakeLister struct {
	pulls  map[string][]domain.PullRequest
	errs   map[string]error
	calls  []string
	branch string
}

func (f *fakeLister) ListMergedPullRequests(ctx context.Context, repository, baseBranch string) iter.Seq2[domain.PullRequest, error] {
	f.calls = append(f.calls, repository)
	f.branch = baseBranch
	return func(yield func(domain.PullRequest, error) bool) {
		if err, ok := f.errs[repository]; ok {
			yield(domain.PullRequest{}, err)
			return
		}
		for _, pr := range f.pulls[repository] {
			if !yield(pr, nil) {
				return
			}
		}
	}
}

// setup replaces the gateway constructor and returns a command writing to out.
func setup(t *testing.T, lister *fakeLister, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	for _, key := range []string{"GITHUB_AUTH_TOKEN", "GITHUB_TOKEN", "OSRCP_BASE_BRANCH", "OSRCP_PROFILE_BASE_URL"} {
		t.Setenv(key, "")
	}

	origLoad, origNew := loadDotEnv, newLister
	t.Cleanup(func() { loadDotEnv, newLister = origLoad, origNew })
	loadDotEnv = func() error { return nil }
	newLister = func(opts gateway.Options, logger *log.Logger) (gateway.PullRequestLister, error) {
		return lister, nil
	}

	var out bytes.Buffer
	rootCmd := NewRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return &out, err
}

func writeRepos(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "repos.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func pr(number int, login, email string) domain.PullRequest {
	return domain.PullRequest{Number: number, Title: fmt.Sprintf("change %d", number), AuthorLogin: login, AuthorEmail: email}
}

func summary(repos, pulls, contributors int) string {
	return fmt.Sprintf("----- Summary -----\nTotal repositories processed: %d\nTotal merged pull requests: %d\nUnique contributors: %d\n", repos, pulls, contributors)
}

func TestRootCmd_EmptyRepositoryList(t *testing.T) {
	dir := t.TempDir()
	input := writeRepos(t, dir, "")
	output := filepath.Join(dir, "contributors.csv")

	out, err := setup(t, &fakeLister{}, input, "-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "username,profile_url,email\n", string(data))
	assert.Equal(t, summary(0, 0, 0), out.String())
}

func TestRootCmd_OneRepository(t *testing.T) {
	dir := t.TempDir()
	input := writeRepos(t, dir, "octo/alpha\n")
	output := filepath.Join(dir, "contributors.csv")
	lister := &fakeLister{pulls: map[string][]domain.PullRequest{
		"octo/alpha": {pr(1, "alice", "a@x.com"), pr(2, "bob", ""), pr(3, "alice", "a@x.com")},
	}}

	out, err := setup(t, lister, input, "-o", output, "--with-contributions")
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "username,profile_url,email,contributions\n"+
		"alice,https://github.com/alice,a@x.com,octo/alpha\n"+
		"bob,https://github.com/bob,,octo/alpha\n", string(data))
	assert.Equal(t, summary(1, 3, 2), out.String())
	assert.Equal(t, "main", lister.branch)
}

func TestRootCmd_DuplicateRepository(t *testing.T) {
	dir := t.TempDir()
	input := writeRepos(t, dir, "octo/alpha\nocto/alpha\n")
	lister := &fakeLister{pulls: map[string][]domain.PullRequest{
		"octo/alpha": {pr(1, "alice", "a@x.com")},
	}}

	out, err := setup(t, lister, input, "-o", filepath.Join(dir, "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, summary(2, 2, 1), out.String())
	assert.Equal(t, []string{"octo/alpha", "octo/alpha"}, lister.calls)
}

func TestRootCmd_DirectoryOutput(t *testing.T) {
	dir := t.TempDir()
	input := writeRepos(t, dir, "octo/alpha\n")
	reports := filepath.Join(dir, "reports")
	require.NoError(t, os.Mkdir(reports, 0o755))
	lister := &fakeLister{pulls: map[string][]domain.PullRequest{"octo/alpha": {pr(1, "alice", "")}}}

	_, err := setup(t, lister, input, "-o", reports+"/")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(reports, "contributors.csv"))
}

func TestRootCmd_DefaultInput(t *testing.T) {
	t.Run("repos.csv in the working directory", func(t *testing.T) {
		dir := t.TempDir()
		writeRepos(t, dir, "octo/alpha\n")
		t.Chdir(dir)
		lister := &fakeLister{pulls: map[string][]domain.PullRequest{"octo/alpha": {pr(1, "alice", "")}}}

		out, err := setup(t, lister)
		require.NoError(t, err)
		assert.Equal(t, summary(1, 1, 1), out.String())
		assert.FileExists(t, filepath.Join(dir, "contributors.csv"))
	})

	t.Run("missing repos.csv", func(t *testing.T) {
		t.Chdir(t.TempDir())
		lister := &fakeLister{}

		_, err := setup(t, lister)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInputNotFound)
		assert.Empty(t, lister.calls, "no forge requests before the input is read")
	})
}

func TestRootCmd_Verbose(t *testing.T) {
	dir := t.TempDir()
	input := writeRepos(t, dir, "octo/alpha\n")
	output := filepath.Join(dir, "contributors.csv")
	lister := &fakeLister{pulls: map[string][]domain.PullRequest{"octo/alpha": {pr(1, "alice", "")}}}

	out, err := setup(t, lister, input, "-v", "-o", output, "--base", "develop")
	require.NoError(t, err)

	assert.Contains(t, out.String(), "----- Merged Pull Requests for octo/alpha -----")
	assert.Contains(t, out.String(), "PR #1: change 1 by alice")
	assert.Contains(t, out.String(), "Total merged PRs in octo/alpha: 1")
	assert.Contains(t, out.String(), "Contributors have been written to "+output)
	assert.Contains(t, out.String(), "Median merged pull requests per contributor: 1.00")
	assert.Equal(t, "develop", lister.branch)
}

func TestRootCmd_Errors(t *testing.T) {
	t.Run("too many arguments", func(t *testing.T) {
		_, err := setup(t, &fakeLister{}, "a.csv", "b.csv")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUsage)
	})

	t.Run("output flag without a value", func(t *testing.T) {
		_, err := setup(t, &fakeLister{}, "repos.csv", "-o")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUsage)
	})

	t.Run("help has no side effects", func(t *testing.T) {
		lister := &fakeLister{}
		out, err := setup(t, lister, "--help")
		require.NoError(t, err)
		assert.Contains(t, out.String(), "github-osrcp [<repos.csv>]")
		assert.Empty(t, lister.calls)
	})

	t.Run("forge failure aborts before writing", func(t *testing.T) {
		dir := t.TempDir()
		input := writeRepos(t, dir, "octo/alpha\nocto/missing\n")
		output := filepath.Join(dir, "contributors.csv")
		lister := &fakeLister{
			pulls: map[string][]domain.PullRequest{"octo/alpha": {pr(1, "alice", "")}},
			errs:  map[string]error{"octo/missing": fmt.Errorf("%w: octo/missing: 404 Not Found", domain.ErrForgeRequest)},
		}

		_, err := setup(t, lister, input, "-o", output)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrForgeRequest)
		assert.NoFileExists(t, output)
	})

	t.Run("continue on error reports failures", func(t *testing.T) {
		dir := t.TempDir()
		input := writeRepos(t, dir, "octo/alpha\nocto/missing\n")
		lister := &fakeLister{
			pulls: map[string][]domain.PullRequest{"octo/alpha": {pr(1, "alice", "")}},
			errs:  map[string]error{"octo/missing": fmt.Errorf("%w: octo/missing: 404 Not Found", domain.ErrForgeRequest)},
		}

		out, err := setup(t, lister, input, "-o", filepath.Join(dir, "out.csv"), "--continue-on-error")
		require.NoError(t, err)
		assert.Contains(t, out.String(), summary(2, 1, 1))
		assert.Contains(t, out.String(), "Failed repositories: 1")
	})

	t.Run("unwritable output", func(t *testing.T) {
		dir := t.TempDir()
		input := writeRepos(t, dir, "octo/alpha\n")
		lister := &fakeLister{pulls: map[string][]domain.PullRequest{"octo/alpha": {pr(1, "alice", "")}}}

		_, err := setup(t, lister, input, "-o", filepath.Join(dir, "missing")+"/")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrOutputWrite)
	})

	t.Run("invalid api", func(t *testing.T) {
		dir := t.TempDir()
		input := writeRepos(t, dir, "")
		_, err := setup(t, &fakeLister{}, input, "--api", "soap")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid api")
	})
}

func TestRootCmd_DefaultOutputFollowsFormat(t *testing.T) {
	dir := t.TempDir()
	writeRepos(t, dir, "octo/alpha\n")
	t.Chdir(dir)
	lister := &fakeLister{pulls: map[string][]domain.PullRequest{"octo/alpha": {pr(1, "alice", "")}}}

	_, err := setup(t, lister, "--format", "json")
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "contributors.csv"))
	data, err := os.ReadFile(filepath.Join(dir, "contributors.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"username": "alice"`)
}

func TestBindFlags_MissingFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "bare"}
	cmd.Flags().String("output", "", "")

	assert.Panics(t, func() { bindFlags(config.New(), cmd) }, "every config key needs a matching flag")
}
