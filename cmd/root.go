// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/naka-gawa/github-osrcp/internal/config"
	"github.com/naka-gawa/github-osrcp/internal/domain"
)

// NewRootCmd builds the github-osrcp command with its own configuration instance.
func NewRootCmd() *cobra.Command {
	v := config.New()

	rootCmd := &cobra.Command{
		Use:   "github-osrcp [<repos.csv>]",
		Short: "Extract unique contributors from merged pull requests across GitHub repositories.",
		Long: `github-osrcp reads a CSV file of GitHub repositories (one 'owner/repo' per line),
fetches every merged pull request on the base branch of each repository, and writes
the unique contributors' usernames, profile URLs and emails to a report file.

If no file is given, repos.csv in the current directory is used.
Requires a GitHub personal access token in the GITHUB_AUTH_TOKEN environment
variable (GITHUB_TOKEN is accepted as well); a .env file is loaded if present.`,
		Example: `  github-osrcp
  github-osrcp repos.csv -v
  github-osrcp repos.csv -o reports/
  github-osrcp repos.csv --api graphql --format json -o contributors.json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("%w: accepts at most one repository list, received %d arguments", domain.ErrUsage, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContributors(cmd, args, v)
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", domain.ErrUsage, err)
	})

	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print merged pull request details for each repository")

	flags := rootCmd.Flags()
	flags.StringP("output", "o", "", "Output file or directory for the contributors report (default ./contributors.<format>)")
	flags.StringP("base", "b", "main", "Base branch merged pull requests must target")
	flags.String("api", "rest", "GitHub API to query: rest or graphql")
	flags.String("format", "csv", "Report format: csv, json or yaml")
	flags.Bool("with-contributions", false, "Add the contributed repositories to every report row")
	flags.Bool("continue-on-error", false, "Skip repositories that cannot be fetched instead of aborting the run")
	flags.Int("lookup-concurrency", 1, "Number of parallel author profile lookups (rest api only)")

	bindFlags(v, rootCmd)
	return rootCmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	bindings := map[string]string{
		config.KeyVerbose:           "verbose",
		config.KeyOutput:            "output",
		config.KeyBaseBranch:        "base",
		config.KeyAPI:               "api",
		config.KeyFormat:            "format",
		config.KeyWithContributions: "with-contributions",
		config.KeyContinueOnError:   "continue-on-error",
		config.KeyLookupConcurrency: "lookup-concurrency",
	}
	for key, name := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("bind flag %q to %q: %v", name, key, err))
		}
	}
}

// Execute runs the root command and exits non-zero on failure.
// This is called by main.main(). It only needs to happen once.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
