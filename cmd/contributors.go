package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/naka-gawa/github-osrcp/internal/config"
	"github.com/naka-gawa/github-osrcp/internal/domain"
	"github.com/naka-gawa/github-osrcp/internal/gateway"
	"github.com/naka-gawa/github-osrcp/internal/repolist"
	"github.com/naka-gawa/github-osrcp/internal/usecase"
)

// defaultInput is read when no repository list is given.
const defaultInput = "repos.csv"

// Replaced in tests.
var (
	loadDotEnv = func() error { return godotenv.Load() }
	newLister  = gateway.New
)

func runContributors(cmd *cobra.Command, args []string, v *viper.Viper) error {
	cmd.SilenceUsage = true

	// Load .env file (ignore error if file doesn't exist)
	_ = loadDotEnv()

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
	if cfg.Verbose {
		logger.SetOutput(cmd.ErrOrStderr()) // If verbose, log to standard error.
	}

	inputPath, err := resolveInput(args)
	if err != nil {
		return err
	}
	repositories, err := repolist.Load(inputPath)
	if err != nil {
		return err
	}
	logger.Printf("Loaded %d repositories from %s", len(repositories), inputPath)

	lister, err := newLister(cfg.GatewayOptions(), logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub gateway: %w", err)
	}

	opts := []usecase.Option{usecase.WithContinueOnError(cfg.ContinueOnError)}
	if cfg.Verbose {
		opts = append(opts, usecase.WithDiagnostics(out))
	}
	aggregator := usecase.NewAggregator(lister, logger, opts...)
	if err := aggregator.ForEachRepository(cmd.Context(), repositories, cfg.BaseBranch); err != nil {
		return err
	}

	written, err := cfg.ReportWriter().Write(cfg.Output, aggregator.Contributors())
	if err != nil {
		return err
	}
	if cfg.Verbose {
		fmt.Fprintf(out, "Contributors have been written to %s\n", written)
	}

	printSummary(out, aggregator.Summary(), aggregator.Failures(), cfg.Verbose)
	return nil
}

// resolveInput returns the repository list path, falling back to repos.csv.
func resolveInput(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if _, err := os.Stat(defaultInput); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: no CSV file provided and '%s' not found in the current directory", domain.ErrInputNotFound, defaultInput)
	}
	return defaultInput, nil
}

func printSummary(out io.Writer, summary domain.RunSummary, failures []domain.RepositoryFailure, verbose bool) {
	fmt.Fprintln(out, "----- Summary -----")
	fmt.Fprintf(out, "Total repositories processed: %d\n", summary.Repositories)
	fmt.Fprintf(out, "Total merged pull requests: %d\n", summary.MergedPullRequests)
	fmt.Fprintf(out, "Unique contributors: %d\n", summary.Contributors)
	if summary.FailedRepositories > 0 {
		fmt.Fprintf(out, "Failed repositories: %d\n", summary.FailedRepositories)
		for _, failure := range failures {
			fmt.Fprintf(out, "  %s: %v\n", failure.Repository, failure.Err)
		}
	}
	if verbose {
		fmt.Fprintf(out, "Mean merged pull requests per repository: %.2f\n", summary.MeanPullRequestsPerRepository)
		fmt.Fprintf(out, "Median merged pull requests per contributor: %.2f\n", summary.MedianPullRequestsPerContributor)
	}
}
