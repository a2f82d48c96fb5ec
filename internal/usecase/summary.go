package usecase

import (
	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/github-osrcp/internal/domain"
)

// Summary returns the run-wide counters. Skipped repositories count as processed.
func (a *Aggregator) Summary() domain.RunSummary {
	perContributor := make([]int, 0, len(a.contributors))
	for _, contributor := range a.contributors {
		perContributor = append(perContributor, contributor.PullRequests)
	}

	return domain.RunSummary{
		Repositories:                     len(a.repositoryCounts) + len(a.failures),
		MergedPullRequests:               a.mergedPullRequests,
		Contributors:                     len(a.contributors),
		FailedRepositories:               len(a.failures),
		MeanPullRequestsPerRepository:    mean(a.repositoryCounts),
		MedianPullRequestsPerContributor: median(perContributor),
	}
}

// mean and median report 0 for empty input.
func mean(values []int) float64 {
	m, err := stats.Mean(stats.LoadRawData(values))
	if err != nil {
		return 0
	}
	return m
}

func median(values []int) float64 {
	m, err := stats.Median(stats.LoadRawData(values))
	if err != nil {
		return 0
	}
	return m
}
