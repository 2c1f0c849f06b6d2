package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orgpulse/maturity-meter/internal/resilience"
	"github.com/orgpulse/maturity-meter/internal/types"
)

// BitbucketRepoStats is the source-control activity summary for one project.
type BitbucketRepoStats struct {
	OpenPullRequests   int     `json:"open_pull_requests"`
	MergedPullRequests int     `json:"merged_pull_requests"`
	AvgReviewTimeHours float64 `json:"avg_review_time_hours"`
	CommitsPerWeek     float64 `json:"commits_per_week"`
	ReviewedMergeCount int     `json:"reviewed_merge_count"`
}

// BitbucketAdapter computes source-control KPIs for one project.
type BitbucketAdapter struct {
	client *apiClient
}

// NewBitbucketAdapter creates a new Bitbucket adapter.
func NewBitbucketAdapter(baseURL, token string) *BitbucketAdapter {
	return &BitbucketAdapter{
		client: newAPIClient(baseURL, token, 20*time.Second),
	}
}

// Name returns the source tool name used in KPI definitions.
func (a *BitbucketAdapter) Name() string {
	return "bitbucket"
}

// Breaker exposes the adapter's circuit breaker.
func (a *BitbucketAdapter) Breaker() *resilience.CircuitBreaker {
	return a.client.Breaker()
}

// ComputeKpis fetches the project's repository activity and derives a
// maturity value per requested KPI.
func (a *BitbucketAdapter) ComputeKpis(ctx context.Context, project types.ProjectRef, kpis []types.KpiDef) ([]types.KpiResult, error) {
	var stats BitbucketRepoStats
	path := fmt.Sprintf("/2.0/repositories/%s/activity-summary", project.NodeID)
	if err := a.client.getJSON(ctx, path, &stats); err != nil {
		return nil, fmt.Errorf("failed to fetch repository activity: %w", err)
	}

	results := make([]types.KpiResult, 0, len(kpis))
	for _, kpi := range kpis {
		results = append(results, types.KpiResult{
			KpiID:         kpi.KpiID,
			MaturityValue: a.maturityFor(kpi, stats),
		})
	}
	return results, nil
}

func (a *BitbucketAdapter) maturityFor(kpi types.KpiDef, stats BitbucketRepoStats) *float64 {
	switch strings.ToLower(kpi.Name) {
	case "review_turnaround":
		// Same-day reviews are top maturity, 3+ days bottoms out
		return types.Maturity(clampMaturity(5 - (stats.AvgReviewTimeHours-8)/13))
	case "review_coverage":
		if stats.MergedPullRequests <= 0 {
			return nil
		}
		return types.Maturity(ratioMaturity(float64(stats.ReviewedMergeCount) / float64(stats.MergedPullRequests)))
	case "commit_frequency":
		// Two commits per working day map to top maturity
		return types.Maturity(ratioMaturity(stats.CommitsPerWeek / 10))
	case "pr_backlog":
		return types.Maturity(clampMaturity(5 - float64(stats.OpenPullRequests)/4))
	default:
		return nil
	}
}
