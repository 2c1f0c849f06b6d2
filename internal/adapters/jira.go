package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orgpulse/maturity-meter/internal/resilience"
	"github.com/orgpulse/maturity-meter/internal/types"
)

// JiraSprintStats is the sprint summary returned by the issue tracker.
type JiraSprintStats struct {
	CommittedPoints  float64 `json:"committed_points"`
	CompletedPoints  float64 `json:"completed_points"`
	IssuesCreated    int     `json:"issues_created"`
	IssuesResolved   int     `json:"issues_resolved"`
	AvgCycleTimeDays float64 `json:"avg_cycle_time_days"`
	BacklogAgeDays   float64 `json:"backlog_age_days"`
}

// JiraAdapter computes issue-tracker KPIs for one project.
type JiraAdapter struct {
	client *apiClient
}

// NewJiraAdapter creates a new Jira adapter.
func NewJiraAdapter(baseURL, token string) *JiraAdapter {
	return &JiraAdapter{
		client: newAPIClient(baseURL, token, 20*time.Second),
	}
}

// Name returns the source tool name used in KPI definitions.
func (a *JiraAdapter) Name() string {
	return "jira"
}

// Breaker exposes the adapter's circuit breaker.
func (a *JiraAdapter) Breaker() *resilience.CircuitBreaker {
	return a.client.Breaker()
}

// ComputeKpis fetches the project's sprint summary and derives a maturity
// value per requested KPI. KPIs this tool does not know come back with an
// absent value rather than an error.
func (a *JiraAdapter) ComputeKpis(ctx context.Context, project types.ProjectRef, kpis []types.KpiDef) ([]types.KpiResult, error) {
	var stats JiraSprintStats
	path := fmt.Sprintf("/rest/api/2/project/%s/sprint-stats", project.NodeID)
	if err := a.client.getJSON(ctx, path, &stats); err != nil {
		return nil, fmt.Errorf("failed to fetch sprint stats: %w", err)
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

func (a *JiraAdapter) maturityFor(kpi types.KpiDef, stats JiraSprintStats) *float64 {
	switch strings.ToLower(kpi.Name) {
	case "sprint_predictability":
		if stats.CommittedPoints <= 0 {
			return nil
		}
		return types.Maturity(ratioMaturity(stats.CompletedPoints / stats.CommittedPoints))
	case "issue_resolution_rate":
		if stats.IssuesCreated <= 0 {
			return nil
		}
		return types.Maturity(ratioMaturity(float64(stats.IssuesResolved) / float64(stats.IssuesCreated)))
	case "cycle_time":
		// 2 days or less is top maturity, 12+ days bottoms out
		return types.Maturity(clampMaturity(5 - (stats.AvgCycleTimeDays-2)/2))
	case "backlog_health":
		return types.Maturity(clampMaturity(5 - stats.BacklogAgeDays/30))
	default:
		return nil
	}
}
