package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orgpulse/maturity-meter/internal/resilience"
	"github.com/orgpulse/maturity-meter/internal/types"
)

// JenkinsBuildStats is the CI summary for one project's pipelines.
type JenkinsBuildStats struct {
	TotalBuilds        int     `json:"total_builds"`
	SuccessfulBuilds   int     `json:"successful_builds"`
	AvgBuildTimeMin    float64 `json:"avg_build_time_min"`
	DeploysPerWeek     float64 `json:"deploys_per_week"`
	MeanTimeToRecovery float64 `json:"mttr_hours"`
}

// JenkinsAdapter computes CI and DORA KPIs for one project.
type JenkinsAdapter struct {
	client *apiClient
}

// NewJenkinsAdapter creates a new Jenkins adapter.
func NewJenkinsAdapter(baseURL, token string) *JenkinsAdapter {
	return &JenkinsAdapter{
		client: newAPIClient(baseURL, token, 20*time.Second),
	}
}

// Name returns the source tool name used in KPI definitions.
func (a *JenkinsAdapter) Name() string {
	return "jenkins"
}

// Breaker exposes the adapter's circuit breaker.
func (a *JenkinsAdapter) Breaker() *resilience.CircuitBreaker {
	return a.client.Breaker()
}

// ComputeKpis fetches the project's build statistics and derives a
// maturity value per requested KPI.
func (a *JenkinsAdapter) ComputeKpis(ctx context.Context, project types.ProjectRef, kpis []types.KpiDef) ([]types.KpiResult, error) {
	var stats JenkinsBuildStats
	path := fmt.Sprintf("/job/%s/api/json?tree=builds", project.NodeID)
	if err := a.client.getJSON(ctx, path, &stats); err != nil {
		return nil, fmt.Errorf("failed to fetch build stats: %w", err)
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

func (a *JenkinsAdapter) maturityFor(kpi types.KpiDef, stats JenkinsBuildStats) *float64 {
	switch strings.ToLower(kpi.Name) {
	case "build_success_rate":
		if stats.TotalBuilds <= 0 {
			return nil
		}
		return types.Maturity(ratioMaturity(float64(stats.SuccessfulBuilds) / float64(stats.TotalBuilds)))
	case "build_duration":
		// Under 5 minutes is top maturity, an hour or more bottoms out
		return types.Maturity(clampMaturity(5 - (stats.AvgBuildTimeMin-5)/11))
	case "deployment_frequency":
		// Daily deploys (7/week) map to top maturity
		return types.Maturity(ratioMaturity(stats.DeploysPerWeek / 7))
	case "mttr":
		return types.Maturity(clampMaturity(5 - stats.MeanTimeToRecovery/5))
	default:
		return nil
	}
}
