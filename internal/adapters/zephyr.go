package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orgpulse/maturity-meter/internal/resilience"
	"github.com/orgpulse/maturity-meter/internal/types"
)

// ZephyrExecutionStats is the test-management summary for one project.
type ZephyrExecutionStats struct {
	TotalCases     int `json:"total_cases"`
	ExecutedCases  int `json:"executed_cases"`
	PassedCases    int `json:"passed_cases"`
	AutomatedCases int `json:"automated_cases"`
}

// ZephyrAdapter computes test-management KPIs for one project.
type ZephyrAdapter struct {
	client *apiClient
}

// NewZephyrAdapter creates a new Zephyr adapter.
func NewZephyrAdapter(baseURL, token string) *ZephyrAdapter {
	return &ZephyrAdapter{
		client: newAPIClient(baseURL, token, 20*time.Second),
	}
}

// Name returns the source tool name used in KPI definitions.
func (a *ZephyrAdapter) Name() string {
	return "zephyr"
}

// Breaker exposes the adapter's circuit breaker.
func (a *ZephyrAdapter) Breaker() *resilience.CircuitBreaker {
	return a.client.Breaker()
}

// ComputeKpis fetches the project's test execution summary and derives a
// maturity value per requested KPI.
func (a *ZephyrAdapter) ComputeKpis(ctx context.Context, project types.ProjectRef, kpis []types.KpiDef) ([]types.KpiResult, error) {
	var stats ZephyrExecutionStats
	path := fmt.Sprintf("/public/rest/api/1.0/cycles/%s/executions", project.NodeID)
	if err := a.client.getJSON(ctx, path, &stats); err != nil {
		return nil, fmt.Errorf("failed to fetch execution stats: %w", err)
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

func (a *ZephyrAdapter) maturityFor(kpi types.KpiDef, stats ZephyrExecutionStats) *float64 {
	switch strings.ToLower(kpi.Name) {
	case "test_execution_rate":
		if stats.TotalCases <= 0 {
			return nil
		}
		return types.Maturity(ratioMaturity(float64(stats.ExecutedCases) / float64(stats.TotalCases)))
	case "test_pass_rate":
		if stats.ExecutedCases <= 0 {
			return nil
		}
		return types.Maturity(ratioMaturity(float64(stats.PassedCases) / float64(stats.ExecutedCases)))
	case "automation_coverage":
		if stats.TotalCases <= 0 {
			return nil
		}
		return types.Maturity(ratioMaturity(float64(stats.AutomatedCases) / float64(stats.TotalCases)))
	default:
		return nil
	}
}
