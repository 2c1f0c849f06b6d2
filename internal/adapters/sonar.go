package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orgpulse/maturity-meter/internal/resilience"
	"github.com/orgpulse/maturity-meter/internal/types"
)

// SonarMeasures is the code-quality snapshot for one project key.
type SonarMeasures struct {
	Coverage         float64 `json:"coverage"`
	DuplicatedLines  float64 `json:"duplicated_lines_density"`
	CodeSmells       int     `json:"code_smells"`
	Bugs             int     `json:"bugs"`
	Vulnerabilities  int     `json:"vulnerabilities"`
	LinesOfCode      int     `json:"ncloc"`
	TechnicalDebtMin float64 `json:"sqale_index"`
}

// SonarAdapter computes code-quality KPIs for one project.
type SonarAdapter struct {
	client *apiClient
}

// NewSonarAdapter creates a new Sonar adapter.
func NewSonarAdapter(baseURL, token string) *SonarAdapter {
	return &SonarAdapter{
		client: newAPIClient(baseURL, token, 20*time.Second),
	}
}

// Name returns the source tool name used in KPI definitions.
func (a *SonarAdapter) Name() string {
	return "sonar"
}

// Breaker exposes the adapter's circuit breaker.
func (a *SonarAdapter) Breaker() *resilience.CircuitBreaker {
	return a.client.Breaker()
}

// ComputeKpis fetches the project's quality measures and derives a
// maturity value per requested KPI.
func (a *SonarAdapter) ComputeKpis(ctx context.Context, project types.ProjectRef, kpis []types.KpiDef) ([]types.KpiResult, error) {
	var measures SonarMeasures
	path := fmt.Sprintf("/api/measures/component?component=%s", project.NodeID)
	if err := a.client.getJSON(ctx, path, &measures); err != nil {
		return nil, fmt.Errorf("failed to fetch quality measures: %w", err)
	}

	results := make([]types.KpiResult, 0, len(kpis))
	for _, kpi := range kpis {
		results = append(results, types.KpiResult{
			KpiID:         kpi.KpiID,
			MaturityValue: a.maturityFor(kpi, measures),
		})
	}
	return results, nil
}

func (a *SonarAdapter) maturityFor(kpi types.KpiDef, m SonarMeasures) *float64 {
	switch strings.ToLower(kpi.Name) {
	case "test_coverage":
		return types.Maturity(ratioMaturity(m.Coverage / 100))
	case "duplication":
		return types.Maturity(clampMaturity(5 - m.DuplicatedLines/4))
	case "defect_density":
		if m.LinesOfCode <= 0 {
			return nil
		}
		perKloc := float64(m.Bugs+m.Vulnerabilities) / (float64(m.LinesOfCode) / 1000)
		return types.Maturity(clampMaturity(5 - perKloc))
	case "maintainability":
		if m.LinesOfCode <= 0 {
			return nil
		}
		debtRatio := m.TechnicalDebtMin / float64(m.LinesOfCode)
		return types.Maturity(clampMaturity(5 - debtRatio*10))
	default:
		return nil
	}
}
