package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/orgpulse/maturity-meter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jiraServer(t *testing.T, stats JiraSprintStats) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/project/P1/sprint-stats", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestJiraAdapter_ComputeKpis(t *testing.T) {
	server := jiraServer(t, JiraSprintStats{
		CommittedPoints:  40,
		CompletedPoints:  30,
		IssuesCreated:    20,
		IssuesResolved:   10,
		AvgCycleTimeDays: 4,
		BacklogAgeDays:   30,
	})
	adapter := NewJiraAdapter(server.URL, "test-token")
	assert.Equal(t, "jira", adapter.Name())

	kpis := []types.KpiDef{
		{KpiID: "k1", Name: "sprint_predictability", Board: "Speed"},
		{KpiID: "k2", Name: "issue_resolution_rate", Board: "Speed"},
		{KpiID: "k3", Name: "cycle_time", Board: "Speed"},
		{KpiID: "k4", Name: "backlog_health", Board: "Value"},
		{KpiID: "k5", Name: "unknown_metric", Board: "Value"},
	}

	results, err := adapter.ComputeKpis(context.Background(), types.ProjectRef{NodeID: "P1"}, kpis)

	require.NoError(t, err)
	require.Len(t, results, 5)

	byID := make(map[string]types.KpiResult, len(results))
	for _, res := range results {
		byID[res.KpiID] = res
	}

	// 30/40 completed, scaled to the 0..5 band
	require.NotNil(t, byID["k1"].MaturityValue)
	assert.InDelta(t, 3.75, *byID["k1"].MaturityValue, 1e-9)

	// 10/20 resolved
	require.NotNil(t, byID["k2"].MaturityValue)
	assert.InDelta(t, 2.5, *byID["k2"].MaturityValue, 1e-9)

	// 4 days cycle time: 5 - (4-2)/2 = 4
	require.NotNil(t, byID["k3"].MaturityValue)
	assert.InDelta(t, 4.0, *byID["k3"].MaturityValue, 1e-9)

	// 30 days backlog age: 5 - 30/30 = 4
	require.NotNil(t, byID["k4"].MaturityValue)
	assert.InDelta(t, 4.0, *byID["k4"].MaturityValue, 1e-9)

	// Unknown KPI names come back valueless, not as errors
	assert.Nil(t, byID["k5"].MaturityValue)
}

func TestJiraAdapter_ZeroDenominators(t *testing.T) {
	server := jiraServer(t, JiraSprintStats{})
	adapter := NewJiraAdapter(server.URL, "test-token")

	kpis := []types.KpiDef{
		{KpiID: "k1", Name: "sprint_predictability"},
		{KpiID: "k2", Name: "issue_resolution_rate"},
	}

	results, err := adapter.ComputeKpis(context.Background(), types.ProjectRef{NodeID: "P1"}, kpis)

	require.NoError(t, err)
	for _, res := range results {
		assert.Nil(t, res.MaturityValue, "zero denominators must yield no value for %s", res.KpiID)
	}
}

func TestJiraAdapter_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)
	adapter := NewJiraAdapter(server.URL, "bad-token")

	_, err := adapter.ComputeKpis(context.Background(), types.ProjectRef{NodeID: "P1"},
		[]types.KpiDef{{KpiID: "k1", Name: "cycle_time"}})

	assert.Error(t, err)
}

func TestClampMaturity(t *testing.T) {
	assert.Equal(t, 0.0, clampMaturity(-1))
	assert.Equal(t, 2.5, clampMaturity(2.5))
	assert.Equal(t, 5.0, clampMaturity(7))
}

func TestRatioMaturity(t *testing.T) {
	assert.Equal(t, 0.0, ratioMaturity(0))
	assert.Equal(t, 2.5, ratioMaturity(0.5))
	assert.Equal(t, 5.0, ratioMaturity(1.2), "ratios above 1 are clamped")
}
