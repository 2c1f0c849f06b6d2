package maturity

import (
	"context"
	"testing"
	"time"

	"github.com/orgpulse/maturity-meter/internal/collector"
	"github.com/orgpulse/maturity-meter/internal/errors"
	"github.com/orgpulse/maturity-meter/internal/orchestrator"
	"github.com/orgpulse/maturity-meter/internal/scoring"
	"github.com/orgpulse/maturity-meter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	nodes []types.HierarchyNode
	err   error
}

func (f *fakeProvider) GetHierarchy(ctx context.Context, labelName string) ([]types.HierarchyNode, error) {
	return f.nodes, f.err
}

type fakeCategories struct {
	categories []string
	err        error
}

func (f *fakeCategories) ListCategories(ctx context.Context) ([]string, error) {
	return f.categories, f.err
}

type fakeStore struct {
	saved []types.EvaluationSummary
	err   error
}

func (f *fakeStore) SaveEvaluation(ctx context.Context, summary types.EvaluationSummary) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, summary)
	return nil
}

type fakeConfig struct {
	kpis map[string][]types.KpiDef
}

func (f *fakeConfig) ListEnabledKpis(ctx context.Context, projectID string) ([]types.KpiDef, error) {
	kpis, ok := f.kpis[projectID]
	if !ok {
		return nil, errors.NewConfigNotFoundError(projectID)
	}
	return kpis, nil
}

type staticCalculator struct {
	name    string
	results map[string][]types.KpiResult
}

func (s *staticCalculator) Name() string { return s.name }

func (s *staticCalculator) ComputeKpis(ctx context.Context, project types.ProjectRef, kpis []types.KpiDef) ([]types.KpiResult, error) {
	return s.results[project.NodeID], nil
}

func newTestService(t *testing.T, provider *fakeProvider, config *fakeConfig, store *fakeStore, calcs ...collector.Calculator) *Service {
	t.Helper()

	coll := collector.NewCollector(collector.NewRegistry(calcs...), time.Second, nil, nil)
	pool := orchestrator.NewPool(2)
	t.Cleanup(pool.Close)

	orch := orchestrator.New(pool, coll, config, 5*time.Second, nil, nil)
	categories := &fakeCategories{categories: []string{"SPEED", "QUALITY", "VALUE", "DORA"}}

	return NewService(provider, categories, store, orch, scoring.NewScorer(), nil, nil)
}

func speedKpis() []types.KpiDef {
	return []types.KpiDef{
		{KpiID: "k1", Name: "cycle_time", SourceTool: "jira", Board: "Speed", Enabled: true},
	}
}

func TestEvaluate_EndToEnd(t *testing.T) {
	provider := &fakeProvider{nodes: []types.HierarchyNode{
		{NodeID: "ORG", Level: 1},
		{NodeID: "P1", Name: "Project One", Level: 3, ParentID: "ORG"},
	}}
	config := &fakeConfig{kpis: map[string][]types.KpiDef{"P1": speedKpis()}}
	calc := &staticCalculator{
		name: "jira",
		results: map[string][]types.KpiResult{
			"P1": {{KpiID: "k1", MaturityValue: types.Maturity(3.5)}},
		},
	}
	store := &fakeStore{}
	service := newTestService(t, provider, config, store, calc)

	response, err := service.Evaluate(context.Background(), types.EvaluateRequest{
		ScopeNodeID:  "ORG",
		ScopeLevel:   1,
		ProjectLevel: 3,
	})

	require.NoError(t, err)
	assert.True(t, response.Success)
	assert.NotEmpty(t, response.EvaluationID)
	assert.Empty(t, response.Warnings)

	require.Contains(t, response.Projects, "P1")
	assert.Equal(t, 3.5, response.Projects["P1"]["Speed"])

	// Speed board 3.5 under default weights: 3.5 * 25 / 100.
	assert.Equal(t, 0.875, response.Efficiency.Score)
	assert.Equal(t, 17.5, response.Efficiency.Percentage)
	assert.Equal(t, types.HealthRed, response.Efficiency.Health)

	require.Len(t, store.saved, 1)
	assert.Equal(t, response.EvaluationID, store.saved[0].ID)
	assert.Equal(t, 1, store.saved[0].ProjectCount)
}

func TestEvaluate_WeightOverrides(t *testing.T) {
	provider := &fakeProvider{nodes: []types.HierarchyNode{
		{NodeID: "ORG", Level: 1},
		{NodeID: "P1", Level: 3, ParentID: "ORG"},
	}}
	config := &fakeConfig{kpis: map[string][]types.KpiDef{"P1": speedKpis()}}
	calc := &staticCalculator{
		name: "jira",
		results: map[string][]types.KpiResult{
			"P1": {{KpiID: "k1", MaturityValue: types.Maturity(3.5)}},
		},
	}
	service := newTestService(t, provider, config, &fakeStore{}, calc)

	response, err := service.Evaluate(context.Background(), types.EvaluateRequest{
		ScopeNodeID:     "ORG",
		ProjectLevel:    3,
		WeightOverrides: "SPEED=100,QUALITY=0,VALUE=0,DORA=0",
	})

	require.NoError(t, err)
	assert.Equal(t, 3.5, response.Efficiency.Score)
	assert.Equal(t, 70.0, response.Efficiency.Percentage)
	assert.Equal(t, types.HealthAmber, response.Efficiency.Health)
}

func TestEvaluate_ValidatesRequest(t *testing.T) {
	service := newTestService(t, &fakeProvider{nodes: []types.HierarchyNode{}}, &fakeConfig{}, &fakeStore{})

	tests := []struct {
		name string
		req  types.EvaluateRequest
	}{
		{
			name: "project level must be positive",
			req:  types.EvaluateRequest{ProjectLevel: 0},
		},
		{
			name: "project level may not be above the scope level",
			req:  types.EvaluateRequest{ScopeNodeID: "ORG", ScopeLevel: 3, ProjectLevel: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Evaluate(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}
}

func TestEvaluate_EmptyScopeSucceeds(t *testing.T) {
	provider := &fakeProvider{nodes: []types.HierarchyNode{{NodeID: "ORG", Level: 1}}}
	store := &fakeStore{}
	service := newTestService(t, provider, &fakeConfig{}, store)

	response, err := service.Evaluate(context.Background(), types.EvaluateRequest{
		ScopeNodeID:  "ORG",
		ProjectLevel: 3,
	})

	require.NoError(t, err)
	assert.True(t, response.Success)
	assert.Empty(t, response.Projects)
	assert.Equal(t, 0.0, response.Efficiency.Score)
	assert.Equal(t, types.HealthRed, response.Efficiency.Health)
}

func TestEvaluate_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: assert.AnError}
	service := newTestService(t, provider, &fakeConfig{}, &fakeStore{})

	_, err := service.Evaluate(context.Background(), types.EvaluateRequest{ProjectLevel: 3})
	assert.Error(t, err)
}

func TestEvaluate_StoreFailureDoesNotFailEvaluation(t *testing.T) {
	provider := &fakeProvider{nodes: []types.HierarchyNode{{NodeID: "ORG", Level: 1}}}
	store := &fakeStore{err: assert.AnError}
	service := newTestService(t, provider, &fakeConfig{}, store)

	response, err := service.Evaluate(context.Background(), types.EvaluateRequest{ProjectLevel: 3})

	require.NoError(t, err)
	assert.True(t, response.Success)
}

func TestLevelBoardMap(t *testing.T) {
	projects := map[string]types.BoardMaturityMap{
		"P1": {"Speed": 2.0, "Quality": 4.0},
		"P2": {"Speed": 4.0},
	}

	level := levelBoardMap(projects)

	require.Len(t, level, 2)
	assert.InDelta(t, 3.0, level["Speed"], 1e-9)
	assert.Equal(t, 4.0, level["Quality"])
}
