package maturity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/orgpulse/maturity-meter/internal/errors"
	"github.com/orgpulse/maturity-meter/internal/hierarchy"
	"github.com/orgpulse/maturity-meter/internal/monitoring"
	"github.com/orgpulse/maturity-meter/internal/orchestrator"
	"github.com/orgpulse/maturity-meter/internal/scoring"
	"github.com/orgpulse/maturity-meter/internal/types"
)

// HierarchyProvider supplies the flat hierarchy snapshot for one request.
// The snapshot is assumed to already reflect the caller's permissions.
type HierarchyProvider interface {
	GetHierarchy(ctx context.Context, labelName string) ([]types.HierarchyNode, error)
}

// CategoryStore supplies the category names seeding the weight table.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]string, error)
}

// EvaluationStore persists finished evaluation summaries.
type EvaluationStore interface {
	SaveEvaluation(ctx context.Context, summary types.EvaluationSummary) error
}

// Service is the synchronous entry point for one maturity-and-efficiency
// evaluation. All per-request state (index, board maps, weight table) is
// built here and discarded with the response; nothing is shared across
// requests.
type Service struct {
	provider   HierarchyProvider
	categories CategoryStore
	store      EvaluationStore
	orch       *orchestrator.Orchestrator
	scorer     *scoring.Scorer
	logger     *monitoring.Logger
	metrics    *monitoring.Metrics
}

// NewService wires the evaluation pipeline. store may be nil, in which
// case summaries are not persisted.
func NewService(provider HierarchyProvider, categories CategoryStore, store EvaluationStore, orch *orchestrator.Orchestrator, scorer *scoring.Scorer, logger *monitoring.Logger, metrics *monitoring.Metrics) *Service {
	return &Service{
		provider:   provider,
		categories: categories,
		store:      store,
		orch:       orch,
		scorer:     scorer,
		logger:     logger,
		metrics:    metrics,
	}
}

// Evaluate runs one evaluation batch and blocks until it is done or the
// overall deadline aborts it. Per-project degradation comes back in the
// warnings list with Success still true; only malformed input and the
// overall deadline fail the call.
func (s *Service) Evaluate(ctx context.Context, req types.EvaluateRequest) (*types.EvaluateResponse, error) {
	start := time.Now()

	if req.ProjectLevel <= 0 {
		return nil, errors.NewValidationError("project_level must be a positive hierarchy level")
	}
	if req.ScopeLevel > 0 && req.ProjectLevel < req.ScopeLevel {
		return nil, errors.NewWeightRangeError("child level must be >= parent level")
	}

	nodes, err := s.provider.GetHierarchy(ctx, "")
	if err != nil {
		return nil, errors.WrapError(err, "failed to load hierarchy snapshot")
	}
	if nodes == nil {
		nodes = []types.HierarchyNode{}
	}

	index, err := hierarchy.Build(nodes)
	if err != nil {
		return nil, err
	}

	batch, err := s.orch.Run(ctx, index, req.ScopeNodeID, req.ProjectLevel)
	if err != nil {
		return nil, err
	}

	weights := s.resolveWeights(ctx, req.WeightOverrides)
	efficiency := s.scorer.Score(levelBoardMap(batch.Projects), weights)

	response := &types.EvaluateResponse{
		EvaluationID: uuid.NewString(),
		Projects:     batch.Projects,
		Efficiency:   efficiency,
		Warnings:     batch.Warnings,
		Success:      true,
		Timestamp:    time.Now().UTC(),
	}

	s.persist(ctx, req, response)

	if s.metrics != nil {
		s.metrics.IncrementEvaluation()
	}
	if s.logger != nil {
		s.logger.EvaluationLogger(response.EvaluationID, len(response.Projects), len(response.Warnings),
			efficiency.Score, efficiency.Percentage, time.Since(start))
	}

	return response, nil
}

// resolveWeights builds the weight table from the override string and the
// reference categories. A failing category store degrades to the default
// categories rather than failing the evaluation.
func (s *Service) resolveWeights(ctx context.Context, overrides string) map[string]int {
	categories := []string{}
	if s.categories != nil {
		loaded, err := s.categories.ListCategories(ctx)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("Failed to load categories, using defaults", "error", err)
			}
		} else {
			categories = loaded
		}
	}
	return scoring.ResolveWeights(overrides, categories)
}

// persist saves the evaluation summary, best effort.
func (s *Service) persist(ctx context.Context, req types.EvaluateRequest, response *types.EvaluateResponse) {
	if s.store == nil {
		return
	}

	summary := types.EvaluationSummary{
		ID:           response.EvaluationID,
		ScopeNodeID:  req.ScopeNodeID,
		ProjectCount: len(response.Projects),
		Score:        response.Efficiency.Score,
		Percentage:   response.Efficiency.Percentage,
		Health:       response.Efficiency.Health,
		WarningCount: len(response.Warnings),
		CreatedAt:    response.Timestamp,
	}

	if err := s.store.SaveEvaluation(ctx, summary); err != nil && s.logger != nil {
		s.logger.Warn("Failed to persist evaluation", "evaluation_id", summary.ID, "error", err)
	}
}

// levelBoardMap folds the per-project board maturities into one map for
// the whole level, averaging boards that appear in several projects.
func levelBoardMap(projects map[string]types.BoardMaturityMap) types.BoardMaturityMap {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, boards := range projects {
		for name, maturity := range boards {
			sums[name] += maturity
			counts[name]++
		}
	}

	level := make(types.BoardMaturityMap, len(sums))
	for name, sum := range sums {
		level[name] = sum / float64(counts[name])
	}
	return level
}
