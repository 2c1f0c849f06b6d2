package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/orgpulse/maturity-meter/internal/collector"
	"github.com/orgpulse/maturity-meter/internal/errors"
	"github.com/orgpulse/maturity-meter/internal/hierarchy"
	"github.com/orgpulse/maturity-meter/internal/monitoring"
	"github.com/orgpulse/maturity-meter/internal/types"
)

// ConfigSource supplies the enabled KPI definitions for a project.
// A missing configuration is reported with a ConfigNotFound error and
// handled by skipping the project.
type ConfigSource interface {
	ListEnabledKpis(ctx context.Context, projectID string) ([]types.KpiDef, error)
}

// Result is the merged outcome of one evaluation batch. Projects holds one
// board-maturity map per project that produced at least one board value;
// Warnings records every skipped or degraded project.
type Result struct {
	Projects map[string]types.BoardMaturityMap
	Warnings []string
}

// Orchestrator drives one evaluation batch: it resolves the project nodes
// under the requested scope, fans the tool groups of each project out onto
// the worker pool, and merges the board results. Projects are processed
// sequentially; only the tool groups within one project run in parallel.
type Orchestrator struct {
	pool      *Pool
	collector *collector.Collector
	config    ConfigSource
	overall   time.Duration
	logger    *monitoring.Logger
	metrics   *monitoring.Metrics
}

// New creates an orchestrator bounded by the given overall timeout.
func New(pool *Pool, coll *collector.Collector, config ConfigSource, overall time.Duration, logger *monitoring.Logger, metrics *monitoring.Metrics) *Orchestrator {
	return &Orchestrator{
		pool:      pool,
		collector: coll,
		config:    config,
		overall:   overall,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes the batch for every project-level node under the scope.
// An empty scope is a successful empty result, not an error. When the
// overall deadline fires, the run is aborted: already-merged projects are
// discarded and a retryable deadline error is returned. Cancellation is
// cooperative, so tool calls already dispatched for the current project
// finish or hit their own per-tool timeout first.
func (o *Orchestrator) Run(ctx context.Context, index *hierarchy.Index, scopeNodeID string, projectLevel int) (*Result, error) {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, o.overall)
	defer cancel()

	projects := o.resolveProjects(index, scopeNodeID, projectLevel)
	if len(projects) == 0 {
		return &Result{Projects: map[string]types.BoardMaturityMap{}, Warnings: []string{}}, nil
	}

	type runReply struct {
		result *Result
		err    error
	}

	// The whole project loop runs as one bounded task so an exceeded
	// deadline surfaces even if the loop is mid-project.
	replyCh := make(chan runReply, 1)
	go func() {
		result, err := o.processProjects(runCtx, projects)
		replyCh <- runReply{result: result, err: err}
	}()

	select {
	case reply := <-replyCh:
		if reply.err != nil {
			if o.metrics != nil {
				o.metrics.IncrementEvaluationAbort()
			}
			return nil, reply.err
		}
		return reply.result, nil

	case <-runCtx.Done():
		if o.metrics != nil {
			o.metrics.IncrementEvaluationAbort()
		}
		return nil, errors.NewDeadlineExceededError(time.Since(start), runCtx.Err())
	}
}

// resolveProjects finds the project-level nodes in scope. With a scope
// node id the subtree under that node is used, otherwise the whole level.
func (o *Orchestrator) resolveProjects(index *hierarchy.Index, scopeNodeID string, projectLevel int) []types.HierarchyNode {
	if scopeNodeID != "" {
		return index.DescendantsAtLevel(scopeNodeID, projectLevel)
	}
	return index.ByLevel(projectLevel)
}

// processProjects is the sequential project loop. Between projects it
// checks the run context: once the overall deadline fires, no further
// project work is scheduled and the partial result is surfaced as an
// interruption, which Run converts to the retryable deadline error.
func (o *Orchestrator) processProjects(ctx context.Context, projects []types.HierarchyNode) (*Result, error) {
	start := time.Now()
	result := &Result{
		Projects: make(map[string]types.BoardMaturityMap, len(projects)),
		Warnings: []string{},
	}

	for _, node := range projects {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewDeadlineExceededError(time.Since(start), err)
		}

		project := types.ProjectRef{NodeID: node.NodeID, Name: node.Name}

		if !validProjectID(project.NodeID) {
			o.skip(result, fmt.Sprintf("skipped project %q: invalid project identifier", project.NodeID))
			continue
		}

		groups, err := o.toolGroupsFor(ctx, project.NodeID)
		if err != nil {
			if errors.IsConfigNotFound(err) {
				o.skip(result, fmt.Sprintf("skipped project %s: no KPI configuration", project.NodeID))
			} else {
				o.skip(result, fmt.Sprintf("skipped project %s: %v", project.NodeID, err))
			}
			continue
		}
		if len(groups) == 0 {
			o.skip(result, fmt.Sprintf("skipped project %s: no enabled KPIs", project.NodeID))
			continue
		}

		boards := o.processProject(ctx, project, groups)
		if len(boards) == 0 {
			// Every tool group degraded; the project itself gets a warning,
			// individual tool failures were already logged by the collector.
			o.skip(result, fmt.Sprintf("no tool results for project %s", project.NodeID))
			continue
		}

		result.Projects[project.NodeID] = boards
	}

	return result, nil
}

// processProject fans one project's tool groups out onto the worker pool
// and waits for all of them; each carries its own per-tool timeout inside
// the collector, so one slow tool cannot starve its siblings. The merge
// happens in a single step after all futures join, so the board map is
// never shared between goroutines.
func (o *Orchestrator) processProject(ctx context.Context, project types.ProjectRef, groups []types.ToolGroup) types.BoardMaturityMap {
	resultCh := make(chan map[string]types.BoardResult, len(groups))

	for _, group := range groups {
		group := group
		o.pool.Submit(func() {
			resultCh <- o.collector.Compute(ctx, project, group)
		})
	}

	contributions := make([]map[string]types.BoardResult, 0, len(groups))
	for range groups {
		contributions = append(contributions, <-resultCh)
	}

	return mergeBoards(contributions)
}

// toolGroupsFor loads the project's enabled KPIs and groups them by source
// tool, sorted by tool name for stable scheduling order.
func (o *Orchestrator) toolGroupsFor(ctx context.Context, projectID string) ([]types.ToolGroup, error) {
	kpis, err := o.config.ListEnabledKpis(ctx, projectID)
	if err != nil {
		return nil, err
	}

	bySource := make(map[string][]types.KpiDef)
	for _, kpi := range kpis {
		if !kpi.Enabled || kpi.SourceTool == "" {
			continue
		}
		bySource[kpi.SourceTool] = append(bySource[kpi.SourceTool], kpi)
	}

	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]types.ToolGroup, 0, len(names))
	for _, name := range names {
		groups = append(groups, types.ToolGroup{SourceName: name, Kpis: bySource[name]})
	}
	return groups, nil
}

func (o *Orchestrator) skip(result *Result, warning string) {
	result.Warnings = append(result.Warnings, warning)
	if o.metrics != nil {
		o.metrics.IncrementProjectSkipped()
	}
	if o.logger != nil {
		o.logger.Warn("Project skipped", "reason", warning)
	}
}

// mergeBoards folds tool-group contributions into one board-maturity map,
// averaging every KPI value that landed on the same board. Addition is
// commutative, so the map does not depend on completion order.
func mergeBoards(contributions []map[string]types.BoardResult) types.BoardMaturityMap {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, boards := range contributions {
		for name, board := range boards {
			for _, kpi := range board.KpiValues {
				if kpi.MaturityValue == nil {
					continue
				}
				sums[name] += *kpi.MaturityValue
				counts[name]++
			}
		}
	}

	merged := make(types.BoardMaturityMap, len(sums))
	for name, sum := range sums {
		merged[name] = sum / float64(counts[name])
	}
	return merged
}

// validProjectID rejects blank or whitespace-bearing identifiers before
// any tool work is scheduled for them.
func validProjectID(id string) bool {
	trimmed := strings.TrimSpace(id)
	return trimmed != "" && trimmed == id && !strings.ContainsAny(id, " \t\n")
}
