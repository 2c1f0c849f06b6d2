package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/orgpulse/maturity-meter/internal/monitoring"
	"github.com/orgpulse/maturity-meter/internal/types"
)

// Calculator is the upstream KPI-calculation collaborator for one tool.
// Implementations must be safe to invoke concurrently for different
// projects and safe to have their result discarded after a timeout: the
// collector abandons slow calls rather than preempting them, so only
// stateless read calls belong behind this interface.
type Calculator interface {
	Name() string
	ComputeKpis(ctx context.Context, project types.ProjectRef, kpis []types.KpiDef) ([]types.KpiResult, error)
}

// Registry resolves source tool names to their calculators.
type Registry struct {
	calculators map[string]Calculator
}

// NewRegistry creates a registry over the given calculators.
func NewRegistry(calculators ...Calculator) *Registry {
	r := &Registry{calculators: make(map[string]Calculator, len(calculators))}
	for _, c := range calculators {
		r.calculators[c.Name()] = c
	}
	return r
}

// Register adds or replaces a calculator.
func (r *Registry) Register(c Calculator) {
	r.calculators[c.Name()] = c
}

// Get returns the calculator for a source tool name.
func (r *Registry) Get(name string) (Calculator, bool) {
	c, ok := r.calculators[name]
	return c, ok
}

// Names returns the registered source tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.calculators))
	for name := range r.calculators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collector runs one tool-group computation for one project under a
// per-tool timeout with full exception isolation. It never returns an
// error: every failure mode degrades to an empty board map, and exactly
// one outcome event (SUCCESS, EMPTY, TIMEOUT or ERROR) is emitted per
// invocation.
type Collector struct {
	registry *Registry
	timeout  time.Duration
	logger   *monitoring.Logger
	metrics  *monitoring.Metrics
}

// NewCollector creates a collector with the given per-tool timeout.
func NewCollector(registry *Registry, timeout time.Duration, logger *monitoring.Logger, metrics *monitoring.Metrics) *Collector {
	return &Collector{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Timeout returns the per-tool timeout.
func (c *Collector) Timeout() time.Duration {
	return c.timeout
}

type calcReply struct {
	results []types.KpiResult
	err     error
}

// Compute runs the tool group's calculator and folds its KPI results into
// per-board results. The calculator runs in its own goroutine; if it does
// not finish before the per-tool timeout, the call is abandoned (the
// context is cancelled as a best-effort signal, the goroutine is not
// force-killed) and an empty map is returned.
func (c *Collector) Compute(ctx context.Context, project types.ProjectRef, group types.ToolGroup) map[string]types.BoardResult {
	start := time.Now()

	calc, ok := c.registry.Get(group.SourceName)
	if !ok {
		c.emit(project, group, monitoring.OutcomeError, start, fmt.Sprintf("no calculator registered for tool %q", group.SourceName))
		return map[string]types.BoardResult{}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Buffered so the abandoned goroutine can always deliver and exit.
	replyCh := make(chan calcReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				replyCh <- calcReply{err: fmt.Errorf("panic in %s calculator: %v", group.SourceName, r)}
			}
		}()
		results, err := calc.ComputeKpis(callCtx, project, group.Kpis)
		replyCh <- calcReply{results: results, err: err}
	}()

	select {
	case reply := <-replyCh:
		if reply.err != nil {
			c.emit(project, group, monitoring.OutcomeError, start, reply.err.Error())
			return map[string]types.BoardResult{}
		}
		boards := groupByBoard(group.Kpis, reply.results)
		if len(boards) == 0 {
			c.emit(project, group, monitoring.OutcomeEmpty, start, "")
			return map[string]types.BoardResult{}
		}
		c.emit(project, group, monitoring.OutcomeSuccess, start, "")
		return boards

	case <-callCtx.Done():
		c.emit(project, group, monitoring.OutcomeTimeout, start, callCtx.Err().Error())
		return map[string]types.BoardResult{}
	}
}

func (c *Collector) emit(project types.ProjectRef, group types.ToolGroup, outcome monitoring.ToolOutcome, start time.Time, errMessage string) {
	if c.logger != nil {
		c.logger.ToolOutcomeLogger(project.NodeID, group.SourceName, outcome, time.Since(start), errMessage)
	}
	if c.metrics != nil {
		c.metrics.RecordToolCall(group.SourceName, outcome)
	}
}

// groupByBoard buckets KPI results under the board each KPI definition
// belongs to. Results for unknown KPI ids and results with no maturity
// value are dropped; a payload that yields no valued result is treated as
// empty, not as an error.
func groupByBoard(kpis []types.KpiDef, results []types.KpiResult) map[string]types.BoardResult {
	boardByKpi := make(map[string]string, len(kpis))
	for _, def := range kpis {
		boardByKpi[def.KpiID] = def.Board
	}

	boards := make(map[string]types.BoardResult)
	for _, res := range results {
		if res.MaturityValue == nil {
			continue
		}
		board, ok := boardByKpi[res.KpiID]
		if !ok || board == "" {
			continue
		}
		br := boards[board]
		br.BoardName = board
		br.KpiValues = append(br.KpiValues, res)
		boards[board] = br
	}
	return boards
}
