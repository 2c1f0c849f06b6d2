package types

import "time"

// HierarchyNode is one entry in a flat organizational-hierarchy snapshot.
// Snapshots are supplied per request and never mutated after loading.
type HierarchyNode struct {
	NodeID    string `json:"node_id"`
	Name      string `json:"name"`
	Level     int    `json:"level"`
	ParentID  string `json:"parent_id,omitempty"`
	LabelName string `json:"label_name,omitempty"`
}

// IsRoot reports whether the node has no parent in its snapshot.
func (n HierarchyNode) IsRoot() bool {
	return n.ParentID == ""
}

// KpiDef describes one enabled KPI for a project: which upstream tool
// computes it and which board it is displayed on.
type KpiDef struct {
	KpiID      string `json:"kpi_id"`
	Name       string `json:"name"`
	SourceTool string `json:"source_tool"`
	Board      string `json:"board"`
	Enabled    bool   `json:"enabled"`
}

// KpiResult is one computed maturity value. MaturityValue is nil when the
// upstream tool could not produce a value for this KPI.
type KpiResult struct {
	KpiID         string   `json:"kpi_id"`
	MaturityValue *float64 `json:"maturity_value,omitempty"`
}

// Maturity returns a pointer to v, for building KpiResult literals.
func Maturity(v float64) *float64 {
	return &v
}

// ToolGroup is the set of KPIs computed by one upstream tool for one
// project. Owned transiently by the orchestrator while that project is
// being processed.
type ToolGroup struct {
	SourceName string
	Kpis       []KpiDef
}

// BoardResult is the contribution of one tool-group invocation to one board.
type BoardResult struct {
	BoardName string      `json:"board_name"`
	KpiValues []KpiResult `json:"kpi_values"`
}

// BoardMaturityMap maps board name to its averaged maturity for one project.
type BoardMaturityMap map[string]float64

// ProjectRef identifies one project-level hierarchy node during a batch run.
type ProjectRef struct {
	NodeID string `json:"node_id"`
	Name   string `json:"name"`
}

// HealthStatus classifies an efficiency percentage.
type HealthStatus string

const (
	HealthGreen HealthStatus = "GREEN"
	HealthAmber HealthStatus = "AMBER"
	HealthRed   HealthStatus = "RED"
)

// EfficiencyResult is the weighted roll-up of board maturities.
type EfficiencyResult struct {
	Score      float64        `json:"score"`
	Percentage float64        `json:"percentage"`
	Health     HealthStatus   `json:"health"`
	Weights    map[string]int `json:"weights"`
}

// EvaluateRequest is the request body for the evaluate endpoint.
// ScopeNodeID narrows the evaluation to the subtree under one node; when
// empty the whole accessible hierarchy is evaluated. ProjectLevel names the
// hierarchy level holding projects.
type EvaluateRequest struct {
	ScopeNodeID     string `json:"scope_node_id"`
	ScopeLevel      int    `json:"scope_level"`
	ProjectLevel    int    `json:"project_level" binding:"required"`
	WeightOverrides string `json:"weight_overrides"`
}

// EvaluateResponse is returned by the evaluate endpoint once the batch is
// done. Warnings carry every skipped or degraded project; tool-level
// degradation is logged but not surfaced as a warning.
type EvaluateResponse struct {
	EvaluationID string                      `json:"evaluation_id"`
	Projects     map[string]BoardMaturityMap `json:"projects"`
	Efficiency   EfficiencyResult            `json:"efficiency"`
	Warnings     []string                    `json:"warnings"`
	Success      bool                        `json:"success"`
	Timestamp    time.Time                   `json:"timestamp"`
}

// EvaluationSummary is a persisted record of one finished evaluation.
type EvaluationSummary struct {
	ID           string       `json:"id"`
	ScopeNodeID  string       `json:"scope_node_id"`
	ProjectCount int          `json:"project_count"`
	Score        float64      `json:"score"`
	Percentage   float64      `json:"percentage"`
	Health       HealthStatus `json:"health"`
	WarningCount int          `json:"warning_count"`
	CreatedAt    time.Time    `json:"created_at"`
}
