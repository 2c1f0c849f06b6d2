package database

import (
	"context"
	"fmt"

	"github.com/orgpulse/maturity-meter/internal/errors"
	"github.com/orgpulse/maturity-meter/internal/types"
)

// Repository is the read/write surface over the reference database. It
// backs three of the service's collaborators: the hierarchy snapshot
// provider, the category reference store, and the per-project KPI
// configuration source.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// GetHierarchy returns the accessible hierarchy snapshot, optionally
// filtered by label name. The snapshot is assumed to already reflect the
// caller's access permissions.
func (r *Repository) GetHierarchy(ctx context.Context, labelName string) ([]types.HierarchyNode, error) {
	query := `SELECT node_id, name, level, COALESCE(parent_id, ''), label_name FROM hierarchy_nodes`
	args := []interface{}{}
	if labelName != "" {
		query += ` WHERE label_name = ?`
		args = append(args, labelName)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hierarchy: %w", err)
	}
	defer rows.Close()

	nodes := []types.HierarchyNode{}
	for rows.Next() {
		var n types.HierarchyNode
		if err := rows.Scan(&n.NodeID, &n.Name, &n.Level, &n.ParentID, &n.LabelName); err != nil {
			return nil, fmt.Errorf("failed to scan hierarchy node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ReplaceHierarchy swaps the stored snapshot for a fresh one in a single
// transaction. Used by snapshot import, not by evaluations.
func (r *Repository) ReplaceHierarchy(ctx context.Context, nodes []types.HierarchyNode) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM hierarchy_nodes`); err != nil {
		return fmt.Errorf("failed to clear hierarchy: %w", err)
	}

	for _, n := range nodes {
		var parent interface{}
		if !n.IsRoot() {
			parent = n.ParentID
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO hierarchy_nodes (node_id, name, level, parent_id, label_name) VALUES (?, ?, ?, ?, ?)`,
			n.NodeID, n.Name, n.Level, parent, n.LabelName)
		if err != nil {
			return fmt.Errorf("failed to insert hierarchy node %s: %w", n.NodeID, err)
		}
	}

	return tx.Commit()
}

// ListCategories returns the configured category names used to seed the
// weight table.
func (r *Repository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, name)
	}
	return categories, rows.Err()
}

// ListEnabledKpis returns the enabled KPI definitions for a project. A
// project with no configuration at all yields a ConfigNotFound error so
// the orchestrator can skip it with a warning.
func (r *Repository) ListEnabledKpis(ctx context.Context, projectID string) ([]types.KpiDef, error) {
	stmt, err := r.db.Prepare("count_kpis",
		`SELECT COUNT(*) FROM kpi_definitions WHERE project_id = ?`)
	if err != nil {
		return nil, err
	}

	var total int
	if err := stmt.QueryRowContext(ctx, projectID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count KPI definitions: %w", err)
	}
	if total == 0 {
		return nil, errors.NewConfigNotFoundError(projectID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT kpi_id, name, source_tool, board, enabled FROM kpi_definitions WHERE project_id = ? AND enabled = 1`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query KPI definitions: %w", err)
	}
	defer rows.Close()

	kpis := []types.KpiDef{}
	for rows.Next() {
		var k types.KpiDef
		var enabled int
		if err := rows.Scan(&k.KpiID, &k.Name, &k.SourceTool, &k.Board, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan KPI definition: %w", err)
		}
		k.Enabled = enabled == 1
		kpis = append(kpis, k)
	}
	return kpis, rows.Err()
}

// UpsertKpi creates or replaces one KPI definition.
func (r *Repository) UpsertKpi(ctx context.Context, projectID string, kpi types.KpiDef) error {
	enabled := 0
	if kpi.Enabled {
		enabled = 1
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kpi_definitions (kpi_id, project_id, name, source_tool, board, enabled) VALUES (?, ?, ?, ?, ?, ?)`,
		kpi.KpiID, projectID, kpi.Name, kpi.SourceTool, kpi.Board, enabled)
	if err != nil {
		return fmt.Errorf("failed to upsert KPI %s: %w", kpi.KpiID, err)
	}
	return nil
}

// SaveEvaluation persists one finished evaluation summary.
func (r *Repository) SaveEvaluation(ctx context.Context, summary types.EvaluationSummary) error {
	stmt, err := r.db.Prepare("save_evaluation",
		`INSERT INTO evaluations (id, scope_node_id, project_count, score, percentage, health, warning_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx,
		summary.ID, summary.ScopeNodeID, summary.ProjectCount,
		summary.Score, summary.Percentage, string(summary.Health),
		summary.WarningCount, summary.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save evaluation %s: %w", summary.ID, err)
	}
	return nil
}

// RecentEvaluations returns the latest persisted evaluations, newest first.
func (r *Repository) RecentEvaluations(ctx context.Context, limit int) ([]types.EvaluationSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, scope_node_id, project_count, score, percentage, health, warning_count, created_at
		 FROM evaluations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	summaries := []types.EvaluationSummary{}
	for rows.Next() {
		var s types.EvaluationSummary
		var health string
		if err := rows.Scan(&s.ID, &s.ScopeNodeID, &s.ProjectCount, &s.Score, &s.Percentage, &health, &s.WarningCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		s.Health = types.HealthStatus(health)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
