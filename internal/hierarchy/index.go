package hierarchy

import (
	"github.com/orgpulse/maturity-meter/internal/errors"
	"github.com/orgpulse/maturity-meter/internal/types"
)

// Index is a read-only lookup structure over one flat hierarchy snapshot.
// It is built per request and discarded with the response; it never mutates
// the snapshot it was built from and is never shared across requests.
//
// Duplicate node ids across contexts are tolerated, which is why every
// lookup returns a slice rather than a single node.
type Index struct {
	byID     map[string][]types.HierarchyNode
	byParent map[string][]types.HierarchyNode
	byLevel  map[int][]types.HierarchyNode
	size     int
}

// Build indexes a flat snapshot of hierarchy nodes. A nil snapshot is a
// caller bug and fails; an empty snapshot yields an index that answers
// every query with an empty result.
func Build(nodes []types.HierarchyNode) (*Index, error) {
	if nodes == nil {
		return nil, errors.NewValidationError("hierarchy snapshot must not be nil")
	}

	idx := &Index{
		byID:     make(map[string][]types.HierarchyNode, len(nodes)),
		byParent: make(map[string][]types.HierarchyNode),
		byLevel:  make(map[int][]types.HierarchyNode),
		size:     len(nodes),
	}

	for _, n := range nodes {
		idx.byID[n.NodeID] = append(idx.byID[n.NodeID], n)
		idx.byLevel[n.Level] = append(idx.byLevel[n.Level], n)
		if !n.IsRoot() {
			idx.byParent[n.ParentID] = append(idx.byParent[n.ParentID], n)
		}
	}

	return idx, nil
}

// Size returns the number of nodes in the snapshot.
func (idx *Index) Size() int {
	return idx.size
}

// ByLevel returns all nodes at the given level, empty if none.
func (idx *Index) ByLevel(level int) []types.HierarchyNode {
	return idx.byLevel[level]
}

// ByID returns all nodes with the given id, empty if none.
func (idx *Index) ByID(nodeID string) []types.HierarchyNode {
	return idx.byID[nodeID]
}

// Children returns the direct children of the given node id, empty if none.
func (idx *Index) Children(parentID string) []types.HierarchyNode {
	return idx.byParent[parentID]
}

// Levels returns the distinct levels present in the snapshot.
func (idx *Index) Levels() []int {
	levels := make([]int, 0, len(idx.byLevel))
	for level := range idx.byLevel {
		levels = append(levels, level)
	}
	return levels
}

// DescendantsAtLevel collects all descendants of parentNodeID whose level
// equals targetLevel, walking parent→child edges depth first. A node whose
// own level already matches is returned without descending further: a node
// cannot be both a match and an ancestor of a match on the same branch.
// Unknown parent ids yield an empty result, never an error.
func (idx *Index) DescendantsAtLevel(parentNodeID string, targetLevel int) []types.HierarchyNode {
	matches := []types.HierarchyNode{}
	for _, root := range idx.byID[parentNodeID] {
		matches = idx.collectAtLevel(root, targetLevel, matches)
	}
	return matches
}

func (idx *Index) collectAtLevel(node types.HierarchyNode, targetLevel int, acc []types.HierarchyNode) []types.HierarchyNode {
	if node.Level == targetLevel {
		return append(acc, node)
	}
	for _, child := range idx.byParent[node.NodeID] {
		acc = idx.collectAtLevel(child, targetLevel, acc)
	}
	return acc
}

// DescendantsGroupedByParents is the batch form of DescendantsAtLevel.
// Every requested parent id that resolves to at least one node gets an
// entry, possibly an empty list; unknown ids are omitted.
func (idx *Index) DescendantsGroupedByParents(parentNodeIDs []string, targetLevel int) map[string][]types.HierarchyNode {
	grouped := make(map[string][]types.HierarchyNode, len(parentNodeIDs))
	for _, parentID := range parentNodeIDs {
		if len(idx.byID[parentID]) == 0 {
			continue
		}
		grouped[parentID] = idx.DescendantsAtLevel(parentID, targetLevel)
	}
	return grouped
}

// DescendantsGroupedByLevel resolves every node at parentLevel as a root
// and groups its descendants at targetLevel by parent id. targetLevel must
// not be above parentLevel in the tree.
func (idx *Index) DescendantsGroupedByLevel(parentLevel, targetLevel int) (map[string][]types.HierarchyNode, error) {
	if targetLevel < parentLevel {
		return nil, errors.NewWeightRangeError("child level must be >= parent level")
	}

	parents := idx.byLevel[parentLevel]
	grouped := make(map[string][]types.HierarchyNode, len(parents))
	for _, parent := range parents {
		grouped[parent.NodeID] = idx.DescendantsAtLevel(parent.NodeID, targetLevel)
	}
	return grouped, nil
}
