package discovery

import (
	"fmt"

	"btp/internal/domain"
)

// BuildTree converts a discovery graph into the test tree of a target.
func BuildTree(target *domain.Target, g *RawGraph) (*domain.Tree, error) {
	if len(g.Nodes) == 0 {
		return nil, &domain.MalformedGraphError{Reason: "graph has no nodes"}
	}

	roots := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		roots[n.ID] = true
	}
	children := make(map[string][]string)
	for _, e := range g.Edges {
		if !roots[e.Child] {
			return nil, &domain.MalformedGraphError{Reason: fmt.Sprintf("Non-root edge target %q", e.Child)}
		}
		roots[e.Child] = false
		children[e.Parent] = append(children[e.Parent], e.Child)
	}

	var root string
	count := 0
	for _, n := range g.Nodes {
		if roots[n.ID] {
			root = n.ID
			count++
		}
	}
	if count != 1 {
		return nil, &domain.MalformedGraphError{Reason: fmt.Sprintf("expected exactly one root, found %d", count)}
	}

	rootNode, _ := g.Node(root)
	tree := domain.NewTree(target.ID)
	tree.Nodes[target.ID] = &domain.Node{
		ID:         target.ID,
		Kind:       domain.KindBinaryRoot,
		Name:       target.ID,
		Label:      ModuleName(rootNode.Label),
		SourceLine: -1,
	}

	b := &builder{target: target, graph: g, children: children, tree: tree}
	for _, child := range children[root] {
		if err := b.add(target.ID, child); err != nil {
			return nil, err
		}
	}

	if tree.Len() != len(g.Nodes) {
		return nil, &domain.MalformedGraphError{
			Reason: fmt.Sprintf("%d nodes are not reachable from the root", len(g.Nodes)-tree.Len()),
		}
	}
	return tree, nil
}

type builder struct {
	target   *domain.Target
	graph    *RawGraph
	children map[string][]string
	tree     *domain.Tree
}

func (b *builder) add(parentID, rawID string) error {
	raw, _ := b.graph.Node(rawID)
	info, err := DecodeLabel(raw.Label)
	if err != nil {
		return err
	}

	id := domain.ChildID(parentID, info.Name)
	if _, exists := b.tree.Nodes[id]; exists {
		return &domain.MalformedGraphError{Reason: fmt.Sprintf("duplicate test id %q", id)}
	}

	kind := domain.KindCase
	if len(b.children[rawID]) > 0 {
		kind = domain.KindSuite
	}
	b.tree.Nodes[id] = &domain.Node{
		ID:         id,
		Kind:       kind,
		Name:       info.Name,
		Label:      info.Name,
		SourceFile: b.target.ResolveSource(info.File),
		SourceLine: info.Line - 1,
		Parent:     parentID,
	}
	parent := b.tree.Nodes[parentID]
	parent.Children = append(parent.Children, id)

	for _, child := range b.children[rawID] {
		if err := b.add(id, child); err != nil {
			return err
		}
	}
	return nil
}
