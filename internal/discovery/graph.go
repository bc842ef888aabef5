package discovery

import (
	"strings"

	"gonum.org/v1/gonum/graph/formats/dot"
	"gonum.org/v1/gonum/graph/formats/dot/ast"

	"btp/internal/domain"
)

// RawNode is a graph node as printed by the binary.
type RawNode struct {
	ID    string
	Label string
}

// RawEdge declares that Child is contained in Parent.
type RawEdge struct {
	Parent string
	Child  string
}

// RawGraph is the flattened content of a discovery graph.
type RawGraph struct {
	Nodes []RawNode
	Edges []RawEdge

	index map[string]int
}

// Node returns the raw node with the given id.
func (g *RawGraph) Node(id string) (RawNode, bool) {
	i, ok := g.index[id]
	if !ok {
		return RawNode{}, false
	}
	return g.Nodes[i], true
}

func (g *RawGraph) addNode(id, label string) {
	if i, ok := g.index[id]; ok {
		if label != "" {
			g.Nodes[i].Label = label
		}
		return
	}
	g.index[id] = len(g.Nodes)
	g.Nodes = append(g.Nodes, RawNode{ID: id, Label: label})
}

// ParseGraph parses the DOT text a binary prints for --list_content=DOT.
// Subgraph contents are flattened into the top-level node and edge lists.
func ParseGraph(src string) (*RawGraph, error) {
	file, err := dot.ParseString(src)
	if err != nil {
		return nil, &domain.DiscoveryFormatError{Reason: "cannot parse graph", Err: err}
	}
	if file == nil || len(file.Graphs) == 0 {
		return nil, &domain.DiscoveryFormatError{Reason: "no graph found"}
	}

	g := &RawGraph{index: make(map[string]int)}
	for _, graph := range file.Graphs {
		g.addStmts(graph.Stmts)
	}
	return g, nil
}

func (g *RawGraph) addStmts(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.NodeStmt:
			g.addNode(unquote(s.Node.ID), labelOf(s.Attrs))
		case *ast.EdgeStmt:
			from := g.vertexIDs(s.From)
			for e := s.To; e != nil; e = e.To {
				to := g.vertexIDs(e.Vertex)
				for _, parent := range from {
					for _, child := range to {
						g.Edges = append(g.Edges, RawEdge{Parent: parent, Child: child})
					}
				}
				from = to
			}
		case *ast.Subgraph:
			g.addStmts(s.Stmts)
		}
	}
}

// vertexIDs registers the nodes behind an edge endpoint and returns their ids.
func (g *RawGraph) vertexIDs(v ast.Vertex) []string {
	switch v := v.(type) {
	case *ast.Node:
		id := unquote(v.ID)
		g.addNode(id, "")
		return []string{id}
	case *ast.Subgraph:
		before := len(g.Nodes)
		g.addStmts(v.Stmts)
		var ids []string
		for _, n := range g.Nodes[before:] {
			ids = append(ids, n.ID)
		}
		for _, stmt := range v.Stmts {
			if ns, ok := stmt.(*ast.NodeStmt); ok {
				id := unquote(ns.Node.ID)
				if g.index[id] < before {
					ids = append(ids, id)
				}
			}
		}
		return ids
	}
	return nil
}

func labelOf(attrs []*ast.Attr) string {
	for _, a := range attrs {
		if unquote(a.Key) == "label" {
			return unquote(a.Val)
		}
	}
	return ""
}

// unquote strips DOT string quoting, leaving unquoted and HTML ids untouched.
func unquote(id string) string {
	if len(id) < 2 || id[0] != '"' || id[len(id)-1] != '"' {
		return id
	}
	s := id[1 : len(id)-1]
	s = strings.ReplaceAll(s, "\\\r\n", "")
	s = strings.ReplaceAll(s, "\\\n", "")
	return strings.ReplaceAll(s, `\"`, `"`)
}
