package domain

import (
	"sort"
	"strings"
)

// AllTargetsID is the virtual node that stands for every registered target.
const AllTargetsID = "*"

// NodeKind is the kind of a node in a test tree.
type NodeKind int

const (
	KindBinaryRoot NodeKind = iota
	KindSuite
	KindCase
)

func (k NodeKind) String() string {
	switch k {
	case KindBinaryRoot:
		return "binary"
	case KindSuite:
		return "suite"
	case KindCase:
		return "case"
	default:
		return "unknown"
	}
}

// Node is a single test unit discovered in a target.
type Node struct {
	ID         string   `json:"id" yaml:"id"`
	Kind       NodeKind `json:"kind" yaml:"kind"`
	Name       string   `json:"name" yaml:"name"`
	Label      string   `json:"label" yaml:"label"`
	SourceFile string   `json:"source_file,omitempty" yaml:"source_file,omitempty"`
	SourceLine int      `json:"source_line" yaml:"source_line"` // 0-based, -1 when unknown
	Parent     string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Children   []string `json:"children,omitempty" yaml:"children,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// HasLocation reports whether the node carries a source location.
func (n *Node) HasLocation() bool {
	return n.SourceFile != "" && n.SourceLine >= 0
}

// Tree is the test hierarchy of one target, stored as an arena keyed by node id.
type Tree struct {
	Root  string           `json:"root" yaml:"root"`
	Nodes map[string]*Node `json:"nodes" yaml:"nodes"`
}

// NewTree creates an empty tree rooted at the given id.
func NewTree(root string) *Tree {
	return &Tree{Root: root, Nodes: make(map[string]*Node)}
}

// ErrorTree returns the degenerate tree shown when discovery fails.
func ErrorTree(target *Target, err error) *Tree {
	t := NewTree(target.ID)
	t.Nodes[target.ID] = &Node{
		ID:         target.ID,
		Kind:       KindBinaryRoot,
		Name:       target.ID,
		Label:      target.ID,
		SourceLine: -1,
		Error:      err.Error(),
	}
	return t
}

// Lookup returns the node with the given id.
func (t *Tree) Lookup(id string) (*Node, bool) {
	if t == nil {
		return nil, false
	}
	n, ok := t.Nodes[id]
	return n, ok
}

// RootNode returns the root of the tree.
func (t *Tree) RootNode() *Node {
	if t == nil {
		return nil
	}
	n, _ := t.Lookup(t.Root)
	return n
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Nodes)
}

// Failed reports whether the tree is the degenerate discovery-error tree.
func (t *Tree) Failed() bool {
	root := t.RootNode()
	return root != nil && root.Error != ""
}

// Walk visits the subtree under id depth-first in child order.
// Returning false from fn skips the children of the visited node.
func (t *Tree) Walk(id string, fn func(n *Node, depth int) bool) {
	t.walk(id, 0, fn)
}

func (t *Tree) walk(id string, depth int, fn func(n *Node, depth int) bool) {
	n, ok := t.Lookup(id)
	if !ok {
		return
	}
	if !fn(n, depth) {
		return
	}
	for _, child := range n.Children {
		t.walk(child, depth+1, fn)
	}
}

// Cases counts the case nodes under id, id included.
func (t *Tree) Cases(id string) int {
	count := 0
	t.Walk(id, func(n *Node, _ int) bool {
		if n.Kind == KindCase {
			count++
		}
		return true
	})
	return count
}

// IDs returns all node ids in sorted order.
func (t *Tree) IDs() []string {
	ids := make([]string, 0, len(t.Nodes))
	for id := range t.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ChildID builds the id of a child node.
func ChildID(parent, name string) string {
	return parent + "/" + name
}

// IsAncestor reports whether ancestor is a strict ancestor of id.
func IsAncestor(ancestor, id string) bool {
	if ancestor == AllTargetsID {
		return id != AllTargetsID
	}
	return strings.HasPrefix(id, ancestor+"/")
}

// TargetOf returns the target id prefix of a node id.
func TargetOf(id string) string {
	if i := strings.IndexByte(id, '/'); i >= 0 {
		return id[:i]
	}
	return id
}
