// Package scene holds what the viewer displays: the loaded model meshes plus
// fixed helpers such as the ground plane and the grid.
//
// A Scene is a small tree of nodes. It is not safe for concurrent use; the
// viewer service serializes access.
package scene

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/stepview/pkg/kernel"
	"github.com/chazu/stepview/pkg/shape"
	"github.com/chazu/stepview/pkg/tessellate"
)

// Helper geometry of a fresh viewer scene.
const (
	GroundSize     = 2000.0
	GroundY        = -0.1
	GridSize       = 2000.0
	GridDivisions  = 100
	modelGroupName = "model"
)

// NodeKind tags what a node draws. Fitting and picking use the tag to tell
// CAD content from helpers.
type NodeKind int

const (
	KindGroup  NodeKind = iota // no geometry of its own
	KindMesh                   // model content
	KindGround                 // ground plane helper
	KindGrid                   // grid helper
)

func (k NodeKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindMesh:
		return "mesh"
	case KindGround:
		return "ground"
	case KindGrid:
		return "grid"
	default:
		return "unknown"
	}
}

func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// NodeID identifies a node within one Scene.
type NodeID int

// Node is one element of the scene tree.
type Node struct {
	ID       NodeID            `json:"id"`
	Kind     NodeKind          `json:"kind"`
	Name     string            `json:"name,omitempty"`
	Children []NodeID          `json:"children,omitempty"`
	Mesh     *kernel.Mesh      `json:"mesh,omitempty"`
	Edges    []float32         `json:"edges,omitempty"`
	Shape    *shape.Descriptor `json:"shape,omitempty"`

	// Helpers are square, centered on the origin in the XZ plane at height Y.
	Size      float64 `json:"size,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Divisions int     `json:"divisions,omitempty"`
}

// Bounds returns the world-space bounding box of the node's own geometry.
// Groups have none.
func (n *Node) Bounds() (sdf.Box3, bool) {
	switch n.Kind {
	case KindMesh:
		if n.Mesh == nil {
			return sdf.Box3{}, false
		}
		return n.Mesh.Bounds()
	case KindGround, KindGrid:
		h := n.Size / 2
		return sdf.Box3{
			Min: v3.Vec{X: -h, Y: n.Y, Z: -h},
			Max: v3.Vec{X: h, Y: n.Y, Z: h},
		}, true
	default:
		return sdf.Box3{}, false
	}
}

// Scene is a tree of nodes with named lookup. Names held by helpers and
// groups are reserved: a later mesh with the same name is stored but not
// indexed.
type Scene struct {
	Nodes     map[NodeID]*Node  `json:"nodes"`
	Roots     []NodeID          `json:"roots"`
	NameIndex map[string]NodeID `json:"name_index"`
	Version   uint64            `json:"version"`

	next  NodeID
	model NodeID
}

// New creates an empty Scene.
func New() *Scene {
	return &Scene{
		Nodes:     make(map[NodeID]*Node),
		NameIndex: make(map[string]NodeID),
	}
}

// NewViewerScene creates a scene holding the ground plane and grid helper
// and an empty model group.
func NewViewerScene() *Scene {
	s := New()
	s.AddRoot(s.Add(&Node{Kind: KindGround, Name: "ground", Size: GroundSize, Y: GroundY}))
	s.AddRoot(s.Add(&Node{Kind: KindGrid, Name: "grid", Size: GridSize, Divisions: GridDivisions}))
	s.model = s.Add(&Node{Kind: KindGroup, Name: modelGroupName})
	s.AddRoot(s.model)
	return s
}

// Add assigns n an ID and stores it. It does not attach n to a parent.
func (s *Scene) Add(n *Node) NodeID {
	s.next++
	n.ID = s.next
	s.Nodes[n.ID] = n
	if n.Name != "" {
		if prev := s.Lookup(n.Name); prev == nil || prev.Kind == KindMesh {
			s.NameIndex[n.Name] = n.ID
		}
	}
	s.Version++
	return n.ID
}

// AddRoot registers a node ID as a root of the scene.
func (s *Scene) AddRoot(id NodeID) {
	s.Roots = append(s.Roots, id)
}

// AddChild attaches child under parent.
func (s *Scene) AddChild(parent, child NodeID) error {
	p := s.Nodes[parent]
	if p == nil {
		return fmt.Errorf("scene: no node %d", parent)
	}
	if s.Nodes[child] == nil {
		return fmt.Errorf("scene: no node %d", child)
	}
	p.Children = append(p.Children, child)
	s.Version++
	return nil
}

// Get returns the node with the given ID, or nil.
func (s *Scene) Get(id NodeID) *Node {
	return s.Nodes[id]
}

// Lookup returns the node with the given name, or nil.
func (s *Scene) Lookup(name string) *Node {
	id, ok := s.NameIndex[name]
	if !ok {
		return nil
	}
	return s.Nodes[id]
}

// Children returns the child nodes of the given node.
func (s *Scene) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := s.Nodes[cid]; c != nil {
			children = append(children, c)
		}
	}
	return children
}

// Traverse walks the tree depth-first from the roots in order. Returning
// false from fn skips the node's children.
func (s *Scene) Traverse(fn func(n *Node, depth int) bool) {
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if !fn(n, depth) {
			return
		}
		for _, c := range s.Children(n) {
			walk(c, depth+1)
		}
	}
	for _, id := range s.Roots {
		if n := s.Nodes[id]; n != nil {
			walk(n, 0)
		}
	}
}

// ContentMeshes returns the mesh nodes reachable from the roots, skipping
// ground and grid helpers.
func (s *Scene) ContentMeshes() []*Node {
	var out []*Node
	s.Traverse(func(n *Node, _ int) bool {
		if n.Kind == KindMesh && n.Mesh != nil && !n.Mesh.IsEmpty() {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Model returns the group holding the loaded model, creating it if needed.
func (s *Scene) Model() *Node {
	if g := s.Nodes[s.model]; g != nil && g.Kind == KindGroup {
		return g
	}
	s.model = s.Add(&Node{Kind: KindGroup, Name: modelGroupName})
	s.AddRoot(s.model)
	return s.Nodes[s.model]
}

// ReplaceModel drops the previous model content and adds one mesh node per
// tessellated model.
func (s *Scene) ReplaceModel(models []*tessellate.Model) {
	group := s.Model()
	for _, id := range group.Children {
		s.remove(id)
	}
	group.Children = nil
	for i, m := range models {
		if m == nil || m.Mesh == nil {
			continue
		}
		name := m.Name
		if name == "" {
			name = fmt.Sprintf("part-%d", i+1)
		}
		n := &Node{Kind: KindMesh, Name: name, Mesh: m.Mesh, Edges: m.Edges}
		if m.Shape.Dimensions != nil {
			d := m.Shape
			n.Shape = &d
		}
		id := s.Add(n)
		group.Children = append(group.Children, id)
	}
	s.Version++
}

// remove deletes a node and its subtree.
func (s *Scene) remove(id NodeID) {
	n := s.Nodes[id]
	if n == nil {
		return
	}
	for _, c := range n.Children {
		s.remove(c)
	}
	delete(s.Nodes, id)
	if n.Name != "" && s.NameIndex[n.Name] == id {
		delete(s.NameIndex, n.Name)
	}
}

// NodeCount returns the total number of nodes.
func (s *Scene) NodeCount() int {
	return len(s.Nodes)
}
