// Package graph holds the workflow canvas graph: nodes, connections, mutation primitives and the
// traversal algorithms shared by validation, layout and simulation.
package graph

import (
	"maps"
	"strconv"
	"sync"

	"github.com/kchakrav/CRMApp-sub002/pkg/models"
)

const nodeIDPrefix = "node_"

// Graph is the in-memory workflow graph. It is safe for concurrent use; read-only algorithms
// tolerate dangling connections and stale jump targets.
type Graph struct {
	mu          sync.RWMutex
	nodes       []*models.Node
	index       map[string]*models.Node
	connections []*models.Connection
	canvas      models.CanvasState
	sizes       map[string]models.Size
	nextID      int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index:  make(map[string]*models.Node),
		sizes:  make(map[string]models.Size),
		canvas: models.DefaultCanvasState(),
		nextID: 1,
	}
}

// FromDocument builds a graph from a document.
func FromDocument(doc *models.Document) *Graph {
	g := New()
	g.Load(doc)

	return g
}

// Load replaces the whole graph with the document contents and resynchronises the id generator so
// future nodes never collide with loaded ones. Rendered sizes are kept for node ids present in the
// document.
func (g *Graph) Load(doc *models.Document) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.load(doc.Clone(), g.sizes)
}

func (g *Graph) load(doc *models.Document, sizes map[string]models.Size) {
	g.nodes = doc.Nodes
	g.connections = doc.Connections
	g.canvas = doc.CanvasState
	g.index = make(map[string]*models.Node, len(doc.Nodes))
	g.sizes = make(map[string]models.Size, len(sizes))

	maxID := 0

	for _, n := range g.nodes {
		if n.Config == nil {
			n.Config = models.DefaultConfig(n.Type)
		}

		g.index[n.ID] = n

		if size, ok := sizes[n.ID]; ok {
			g.sizes[n.ID] = size
		}

		if num, ok := numericSuffix(n.ID); ok && num > maxID {
			maxID = num
		}
	}

	g.nextID = maxID + 1
}

// Snapshot is the full state of a graph, rendered sizes included.
type Snapshot struct {
	doc   *models.Document
	sizes map[string]models.Size
}

// Snapshot captures the graph so a failed edit can be undone with Restore.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	doc := &models.Document{
		Nodes:       g.nodes,
		Connections: g.connections,
		CanvasState: g.canvas,
	}

	return Snapshot{doc: doc.Clone(), sizes: maps.Clone(g.sizes)}
}

// Restore puts the graph back to a snapshot.
func (g *Graph) Restore(s Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.load(s.doc.Clone(), s.sizes)
}

// Document returns a deep snapshot of the graph.
func (g *Graph) Document() *models.Document {
	g.mu.RLock()
	defer g.mu.RUnlock()

	doc := &models.Document{
		Nodes:       g.nodes,
		Connections: g.connections,
		CanvasState: g.canvas,
	}

	return doc.Clone()
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (*models.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.index[id]
	if !ok {
		return nil, false
	}

	return n.Clone(), true
}

// Nodes returns copies of all nodes in storage order.
func (g *Graph) Nodes() []*models.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*models.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n.Clone())
	}

	return out
}

// Connections returns copies of all connections in insertion order.
func (g *Graph) Connections() []*models.Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*models.Connection, 0, len(g.connections))
	for _, c := range g.connections {
		conn := *c
		out = append(out, &conn)
	}

	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// CanvasState returns the viewport.
func (g *Graph) CanvasState() models.CanvasState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.canvas
}

// SetCanvasState replaces the viewport.
func (g *Graph) SetCanvasState(state models.CanvasState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.canvas = state
}

// SetRenderedSize records the size a renderer drew the node at. Placement and layout fall back to
// the default box for nodes without one.
func (g *Graph) SetRenderedSize(id string, size models.Size) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if size.Width <= 0 || size.Height <= 0 {
		delete(g.sizes, id)

		return
	}

	g.sizes[id] = size
}

// RenderedSize returns the recorded size of a node, if any.
func (g *Graph) RenderedSize(id string) (models.Size, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s, ok := g.sizes[id]

	return s, ok
}

// ResolveJumpTarget returns the node a jump points at. A missing, empty or stale reference resolves
// to nothing.
func (g *Graph) ResolveJumpTarget(jumpID string) (*models.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	target := g.resolveJumpTarget(g.index[jumpID])
	if target == nil {
		return nil, false
	}

	return target.Clone(), true
}

func (g *Graph) resolveJumpTarget(n *models.Node) *models.Node {
	if n == nil {
		return nil
	}

	cfg := n.Jump()
	if cfg == nil || cfg.TargetNodeID == "" {
		return nil
	}

	return g.index[cfg.TargetNodeID]
}

func (g *Graph) allocateID() string {
	for {
		id := nodeIDPrefix + strconv.Itoa(g.nextID)
		g.nextID++

		if _, taken := g.index[id]; !taken {
			return id
		}
	}
}

// numericSuffix extracts the trailing decimal digits of an id ("node_12" -> 12, "e3" -> 3).
func numericSuffix(id string) (int, bool) {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}

	if i == len(id) {
		return 0, false
	}

	num, err := strconv.Atoi(id[i:])
	if err != nil {
		return 0, false
	}

	return num, true
}
