package graph

import "github.com/kchakrav/CRMApp-sub002/pkg/models"

// Adjacency is the directed view of the graph used by every algorithm: explicit connections plus one
// implicit edge from each jump node to its resolved target.
type Adjacency struct {
	// Nodes lists node ids in storage order.
	Nodes []string
	// Entries lists the ids of entry nodes in storage order.
	Entries []string

	out map[string][]string
}

// Successors returns the targets of id's outgoing edges in insertion order.
func (a *Adjacency) Successors(id string) []string {
	return a.out[id]
}

// Edges calls fn for every edge, grouped by source in node storage order.
func (a *Adjacency) Edges(fn func(from, to string)) {
	for _, from := range a.Nodes {
		for _, to := range a.out[from] {
			fn(from, to)
		}
	}
}

// Adjacency builds the directed adjacency of the current graph. Dangling connections and unresolved
// jump targets are skipped.
func (g *Graph) Adjacency() *Adjacency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.adjacency()
}

func (g *Graph) adjacency() *Adjacency {
	adj := &Adjacency{
		Nodes: make([]string, 0, len(g.nodes)),
		out:   make(map[string][]string, len(g.nodes)),
	}

	for _, n := range g.nodes {
		adj.Nodes = append(adj.Nodes, n.ID)
		if n.IsEntry() {
			adj.Entries = append(adj.Entries, n.ID)
		}
	}

	seen := make(map[[2]string]bool)
	add := func(from, to string) {
		edge := [2]string{from, to}
		if seen[edge] {
			return
		}

		seen[edge] = true
		adj.out[from] = append(adj.out[from], to)
	}

	for _, c := range g.connections {
		if _, ok := g.index[c.From]; !ok {
			continue
		}

		if _, ok := g.index[c.To]; !ok {
			continue
		}

		add(c.From, c.To)
	}

	for _, n := range g.nodes {
		if target := g.resolveJumpTarget(n); target != nil {
			add(n.ID, target.ID)
		}
	}

	return adj
}

// ExecutionOrder returns every node id exactly once: a breadth-first visit from all entry nodes (or
// from the first stored node when there is none), followed by the unvisited nodes in storage order.
func (g *Graph) ExecutionOrder() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.adjacency().ExecutionOrder()
}

// ExecutionOrder computes the visitation order over this adjacency.
func (a *Adjacency) ExecutionOrder() []string {
	order := make([]string, 0, len(a.Nodes))
	if len(a.Nodes) == 0 {
		return order
	}

	roots := a.Entries
	if len(roots) == 0 {
		roots = a.Nodes[:1]
	}

	visited := make(map[string]bool, len(a.Nodes))
	queue := make([]string, 0, len(a.Nodes))

	for _, id := range roots {
		if !visited[id] {
			visited[id] = true
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, next := range a.out[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	for _, id := range a.Nodes {
		if !visited[id] {
			order = append(order, id)
		}
	}

	return order
}

// EntryNodes returns copies of the entry nodes in storage order.
func (g *Graph) EntryNodes() []*models.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*models.Node

	for _, n := range g.nodes {
		if n.IsEntry() {
			out = append(out, n.Clone())
		}
	}

	return out
}
