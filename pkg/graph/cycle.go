package graph

// HasCycle reports whether the graph, including implicit jump edges, contains a directed cycle.
// It only reads the current state and can be called after every edit.
func (g *Graph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.adjacency().HasCycle()
}

// HasCycle runs a depth-first search and reports the first back edge found.
func (a *Adjacency) HasCycle() bool {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(id string) bool
	visit = func(id string) bool {
		if visiting[id] {
			return true
		}

		if visited[id] {
			return false
		}

		visiting[id] = true

		for _, next := range a.out[id] {
			if visit(next) {
				return true
			}
		}

		delete(visiting, id)
		visited[id] = true

		return false
	}

	for _, id := range a.Nodes {
		if !visited[id] && visit(id) {
			return true
		}
	}

	return false
}

// BackEdges returns the edges that close a cycle when the graph is explored depth-first from the
// given roots first and then from every remaining node in storage order. Removing them leaves a DAG.
func (a *Adjacency) BackEdges(roots []string) map[[2]string]bool {
	back := make(map[[2]string]bool)
	state := make(map[string]int) // 0 unseen, 1 on stack, 2 done

	var visit func(id string)
	visit = func(id string) {
		state[id] = 1

		for _, next := range a.out[id] {
			switch state[next] {
			case 0:
				visit(next)
			case 1:
				back[[2]string{id, next}] = true
			}
		}

		state[id] = 2
	}

	for _, id := range roots {
		if state[id] == 0 {
			visit(id)
		}
	}

	for _, id := range a.Nodes {
		if state[id] == 0 {
			visit(id)
		}
	}

	return back
}
