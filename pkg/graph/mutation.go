package graph

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
)

// AddNode creates a node of the given type with its default config and places it at the nearest
// free spot to (x, y).
func (g *Graph) AddNode(nodeType models.NodeType, category, name, icon string, x, y float64) (*models.Node, error) {
	if !nodeType.Known() {
		return nil, newMutationError("add node", "", fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType))
	}

	if category == "" {
		category = nodeType.DefaultCategory()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	node := &models.Node{
		ID:       g.allocateID(),
		Type:     nodeType,
		Category: category,
		Name:     name,
		Icon:     icon,
		Position: g.findAvailablePosition(x, y),
		Config:   models.DefaultConfig(nodeType),
	}

	g.nodes = append(g.nodes, node)
	g.index[node.ID] = node

	return node.Clone(), nil
}

// DeleteNode removes a node and every connection touching it. When the node had exactly one
// predecessor and one successor, distinct from each other and not already linked, a connection
// between them is synthesised and returned.
func (g *Graph) DeleteNode(id string) (*models.Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[id]; !ok {
		return nil, newMutationError("delete node", id, ErrNodeNotFound)
	}

	var incoming, outgoing []*models.Connection

	kept := make([]*models.Connection, 0, len(g.connections))

	for _, c := range g.connections {
		switch {
		case c.From == id && c.To == id:
		case c.To == id:
			incoming = append(incoming, c)
		case c.From == id:
			outgoing = append(outgoing, c)
		default:
			kept = append(kept, c)
		}
	}

	g.connections = kept

	for i, n := range g.nodes {
		if n.ID == id {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)

			break
		}
	}

	delete(g.index, id)
	delete(g.sizes, id)

	if len(incoming) != 1 || len(outgoing) != 1 {
		return nil, nil
	}

	pred, succ := incoming[0].From, outgoing[0].To
	if pred == succ || g.hasEdge(pred, succ) {
		return nil, nil
	}

	if _, ok := g.index[pred]; !ok {
		return nil, nil
	}

	if _, ok := g.index[succ]; !ok {
		return nil, nil
	}

	// The bridge leaves the predecessor through the same port the deleted step was wired to.
	bridge := &models.Connection{
		ID:           uuid.New().String(),
		From:         pred,
		To:           succ,
		Label:        incoming[0].Label,
		TransitionID: incoming[0].TransitionID,
	}
	g.connections = append(g.connections, bridge)

	out := *bridge

	return &out, nil
}

// Connect adds an edge between two distinct existing nodes. Duplicate from/to pairs are refused.
func (g *Graph) Connect(from, to, label, transitionID string) (*models.Connection, error) {
	if from == to {
		return nil, newMutationError("connect", from, ErrSelfConnection)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[from]; !ok {
		return nil, newMutationError("connect", from, ErrNodeNotFound)
	}

	if _, ok := g.index[to]; !ok {
		return nil, newMutationError("connect", to, ErrNodeNotFound)
	}

	if g.hasEdge(from, to) {
		return nil, newMutationError("connect", from, fmt.Errorf("%w: %s -> %s", ErrDuplicateConnection, from, to))
	}

	conn := &models.Connection{
		ID:           uuid.New().String(),
		From:         from,
		To:           to,
		Label:        label,
		TransitionID: transitionID,
	}
	g.connections = append(g.connections, conn)

	out := *conn

	return &out, nil
}

// Disconnect removes a single connection.
func (g *Graph) Disconnect(connectionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, c := range g.connections {
		if c.ID == connectionID {
			g.connections = append(g.connections[:i], g.connections[i+1:]...)

			return nil
		}
	}

	return newMutationError("disconnect", "", fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID))
}

// MoveNode sets a node position as dragged, without collision avoidance.
func (g *Graph) MoveNode(id string, pos models.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.index[id]
	if !ok {
		return newMutationError("move node", id, ErrNodeNotFound)
	}

	n.Position = pos

	return nil
}

// RenameNode changes the display name of a node.
func (g *Graph) RenameNode(id, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.index[id]
	if !ok {
		return newMutationError("rename node", id, ErrNodeNotFound)
	}

	n.Name = name

	return nil
}

// UpdateNodeConfig replaces the config of a node in place. Changes are visible immediately to every
// reader, including a running simulation.
func (g *Graph) UpdateNodeConfig(id string, config models.NodeConfig) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.index[id]
	if !ok {
		return newMutationError("update config", id, ErrNodeNotFound)
	}

	if !configMatches(n.Type, config) {
		return newMutationError("update config", id, fmt.Errorf("%w: %T for %s", ErrConfigMismatch, config, n.Type))
	}

	n.Config = config.Clone()

	return nil
}

// AddTransition appends a transition to a split node.
func (g *Graph) AddTransition(splitID, label string) (models.Transition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.index[splitID]
	if !ok {
		return models.Transition{}, newMutationError("add transition", splitID, ErrNodeNotFound)
	}

	cfg := n.Split()
	if cfg == nil {
		return models.Transition{}, newMutationError("add transition", splitID, ErrNotASplit)
	}

	if label == "" {
		label = fmt.Sprintf("Segment %d", len(cfg.Transitions)+1)
	}

	t := models.NewTransition(label)
	cfg.Transitions = append(cfg.Transitions, t)

	return t, nil
}

// RemoveTransition drops a split transition together with the split's connections bound to it.
func (g *Graph) RemoveTransition(splitID, transitionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.index[splitID]
	if !ok {
		return newMutationError("remove transition", splitID, ErrNodeNotFound)
	}

	cfg := n.Split()
	if cfg == nil {
		return newMutationError("remove transition", splitID, ErrNotASplit)
	}

	found := false

	for i, t := range cfg.Transitions {
		if t.ID == transitionID {
			cfg.Transitions = append(cfg.Transitions[:i], cfg.Transitions[i+1:]...)
			found = true

			break
		}
	}

	if !found {
		return newMutationError("remove transition", splitID, fmt.Errorf("%w: %s", ErrTransitionNotFound, transitionID))
	}

	kept := g.connections[:0]

	for _, c := range g.connections {
		if c.From == splitID && c.TransitionID == transitionID {
			continue
		}

		kept = append(kept, c)
	}

	g.connections = kept

	return nil
}

func (g *Graph) hasEdge(from, to string) bool {
	for _, c := range g.connections {
		if c.From == from && c.To == to {
			return true
		}
	}

	return false
}

func configMatches(t models.NodeType, config models.NodeConfig) bool {
	switch config.(type) {
	case *models.SplitConfig:
		return t == models.NodeTypeSplit
	case *models.JumpConfig:
		return t == models.NodeTypeJump
	case *models.ExternalSignalConfig:
		return t == models.NodeTypeExternalSignal
	case models.GenericConfig:
		return t != models.NodeTypeSplit && t != models.NodeTypeJump && t != models.NodeTypeExternalSignal
	default:
		return false
	}
}
