// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(id string, nodeType models.NodeType, overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:       id,
		Type:     nodeType,
		Category: nodeType.DefaultCategory(),
		Name:     "Test " + string(nodeType),
		Config:   models.DefaultConfig(nodeType),
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// Entry creates an entry node.
func Entry(id string, overrides ...func(*models.Node)) *models.Node {
	return CreateTestNode(id, models.NodeTypeEntry, overrides...)
}

// Email creates an email delivery node.
func Email(id string, overrides ...func(*models.Node)) *models.Node {
	return CreateTestNode(id, models.NodeTypeEmail, overrides...)
}

// Jump creates a jump node pointing at target.
func Jump(id, target string, overrides ...func(*models.Node)) *models.Node {
	overrides = append([]func(*models.Node){WithConfig(&models.JumpConfig{TargetNodeID: target})}, overrides...)

	return CreateTestNode(id, models.NodeTypeJump, overrides...)
}

// Signal creates an external signal node listening on key.
func Signal(id, key string, overrides ...func(*models.Node)) *models.Node {
	cfg := &models.ExternalSignalConfig{
		SignalKey:         key,
		DuplicateBehavior: models.DuplicateBehaviorIgnore,
	}
	overrides = append([]func(*models.Node){WithConfig(cfg)}, overrides...)

	return CreateTestNode(id, models.NodeTypeExternalSignal, overrides...)
}

// WithConfig sets the node configuration.
func WithConfig(config models.NodeConfig) func(*models.Node) {
	return func(n *models.Node) {
		n.Config = config
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// WithPosition sets the node position.
func WithPosition(x, y float64) func(*models.Node) {
	return func(n *models.Node) {
		n.Position = models.Position{X: x, Y: y}
	}
}

// Connect creates a connection between two node ids.
func Connect(from, to string) *models.Connection {
	return &models.Connection{
		ID:   uuid.New().String(),
		From: from,
		To:   to,
	}
}

// ConnectTransition creates a connection bound to a transition of the source node.
func ConnectTransition(from, to, transitionID string) *models.Connection {
	c := Connect(from, to)
	c.TransitionID = transitionID
	c.Label = transitionID

	return c
}

// Document assembles a document from nodes and connections.
func Document(nodes []*models.Node, connections ...*models.Connection) *models.Document {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes, nodes...)
	doc.Connections = append(doc.Connections, connections...)

	return doc
}

// Nodes is a small helper to build a node slice inline.
func Nodes(nodes ...*models.Node) []*models.Node {
	return nodes
}
