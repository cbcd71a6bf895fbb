package models

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// CanvasState is the viewport of the canvas. It carries no graph semantics.
type CanvasState struct {
	Zoom float64  `json:"zoom"`
	Pan  Position `json:"pan"`
}

// DefaultCanvasState is the viewport of an empty canvas.
func DefaultCanvasState() CanvasState {
	return CanvasState{Zoom: 1}
}

// Document is the full-state snapshot persisted for one workflow.
type Document struct {
	Nodes       []*Node       `json:"nodes"        validate:"dive"`
	Connections []*Connection `json:"connections"  validate:"dive"`
	CanvasState CanvasState   `json:"canvas_state"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Nodes:       []*Node{},
		Connections: []*Connection{},
		CanvasState: DefaultCanvasState(),
	}
}

var documentValidator = validator.New(validator.WithRequiredStructEnabled())

// ParseDocument decodes a persisted document, rejecting input that does not match the document schema.
func ParseDocument(data []byte) (*Document, error) {
	if err := ValidateDocumentSchema(data); err != nil {
		return nil, err
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if doc.Nodes == nil {
		doc.Nodes = []*Node{}
	}

	if doc.Connections == nil {
		doc.Connections = []*Connection{}
	}

	if err := documentValidator.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if err := doc.checkUniqueIDs(); err != nil {
		return nil, err
	}

	return doc, nil
}

func (d *Document) checkUniqueIDs() error {
	nodes := make(map[string]struct{}, len(d.Nodes))

	for _, n := range d.Nodes {
		if _, ok := nodes[n.ID]; ok {
			return fmt.Errorf("%w: duplicate node id %s", ErrInvalidDocument, n.ID)
		}

		nodes[n.ID] = struct{}{}
	}

	connections := make(map[string]struct{}, len(d.Connections))

	for _, c := range d.Connections {
		if _, ok := connections[c.ID]; ok {
			return fmt.Errorf("%w: duplicate connection id %s", ErrInvalidDocument, c.ID)
		}

		connections[c.ID] = struct{}{}
	}

	return nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		Nodes:       make([]*Node, 0, len(d.Nodes)),
		Connections: make([]*Connection, 0, len(d.Connections)),
		CanvasState: d.CanvasState,
	}

	for _, n := range d.Nodes {
		out.Nodes = append(out.Nodes, n.Clone())
	}

	for _, c := range d.Connections {
		conn := *c
		out.Connections = append(out.Connections, &conn)
	}

	return out
}
