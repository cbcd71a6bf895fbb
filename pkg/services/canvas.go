package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kchakrav/CRMApp-sub002/pkg/eventbus"
	"github.com/kchakrav/CRMApp-sub002/pkg/events"
	"github.com/kchakrav/CRMApp-sub002/pkg/graph"
	"github.com/kchakrav/CRMApp-sub002/pkg/layout"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/otelhelper"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence"
	"github.com/kchakrav/CRMApp-sub002/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AddNodeRequest describes a node dropped on the canvas. Position is the drop point; the node is
// placed at the nearest free spot.
type AddNodeRequest struct {
	Type     models.NodeType
	Category string
	Name     string
	Icon     string
	Position models.Position
}

// UpdateNodeRequest carries a partial node edit. Nil fields are left unchanged.
type UpdateNodeRequest struct {
	Name     *string
	Position *models.Position
	Size     *models.Size
	Config   json.RawMessage
}

// ConnectRequest describes a new connection.
type ConnectRequest struct {
	From         string
	To           string
	Label        string
	TransitionID string
}

type session struct {
	mu    sync.Mutex
	graph *graph.Graph
}

// Canvas keeps the graph of every opened workflow in memory and writes the whole document back
// after each successful mutation.
type Canvas struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	layout      layout.Options

	mu       sync.Mutex
	sessions map[string]*session
}

// NewCanvas creates a canvas service. publisher may be nil when no one listens for changes.
func NewCanvas(p persistence.Persistence, publisher eventbus.EventPublisher, tracer trace.Tracer, logger *slog.Logger) *Canvas {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Canvas{
		persistence: p,
		publisher:   publisher,
		tracer:      tracer,
		logger:      logger.With("module", "canvas"),
		layout:      layout.DefaultOptions(),
		sessions:    make(map[string]*session),
	}
}

// HealthCheck checks the health of the persistence layer.
func (c *Canvas) HealthCheck(ctx context.Context) (string, bool) {
	if c.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := c.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns the stored workflows.
func (c *Canvas) List(ctx context.Context) ([]persistence.WorkflowInfo, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "canvas.list")
	defer span.End()

	workflows, err := c.persistence.Workflows(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// Graph returns the live graph of a workflow, loading it from storage on first access. The graph
// is shared with every simulation of the workflow.
func (c *Canvas) Graph(ctx context.Context, id string) (*graph.Graph, error) {
	s, err := c.session(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.graph, nil
}

func (c *Canvas) session(ctx context.Context, id string) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[id]; ok {
		return s, nil
	}

	doc, err := c.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	s := &session{graph: graph.FromDocument(doc)}
	c.sessions[id] = s

	c.logger.DebugContext(ctx, "Workflow session opened", "workflow_id", id, "nodes", len(doc.Nodes))

	return s, nil
}

// Get returns a snapshot of the workflow document.
func (c *Canvas) Get(ctx context.Context, id string) (*models.Document, error) {
	ctx, span := c.span(ctx, "canvas.get", id)
	defer span.End()

	g, err := c.Graph(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return g.Document(), nil
}

// Replace overwrites the workflow with doc, creating it when it does not exist yet. An open session
// keeps its graph instance so running simulations see the new content.
func (c *Canvas) Replace(ctx context.Context, id string, doc *models.Document) (*models.Document, error) {
	ctx, span := c.span(ctx, "canvas.replace", id)
	defer span.End()

	if doc == nil {
		return nil, ErrDocumentNil
	}

	if err := persistence.ValidateWorkflowID(id); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	c.mu.Lock()

	s, ok := c.sessions[id]
	if !ok {
		s = &session{graph: graph.New()}
		c.sessions[id] = s
	}

	c.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.graph.Snapshot()
	s.graph.Load(doc)

	if err := c.save(ctx, id, s.graph); err != nil {
		s.graph.Restore(previous)
		if !ok {
			c.forget(id)
		}

		otelhelper.SetError(span, err)

		return nil, err
	}

	return s.graph.Document(), nil
}

// Delete removes the workflow from storage and closes its session.
func (c *Canvas) Delete(ctx context.Context, id string) error {
	ctx, span := c.span(ctx, "canvas.delete", id)
	defer span.End()

	if err := c.persistence.DeleteWorkflow(ctx, id); err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	c.forget(id)

	c.publish(ctx, id, events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, id),
	})

	c.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", id)

	return nil
}

func (c *Canvas) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sessions, id)
}

// AddNode creates a node with the default config of its type at the nearest free spot.
func (c *Canvas) AddNode(ctx context.Context, id string, req AddNodeRequest) (*models.Node, error) {
	if req.Type == "" {
		return nil, ErrNodeTypeMissing
	}

	var node *models.Node

	err := c.mutate(ctx, "canvas.add_node", id, func(g *graph.Graph) error {
		var err error

		node, err = g.AddNode(req.Type, req.Category, req.Name, req.Icon, req.Position.X, req.Position.Y)

		return err
	}, attribute.String(otelhelper.NodeTypeKey, string(req.Type)))
	if err != nil {
		return nil, err
	}

	return node, nil
}

// UpdateNode applies a rename, a move, a rendered size and a config replacement, in that order.
func (c *Canvas) UpdateNode(ctx context.Context, id, nodeID string, req UpdateNodeRequest) (*models.Node, error) {
	var node *models.Node

	err := c.mutate(ctx, "canvas.update_node", id, func(g *graph.Graph) error {
		current, ok := g.Node(nodeID)
		if !ok {
			return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
		}

		if req.Name != nil {
			if err := g.RenameNode(nodeID, *req.Name); err != nil {
				return err
			}
		}

		if req.Position != nil {
			if err := g.MoveNode(nodeID, *req.Position); err != nil {
				return err
			}
		}

		if req.Size != nil {
			g.SetRenderedSize(nodeID, *req.Size)
		}

		if len(req.Config) > 0 && string(req.Config) != "null" {
			config, err := models.DecodeConfig(current.Type, req.Config)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}

			if err := g.UpdateNodeConfig(nodeID, config); err != nil {
				return err
			}
		}

		node, _ = g.Node(nodeID)

		return nil
	}, attribute.String(otelhelper.NodeIDKey, nodeID))
	if err != nil {
		return nil, err
	}

	return node, nil
}

// DeleteNode removes a node and returns the bridging connection, if one was created.
func (c *Canvas) DeleteNode(ctx context.Context, id, nodeID string) (*models.Connection, error) {
	var bridge *models.Connection

	err := c.mutate(ctx, "canvas.delete_node", id, func(g *graph.Graph) error {
		var err error

		bridge, err = g.DeleteNode(nodeID)

		return err
	}, attribute.String(otelhelper.NodeIDKey, nodeID))
	if err != nil {
		return nil, err
	}

	return bridge, nil
}

func (c *Canvas) AddTransition(ctx context.Context, id, splitID, label string) (models.Transition, error) {
	var transition models.Transition

	err := c.mutate(ctx, "canvas.add_transition", id, func(g *graph.Graph) error {
		var err error

		transition, err = g.AddTransition(splitID, label)

		return err
	}, attribute.String(otelhelper.NodeIDKey, splitID))
	if err != nil {
		return models.Transition{}, err
	}

	return transition, nil
}

func (c *Canvas) RemoveTransition(ctx context.Context, id, splitID, transitionID string) error {
	return c.mutate(ctx, "canvas.remove_transition", id, func(g *graph.Graph) error {
		return g.RemoveTransition(splitID, transitionID)
	}, attribute.String(otelhelper.NodeIDKey, splitID))
}

func (c *Canvas) Connect(ctx context.Context, id string, req ConnectRequest) (*models.Connection, error) {
	var conn *models.Connection

	err := c.mutate(ctx, "canvas.connect", id, func(g *graph.Graph) error {
		var err error

		conn, err = g.Connect(req.From, req.To, req.Label, req.TransitionID)

		return err
	}, attribute.String(otelhelper.NodeIDKey, req.From))
	if err != nil {
		return nil, err
	}

	return conn, nil
}

func (c *Canvas) Disconnect(ctx context.Context, id, connectionID string) error {
	return c.mutate(ctx, "canvas.disconnect", id, func(g *graph.Graph) error {
		return g.Disconnect(connectionID)
	}, attribute.String(otelhelper.ConnectionIDKey, connectionID))
}

// ExecutionOrder returns the current traversal order of the workflow.
func (c *Canvas) ExecutionOrder(ctx context.Context, id string) ([]string, error) {
	ctx, span := c.span(ctx, "canvas.execution_order", id)
	defer span.End()

	g, err := c.Graph(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	order := g.ExecutionOrder()
	span.SetAttributes(attribute.Int(otelhelper.NodeCountKey, len(order)))

	return order, nil
}

// Validate runs every structural check against the workflow.
func (c *Canvas) Validate(ctx context.Context, id string) (validation.Report, error) {
	ctx, span := c.span(ctx, "canvas.validate", id)
	defer span.End()

	g, err := c.Graph(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return validation.Report{}, err
	}

	report := validation.Validate(g)
	span.SetAttributes(
		attribute.Int(otelhelper.ErrorCountKey, len(report.Errors)),
		attribute.Int(otelhelper.WarningCountKey, len(report.Warnings)),
	)

	return report, nil
}

// AutoLayout arranges the workflow in depth columns and saves the new positions.
func (c *Canvas) AutoLayout(ctx context.Context, id string) (layout.Result, error) {
	var result layout.Result

	err := c.mutate(ctx, "canvas.auto_layout", id, func(g *graph.Graph) error {
		var err error

		result, err = layout.Apply(g, c.layout)

		return err
	})
	if err != nil {
		return layout.Result{}, err
	}

	return result, nil
}

// mutate runs fn against the workflow graph and saves the result. The graph is rolled back to its
// previous content when fn or the save fails.
func (c *Canvas) mutate(ctx context.Context, op, id string, fn func(g *graph.Graph) error, attrs ...attribute.KeyValue) error {
	ctx, span := c.span(ctx, op, id, attrs...)
	defer span.End()

	s, err := c.session(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.graph.Snapshot()

	if err := fn(s.graph); err != nil {
		s.graph.Restore(previous)
		otelhelper.SetError(span, err)

		return err
	}

	if err := c.save(ctx, id, s.graph); err != nil {
		s.graph.Restore(previous)
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

func (c *Canvas) save(ctx context.Context, id string, g *graph.Graph) error {
	doc := g.Document()

	if err := c.persistence.SaveWorkflow(ctx, id, doc); err != nil {
		c.logger.ErrorContext(ctx, "Failed to save workflow", "workflow_id", id, "error", err)

		return fmt.Errorf("failed to save workflow: %w", err)
	}

	c.publish(ctx, id, events.WorkflowSaved{
		BaseEvent:       events.NewBaseEvent(events.WorkflowSavedEvent, id),
		NodeCount:       len(doc.Nodes),
		ConnectionCount: len(doc.Connections),
	})

	return nil
}

func (c *Canvas) publish(ctx context.Context, id string, event eventbus.Event) {
	if c.publisher == nil {
		return
	}

	if err := c.publisher.Publish(ctx, id, event); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish event", "workflow_id", id, "event_type", event.GetType(), "error", err)
	}
}

// nolint:spancheck // callers end the span
func (c *Canvas) span(ctx context.Context, name, id string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(otelhelper.WorkflowIDKey, id))

	return otelhelper.StartSpan(ctx, c.tracer, name, attrs...)
}
