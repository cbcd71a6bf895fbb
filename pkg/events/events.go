// Package events defines the notifications emitted while workflows are edited and simulated.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
)

type EventType string

// Topic is the bus topic every canvas event is published on.
const Topic = "canvasflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Canvas lifecycle events.
	WorkflowSavedEvent   EventType = "workflow.saved"
	WorkflowDeletedEvent EventType = "workflow.deleted"

	// Simulation events.
	SimulationStartedEvent   EventType = "simulation.started"
	SimulationStoppedEvent   EventType = "simulation.stopped"
	SimulationWaitingEvent   EventType = "simulation.waiting"
	SimulationResumedEvent   EventType = "simulation.resumed"
	SimulationCompletedEvent EventType = "simulation.completed"
	NodeStatusChangedEvent   EventType = "simulation.node.status"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Workflow reports the workflow the event belongs to.
func (b BaseEvent) Workflow() string {
	return b.WorkflowID
}

// Types lists every event type published on the canvas topic.
func Types() []EventType {
	return []EventType{
		WorkflowSavedEvent,
		WorkflowDeletedEvent,
		SimulationStartedEvent,
		SimulationStoppedEvent,
		SimulationWaitingEvent,
		SimulationResumedEvent,
		SimulationCompletedEvent,
		NodeStatusChangedEvent,
	}
}

// WorkflowSaved is emitted after a document has been written to storage.
type WorkflowSaved struct {
	BaseEvent

	NodeCount       int `json:"node_count"`
	ConnectionCount int `json:"connection_count"`
}

func (w WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

// SimulationStarted carries the order computed once at start.
type SimulationStarted struct {
	BaseEvent

	Order []string `json:"order"`
}

func (s SimulationStarted) GetType() EventType {
	return SimulationStartedEvent
}

type SimulationStopped struct {
	BaseEvent

	NodeID string `json:"node_id,omitempty"`
}

func (s SimulationStopped) GetType() EventType {
	return SimulationStoppedEvent
}

// SimulationWaiting is emitted when the run suspends on an external signal node.
type SimulationWaiting struct {
	BaseEvent

	NodeID    string `json:"node_id"`
	SignalKey string `json:"signal_key"`
}

func (s SimulationWaiting) GetType() EventType {
	return SimulationWaitingEvent
}

// SimulationResumed is emitted when a waiting node is released and the tick loop restarts.
type SimulationResumed struct {
	BaseEvent

	NodeID     string            `json:"node_id"`
	Resolution models.NodeStatus `json:"resolution"`
	NextNodeID string            `json:"next_node_id,omitempty"`
}

func (s SimulationResumed) GetType() EventType {
	return SimulationResumedEvent
}

type SimulationCompleted struct {
	BaseEvent

	Steps int `json:"steps"`
}

func (s SimulationCompleted) GetType() EventType {
	return SimulationCompletedEvent
}

// NodeStatusChanged reports a single status transition.
type NodeStatusChanged struct {
	BaseEvent

	NodeID   string            `json:"node_id"`
	Previous models.NodeStatus `json:"previous"`
	Status   models.NodeStatus `json:"status"`
}

func (n NodeStatusChanged) GetType() EventType {
	return NodeStatusChangedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
