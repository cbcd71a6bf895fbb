// Package models defines the campaign canvas domain: typed activity nodes, connections and the
// persisted canvas document.
package models

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies the activity kind of a node.
type NodeType string

// Flow control activities.
const (
	NodeTypeEntry          NodeType = "entry"
	NodeTypeExit           NodeType = "exit"
	NodeTypeStop           NodeType = "stop"
	NodeTypeWait           NodeType = "wait"
	NodeTypeScheduler      NodeType = "scheduler"
	NodeTypeFork           NodeType = "fork"
	NodeTypeAndJoin        NodeType = "and_join"
	NodeTypeJump           NodeType = "jump"
	NodeTypeExternalSignal NodeType = "external_signal"
	NodeTypeAlert          NodeType = "alert"
	NodeTypeTest           NodeType = "test"
)

// Targeting activities.
const (
	NodeTypeQuery           NodeType = "query"
	NodeTypeBuildAudience   NodeType = "build_audience"
	NodeTypeCombine         NodeType = "combine"
	NodeTypeIntersection    NodeType = "intersection"
	NodeTypeExclusion       NodeType = "exclusion"
	NodeTypeSplit           NodeType = "split"
	NodeTypeDeduplication   NodeType = "deduplication"
	NodeTypeEnrichment      NodeType = "enrichment"
	NodeTypeReconciliation  NodeType = "reconciliation"
	NodeTypeChangeDimension NodeType = "change_dimension"
	NodeTypeSaveAudience    NodeType = "save_audience"
)

// Channel activities.
const (
	NodeTypeEmail      NodeType = "email"
	NodeTypeSMS        NodeType = "sms"
	NodeTypePush       NodeType = "push"
	NodeTypeDirectMail NodeType = "direct_mail"
	NodeTypeInApp      NodeType = "in_app"
	NodeTypeWebhook    NodeType = "webhook"
)

// Data management activities.
const (
	NodeTypeLoadFile    NodeType = "load_file"
	NodeTypeExtractFile NodeType = "extract_file"
	NodeTypeUpdateData  NodeType = "update_data"
)

// Node categories used by the palette.
const (
	CategoryFlow      = "flow"
	CategoryTargeting = "targeting"
	CategoryChannel   = "channel"
	CategoryData      = "data"
)

var nodeCategories = map[NodeType]string{
	NodeTypeEntry:           CategoryFlow,
	NodeTypeExit:            CategoryFlow,
	NodeTypeStop:            CategoryFlow,
	NodeTypeWait:            CategoryFlow,
	NodeTypeScheduler:       CategoryFlow,
	NodeTypeFork:            CategoryFlow,
	NodeTypeAndJoin:         CategoryFlow,
	NodeTypeJump:            CategoryFlow,
	NodeTypeExternalSignal:  CategoryFlow,
	NodeTypeAlert:           CategoryFlow,
	NodeTypeTest:            CategoryFlow,
	NodeTypeQuery:           CategoryTargeting,
	NodeTypeBuildAudience:   CategoryTargeting,
	NodeTypeCombine:         CategoryTargeting,
	NodeTypeIntersection:    CategoryTargeting,
	NodeTypeExclusion:       CategoryTargeting,
	NodeTypeSplit:           CategoryTargeting,
	NodeTypeDeduplication:   CategoryTargeting,
	NodeTypeEnrichment:      CategoryTargeting,
	NodeTypeReconciliation:  CategoryTargeting,
	NodeTypeChangeDimension: CategoryTargeting,
	NodeTypeSaveAudience:    CategoryTargeting,
	NodeTypeEmail:           CategoryChannel,
	NodeTypeSMS:             CategoryChannel,
	NodeTypePush:            CategoryChannel,
	NodeTypeDirectMail:      CategoryChannel,
	NodeTypeInApp:           CategoryChannel,
	NodeTypeWebhook:         CategoryChannel,
	NodeTypeLoadFile:        CategoryData,
	NodeTypeExtractFile:     CategoryData,
	NodeTypeUpdateData:      CategoryData,
}

// Known reports whether t is one of the supported activity kinds.
func (t NodeType) Known() bool {
	_, ok := nodeCategories[t]

	return ok
}

// DefaultCategory returns the palette category of t, or an empty string for unknown types.
func (t NodeType) DefaultCategory() string {
	return nodeCategories[t]
}

// IsTerminal reports whether t starts or ends a flow. Jumps may not target these.
func (t NodeType) IsTerminal() bool {
	return t == NodeTypeEntry || t == NodeTypeExit || t == NodeTypeStop
}

// NodeTypes returns every supported activity kind.
func NodeTypes() []NodeType {
	types := make([]NodeType, 0, len(nodeCategories))
	for t := range nodeCategories {
		types = append(types, t)
	}

	return types
}

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the rendered bounding box of a node.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Node is an activity placed on the canvas.
type Node struct {
	ID       string     `json:"id"       validate:"required"`
	Type     NodeType   `json:"type"     validate:"required"`
	Category string     `json:"category"`
	Name     string     `json:"name"`
	Icon     string     `json:"icon"`
	Position Position   `json:"position"`
	Config   NodeConfig `json:"config"`
}

type nodeJSON struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Category string          `json:"category"`
	Name     string          `json:"name"`
	Icon     string          `json:"icon"`
	Position Position        `json:"position"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// MarshalJSON encodes the node with its config variant inlined.
func (n Node) MarshalJSON() ([]byte, error) {
	config := n.Config
	if config == nil {
		config = DefaultConfig(n.Type)
	}

	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config of node %s: %w", n.ID, err)
	}

	return json.Marshal(nodeJSON{
		ID:       n.ID,
		Type:     n.Type,
		Category: n.Category,
		Name:     n.Name,
		Icon:     n.Icon,
		Position: n.Position,
		Config:   raw,
	})
}

// UnmarshalJSON decodes the node, selecting the config variant from the node type.
func (n *Node) UnmarshalJSON(data []byte) error {
	var aux nodeJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	config, err := DecodeConfig(aux.Type, aux.Config)
	if err != nil {
		return fmt.Errorf("node %s: %w", aux.ID, err)
	}

	*n = Node{
		ID:       aux.ID,
		Type:     aux.Type,
		Category: aux.Category,
		Name:     aux.Name,
		Icon:     aux.Icon,
		Position: aux.Position,
		Config:   config,
	}

	return nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	if n.Config != nil {
		c.Config = n.Config.Clone()
	}

	return &c
}

// IsEntry reports whether the node is a traversal root.
func (n *Node) IsEntry() bool {
	return n.Type == NodeTypeEntry
}

// Split returns the split configuration, or nil if the node is not a split.
func (n *Node) Split() *SplitConfig {
	c, _ := n.Config.(*SplitConfig)

	return c
}

// Jump returns the jump configuration, or nil if the node is not a jump.
func (n *Node) Jump() *JumpConfig {
	c, _ := n.Config.(*JumpConfig)

	return c
}

// ExternalSignal returns the signal configuration, or nil if the node does not wait on a signal.
func (n *Node) ExternalSignal() *ExternalSignalConfig {
	c, _ := n.Config.(*ExternalSignalConfig)

	return c
}

// Connection is a directed edge between two nodes.
type Connection struct {
	ID           string `json:"id"                      validate:"required"`
	From         string `json:"from"                    validate:"required"`
	To           string `json:"to"                      validate:"required,nefield=From"`
	Label        string `json:"label"`
	TransitionID string `json:"transition_id,omitempty"`
}

// TransitionTimeout tags the edge an external signal follows when its wait expires.
const TransitionTimeout = "timeout"
