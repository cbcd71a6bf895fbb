package models

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// NodeConfig is the type-specific configuration of a node. The concrete variant is selected by the
// node type: *SplitConfig, *JumpConfig, *ExternalSignalConfig, or GenericConfig for everything else.
type NodeConfig interface {
	Clone() NodeConfig
	nodeConfig()
}

// Transition is one labeled output of a split node.
type Transition struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	SegmentCode string `json:"segment_code"`
	EnableLimit bool   `json:"enable_limit"`
	SkipEmpty   bool   `json:"skip_empty"`
}

// SplitConfig configures a split node; each transition is a logical output port.
type SplitConfig struct {
	Transitions []Transition `json:"transitions"`
}

func (*SplitConfig) nodeConfig() {}

// Clone returns a deep copy.
func (c *SplitConfig) Clone() NodeConfig {
	out := &SplitConfig{Transitions: make([]Transition, len(c.Transitions))}
	copy(out.Transitions, c.Transitions)

	return out
}

// Transition returns the transition with the given id.
func (c *SplitConfig) Transition(id string) (Transition, bool) {
	for _, t := range c.Transitions {
		if t.ID == id {
			return t, true
		}
	}

	return Transition{}, false
}

// NewTransition builds a transition with a fresh id.
func NewTransition(label string) Transition {
	return Transition{
		ID:    uuid.New().String(),
		Label: label,
	}
}

// JumpConfig configures a jump node. TargetNodeID is a weak reference and must be resolved against the
// graph before every use.
type JumpConfig struct {
	TargetNodeID string `json:"target_node_id"`
}

func (*JumpConfig) nodeConfig() {}

// Clone returns a copy.
func (c *JumpConfig) Clone() NodeConfig {
	out := *c

	return &out
}

// Duplicate signal handling modes.
const (
	DuplicateBehaviorIgnore  = "ignore"
	DuplicateBehaviorRestart = "restart"
	DuplicateBehaviorQueue   = "queue"
)

// Timeout units accepted by external signal nodes.
const (
	TimeoutUnitMinutes = "minutes"
	TimeoutUnitHours   = "hours"
	TimeoutUnitDays    = "days"
)

// ExternalSignalConfig configures a node that suspends the flow until an external signal arrives.
type ExternalSignalConfig struct {
	SignalKey          string `json:"signal_key"`
	TimeoutEnabled     bool   `json:"timeout_enabled"`
	TimeoutValue       int    `json:"timeout_value"`
	TimeoutUnit        string `json:"timeout_unit"`
	DuplicateBehavior  string `json:"duplicate_behavior"`
	CorrelationKey     string `json:"correlation_key"`
	RequireCorrelation bool   `json:"require_correlation"`
}

func (*ExternalSignalConfig) nodeConfig() {}

// Clone returns a copy.
func (c *ExternalSignalConfig) Clone() NodeConfig {
	out := *c

	return &out
}

// GenericConfig holds the free-form configuration of activities without engine semantics.
type GenericConfig map[string]any

func (GenericConfig) nodeConfig() {}

// Clone returns a shallow copy of the map.
func (c GenericConfig) Clone() NodeConfig {
	if c == nil {
		return GenericConfig{}
	}

	return GenericConfig(maps.Clone(map[string]any(c)))
}

// DefaultConfig seeds the configuration of a newly added node of type t.
func DefaultConfig(t NodeType) NodeConfig {
	switch t {
	case NodeTypeSplit:
		return &SplitConfig{Transitions: []Transition{NewTransition("Segment 1")}}
	case NodeTypeJump:
		return &JumpConfig{}
	case NodeTypeExternalSignal:
		return &ExternalSignalConfig{
			TimeoutValue:      1,
			TimeoutUnit:       TimeoutUnitHours,
			DuplicateBehavior: DuplicateBehaviorIgnore,
		}
	default:
		return GenericConfig{}
	}
}

// DecodeConfig decodes raw JSON into the config variant for t. Empty input yields the zero variant.
func DecodeConfig(t NodeType, raw json.RawMessage) (NodeConfig, error) {
	var config NodeConfig

	switch t {
	case NodeTypeSplit:
		config = &SplitConfig{}
	case NodeTypeJump:
		config = &JumpConfig{}
	case NodeTypeExternalSignal:
		config = &ExternalSignalConfig{}
	default:
		generic := GenericConfig{}
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &generic); err != nil {
				return nil, fmt.Errorf("invalid %s config: %w", t, err)
			}
		}

		return generic, nil
	}

	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, config); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", t, err)
		}
	}

	return config, nil
}
