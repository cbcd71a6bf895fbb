package web

import (
	"encoding/json"

	"github.com/kchakrav/CRMApp-sub002/pkg/eventbus"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence"
	"github.com/kchakrav/CRMApp-sub002/pkg/services"
)

// AddNodeRequest represents the request body for dropping a node on the canvas.
type AddNodeRequest struct {
	Type     string  `json:"type"     validate:"required"`
	Category string  `json:"category" validate:"omitempty,oneof=flow targeting channel data"`
	Name     string  `json:"name"     validate:"max=120"`
	Icon     string  `json:"icon"`
	X        float64 `json:"x"        validate:"gte=0"`
	Y        float64 `json:"y"        validate:"gte=0"`
}

func (r AddNodeRequest) toService() services.AddNodeRequest {
	return services.AddNodeRequest{
		Type:     models.NodeType(r.Type),
		Category: r.Category,
		Name:     r.Name,
		Icon:     r.Icon,
		Position: models.Position{X: r.X, Y: r.Y},
	}
}

// UpdateNodeRequest represents a partial node edit. Absent fields are left unchanged.
type UpdateNodeRequest struct {
	Name     *string          `json:"name,omitempty"     validate:"omitempty,max=120"`
	Position *models.Position `json:"position,omitempty"`
	Size     *models.Size     `json:"size,omitempty"`
	Config   json.RawMessage  `json:"config,omitempty"`
}

func (r UpdateNodeRequest) toService() services.UpdateNodeRequest {
	return services.UpdateNodeRequest{
		Name:     r.Name,
		Position: r.Position,
		Size:     r.Size,
		Config:   r.Config,
	}
}

// AddTransitionRequest represents the request body for adding a split transition. An empty label
// is replaced by a numbered default.
type AddTransitionRequest struct {
	Label string `json:"label" validate:"max=60"`
}

// ConnectRequest represents the request body for connecting two nodes.
type ConnectRequest struct {
	From         string `json:"from"          validate:"required"`
	To           string `json:"to"            validate:"required,nefield=From"`
	Label        string `json:"label"         validate:"max=60"`
	TransitionID string `json:"transition_id"`
}

func (r ConnectRequest) toService() services.ConnectRequest {
	return services.ConnectRequest{
		From:         r.From,
		To:           r.To,
		Label:        r.Label,
		TransitionID: r.TransitionID,
	}
}

// WorkflowListResponse lists stored workflows.
type WorkflowListResponse struct {
	Workflows []persistence.WorkflowInfo `json:"workflows"`
}

// DeleteNodeResponse reports the connection synthesised to bridge the removed node, if any.
type DeleteNodeResponse struct {
	Bridge *models.Connection `json:"bridge"`
}

// ActivityResponse lists recent events as they were published on the bus.
type ActivityResponse struct {
	Events []eventbus.Event `json:"events"`
}

type ExecutionOrderResponse struct {
	Order []string `json:"order"`
}
