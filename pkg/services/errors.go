// Package services coordinates canvas editing and simulation sessions on top of the graph,
// persistence and event bus layers.
package services

import (
	"errors"
	"fmt"

	"github.com/kchakrav/CRMApp-sub002/pkg/graph"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence"
	"github.com/kchakrav/CRMApp-sub002/pkg/simulator"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest  = errors.New("invalid request")
	ErrDocumentNil     = errors.New("document cannot be nil")
	ErrNodeTypeMissing = errors.New("node type is required")

	// Simulation Conflicts (409 Conflict).
	ErrSimulationNotStarted = errors.New("simulation has not been started")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     fmt.Errorf("%w: %w", ErrInvalidRequest, err),
	}
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrDocumentNil) ||
		errors.Is(err, ErrNodeTypeMissing) ||
		errors.Is(err, models.ErrInvalidDocument) ||
		errors.Is(err, persistence.ErrInvalidWorkflowID) ||
		errors.Is(err, graph.ErrSelfConnection) ||
		errors.Is(err, graph.ErrUnknownNodeType) ||
		errors.Is(err, graph.ErrNotASplit) ||
		errors.Is(err, graph.ErrConfigMismatch)
}

// IsConflictError checks if an error is a state conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, graph.ErrDuplicateConnection) ||
		errors.Is(err, ErrSimulationNotStarted) ||
		errors.Is(err, simulator.ErrNoNodes) ||
		errors.Is(err, simulator.ErrEmptyExecutionOrder) ||
		errors.Is(err, simulator.ErrAlreadyRunning) ||
		errors.Is(err, simulator.ErrNotRunning) ||
		errors.Is(err, simulator.ErrNodeNotWaiting)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, persistence.ErrWorkflowNotFound) ||
		errors.Is(err, graph.ErrNodeNotFound) ||
		errors.Is(err, graph.ErrConnectionNotFound) ||
		errors.Is(err, graph.ErrTransitionNotFound)
}
