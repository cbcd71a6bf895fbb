package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNodeNotFound indicates a node id does not resolve.
	ErrNodeNotFound = errors.New("node not found")

	// ErrConnectionNotFound indicates a connection id does not resolve.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrTransitionNotFound indicates a split transition id does not resolve.
	ErrTransitionNotFound = errors.New("transition not found")

	// ErrSelfConnection is returned when connecting a node to itself.
	ErrSelfConnection = errors.New("cannot connect a node to itself")

	// ErrDuplicateConnection is returned when an identical from/to edge already exists.
	ErrDuplicateConnection = errors.New("connection already exists")

	// ErrUnknownNodeType is returned when adding a node of an unsupported type.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrNotASplit is returned for transition operations on a node that is not a split.
	ErrNotASplit = errors.New("node is not a split")

	// ErrConfigMismatch is returned when a config variant does not match the node type.
	ErrConfigMismatch = errors.New("config does not match node type")
)

// MutationError wraps a failed graph mutation with the operation and the node involved.
type MutationError struct {
	Op     string
	NodeID string
	Err    error
}

func (e *MutationError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.NodeID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

func newMutationError(op, nodeID string, err error) *MutationError {
	return &MutationError{Op: op, NodeID: nodeID, Err: err}
}

// IsNodeNotFound checks if an error indicates a node was not found.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsConnectionNotFound checks if an error indicates a connection was not found.
func IsConnectionNotFound(err error) bool {
	return errors.Is(err, ErrConnectionNotFound)
}
