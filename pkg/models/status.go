package models

// NodeStatus is the runtime state of a node during a simulated run.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusExecuting NodeStatus = "executing"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusWaiting   NodeStatus = "waiting"
	NodeStatusReceived  NodeStatus = "received"
	NodeStatusTimedOut  NodeStatus = "timed_out"
	NodeStatusPaused    NodeStatus = "paused"
)

// Resolved reports whether a waiting node has been released by a signal or a timeout.
func (s NodeStatus) Resolved() bool {
	return s == NodeStatusReceived || s == NodeStatusTimedOut
}
