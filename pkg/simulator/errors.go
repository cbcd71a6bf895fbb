package simulator

import "errors"

var (
	ErrNoNodes             = errors.New("workflow has no nodes to simulate")
	ErrEmptyExecutionOrder = errors.New("execution order is empty")
	ErrAlreadyRunning      = errors.New("simulation is already running")
	ErrNotRunning          = errors.New("simulation is not running")
	ErrNodeNotWaiting      = errors.New("node is not waiting for a signal")
)
