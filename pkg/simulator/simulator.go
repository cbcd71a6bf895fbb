// Package simulator steps through a workflow graph one node per tick to preview a run on the
// canvas. It never dispatches anything: statuses and metrics are synthetic.
//
// A run walks the execution order computed at start. External signal nodes suspend the run until
// Signal or Timeout releases them; jump nodes relocate the cursor to their target. Node
// configuration is re-read from the shared graph on every tick, so edits made mid-run take effect
// immediately.
package simulator

import (
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/kchakrav/CRMApp-sub002/pkg/eventbus"
	"github.com/kchakrav/CRMApp-sub002/pkg/events"
	"github.com/kchakrav/CRMApp-sub002/pkg/graph"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
)

// DefaultTickInterval is the delay between two steps of a running simulation.
const DefaultTickInterval = time.Second

// Listener receives every event produced by a simulator, after its lock is released.
type Listener func(event eventbus.Event)

// State is a snapshot of a run.
type State struct {
	Running       bool                         `json:"running"`
	Finished      bool                         `json:"finished"`
	Order         []string                     `json:"order"`
	CurrentIndex  int                          `json:"current_index"`
	CurrentNodeID string                       `json:"current_node_id,omitempty"`
	WaitingNodeID string                       `json:"waiting_node_id,omitempty"`
	Steps         int                          `json:"steps"`
	Statuses      map[string]models.NodeStatus `json:"statuses"`
	Metrics       map[string]Metrics           `json:"metrics"`
}

type Simulator struct {
	mu sync.Mutex

	workflowID string
	graph      *graph.Graph
	scheduler  Scheduler
	listener   Listener
	rng        *rand.Rand
	logger     *slog.Logger

	running   bool
	finished  bool
	order     []string
	index     int
	waitingID string
	steps     int
	statuses  map[string]models.NodeStatus
	metrics   map[string]Metrics

	pending []eventbus.Event
}

type Option func(*Simulator)

// WithScheduler replaces the default cron scheduler.
func WithScheduler(s Scheduler) Option {
	return func(sim *Simulator) {
		sim.scheduler = s
	}
}

func WithListener(l Listener) Option {
	return func(sim *Simulator) {
		sim.listener = l
	}
}

// WithRand fixes the source of the synthetic metrics.
func WithRand(rng *rand.Rand) Option {
	return func(sim *Simulator) {
		sim.rng = rng
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(sim *Simulator) {
		sim.logger = logger
	}
}

// New creates a simulator over g. The graph is shared, not copied.
func New(workflowID string, g *graph.Graph, opts ...Option) *Simulator {
	sim := &Simulator{
		workflowID: workflowID,
		graph:      g,
		logger:     slog.Default(),
		statuses:   make(map[string]models.NodeStatus),
		metrics:    make(map[string]Metrics),
	}

	for _, opt := range opts {
		opt(sim)
	}

	if sim.scheduler == nil {
		sim.scheduler = NewCronScheduler(DefaultTickInterval)
	}

	if sim.rng == nil {
		sim.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	sim.logger = sim.logger.With("module", "simulator", "workflow_id", workflowID)

	return sim
}

// Start begins a fresh run. Nothing is changed when the run is refused.
func (s *Simulator) Start() error {
	s.mu.Lock()

	err := s.start()

	s.mu.Unlock()
	s.flush()

	return err
}

func (s *Simulator) start() error {
	if s.running {
		return ErrAlreadyRunning
	}

	if s.graph.Len() == 0 {
		return ErrNoNodes
	}

	order := s.graph.ExecutionOrder()
	if len(order) == 0 {
		return ErrEmptyExecutionOrder
	}

	// Ticks block on s.mu, so the run state below is in place before the first one is handled.
	if err := s.scheduler.Start(s.tick); err != nil {
		s.logger.Error("Failed to start simulation tick", "error", err)

		return err
	}

	s.order = order
	s.index = 0
	s.waitingID = ""
	s.finished = false
	s.steps = 0
	s.statuses = make(map[string]models.NodeStatus, len(order))
	s.metrics = assignMetrics(order, s.rng)

	for _, id := range order {
		s.statuses[id] = models.NodeStatusPending
	}

	s.running = true

	s.emit(events.SimulationStarted{
		BaseEvent: events.NewBaseEvent(events.SimulationStartedEvent, s.workflowID),
		Order:     slices.Clone(order),
	})
	s.setStatus(order[0], models.NodeStatusExecuting)

	s.logger.Info("Simulation started", "nodes", len(order))

	return nil
}

func (s *Simulator) tick() {
	if _, err := s.Advance(); err != nil {
		s.logger.Debug("Tick ignored", "error", err)
	}
}

// Advance performs one step of a running simulation and reports the node that was processed.
func (s *Simulator) Advance() (string, error) {
	s.mu.Lock()

	id, err := s.advance()

	s.mu.Unlock()
	s.flush()

	return id, err
}

func (s *Simulator) advance() (string, error) {
	if !s.running {
		return "", ErrNotRunning
	}

	id := s.order[s.index]
	s.steps++

	node, exists := s.graph.Node(id)
	if exists && node.Type == models.NodeTypeExternalSignal {
		s.suspend(node)

		return id, nil
	}

	s.setStatus(id, models.NodeStatusCompleted)

	if exists && node.Type == models.NodeTypeJump {
		if target, ok := s.graph.ResolveJumpTarget(id); ok {
			if pos := slices.Index(s.order, target.ID); pos >= 0 {
				s.index = pos
				s.setStatus(target.ID, models.NodeStatusExecuting)

				return id, nil
			}
		}
	}

	s.moveTo(s.index + 1)

	return id, nil
}

func (s *Simulator) suspend(node *models.Node) {
	s.scheduler.Stop()
	s.running = false
	s.waitingID = node.ID
	s.setStatus(node.ID, models.NodeStatusWaiting)

	key := ""
	if cfg := node.ExternalSignal(); cfg != nil {
		key = cfg.SignalKey
	}

	s.emit(events.SimulationWaiting{
		BaseEvent: events.NewBaseEvent(events.SimulationWaitingEvent, s.workflowID),
		NodeID:    node.ID,
		SignalKey: key,
	})
	s.logger.Info("Simulation waiting for signal", "node_id", node.ID, "signal_key", key)
}

// moveTo places the cursor at index, finishing the run when it falls past the end of the order.
func (s *Simulator) moveTo(index int) {
	s.index = index

	if index >= len(s.order) {
		s.scheduler.Stop()
		s.running = false
		s.finished = true
		s.index = len(s.order)

		s.emit(events.SimulationCompleted{
			BaseEvent: events.NewBaseEvent(events.SimulationCompletedEvent, s.workflowID),
			Steps:     s.steps,
		})
		s.logger.Info("Simulation completed", "steps", s.steps)

		return
	}

	s.setStatus(s.order[index], models.NodeStatusExecuting)
}

// Stop cancels the tick and pauses the current node. A pending wait is abandoned.
func (s *Simulator) Stop() error {
	s.mu.Lock()

	err := s.stop()

	s.mu.Unlock()
	s.flush()

	return err
}

func (s *Simulator) stop() error {
	if !s.running && s.waitingID == "" {
		return ErrNotRunning
	}

	s.scheduler.Stop()
	s.running = false
	s.waitingID = ""

	current := ""
	if s.index < len(s.order) {
		current = s.order[s.index]
		s.setStatus(current, models.NodeStatusPaused)
	}

	s.emit(events.SimulationStopped{
		BaseEvent: events.NewBaseEvent(events.SimulationStoppedEvent, s.workflowID),
		NodeID:    current,
	})
	s.logger.Info("Simulation stopped", "node_id", current)

	return nil
}

// Restart discards every runtime status and starts again from the top of a freshly computed order.
func (s *Simulator) Restart() error {
	s.mu.Lock()

	if s.running {
		s.scheduler.Stop()
	}

	s.reset()
	err := s.start()

	s.mu.Unlock()
	s.flush()

	return err
}

func (s *Simulator) reset() {
	s.running = false
	s.finished = false
	s.order = nil
	s.index = 0
	s.waitingID = ""
	s.steps = 0
	s.statuses = make(map[string]models.NodeStatus)
	s.metrics = make(map[string]Metrics)
}

// Signal resolves a waiting node as if its signal had arrived.
func (s *Simulator) Signal(nodeID string) error {
	return s.resolve(nodeID, models.NodeStatusReceived)
}

// Timeout resolves a waiting node as if its timeout had elapsed. Configured timeouts are never fired
// automatically; this is the only way to take the timeout branch.
func (s *Simulator) Timeout(nodeID string) error {
	return s.resolve(nodeID, models.NodeStatusTimedOut)
}

func (s *Simulator) resolve(nodeID string, resolution models.NodeStatus) error {
	s.mu.Lock()

	err := s.release(nodeID, resolution)

	s.mu.Unlock()
	s.flush()

	return err
}

func (s *Simulator) release(nodeID string, resolution models.NodeStatus) error {
	if s.statuses[nodeID] != models.NodeStatusWaiting {
		return ErrNodeNotWaiting
	}

	s.setStatus(nodeID, resolution)

	if nodeID != s.waitingID {
		return nil
	}

	s.waitingID = ""
	s.running = true

	next := s.index + 1
	if resolution == models.NodeStatusTimedOut {
		if pos := s.timeoutBranch(nodeID); pos >= 0 {
			next = pos
		}
	}

	s.moveTo(next)

	nextID := ""
	if !s.finished {
		nextID = s.order[s.index]
	}

	s.emit(events.SimulationResumed{
		BaseEvent:  events.NewBaseEvent(events.SimulationResumedEvent, s.workflowID),
		NodeID:     nodeID,
		Resolution: resolution,
		NextNodeID: nextID,
	})

	if !s.running {
		return nil
	}

	if err := s.scheduler.Start(s.tick); err != nil {
		s.running = false
		s.logger.Error("Failed to resume simulation tick", "error", err)

		return err
	}

	return nil
}

// timeoutBranch returns the order position of the node reached through the timeout connection.
func (s *Simulator) timeoutBranch(nodeID string) int {
	for _, c := range s.graph.Connections() {
		if c.From == nodeID && c.TransitionID == models.TransitionTimeout {
			if pos := slices.Index(s.order, c.To); pos >= 0 {
				return pos
			}
		}
	}

	return -1
}

// State returns a snapshot of the run.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := State{
		Running:       s.running,
		Finished:      s.finished,
		Order:         slices.Clone(s.order),
		CurrentIndex:  s.index,
		WaitingNodeID: s.waitingID,
		Steps:         s.steps,
		Statuses:      make(map[string]models.NodeStatus, len(s.statuses)),
		Metrics:       make(map[string]Metrics, len(s.metrics)),
	}

	if state.Order == nil {
		state.Order = []string{}
	}

	if s.index < len(s.order) {
		state.CurrentNodeID = s.order[s.index]
	}

	for id, status := range s.statuses {
		state.Statuses[id] = status
	}

	for id, m := range s.metrics {
		state.Metrics[id] = m
	}

	return state
}

func (s *Simulator) setStatus(id string, status models.NodeStatus) {
	previous := s.statuses[id]
	if previous == status {
		return
	}

	s.statuses[id] = status

	s.emit(events.NodeStatusChanged{
		BaseEvent: events.NewBaseEvent(events.NodeStatusChangedEvent, s.workflowID),
		NodeID:    id,
		Previous:  previous,
		Status:    status,
	})
}

func (s *Simulator) emit(event eventbus.Event) {
	if s.listener == nil {
		return
	}

	s.pending = append(s.pending, event)
}

// flush hands queued events to the listener outside the lock.
func (s *Simulator) flush() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, event := range pending {
		s.listener(event)
	}
}
