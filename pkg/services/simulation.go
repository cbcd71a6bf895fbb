package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kchakrav/CRMApp-sub002/pkg/eventbus"
	"github.com/kchakrav/CRMApp-sub002/pkg/otelhelper"
	"github.com/kchakrav/CRMApp-sub002/pkg/simulator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SimulationOption configures a Simulation service.
type SimulationOption func(*Simulation)

// WithTickInterval sets the delay between two steps of every run.
func WithTickInterval(interval time.Duration) SimulationOption {
	return func(s *Simulation) {
		s.newScheduler = func() simulator.Scheduler {
			return simulator.NewCronScheduler(interval)
		}
	}
}

// WithSchedulerFactory replaces how each run is ticked.
func WithSchedulerFactory(factory func() simulator.Scheduler) SimulationOption {
	return func(s *Simulation) {
		s.newScheduler = factory
	}
}

// WithSimulatorOptions adds options applied to every simulator created by the service.
func WithSimulatorOptions(opts ...simulator.Option) SimulationOption {
	return func(s *Simulation) {
		s.simulatorOpts = append(s.simulatorOpts, opts...)
	}
}

// Simulation owns one simulator per workflow. Each simulator runs over the live canvas graph and its
// events are forwarded to the event bus keyed by workflow id.
type Simulation struct {
	canvas        *Canvas
	publisher     eventbus.EventPublisher
	tracer        trace.Tracer
	base          *slog.Logger
	logger        *slog.Logger
	newScheduler  func() simulator.Scheduler
	simulatorOpts []simulator.Option

	mu         sync.Mutex
	simulators map[string]*simulator.Simulator
}

func NewSimulation(canvas *Canvas, publisher eventbus.EventPublisher, logger *slog.Logger, opts ...SimulationOption) *Simulation {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulation{
		canvas:     canvas,
		publisher:  publisher,
		tracer:     canvas.tracer,
		base:       logger,
		logger:     logger.With("module", "simulation"),
		simulators: make(map[string]*simulator.Simulator),
		newScheduler: func() simulator.Scheduler {
			return simulator.NewCronScheduler(simulator.DefaultTickInterval)
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start begins a fresh run of the workflow.
func (s *Simulation) Start(ctx context.Context, id string) (simulator.State, error) {
	return s.run(ctx, "simulation.start", id, true, (*simulator.Simulator).Start)
}

// Stop pauses the run on its current node.
func (s *Simulation) Stop(ctx context.Context, id string) (simulator.State, error) {
	return s.run(ctx, "simulation.stop", id, false, (*simulator.Simulator).Stop)
}

// Restart clears the run and starts it again from the top of a freshly computed order.
func (s *Simulation) Restart(ctx context.Context, id string) (simulator.State, error) {
	return s.run(ctx, "simulation.restart", id, true, (*simulator.Simulator).Restart)
}

// Step advances a running simulation by one node without waiting for the next tick.
func (s *Simulation) Step(ctx context.Context, id string) (simulator.State, error) {
	return s.run(ctx, "simulation.step", id, false, func(sim *simulator.Simulator) error {
		_, err := sim.Advance()

		return err
	})
}

// Signal releases a waiting node as if its signal had arrived.
func (s *Simulation) Signal(ctx context.Context, id, nodeID string) (simulator.State, error) {
	return s.run(ctx, "simulation.signal", id, false, func(sim *simulator.Simulator) error {
		return sim.Signal(nodeID)
	}, attribute.String(otelhelper.NodeIDKey, nodeID))
}

// Timeout releases a waiting node through its timeout branch.
func (s *Simulation) Timeout(ctx context.Context, id, nodeID string) (simulator.State, error) {
	return s.run(ctx, "simulation.timeout", id, false, func(sim *simulator.Simulator) error {
		return sim.Timeout(nodeID)
	}, attribute.String(otelhelper.NodeIDKey, nodeID))
}

// State returns the current run snapshot. A workflow never simulated reports an idle state.
func (s *Simulation) State(ctx context.Context, id string) (simulator.State, error) {
	sim, err := s.simulator(ctx, id, true)
	if err != nil {
		return simulator.State{}, err
	}

	return sim.State(), nil
}

// Discard stops and drops the simulator of a workflow, typically after the workflow was deleted.
func (s *Simulation) Discard(id string) {
	s.mu.Lock()
	sim, ok := s.simulators[id]
	delete(s.simulators, id)
	s.mu.Unlock()

	if ok {
		_ = sim.Stop()
	}
}

// Close stops every run.
func (s *Simulation) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.simulators))
	for id := range s.simulators {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Discard(id)
	}
}

func (s *Simulation) run(
	ctx context.Context,
	op, id string,
	create bool,
	fn func(*simulator.Simulator) error,
	attrs ...attribute.KeyValue,
) (simulator.State, error) {
	attrs = append(attrs, attribute.String(otelhelper.WorkflowIDKey, id))

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, op, attrs...)
	defer span.End()

	sim, err := s.simulator(ctx, id, create)
	if err != nil {
		otelhelper.SetError(span, err)

		return simulator.State{}, err
	}

	if err := fn(sim); err != nil {
		otelhelper.SetError(span, err)

		return sim.State(), err
	}

	state := sim.State()
	span.SetAttributes(attribute.Int(otelhelper.SimulationStepKey, state.Steps))

	return state, nil
}

func (s *Simulation) simulator(ctx context.Context, id string, create bool) (*simulator.Simulator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sim, ok := s.simulators[id]; ok {
		return sim, nil
	}

	if !create {
		return nil, ErrSimulationNotStarted
	}

	g, err := s.canvas.Graph(ctx, id)
	if err != nil {
		return nil, err
	}

	opts := []simulator.Option{
		simulator.WithScheduler(s.newScheduler()),
		simulator.WithListener(s.forward(id)),
		simulator.WithLogger(s.base),
	}
	opts = append(opts, s.simulatorOpts...)

	sim := simulator.New(id, g, opts...)
	s.simulators[id] = sim

	return sim, nil
}

// forward publishes simulator events. Ticks run outside any request, so publishing uses a fresh
// context.
func (s *Simulation) forward(id string) simulator.Listener {
	return func(event eventbus.Event) {
		if s.publisher == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.publisher.Publish(ctx, id, event); err != nil {
			s.logger.Warn("Failed to publish simulation event", "workflow_id", id, "event_type", event.GetType(), "error", err)
		}
	}
}
