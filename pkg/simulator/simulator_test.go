package simulator_test

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kchakrav/CRMApp-sub002/pkg/eventbus"
	"github.com/kchakrav/CRMApp-sub002/pkg/events"
	"github.com/kchakrav/CRMApp-sub002/pkg/graph"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/simulator"
	"github.com/kchakrav/CRMApp-sub002/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualScheduler struct {
	active  bool
	started int
	stopped int
}

func (m *manualScheduler) Start(func()) error {
	m.active = true
	m.started++

	return nil
}

func (m *manualScheduler) Stop() {
	m.active = false
	m.stopped++
}

type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) listen(e eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		if e.GetType() != events.NodeStatusChangedEvent {
			out = append(out, e.GetType())
		}
	}

	return out
}

func newSimulator(t *testing.T, g *graph.Graph) (*simulator.Simulator, *manualScheduler, *recorder) {
	t.Helper()

	sched := &manualScheduler{}
	rec := &recorder{}
	sim := simulator.New("wf-1", g,
		simulator.WithScheduler(sched),
		simulator.WithListener(rec.listen),
		simulator.WithRand(rand.New(rand.NewSource(42))),
	)

	return sim, sched, rec
}

func load(nodes []*models.Node, connections ...*models.Connection) *graph.Graph {
	return graph.FromDocument(testutil.Document(nodes, connections...))
}

func advance(t *testing.T, sim *simulator.Simulator, times int) {
	t.Helper()

	for range times {
		_, err := sim.Advance()
		require.NoError(t, err)
	}
}

func TestStart_EmptyCanvasIsRefused(t *testing.T) {
	sim, sched, rec := newSimulator(t, graph.New())

	err := sim.Start()

	require.ErrorIs(t, err, simulator.ErrNoNodes)

	state := sim.State()
	assert.False(t, state.Running)
	assert.Empty(t, state.Order)
	assert.Empty(t, state.Statuses)
	assert.Zero(t, sched.started)
	assert.Empty(t, rec.types())
}

func TestStart_InitialState(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Email("a"), testutil.Email("b")),
		testutil.Connect("e1", "a"),
		testutil.Connect("a", "b"),
	)
	sim, sched, _ := newSimulator(t, g)

	require.NoError(t, sim.Start())

	state := sim.State()
	assert.True(t, state.Running)
	assert.Equal(t, []string{"e1", "a", "b"}, state.Order)
	assert.Equal(t, "e1", state.CurrentNodeID)
	assert.Equal(t, map[string]models.NodeStatus{
		"e1": models.NodeStatusExecuting,
		"a":  models.NodeStatusPending,
		"b":  models.NodeStatusPending,
	}, state.Statuses)
	assert.True(t, sched.active)

	assert.ErrorIs(t, sim.Start(), simulator.ErrAlreadyRunning)
	assert.Equal(t, 1, sched.started)
}

func TestAdvance_RunsToCompletion(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Email("a"), testutil.Email("b")),
		testutil.Connect("e1", "a"),
		testutil.Connect("a", "b"),
	)
	sim, sched, rec := newSimulator(t, g)
	require.NoError(t, sim.Start())

	id, err := sim.Advance()
	require.NoError(t, err)
	assert.Equal(t, "e1", id)
	assert.Equal(t, "a", sim.State().CurrentNodeID)

	advance(t, sim, 2)

	state := sim.State()
	assert.False(t, state.Running)
	assert.True(t, state.Finished)
	assert.Empty(t, state.CurrentNodeID)
	assert.Equal(t, 3, state.Steps)

	for _, status := range state.Statuses {
		assert.Equal(t, models.NodeStatusCompleted, status)
	}

	assert.False(t, sched.active)

	_, err = sim.Advance()
	assert.ErrorIs(t, err, simulator.ErrNotRunning)

	assert.Equal(t, []events.EventType{events.SimulationStartedEvent, events.SimulationCompletedEvent}, rec.types())
}

func TestAdvance_SuspendsOnExternalSignal(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Signal("s", "order.paid"), testutil.Email("a")),
		testutil.Connect("e1", "s"),
		testutil.Connect("s", "a"),
	)
	sim, sched, rec := newSimulator(t, g)
	require.NoError(t, sim.Start())

	advance(t, sim, 2)

	state := sim.State()
	assert.False(t, state.Running)
	assert.False(t, state.Finished)
	assert.Equal(t, "s", state.WaitingNodeID)
	assert.Equal(t, models.NodeStatusWaiting, state.Statuses["s"])
	assert.Equal(t, models.NodeStatusPending, state.Statuses["a"])
	assert.False(t, sched.active)

	_, err := sim.Advance()
	require.ErrorIs(t, err, simulator.ErrNotRunning)

	require.ErrorIs(t, sim.Signal("a"), simulator.ErrNodeNotWaiting)
	require.NoError(t, sim.Signal("s"))

	state = sim.State()
	assert.True(t, state.Running)
	assert.Empty(t, state.WaitingNodeID)
	assert.Equal(t, models.NodeStatusReceived, state.Statuses["s"])
	assert.Equal(t, models.NodeStatusExecuting, state.Statuses["a"])
	assert.True(t, sched.active)
	assert.Equal(t, 2, sched.started)

	assert.Equal(t, []events.EventType{
		events.SimulationStartedEvent,
		events.SimulationWaitingEvent,
		events.SimulationResumedEvent,
	}, rec.types())
}

func TestTimeout_FollowsTimeoutConnection(t *testing.T) {
	signal := testutil.Signal("s", "order.paid")
	signal.ExternalSignal().TimeoutEnabled = true

	g := load(
		testutil.Nodes(testutil.Entry("e1"), signal, testutil.Email("paid"), testutil.Email("reminder")),
		testutil.Connect("e1", "s"),
		testutil.Connect("s", "paid"),
		testutil.ConnectTransition("s", "reminder", models.TransitionTimeout),
	)
	sim, _, _ := newSimulator(t, g)
	require.NoError(t, sim.Start())
	advance(t, sim, 2)

	require.NoError(t, sim.Timeout("s"))

	state := sim.State()
	assert.Equal(t, models.NodeStatusTimedOut, state.Statuses["s"])
	assert.Equal(t, "reminder", state.CurrentNodeID)
	assert.Equal(t, models.NodeStatusPending, state.Statuses["paid"])
	assert.True(t, state.Running)
}

func TestTimeout_WithoutTimeoutConnectionContinuesInOrder(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Signal("s", "order.paid"), testutil.Email("a")),
		testutil.Connect("e1", "s"),
		testutil.Connect("s", "a"),
	)
	sim, _, _ := newSimulator(t, g)
	require.NoError(t, sim.Start())
	advance(t, sim, 2)

	require.NoError(t, sim.Timeout("s"))

	assert.Equal(t, "a", sim.State().CurrentNodeID)
	assert.ErrorIs(t, sim.Timeout("s"), simulator.ErrNodeNotWaiting)
}

func TestSignal_LastNodeFinishesRun(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Signal("s", "order.paid")),
		testutil.Connect("e1", "s"),
	)
	sim, sched, _ := newSimulator(t, g)
	require.NoError(t, sim.Start())
	advance(t, sim, 2)

	require.NoError(t, sim.Signal("s"))

	state := sim.State()
	assert.True(t, state.Finished)
	assert.False(t, state.Running)
	assert.False(t, sched.active)
	assert.Equal(t, 1, sched.started)
}

func TestAdvance_JumpRelocatesCursor(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Email("a"), testutil.Jump("j", "a")),
		testutil.Connect("e1", "a"),
		testutil.Connect("a", "j"),
	)
	sim, _, _ := newSimulator(t, g)
	require.NoError(t, sim.Start())

	advance(t, sim, 2)
	assert.Equal(t, "j", sim.State().CurrentNodeID)

	id, err := sim.Advance()
	require.NoError(t, err)
	assert.Equal(t, "j", id)

	state := sim.State()
	assert.Equal(t, 1, state.CurrentIndex)
	assert.Equal(t, models.NodeStatusExecuting, state.Statuses["a"])
	assert.Equal(t, models.NodeStatusCompleted, state.Statuses["j"])
	assert.True(t, state.Running)
}

func TestAdvance_ReadsLiveConfiguration(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Email("a"), testutil.Jump("j", ""), testutil.Email("b")),
		testutil.Connect("e1", "a"),
		testutil.Connect("a", "j"),
		testutil.Connect("j", "b"),
	)
	sim, _, _ := newSimulator(t, g)
	require.NoError(t, sim.Start())
	advance(t, sim, 2)

	require.NoError(t, g.UpdateNodeConfig("j", &models.JumpConfig{TargetNodeID: "e1"}))
	advance(t, sim, 1)

	assert.Equal(t, "e1", sim.State().CurrentNodeID)
}

func TestStop_PausesCurrentNode(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Email("a")),
		testutil.Connect("e1", "a"),
	)
	sim, sched, _ := newSimulator(t, g)
	require.NoError(t, sim.Start())
	advance(t, sim, 1)

	require.NoError(t, sim.Stop())

	state := sim.State()
	assert.False(t, state.Running)
	assert.Equal(t, models.NodeStatusPaused, state.Statuses["a"])
	assert.False(t, sched.active)
	assert.Equal(t, 2, g.Len())

	assert.ErrorIs(t, sim.Stop(), simulator.ErrNotRunning)
}

func TestStop_AbandonsWait(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Signal("s", "k"), testutil.Email("a")),
		testutil.Connect("e1", "s"),
		testutil.Connect("s", "a"),
	)
	sim, _, _ := newSimulator(t, g)
	require.NoError(t, sim.Start())
	advance(t, sim, 2)

	require.NoError(t, sim.Stop())

	assert.ErrorIs(t, sim.Signal("s"), simulator.ErrNodeNotWaiting)
	assert.Equal(t, models.NodeStatusPaused, sim.State().Statuses["s"])
}

func TestRestart_ResetsRun(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Email("a"), testutil.Email("b")),
		testutil.Connect("e1", "a"),
		testutil.Connect("a", "b"),
	)
	sim, _, _ := newSimulator(t, g)
	require.NoError(t, sim.Start())
	advance(t, sim, 2)

	_, err := g.AddNode(models.NodeTypeSMS, "", "", "", 0, 0)
	require.NoError(t, err)

	require.NoError(t, sim.Restart())

	state := sim.State()
	assert.True(t, state.Running)
	assert.Equal(t, 0, state.CurrentIndex)
	assert.Zero(t, state.Steps)
	assert.Len(t, state.Order, 4)
	assert.Equal(t, models.NodeStatusExecuting, state.Statuses["e1"])
	assert.Equal(t, models.NodeStatusPending, state.Statuses["b"])
}

func TestStart_SyntheticMetricsDecay(t *testing.T) {
	nodes := testutil.Nodes(testutil.Entry("e1"))
	connections := []*models.Connection{}
	previous := "e1"

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		nodes = append(nodes, testutil.Email(id))
		connections = append(connections, testutil.Connect(previous, id))
		previous = id
	}

	sim, _, _ := newSimulator(t, load(nodes, connections...))
	require.NoError(t, sim.Start())

	state := sim.State()
	require.Len(t, state.Metrics, len(nodes))
	assert.Equal(t, simulator.BaseCount, state.Metrics["e1"].Count)

	last := state.Metrics["e1"].Count
	for _, id := range state.Order[1:] {
		m := state.Metrics[id]
		assert.LessOrEqual(t, m.Count, last, id)
		assert.GreaterOrEqual(t, float64(m.Count), float64(last)*simulator.DecayFactor*(1-simulator.DecayJitter)-1, id)
		assert.GreaterOrEqual(t, m.ElapsedMs, simulator.MinElapsedMs)
		assert.Less(t, m.ElapsedMs, simulator.MinElapsedMs+simulator.ElapsedRangeMs)
		last = m.Count
	}
}

func TestCronScheduler_Ticks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping scheduler timing test in short mode")
	}

	var ticks atomic.Int32

	sched := simulator.NewCronScheduler(time.Second)
	require.NoError(t, sched.Start(func() { ticks.Add(1) }))

	assert.Eventually(t, func() bool { return ticks.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	sched.Stop()
	sched.Stop()
	time.Sleep(100 * time.Millisecond)

	seen := ticks.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, seen, ticks.Load())
}

type failingScheduler struct{}

func (failingScheduler) Start(func()) error { return errors.New("scheduler unavailable") }

func (failingScheduler) Stop() {}

func TestStart_SchedulerFailureChangesNothing(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Email("e2")),
		testutil.Connect("e1", "e2"),
	)

	rec := &recorder{}
	sim := simulator.New("wf-1", g,
		simulator.WithScheduler(failingScheduler{}),
		simulator.WithListener(rec.listen),
	)

	before := sim.State()

	require.Error(t, sim.Start())

	assert.Equal(t, before, sim.State())
	assert.Empty(t, rec.events)

	_, err := sim.Advance()
	assert.ErrorIs(t, err, simulator.ErrNotRunning)
}
