package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/kchakrav/CRMApp-sub002/pkg/events"
	"github.com/kchakrav/CRMApp-sub002/pkg/layout"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence/file"
	"github.com/kchakrav/CRMApp-sub002/pkg/services"
	"github.com/kchakrav/CRMApp-sub002/pkg/simulator"
	"github.com/kchakrav/CRMApp-sub002/pkg/testutil"
	"github.com/kchakrav/CRMApp-sub002/pkg/validation"
	"github.com/kchakrav/CRMApp-sub002/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workflowID = "welcome-journey"

type manualScheduler struct{}

func (manualScheduler) Start(func()) error { return nil }

func (manualScheduler) Stop() {}

func setupTestApp(t *testing.T) (*fiber.App, *services.Canvas) {
	t.Helper()

	app, canvas, _ := setupTestAppWithActivity(t)

	return app, canvas
}

func setupTestAppWithActivity(t *testing.T) (*fiber.App, *services.Canvas, *services.Activity) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	canvas := services.NewCanvas(persistence, nil, nil, nil)
	simulation := services.NewSimulation(canvas, nil, nil,
		services.WithSchedulerFactory(func() simulator.Scheduler { return manualScheduler{} }),
	)
	t.Cleanup(simulation.Close)

	activity := services.NewActivity(nil, 0)

	handlers := web.NewAPIHandlers(canvas, simulation, activity, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return app, canvas, activity
}

func seedWorkflow(t *testing.T, canvas *services.Canvas) {
	t.Helper()

	doc := testutil.Document(
		testutil.Nodes(
			testutil.Entry("node_1", testutil.WithPosition(50, 50)),
			testutil.Email("node_2", testutil.WithName("Welcome"), testutil.WithPosition(330, 50)),
			testutil.Signal("node_3", "order.paid", testutil.WithPosition(610, 50)),
		),
		testutil.Connect("node_1", "node_2"),
		testutil.Connect("node_2", "node_3"),
	)

	_, err := canvas.Replace(context.Background(), workflowID, doc)
	require.NoError(t, err)
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func problemType(t *testing.T, body []byte) string {
	t.Helper()

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))

	kind, _ := problem["type"].(string)

	return kind
}

func TestAPIHandlers_ReplaceAndGetWorkflow(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	body := `{
		"nodes": [
			{"id": "node_1", "type": "entry", "category": "flow", "name": "Start", "position": {"x": 10, "y": 20}, "config": {}},
			{"id": "node_2", "type": "email", "category": "channel", "name": "Welcome", "position": {"x": 300, "y": 20}, "config": {"subject": "Hi"}}
		],
		"connections": [{"id": "c1", "from": "node_1", "to": "node_2"}],
		"canvas_state": {"zoom": 1, "pan": {"x": 0, "y": 0}}
	}`

	resp, _ := doRequest(t, app, http.MethodPut, "/workflows/"+workflowID, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := doRequest(t, app, http.MethodGet, "/workflows/"+workflowID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := models.ParseDocument(data)
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 2)
	assert.Equal(t, "Welcome", doc.Nodes[1].Name)

	resp, data = doRequest(t, app, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list web.WorkflowListResponse
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Workflows, 1)
	assert.Equal(t, workflowID, list.Workflows[0].ID)
}

func TestAPIHandlers_ReplaceRejectsInvalidDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   string
		body string
	}{
		{"not json", workflowID, "invalid-json"},
		{"node without id", workflowID, `{"nodes": [{"type": "entry"}], "connections": []}`},
		{"unsafe id", "bad%20id", `{"nodes": [], "connections": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			resp, data := doRequest(t, app, http.MethodPut, "/workflows/"+tt.id, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "validation_error", problemType(t, data))
		})
	}
}

func TestAPIHandlers_GetWorkflowNotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, data := doRequest(t, app, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "workflow_not_found", problemType(t, data))
}

func TestAPIHandlers_AddNode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		validateResult func(t *testing.T, body []byte)
	}{
		{
			name:           "successful creation",
			requestBody:    web.AddNodeRequest{Type: "sms", Name: "Reminder", X: 900, Y: 300},
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var node models.Node
				require.NoError(t, json.Unmarshal(body, &node))
				assert.Equal(t, "node_4", node.ID)
				assert.Equal(t, models.NodeTypeSMS, node.Type)
				assert.Equal(t, models.CategoryChannel, node.Category)
				assert.Equal(t, models.Position{X: 900, Y: 300}, node.Position)
			},
		},
		{
			name:           "dropped on an occupied spot",
			requestBody:    web.AddNodeRequest{Type: "wait", X: 50, Y: 50},
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var node models.Node
				require.NoError(t, json.Unmarshal(body, &node))
				assert.NotEqual(t, models.Position{X: 50, Y: 50}, node.Position)
			},
		},
		{
			name:           "validation error - missing type",
			requestBody:    web.AddNodeRequest{Name: "Nothing"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "validation error - unknown category",
			requestBody:    web.AddNodeRequest{Type: "email", Category: "misc"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown node type",
			requestBody:    web.AddNodeRequest{Type: "teleport"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, canvas := setupTestApp(t)
			seedWorkflow(t, canvas)

			resp, body := doRequest(t, app, http.MethodPost, "/workflows/"+workflowID+"/nodes", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.validateResult != nil {
				tt.validateResult(t, body)
			}
		})
	}
}

func TestAPIHandlers_UpdateNode(t *testing.T) {
	t.Parallel()

	app, canvas := setupTestApp(t)
	seedWorkflow(t, canvas)

	resp, body := doRequest(t, app, http.MethodPatch, "/workflows/"+workflowID+"/nodes/node_3", map[string]any{
		"name":     "Paid",
		"position": map[string]float64{"x": 640, "y": 80},
		"config":   map[string]any{"signal_key": "order.settled"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var node models.Node
	require.NoError(t, json.Unmarshal(body, &node))
	assert.Equal(t, "Paid", node.Name)
	assert.Equal(t, models.Position{X: 640, Y: 80}, node.Position)
	assert.Equal(t, "order.settled", node.ExternalSignal().SignalKey)

	resp, body = doRequest(t, app, http.MethodPatch, "/workflows/"+workflowID+"/nodes/node_9", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "node_not_found", problemType(t, body))
}

func TestAPIHandlers_DeleteNodeBridges(t *testing.T) {
	t.Parallel()

	app, canvas := setupTestApp(t)
	seedWorkflow(t, canvas)

	resp, body := doRequest(t, app, http.MethodDelete, "/workflows/"+workflowID+"/nodes/node_2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deleted web.DeleteNodeResponse
	require.NoError(t, json.Unmarshal(body, &deleted))
	require.NotNil(t, deleted.Bridge)
	assert.Equal(t, "node_1", deleted.Bridge.From)
	assert.Equal(t, "node_3", deleted.Bridge.To)

	resp, body = doRequest(t, app, http.MethodGet, "/workflows/"+workflowID+"/execution-order", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var order web.ExecutionOrderResponse
	require.NoError(t, json.Unmarshal(body, &order))
	assert.Equal(t, []string{"node_1", "node_3"}, order.Order)
}

func TestAPIHandlers_Connections(t *testing.T) {
	t.Parallel()

	app, canvas := setupTestApp(t)
	seedWorkflow(t, canvas)

	path := "/workflows/" + workflowID + "/connections"

	resp, body := doRequest(t, app, http.MethodPost, path, web.ConnectRequest{From: "node_1", To: "node_3"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var conn models.Connection
	require.NoError(t, json.Unmarshal(body, &conn))
	assert.NotEmpty(t, conn.ID)

	resp, body = doRequest(t, app, http.MethodPost, path, web.ConnectRequest{From: "node_1", To: "node_3"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", problemType(t, body))

	resp, _ = doRequest(t, app, http.MethodPost, path, web.ConnectRequest{From: "node_1", To: "node_1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodDelete, path+"/"+conn.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doRequest(t, app, http.MethodDelete, path+"/"+conn.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "connection_not_found", problemType(t, body))
}

func TestAPIHandlers_Transitions(t *testing.T) {
	t.Parallel()

	app, canvas := setupTestApp(t)
	seedWorkflow(t, canvas)

	resp, body := doRequest(t, app, http.MethodPost, "/workflows/"+workflowID+"/nodes", web.AddNodeRequest{Type: "split", X: 300, Y: 400})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var split models.Node
	require.NoError(t, json.Unmarshal(body, &split))

	path := "/workflows/" + workflowID + "/nodes/" + split.ID + "/transitions"

	resp, body = doRequest(t, app, http.MethodPost, path, web.AddTransitionRequest{Label: "VIP"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var transition models.Transition
	require.NoError(t, json.Unmarshal(body, &transition))
	assert.Equal(t, "VIP", transition.Label)

	resp, body = doRequest(t, app, http.MethodPost, path, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &transition))
	assert.Equal(t, "Segment 3", transition.Label)

	resp, _ = doRequest(t, app, http.MethodDelete, path+"/"+transition.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doRequest(t, app, http.MethodDelete, path+"/"+transition.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "transition_not_found", problemType(t, body))

	resp, _ = doRequest(t, app, http.MethodPost, "/workflows/"+workflowID+"/nodes/node_2/transitions", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_ValidationAndLayout(t *testing.T) {
	t.Parallel()

	app, canvas := setupTestApp(t)
	seedWorkflow(t, canvas)

	resp, _ := doRequest(t, app, http.MethodPost, "/workflows/"+workflowID+"/nodes", web.AddNodeRequest{Type: "sms", X: 900, Y: 400})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doRequest(t, app, http.MethodGet, "/workflows/"+workflowID+"/validation", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report validation.Report
	require.NoError(t, json.Unmarshal(body, &report))
	require.Len(t, report.Errors, 1)
	assert.Equal(t, validation.CodeDisconnectedNode, report.Errors[0].Code)
	assert.Equal(t, "node_4", report.Errors[0].NodeID)

	resp, body = doRequest(t, app, http.MethodPost, "/workflows/"+workflowID+"/layout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result layout.Result
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, models.Position{X: 50, Y: 50}, result.Positions["node_1"])
	assert.Equal(t, 2, result.Depth["node_3"])
}

func TestAPIHandlers_Simulation(t *testing.T) {
	t.Parallel()

	app, canvas := setupTestApp(t)
	seedWorkflow(t, canvas)

	base := "/workflows/" + workflowID + "/simulation"

	resp, body := doRequest(t, app, http.MethodPost, base+"/step", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", problemType(t, body))

	resp, body = doRequest(t, app, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state simulator.State
	require.NoError(t, json.Unmarshal(body, &state))
	assert.True(t, state.Running)
	assert.Equal(t, []string{"node_1", "node_2", "node_3"}, state.Order)

	for range 3 {
		resp, body = doRequest(t, app, http.MethodPost, base+"/step", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, "node_3", state.WaitingNodeID)

	resp, body = doRequest(t, app, http.MethodPost, base+"/signals/node_3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &state))
	assert.True(t, state.Finished)
	assert.Equal(t, models.NodeStatusReceived, state.Statuses["node_3"])

	resp, _ = doRequest(t, app, http.MethodPost, base+"/timeouts/node_3", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doRequest(t, app, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &state))
	assert.True(t, state.Finished)

	resp, body = doRequest(t, app, http.MethodPost, base+"/restart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &state))
	assert.True(t, state.Running)
	assert.Equal(t, 0, state.Steps)

	resp, _ = doRequest(t, app, http.MethodPost, base+"/stop", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIHandlers_DeleteWorkflow(t *testing.T) {
	t.Parallel()

	app, canvas := setupTestApp(t)
	seedWorkflow(t, canvas)

	resp, _ := doRequest(t, app, http.MethodPost, "/workflows/"+workflowID+"/simulation/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodDelete, "/workflows/"+workflowID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodGet, "/workflows/"+workflowID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodPost, "/workflows/"+workflowID+"/simulation/step", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodDelete, "/workflows/"+workflowID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doRequest(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
}

func TestGetActivity(t *testing.T) {
	app, _, activity := setupTestAppWithActivity(t)

	resp, body := doRequest(t, app, http.MethodGet, "/workflows/"+workflowID+"/activity", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"events": []}`, string(body))

	require.NoError(t, activity.Record(context.Background(), &events.SimulationWaiting{
		BaseEvent: events.NewBaseEvent(events.SimulationWaitingEvent, workflowID),
		NodeID:    "node_3",
		SignalKey: "order.paid",
	}))

	resp, body = doRequest(t, app, http.MethodGet, "/workflows/"+workflowID+"/activity", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var feed struct {
		Events []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(body, &feed))
	require.Len(t, feed.Events, 1)
	assert.Equal(t, string(events.SimulationWaitingEvent), feed.Events[0]["type"])
	assert.Equal(t, "order.paid", feed.Events[0]["signal_key"])
}
