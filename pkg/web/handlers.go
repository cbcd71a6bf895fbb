// Package web provides HTTP handlers and REST API endpoints for canvas editing and simulation.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/services"
)

type APIHandlers struct {
	canvasService     *services.Canvas
	simulationService *services.Simulation
	activity          *services.Activity
	validator         *validator.Validate
}

func NewAPIHandlers(
	canvasService *services.Canvas,
	simulationService *services.Simulation,
	activity *services.Activity,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		canvasService:     canvasService,
		simulationService: simulationService,
		activity:          activity,
		validator:         validator,
	}
}

// RegisterRoutes mounts every canvas and simulation endpoint on router.
func (h *APIHandlers) RegisterRoutes(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.ReplaceWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)

	w.Post("/:id/nodes", h.AddNode)
	w.Patch("/:id/nodes/:nodeId", h.UpdateNode)
	w.Delete("/:id/nodes/:nodeId", h.DeleteNode)
	w.Post("/:id/nodes/:nodeId/transitions", h.AddTransition)
	w.Delete("/:id/nodes/:nodeId/transitions/:transitionId", h.RemoveTransition)

	w.Post("/:id/connections", h.Connect)
	w.Delete("/:id/connections/:connectionId", h.Disconnect)

	w.Get("/:id/execution-order", h.GetExecutionOrder)
	w.Get("/:id/validation", h.GetValidation)
	w.Post("/:id/layout", h.AutoLayout)
	w.Get("/:id/activity", h.GetActivity)

	s := w.Group("/:id/simulation")
	s.Get("/", h.GetSimulation)
	s.Post("/start", h.StartSimulation)
	s.Post("/stop", h.StopSimulation)
	s.Post("/restart", h.RestartSimulation)
	s.Post("/step", h.StepSimulation)
	s.Post("/signals/:nodeId", h.SignalNode)
	s.Post("/timeouts/:nodeId", h.TimeoutNode)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.canvasService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Canvasflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Canvasflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// GetActivity returns the latest canvas and simulation events of a workflow, oldest first.
func (h *APIHandlers) GetActivity(c fiber.Ctx) error {
	return c.JSON(ActivityResponse{Events: h.activity.Recent(c.Params("id"))})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.canvasService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(WorkflowListResponse{Workflows: workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	doc, err := h.canvasService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(doc)
}

// ReplaceWorkflow stores the request body as the whole document. The body is checked against the
// document schema before anything is touched.
func (h *APIHandlers) ReplaceWorkflow(c fiber.Ctx) error {
	doc, err := models.ParseDocument(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	saved, err := h.canvasService.Replace(c.Context(), c.Params("id"), doc)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(saved)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	if err := h.canvasService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	h.simulationService.Discard(id)

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) AddNode(c fiber.Ctx) error {
	var req AddNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.canvasService.AddNode(c.Context(), c.Params("id"), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) UpdateNode(c fiber.Ctx) error {
	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.canvasService.UpdateNode(c.Context(), c.Params("id"), c.Params("nodeId"), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) DeleteNode(c fiber.Ctx) error {
	bridge, err := h.canvasService.DeleteNode(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(DeleteNodeResponse{Bridge: bridge})
}

func (h *APIHandlers) AddTransition(c fiber.Ctx) error {
	var req AddTransitionRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	transition, err := h.canvasService.AddTransition(c.Context(), c.Params("id"), c.Params("nodeId"), req.Label)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(transition)
}

func (h *APIHandlers) RemoveTransition(c fiber.Ctx) error {
	err := h.canvasService.RemoveTransition(c.Context(), c.Params("id"), c.Params("nodeId"), c.Params("transitionId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) Connect(c fiber.Ctx) error {
	var req ConnectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	conn, err := h.canvasService.Connect(c.Context(), c.Params("id"), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(conn)
}

func (h *APIHandlers) Disconnect(c fiber.Ctx) error {
	if err := h.canvasService.Disconnect(c.Context(), c.Params("id"), c.Params("connectionId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetExecutionOrder(c fiber.Ctx) error {
	order, err := h.canvasService.ExecutionOrder(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ExecutionOrderResponse{Order: order})
}

func (h *APIHandlers) GetValidation(c fiber.Ctx) error {
	report, err := h.canvasService.Validate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) AutoLayout(c fiber.Ctx) error {
	result, err := h.canvasService.AutoLayout(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetSimulation(c fiber.Ctx) error {
	state, err := h.simulationService.State(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) StartSimulation(c fiber.Ctx) error {
	state, err := h.simulationService.Start(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) StopSimulation(c fiber.Ctx) error {
	state, err := h.simulationService.Stop(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) RestartSimulation(c fiber.Ctx) error {
	state, err := h.simulationService.Restart(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) StepSimulation(c fiber.Ctx) error {
	state, err := h.simulationService.Step(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) SignalNode(c fiber.Ctx) error {
	state, err := h.simulationService.Signal(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) TimeoutNode(c fiber.Ctx) error {
	state, err := h.simulationService.Timeout(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}
