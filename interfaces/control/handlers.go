package control

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/foldershare/sharer/infrastructure/localstore"
	"github.com/foldershare/sharer/pkg/logger"
)

// Handlers wires the RunManager into fiber's request/response shapes.
type Handlers struct {
	runs *RunManager
}

func NewHandlers(runs *RunManager) *Handlers {
	return &Handlers{runs: runs}
}

// StartRun handles POST /runs: loads the recipient cache from the request
// body's path and launches a run in the background.
func (h *Handlers) StartRun(c *fiber.Ctx) error {
	var req StartRunRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	folders, err := localstore.LoadFolderMap(req.FolderMapPath)
	if err != nil {
		logger.Warn(logger.CategoryControl, "start_run_failed", "failed to load folder map", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	recipients, err := localstore.LoadRecipients(req.RecipientCachePath)
	if err != nil {
		logger.Warn(logger.CategoryControl, "start_run_failed", "failed to load recipient cache", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	// c.Context() belongs to fiber's request/response cycle and is returned
	// to fasthttp's pool the moment this handler returns — the background
	// run needs a context that outlives the request, same as the websocket
	// relay's own long-lived subscribe loop.
	runID, err := h.runs.Launch(context.Background(), folders, recipients)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusAccepted).JSON(StartRunResponse{RunID: runID})
}

// GetRun handles GET /runs/:id.
func (h *Handlers) GetRun(c *fiber.Ctx) error {
	runID := c.Params("id")
	state, ok := h.runs.Get(runID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
	}

	return c.JSON(RunStatusResponse{
		RunID:      runID,
		Status:     state.Status,
		Total:      state.Counters.Total,
		Processed:  state.Counters.Processed,
		Successful: state.Counters.Successful,
		Failed:     state.Counters.Failed,
		Errors:     state.Counters.Errors,
		Error:      state.Error,
	})
}
