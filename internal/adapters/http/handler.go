package http

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/craftplane/craftplane/internal/adapters/properties"
	"github.com/craftplane/craftplane/internal/core/domain"
	"github.com/craftplane/craftplane/internal/core/ports"
	"github.com/craftplane/craftplane/internal/core/services"
)

// ServerHandler exposes the administrative surface: lifecycle, console,
// and configuration operations on a tenant's servers. Every route assumes
// the auth middleware has already stored the tenant id in locals.
type ServerHandler struct {
	lifecycle *services.Lifecycle
	gate      *services.Gate
	pool      *services.Pool
	store     *properties.Store
	console   ports.ConsoleExecutor
	instances ports.InstanceRegistry

	consoleAddr  string // host where per-instance console ports are published
	rconPassword string
	logger       *slog.Logger
}

func NewServerHandler(
	lifecycle *services.Lifecycle,
	gate *services.Gate,
	pool *services.Pool,
	store *properties.Store,
	console ports.ConsoleExecutor,
	instances ports.InstanceRegistry,
	consoleAddr, rconPassword string,
	logger *slog.Logger,
) *ServerHandler {
	return &ServerHandler{
		lifecycle:    lifecycle,
		gate:         gate,
		pool:         pool,
		store:        store,
		console:      console,
		instances:    instances,
		consoleAddr:  consoleAddr,
		rconPassword: rconPassword,
		logger:       logger,
	}
}

// Register mounts the handler's routes on the given router group.
func (h *ServerHandler) Register(r fiber.Router) {
	servers := r.Group("/servers")
	servers.Get("/", h.ListServers)
	servers.Post("/", h.CreateServer)
	servers.Delete("/:subdomain", h.DeleteServer)
	servers.Post("/:subdomain/start", h.StartServer)
	servers.Post("/:subdomain/stop", h.StopServer)
	servers.Post("/:subdomain/kill", h.KillServer)
	servers.Post("/:subdomain/restart", h.RestartServer)
	servers.Get("/:subdomain/status", h.ServerStatus)
	servers.Get("/:subdomain/properties", h.GetProperties)
	servers.Put("/:subdomain/properties", h.UpdateProperties)
	servers.Post("/:subdomain/command", h.ExecuteCommand)
}

func tenantID(c *fiber.Ctx) string {
	id, _ := c.Locals("tenantID").(string)
	return id
}

// fail translates the error taxonomy into the API's status codes. Access
// denials and not-found collapse into the same 404 so nothing about other
// tenants' subdomains leaks.
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrAccessDenied), errors.Is(err, domain.ErrNotFound):
		status, msg = fiber.StatusNotFound, "server not found"
	case errors.Is(err, domain.ErrSubdomainConflict):
		status = fiber.StatusConflict
	case errors.Is(err, domain.ErrQuotaExceeded):
		status = fiber.StatusForbidden
	case errors.Is(err, domain.ErrConnectionRefused), errors.Is(err, domain.ErrProtocol):
		status = fiber.StatusBadGateway
	case errors.Is(err, domain.ErrTimeout):
		status = fiber.StatusGatewayTimeout
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

type serverView struct {
	Subdomain string `json:"subdomain"`
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Status    string `json:"status"`
	Label     string `json:"label"`
	Color     string `json:"color"`
}

func (h *ServerHandler) view(c *fiber.Ctx, inst domain.Instance) serverView {
	status := h.lifecycle.Status(c.Context(), inst.ID)
	return serverView{
		Subdomain: inst.Subdomain,
		ID:        inst.ID,
		CreatedAt: inst.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Status:    string(status.Key),
		Label:     status.Label,
		Color:     status.Color,
	}
}

func (h *ServerHandler) ListServers(c *fiber.Ctx) error {
	owned, err := h.instances.OwnedBy(c.Context(), tenantID(c))
	if err != nil {
		return fail(c, err)
	}
	views := make([]serverView, 0, len(owned))
	for _, inst := range owned {
		views = append(views, h.view(c, inst))
	}
	return c.JSON(views)
}

type createServerRequest struct {
	Subdomain string `json:"subdomain"`
}

func (h *ServerHandler) CreateServer(c *fiber.Ctx) error {
	var req createServerRequest
	if err := c.BodyParser(&req); err != nil || req.Subdomain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "subdomain is required"})
	}

	tenant := tenantID(c)
	full, err := h.gate.ReachedCreationLimit(c.Context(), tenant)
	if err != nil {
		return fail(c, err)
	}
	if full {
		return fail(c, domain.ErrQuotaExceeded)
	}

	inst, err := h.lifecycle.Create(c.Context(), tenant, req.Subdomain)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.view(c, inst))
}

func (h *ServerHandler) DeleteServer(c *fiber.Ctx) error {
	inst, err := h.gate.Authorize(c.Context(), tenantID(c), c.Params("subdomain"))
	if err != nil {
		return fail(c, err)
	}
	if err := h.lifecycle.Delete(c.Context(), inst.Subdomain); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *ServerHandler) StartServer(c *fiber.Ctx) error {
	return h.lifecycleOp(c, h.lifecycle.Start)
}

func (h *ServerHandler) StopServer(c *fiber.Ctx) error {
	return h.lifecycleOp(c, h.lifecycle.Stop)
}

func (h *ServerHandler) KillServer(c *fiber.Ctx) error {
	return h.lifecycleOp(c, h.lifecycle.Kill)
}

func (h *ServerHandler) lifecycleOp(c *fiber.Ctx, op func(context.Context, string) error) error {
	inst, err := h.gate.Authorize(c.Context(), tenantID(c), c.Params("subdomain"))
	if err != nil {
		return fail(c, err)
	}
	if err := op(c.Context(), inst.Subdomain); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// RestartServer defers the restart onto the task pool and answers
// immediately; a failed restart is logged by the pool, never surfaced here.
// A saturated pool rejects the submission, reported as 503.
func (h *ServerHandler) RestartServer(c *fiber.Ctx) error {
	inst, err := h.gate.Authorize(c.Context(), tenantID(c), c.Params("subdomain"))
	if err != nil {
		return fail(c, err)
	}
	subdomain := inst.Subdomain
	err = h.pool.Submit(services.Task{
		Name: "restart " + subdomain,
		Run: func(ctx context.Context) error {
			return h.lifecycle.Restart(ctx, subdomain)
		},
	})
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "restart queue full, retry later"})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "restart queued"})
}

func (h *ServerHandler) ServerStatus(c *fiber.Ctx) error {
	inst, err := h.gate.Authorize(c.Context(), tenantID(c), c.Params("subdomain"))
	if err != nil {
		return fail(c, err)
	}
	status := h.lifecycle.Status(c.Context(), inst.ID)
	return c.JSON(fiber.Map{
		"subdomain": inst.Subdomain,
		"status":    status.Key,
		"label":     status.Label,
		"color":     status.Color,
	})
}

func (h *ServerHandler) GetProperties(c *fiber.Ctx) error {
	inst, err := h.gate.Authorize(c.Context(), tenantID(c), c.Params("subdomain"))
	if err != nil {
		return fail(c, err)
	}
	doc, err := h.store.Read(inst.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(h.store.FieldValues(doc))
}

func (h *ServerHandler) UpdateProperties(c *fiber.Ctx) error {
	inst, err := h.gate.Authorize(c.Context(), tenantID(c), c.Params("subdomain"))
	if err != nil {
		return fail(c, err)
	}

	var updates map[string]string
	if err := c.BodyParser(&updates); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	doc, err := h.store.Read(inst.ID)
	if err != nil {
		return fail(c, err)
	}
	if err := h.store.MergeUpdate(doc, updates); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.store.Write(inst.ID, doc); err != nil {
		return fail(c, err)
	}
	return c.JSON(h.store.FieldValues(doc))
}

type commandRequest struct {
	Command string `json:"command"`
}

func (h *ServerHandler) ExecuteCommand(c *fiber.Ctx) error {
	inst, err := h.gate.Authorize(c.Context(), tenantID(c), c.Params("subdomain"))
	if err != nil {
		return fail(c, err)
	}

	var req commandRequest
	if err := c.BodyParser(&req); err != nil || req.Command == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "command is required"})
	}

	response, err := h.console.Execute(c.Context(), h.consoleAddr, inst.RconPort, h.rconPassword, req.Command)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"response": response})
}
