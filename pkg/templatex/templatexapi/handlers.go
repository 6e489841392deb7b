package templatexapi

import (
	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/Abraxas-365/docfill/pkg/templatex"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	service *templatex.Service
}

func NewHandlers(service *templatex.Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts /api/v1/templates behind mw.
func (h *Handlers) RegisterRoutes(router fiber.Router, mw ...fiber.Handler) {
	g := router.Group("/api/v1/templates", mw...)
	g.Post("/", h.Create)
	g.Get("/", h.List)
	g.Post("/preview", h.Preview)
	g.Get("/:id", h.Get)
	g.Put("/:id", h.Update)
	g.Delete("/:id", h.Delete)
	g.Get("/:id/variables", h.Variables)
}

type templateRequest struct {
	Name   string `json:"name"`
	Markup string `json:"markup"`
}

type previewRequest struct {
	Markup string         `json:"markup"`
	Fields []fieldx.Field `json:"fields"`
}

func (h *Handlers) Create(c *fiber.Ctx) error {
	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return templatex.ErrInvalidTemplate().WithDetail("reason", "malformed body")
	}
	t, err := h.service.Create(c.UserContext(), req.Name, req.Markup)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *Handlers) List(c *fiber.Ctx) error {
	page, err := h.service.List(c.UserContext(), kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *Handlers) Get(c *fiber.Ctx) error {
	t, err := h.service.Get(c.UserContext(), kernel.TemplateID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *Handlers) Update(c *fiber.Ctx) error {
	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return templatex.ErrInvalidTemplate().WithDetail("reason", "malformed body")
	}
	t, err := h.service.Update(c.UserContext(), kernel.TemplateID(c.Params("id")), req.Name, req.Markup)
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *Handlers) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), kernel.TemplateID(c.Params("id"))); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) Variables(c *fiber.Ctx) error {
	vars, err := h.service.Variables(c.UserContext(), kernel.TemplateID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"variables": vars})
}

// Preview fills ad-hoc markup without storing anything.
func (h *Handlers) Preview(c *fiber.Ctx) error {
	var req previewRequest
	if err := c.BodyParser(&req); err != nil {
		return templatex.ErrInvalidTemplate().WithDetail("reason", "malformed body")
	}
	return c.JSON(templatex.SubstituteReport(req.Markup, req.Fields))
}
