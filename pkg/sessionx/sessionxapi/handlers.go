package sessionxapi

import (
	"io"
	"net/url"
	"strconv"

	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/Abraxas-365/docfill/pkg/refinex"
	"github.com/Abraxas-365/docfill/pkg/sessionx"
	"github.com/Abraxas-365/docfill/pkg/templatex"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	manager *sessionx.Manager
}

func NewHandlers(manager *sessionx.Manager) *Handlers {
	return &Handlers{manager: manager}
}

// RegisterRoutes mounts /api/v1/sessions behind mw.
func (h *Handlers) RegisterRoutes(router fiber.Router, mw ...fiber.Handler) {
	g := router.Group("/api/v1/sessions", mw...)
	g.Post("/", h.Open)
	g.Get("/:id", h.Get)
	g.Delete("/:id", h.Delete)
	g.Put("/:id/fields/:label", h.SetField)
	g.Put("/:id/hints", h.SetHints)
	g.Put("/:id/hints/:hint", h.UpsertHint)
	g.Delete("/:id/hints/:hint", h.DeleteHint)
	g.Post("/:id/refine", h.Refine)
	g.Get("/:id/render", h.Render)
	g.Post("/:id/close", h.Close)
}

// sessionView is what every read of a live session returns.
type sessionView struct {
	sessionx.Snapshot
	Render    templatex.Report          `json:"render"`
	Variables []templatex.VariableColor `json:"variables"`
}

// viewOf renders from the same snapshot it returns, so fields and render
// always agree.
func viewOf(s *sessionx.Session) sessionView {
	tmpl := s.Template()
	snap := s.Snapshot()
	return sessionView{
		Snapshot:  snap,
		Render:    tmpl.Fill(snap.Fields),
		Variables: templatex.VariableColors(tmpl.Variables()),
	}
}

type fieldRequest struct {
	Value string `json:"value"`
}

type hintsRequest struct {
	Hints []refinex.Hint `json:"hints"`
}

// Open starts a session from a multipart upload: an "image" file plus
// "template_id" and optional "document_id" and "skip_extraction" values.
func (h *Handlers) Open(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return sessionx.ErrInvalidRequest("image file is required")
	}
	f, err := file.Open()
	if err != nil {
		return sessionx.ErrInvalidRequest("image could not be read")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return sessionx.ErrInvalidRequest("image could not be read")
	}

	skip, _ := strconv.ParseBool(c.FormValue("skip_extraction"))
	s, err := h.manager.Open(c.UserContext(), sessionx.OpenRequest{
		DocumentID:     kernel.DocumentID(c.FormValue("document_id")),
		TemplateID:     kernel.TemplateID(c.FormValue("template_id")),
		Image:          data,
		MimeType:       file.Header.Get(fiber.HeaderContentType),
		SkipExtraction: skip,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(viewOf(s))
}

func (h *Handlers) Get(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(viewOf(s))
}

func (h *Handlers) SetField(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req fieldRequest
	if err := c.BodyParser(&req); err != nil {
		return sessionx.ErrInvalidRequest("malformed body")
	}
	label, err := url.PathUnescape(c.Params("label"))
	if err != nil {
		return sessionx.ErrInvalidRequest("malformed label")
	}
	field, err := s.SetField(label, req.Value)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"field": field, "render": s.Render()})
}

func (h *Handlers) SetHints(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req hintsRequest
	if err := c.BodyParser(&req); err != nil {
		return sessionx.ErrInvalidRequest("malformed body")
	}
	hints, err := s.SetHints(req.Hints)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"hints": hints})
}

func (h *Handlers) UpsertHint(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var hint refinex.Hint
	if err := c.BodyParser(&hint); err != nil {
		return sessionx.ErrInvalidRequest("malformed body")
	}
	hint.ID = c.Params("hint")
	saved, err := s.UpsertHint(hint)
	if err != nil {
		return err
	}
	return c.JSON(saved)
}

func (h *Handlers) DeleteHint(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.DeleteHint(c.Params("hint")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Refine runs pending refinements now instead of waiting for the debounce.
func (h *Handlers) Refine(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	d, err := s.Refine(c.UserContext())
	if err != nil {
		return err
	}
	fields := nonNil(s.Fields())
	tmpl := s.Template()
	return c.JSON(fiber.Map{
		"dispatch": d,
		"fields":   fields,
		"render":   tmpl.Fill(fields),
	})
}

func (h *Handlers) Render(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(s.Render())
}

func (h *Handlers) Close(c *fiber.Ctx) error {
	snap, err := h.manager.Close(c.UserContext(), kernel.SessionID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(snap)
}

func (h *Handlers) Delete(c *fiber.Ctx) error {
	if err := h.manager.Delete(c.UserContext(), kernel.SessionID(c.Params("id"))); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) session(c *fiber.Ctx) (*sessionx.Session, error) {
	return h.manager.Get(c.UserContext(), kernel.SessionID(c.Params("id")))
}

func nonNil(fields []fieldx.Field) []fieldx.Field {
	if fields == nil {
		return []fieldx.Field{}
	}
	return fields
}
