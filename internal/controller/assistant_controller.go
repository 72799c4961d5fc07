package controller

import (
	"metabolite-assistant-be/internal/dto"
	"metabolite-assistant-be/internal/pkg/serverutils"
	"metabolite-assistant-be/internal/service"
	"metabolite-assistant-be/pkg/assistant"
	"metabolite-assistant-be/pkg/chat"
	"metabolite-assistant-be/pkg/snapshot"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAssistantController interface {
	RegisterRoutes(r fiber.Router, middleware ...fiber.Handler)
}

type assistantController struct {
	service service.IAssistantService
	stream  fiber.Handler
}

// NewAssistantController serves the session API. stream handles the
// websocket route.
func NewAssistantController(service service.IAssistantService, stream fiber.Handler) IAssistantController {
	return &assistantController{service: service, stream: stream}
}

func (c *assistantController) RegisterRoutes(r fiber.Router, middleware ...fiber.Handler) {
	h := r.Group("/assistant/v1")

	// The websocket authenticates from the query string, so it sits outside
	// the header middleware.
	if c.stream != nil {
		h.Get("/sessions/:id/ws", c.stream)
	}

	s := h.Group("/sessions", middleware...)
	s.Post("", c.CreateSession)
	s.Get("/:id", c.GetSession)
	s.Delete("/:id", c.DeleteSession)

	s.Put("/:id/state", c.UpdateState)
	s.Get("/:id/snapshot", c.GetSnapshot)

	s.Post("/:id/panel/open", c.changeUI(service.UIActionOpen, "Panel opened"))
	s.Post("/:id/panel/close", c.changeUI(service.UIActionClose, "Panel closed"))
	s.Post("/:id/panel/toggle", c.changeUI(service.UIActionToggle, "Panel toggled"))
	s.Post("/:id/typing/show", c.changeUI(service.UIActionShowTyping, "Typing indicator shown"))
	s.Post("/:id/typing/hide", c.changeUI(service.UIActionHideTyping, "Typing indicator hidden"))

	s.Post("/:id/messages", c.SendMessage)
	s.Post("/:id/messages/user", c.appendMessage(chat.RoleUser))
	s.Post("/:id/messages/assistant", c.appendMessage(chat.RoleAssistant))

	s.Post("/:id/tasks/interpret-volcano", c.runTask(assistant.TaskInterpretVolcano))
	s.Post("/:id/tasks/explain-selection", c.runTask(assistant.TaskMetaboliteDetail))
	s.Post("/:id/tasks/summarize-filters", c.runTask(assistant.TaskFilterSummary))

	s.Post("/:id/clear", c.ClearTranscript)
	s.Get("/:id/exchanges", c.ListExchanges)
}

func sessionId(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}
	return id, nil
}

// parseOptionalBody accepts an empty body as the zero value.
func parseOptionalBody(ctx *fiber.Ctx, out interface{}) error {
	if len(ctx.Body()) == 0 {
		return nil
	}
	if err := ctx.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return nil
}

func (c *assistantController) CreateSession(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := parseOptionalBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.CreateSession(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *assistantController) GetSession(ctx *fiber.Ctx) error {
	id, err := sessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetSession(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *assistantController) DeleteSession(ctx *fiber.Ctx) error {
	id, err := sessionId(ctx)
	if err != nil {
		return err
	}

	if err := c.service.DeleteSession(ctx.UserContext(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

func (c *assistantController) UpdateState(ctx *fiber.Ctx) error {
	id, err := sessionId(ctx)
	if err != nil {
		return err
	}

	var state snapshot.HostState
	if err := parseOptionalBody(ctx, &state); err != nil {
		return err
	}

	res, err := c.service.UpdateState(ctx.UserContext(), id, state)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update dashboard state", res))
}

func (c *assistantController) GetSnapshot(ctx *fiber.Ctx) error {
	id, err := sessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetSnapshot(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success build snapshot", res))
}

func (c *assistantController) changeUI(action service.UIAction, message string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id, err := sessionId(ctx)
		if err != nil {
			return err
		}

		res, err := c.service.ChangeUI(ctx.UserContext(), id, action)
		if err != nil {
			return err
		}

		return ctx.JSON(serverutils.SuccessResponse(message, res))
	}
}

func (c *assistantController) SendMessage(ctx *fiber.Ctx) error {
	id, err := sessionId(ctx)
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := parseOptionalBody(ctx, &req); err != nil {
		return err
	}
	if ctx.QueryBool("async") {
		req.Async = true
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.UserContext(), id, &req)
	if err != nil {
		return err
	}

	return c.exchangeResult(ctx, res)
}

func (c *assistantController) runTask(task assistant.TaskKind) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id, err := sessionId(ctx)
		if err != nil {
			return err
		}

		var req dto.TaskRequest
		if err := parseOptionalBody(ctx, &req); err != nil {
			return err
		}
		if ctx.QueryBool("async") {
			req.Async = true
		}

		res, err := c.service.RunTask(ctx.UserContext(), id, task, &req)
		if err != nil {
			return err
		}

		return c.exchangeResult(ctx, res)
	}
}

func (c *assistantController) exchangeResult(ctx *fiber.Ctx, res *dto.ExchangeResultResponse) error {
	if res.Accepted {
		return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Request accepted", res))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success", res))
}

func (c *assistantController) appendMessage(role chat.Role) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id, err := sessionId(ctx)
		if err != nil {
			return err
		}

		var req dto.AppendMessageRequest
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if err := serverutils.ValidateRequest(req); err != nil {
			return err
		}

		res, err := c.service.AppendMessage(ctx.UserContext(), id, role, &req)
		if err != nil {
			return err
		}

		return ctx.JSON(serverutils.SuccessResponse("Success append message", res))
	}
}

func (c *assistantController) ClearTranscript(ctx *fiber.Ctx) error {
	id, err := sessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.ClearTranscript(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success clear transcript", res))
}

func (c *assistantController) ListExchanges(ctx *fiber.Ctx) error {
	id, err := sessionId(ctx)
	if err != nil {
		return err
	}

	var query dto.ExchangeListQuery
	if err := ctx.QueryParser(&query); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query")
	}
	if err := serverutils.ValidateRequest(query); err != nil {
		return err
	}

	res, err := c.service.ListExchanges(ctx.UserContext(), id, &query)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list exchanges", res))
}
