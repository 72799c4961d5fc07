package controller

import (
	"strings"

	"metabolite-assistant-be/internal/dto"
	"metabolite-assistant-be/internal/pkg/serverutils"
	"metabolite-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDiagnosticsController interface {
	RegisterRoutes(r fiber.Router, middleware ...fiber.Handler)
}

type diagnosticsController struct {
	service service.IDiagnosticsService
}

func NewDiagnosticsController(service service.IDiagnosticsService) IDiagnosticsController {
	return &diagnosticsController{service: service}
}

func (c *diagnosticsController) RegisterRoutes(r fiber.Router, middleware ...fiber.Handler) {
	h := r.Group("/assistant/v1/diagnostics", middleware...)
	h.Get("/logs", c.GetLogs)
	h.Get("/logs/:id", c.GetLogById)
}

func (c *diagnosticsController) GetLogs(ctx *fiber.Ctx) error {
	var query dto.LogQuery
	if err := ctx.QueryParser(&query); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query")
	}
	query.Level = strings.ToUpper(query.Level)
	if err := serverutils.ValidateRequest(query); err != nil {
		return err
	}

	res, err := c.service.GetLogs(ctx.UserContext(), &query)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get logs", res))
}

func (c *diagnosticsController) GetLogById(ctx *fiber.Ctx) error {
	res, err := c.service.GetLogById(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get log", res))
}
