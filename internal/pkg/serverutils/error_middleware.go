package serverutils

import (
	"errors"

	"metabolite-assistant-be/pkg/chat"

	"github.com/gofiber/fiber/v2"
)

// ErrSessionNotFound is returned for unknown or expired assistant sessions.
var ErrSessionNotFound = errors.New("session not found")

// ErrorHandlerMiddleware turns handler errors into BaseResponse JSON.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code, body := classify(err)
		return ctx.Status(code).JSON(body)
	}
}

func classify(err error) (int, *BaseResponse[any]) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return fiber.StatusBadRequest, ValidationErrorResponse(validationErr.Fields)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, ErrorResponse(appErr.Code, appErr.Message)
	}

	switch {
	case errors.Is(err, ErrSessionNotFound):
		return fiber.StatusNotFound, ErrorResponse(fiber.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrExchangeInFlight):
		return fiber.StatusConflict, ErrorResponse(fiber.StatusConflict, err.Error())
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, ErrorResponse(fiberErr.Code, fiberErr.Message)
	}

	return fiber.StatusInternalServerError, ErrorResponse(fiber.StatusInternalServerError, err.Error())
}
