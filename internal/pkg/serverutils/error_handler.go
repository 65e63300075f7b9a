package serverutils

import (
	"context"
	"errors"

	"ai-chatbot-be/pkg/errs"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	switch {
	case errors.Is(err, errs.ErrUnsupportedFormat):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, errs.ErrEmptyDocument):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrNormalization):
		return fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	}

	if kind, ok := errs.KindOf(err); ok {
		switch kind {
		case errs.KindRateLimited:
			return fiber.StatusTooManyRequests
		case errs.KindTimeout:
			return fiber.StatusGatewayTimeout
		default:
			return fiber.StatusBadGateway
		}
	}

	if errors.Is(err, errs.ErrIngestion) {
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

// ErrorHandlerMiddleware renders errors returned by handlers as ErrorResponse.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := StatusFor(err)
		message := err.Error()
		if code == fiber.StatusInternalServerError {
			message = "Internal server error"
		}
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
