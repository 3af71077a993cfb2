package handlers

import (
	"github.com/gofiber/fiber/v2"

	"stowpay/internal/apperrors"
)

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return fiber.StatusBadRequest
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindStateConflict:
		return fiber.StatusConflict
	case apperrors.KindPrecondition:
		return fiber.StatusPreconditionFailed
	case apperrors.KindInsufficientBalance:
		return fiber.StatusUnprocessableEntity
	case apperrors.KindProviderTransient:
		return fiber.StatusServiceUnavailable
	case apperrors.KindProvider:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
