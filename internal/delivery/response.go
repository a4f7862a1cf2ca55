package delivery

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"signup-service/internal/domain"
)

// ErrorResponse - standard error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// respondWithError - writes an ErrorResponse
func respondWithError(c *fiber.Ctx, status int, message string, details ...string) error {
	resp := ErrorResponse{
		Error: message,
	}
	if len(details) > 0 {
		resp.Details = details[0]
	}
	return c.Status(status).JSON(resp)
}

// respondBadRequest - malformed request (400)
func respondBadRequest(c *fiber.Ctx, message string) error {
	return respondWithError(c, fiber.StatusBadRequest, message)
}

// respondInternalError - unexpected failure (500)
func respondInternalError(c *fiber.Ctx, message string, details string) error {
	return respondWithError(c, fiber.StatusInternalServerError, message, details)
}

// respondFlowError - maps flow refusals to status codes
func respondFlowError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrFlowNotFound):
		return respondWithError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrFlowBusy), errors.Is(err, domain.ErrInvalidTransition):
		return respondWithError(c, fiber.StatusConflict, err.Error())
	default:
		return respondInternalError(c, "Unexpected error", err.Error())
	}
}

// respondSuccess - success with a JSON body
func respondSuccess(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// respondCreated - resource created (201)
func respondCreated(c *fiber.Ctx, data interface{}) error {
	return respondSuccess(c, fiber.StatusCreated, data)
}

// respondOK - success (200)
func respondOK(c *fiber.Ctx, data interface{}) error {
	return respondSuccess(c, fiber.StatusOK, data)
}

// validationError converts the first failed field into its domain error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch verrs[0].Field() {
	case "Name":
		return domain.ErrNameRequired
	case "Email":
		return domain.ErrEmailRequired
	case "Password":
		return domain.ErrPasswordRequired
	case "Code":
		return domain.ErrCodeRequired
	}
	return err
}
