package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/obralens/obralens/internal/model"
)

// PreRegisterRequest creates an account that completes registration later.
type PreRegisterRequest struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// PreRegisterUser creates a password-less account. Admin only.
func (c *Controller) PreRegisterUser(ctx echo.Context) error {
	req := &PreRegisterRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}

	user, err := c.Auth.PreRegister(req.Email, req.Role)
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to pre-register user")
	}
	return ctx.JSON(http.StatusCreated, user)
}
