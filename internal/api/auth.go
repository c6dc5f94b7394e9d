package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/obralens/obralens/internal/model"
)

// LoginRequest is the login endpoint body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and the sanitized account.
type LoginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// LoginHandler authenticates a user and issues a JWT.
func (c *Controller) LoginHandler(ctx echo.Context) error {
	req := &LoginRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.Email == "" || req.Password == "" {
		return c.HandleError(ctx, nil, "Email and password are required", http.StatusBadRequest)
	}

	token, user, err := c.Auth.Login(req.Email, req.Password)
	if err != nil {
		return c.ServiceError(ctx, err, "Login failed")
	}

	c.apiLogger.Info("login", "user_id", user.ID, "ip", ctx.RealIP())
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: *user})
}

// CompleteRegistrationRequest finishes a pre-registered account.
type CompleteRegistrationRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	SecurityQuestion string `json:"securityQuestion"`
	SecurityAnswer   string `json:"securityAnswer"`
}

// CompleteRegistration sets the password and security question on a
// pre-registered account.
func (c *Controller) CompleteRegistration(ctx echo.Context) error {
	req := &CompleteRegistrationRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	user, err := c.Auth.CompleteRegistration(req.Email, req.Password, req.SecurityQuestion, req.SecurityAnswer)
	if err != nil {
		return c.ServiceError(ctx, err, "Registration failed")
	}
	return ctx.JSON(http.StatusOK, user)
}

// SecurityQuestionHandler returns the account's security question. Unknown
// emails get an empty question so the endpoint cannot enumerate accounts.
func (c *Controller) SecurityQuestionHandler(ctx echo.Context) error {
	req := &struct {
		Email string `json:"email"`
	}{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	question, err := c.Auth.SecurityQuestion(req.Email)
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to look up security question")
	}
	return ctx.JSON(http.StatusOK, map[string]string{"securityQuestion": question})
}

// ResetPasswordRequest resets a password via the security answer.
type ResetPasswordRequest struct {
	Email          string `json:"email"`
	SecurityAnswer string `json:"securityAnswer"`
	NewPassword    string `json:"newPassword"`
}

// ResetPasswordHandler sets a new password after verifying the security answer.
func (c *Controller) ResetPasswordHandler(ctx echo.Context) error {
	req := &ResetPasswordRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	if err := c.Auth.ResetPassword(req.Email, req.SecurityAnswer, req.NewPassword); err != nil {
		return c.ServiceError(ctx, err, "Password reset failed")
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "password updated"})
}
