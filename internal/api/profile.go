package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/obralens/obralens/internal/auth"
	"github.com/obralens/obralens/internal/project"
)

// GetProfile returns the authenticated user's sanitized account.
func (c *Controller) GetProfile(ctx echo.Context) error {
	user := auth.UserFrom(ctx)
	return ctx.JSON(http.StatusOK, user.Sanitized())
}

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	Name    *string `json:"name"`
	Company *string `json:"company"`
	Bio     *string `json:"bio"`
}

// UpdateProfile updates name, company and bio. Absent fields are unchanged.
func (c *Controller) UpdateProfile(ctx echo.Context) error {
	req := &UpdateProfileRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	user := *auth.UserFrom(ctx)
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Company != nil {
		user.Company = *req.Company
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if err := c.DS.UpdateUser(user); err != nil {
		return c.ServiceError(ctx, err, "Failed to update profile")
	}
	return ctx.JSON(http.StatusOK, user.Sanitized())
}

// ChangePasswordRequest carries the current and replacement passwords.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword verifies the current password and stores a new one.
func (c *Controller) ChangePassword(ctx echo.Context) error {
	req := &ChangePasswordRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	user := auth.UserFrom(ctx)
	if err := c.Auth.ChangePassword(user.ID, req.OldPassword, req.NewPassword); err != nil {
		return c.ServiceError(ctx, err, "Failed to change password")
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "password updated"})
}

// UpdateAvatar replaces the user's avatar with the uploaded file. The
// previous avatar file is removed once the new one is stored.
func (c *Controller) UpdateAvatar(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("avatar")
	if err != nil {
		return c.HandleError(ctx, err, "Avatar file is required", http.StatusBadRequest)
	}
	src, err := fileHeader.Open()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read avatar upload", http.StatusBadRequest)
	}
	defer func() { _ = src.Close() }()

	url, err := c.Projects.SaveAsset("avatars", &project.FileUpload{
		FileName: fileHeader.Filename,
		Reader:   src,
	})
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to store avatar")
	}

	user := *auth.UserFrom(ctx)
	previous := user.AvatarURL
	user.AvatarURL = url
	if err := c.DS.UpdateUser(user); err != nil {
		return c.ServiceError(ctx, err, "Failed to update profile")
	}
	if previous != "" {
		c.Projects.RemoveAsset(previous)
	}

	return ctx.JSON(http.StatusOK, user.Sanitized())
}
