package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/obralens/obralens/internal/auth"
	"github.com/obralens/obralens/internal/project"
)

// CreateInspectionRequest is the JSON body for new inspections.
type CreateInspectionRequest struct {
	InspectionType        string `json:"inspectionType"`
	InspectionObjective   string `json:"inspectionObjective"`
	InspectionDate        string `json:"inspectionDate"`
	InspectionResponsible string `json:"inspectionResponsible"`
}

// CreateInspection adds an inspection to a project.
func (c *Controller) CreateInspection(ctx echo.Context) error {
	user := auth.UserFrom(ctx)
	req := &CreateInspectionRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	inspection, err := c.Projects.CreateInspection(user, ctx.Param("projectId"), project.InspectionInput{
		InspectionType:        req.InspectionType,
		InspectionObjective:   req.InspectionObjective,
		InspectionDate:        req.InspectionDate,
		InspectionResponsible: req.InspectionResponsible,
	})
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to create inspection")
	}
	c.invalidateProjectCache()
	return ctx.JSON(http.StatusCreated, inspection)
}

// DeleteInspection removes an inspection and its image directory.
func (c *Controller) DeleteInspection(ctx echo.Context) error {
	user := auth.UserFrom(ctx)
	if err := c.Projects.DeleteInspection(user, ctx.Param("projectId"), ctx.Param("inspectionId")); err != nil {
		return c.ServiceError(ctx, err, "Failed to delete inspection")
	}
	c.invalidateProjectCache()
	return ctx.NoContent(http.StatusNoContent)
}

// DeleteInspectionImage removes one committed image from an inspection.
func (c *Controller) DeleteInspectionImage(ctx echo.Context) error {
	user := auth.UserFrom(ctx)
	err := c.Projects.DeleteImage(user,
		ctx.Param("projectId"),
		ctx.Param("inspectionId"),
		ctx.Param("imageName"))
	if err != nil {
		return c.ServiceError(ctx, err, "Failed to delete image")
	}
	c.invalidateProjectCache()
	return ctx.NoContent(http.StatusNoContent)
}
